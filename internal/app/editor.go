package app

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"mvdan.cc/sh/v3/shell"

	"github.com/hoanghonghuy/commita/internal/gitx"
	"github.com/hoanghonghuy/commita/internal/orchestrator"
)

const fallbackEditor = "vi"

// ExternalEditor opens text in the user's editor, attached to the terminal.
type ExternalEditor struct {
	repoRoot string
	log      *zap.Logger

	// lookupEnv is os.Getenv outside tests.
	lookupEnv func(string) string
	// gitEditor returns git's core.editor.
	gitEditor func(ctx context.Context) string
	// runCmd runs the editor with the file path as its last argument.
	runCmd func(ctx context.Context, argv []string) error
}

var _ orchestrator.Editor = (*ExternalEditor)(nil)

func NewExternalEditor(repoRoot string, log *zap.Logger) *ExternalEditor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &ExternalEditor{repoRoot: repoRoot, log: log, lookupEnv: os.Getenv}
	e.gitEditor = func(ctx context.Context) string {
		v, _ := gitx.GitConfig(ctx, e.repoRoot, "core.editor")
		return v
	}
	e.runCmd = runAttached
	return e
}

// Command picks the editor: override, then $EDITOR, then git core.editor,
// then vi.
func (e *ExternalEditor) Command(ctx context.Context, override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	if v := strings.TrimSpace(e.lookupEnv("EDITOR")); v != "" {
		return v
	}
	if e.repoRoot != "" {
		if v := strings.TrimSpace(e.gitEditor(ctx)); v != "" {
			return v
		}
	}
	return fallbackEditor
}

// Edit writes initial to a temp file, opens it and returns the saved text.
// Any failure, or an empty result, yields initial unchanged.
func (e *ExternalEditor) Edit(ctx context.Context, initial, tempName, editor string) (string, error) {
	edited, err := e.edit(ctx, initial, tempName, editor)
	if err != nil {
		e.log.Warn("Editor did not produce text, keeping the original", zap.Error(err))
		return initial, nil
	}
	if strings.TrimSpace(edited) == "" {
		return initial, nil
	}
	return edited, nil
}

func (e *ExternalEditor) edit(ctx context.Context, initial, tempName, editor string) (string, error) {
	command := e.Command(ctx, editor)
	argv, err := shell.Fields(command, e.lookupEnv)
	if err != nil {
		return "", errors.Wrapf(err, "parse editor command %q", command)
	}
	if len(argv) == 0 {
		return "", errors.Newf("empty editor command %q", command)
	}

	f, err := os.CreateTemp("", "commita-*"+tempName)
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write temp file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close temp file")
	}

	e.log.Debug("Opening editor", zap.Strings("argv", argv), zap.String("file", path))
	if err := e.runCmd(ctx, append(argv, path)); err != nil {
		return "", errors.Wrapf(err, "run editor %s", argv[0])
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read temp file")
	}
	return string(b), nil
}

func runAttached(ctx context.Context, argv []string) error {
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
