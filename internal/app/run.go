// Package app implements the commita commands on top of the orchestrator,
// the git helpers and the terminal UI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/commitprompt"
	"github.com/hoanghonghuy/commita/internal/gitx"
	"github.com/hoanghonghuy/commita/internal/orchestrator"
)

// DefaultIgnores are left out of the diff sent to the model.
var DefaultIgnores = []string{
	"go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"*.map", "*.svg", "*.min.js", "*.min.css",
}

// Options controls SuggestAndCommit.
type Options struct {
	Commit bool
	Push   bool
	// Force skips the commit and push confirmations.
	Force bool
	// HookFile, when set, receives the accepted message instead of a commit.
	HookFile string
	// Ignore adds file names or globs to DefaultIgnores.
	Ignore []string
}

type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Terminal     *Terminal
	Editor       orchestrator.Editor
	Log          *zap.Logger
	RepoRoot     string
}

type App struct {
	orch     *orchestrator.Orchestrator
	ui       *Terminal
	editor   orchestrator.Editor
	log      *zap.Logger
	repoRoot string
}

func New(cfg Config) *App {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	ui := cfg.Terminal
	if ui == nil {
		ui = NewTerminal(os.Stdout)
	}
	return &App{
		orch:     cfg.Orchestrator,
		ui:       ui,
		editor:   cfg.Editor,
		log:      log,
		repoRoot: cfg.RepoRoot,
	}
}

// SuggestAndCommit asks the model for a message describing the current
// changes and optionally commits and pushes them.
func (a *App) SuggestAndCommit(ctx context.Context, opts Options) error {
	if err := a.orch.EnsureReady(ctx); err != nil {
		return err
	}

	diff, err := gitx.Diff(ctx, a.repoRoot)
	if err != nil {
		return errors.Wrap(err, "read changes")
	}
	diff = FilterDiff(diff, append(append([]string{}, DefaultIgnores...), opts.Ignore...))

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " Suggesting commit message..."
	s.Start()
	raw, err := a.orch.SuggestCommitMessage(ctx, diff)
	s.Stop()
	if err != nil {
		return err
	}

	msg := commitprompt.Clean(raw)
	if msg == "" {
		a.ui.Warn("No commit message suggested.")
		return nil
	}
	a.ui.ShowSuggestion(msg)

	if !opts.Commit && opts.HookFile == "" {
		return nil
	}

	if !opts.Force {
		var ok bool
		if msg, ok, err = a.review(ctx, msg); err != nil || !ok {
			return err
		}
	}

	if opts.HookFile != "" {
		if err := os.WriteFile(opts.HookFile, []byte(msg+"\n"), 0o644); err != nil {
			return errors.Wrap(err, "write hook file")
		}
		a.ui.Success("Message generated for git hook.")
		return nil
	}

	if err := gitx.AddAll(ctx, a.repoRoot); err != nil {
		return err
	}
	if err := gitx.Commit(ctx, a.repoRoot, msg); err != nil {
		return err
	}
	a.ui.Success("Changes committed successfully.")

	if !opts.Push {
		return nil
	}
	if !opts.Force {
		push, err := a.ui.Confirm(ctx, "Do you want to push the changes?", true)
		if err != nil || !push {
			return err
		}
	}
	return a.Push(ctx, "")
}

// review loops until the user commits or aborts, editing in between.
func (a *App) review(ctx context.Context, msg string) (string, bool, error) {
	for {
		action, err := a.ui.ConfirmCommit(ctx)
		if err != nil {
			return msg, false, err
		}
		switch action {
		case ActionCommit:
			return msg, true, nil
		case ActionEdit:
			edited, err := a.editor.Edit(ctx, msg, ".commit-msg.txt", "")
			if err != nil {
				return msg, false, err
			}
			msg = strings.TrimSpace(edited)
			a.ui.ShowSuggestion(msg)
		default:
			a.ui.Info("Commit aborted.")
			return msg, false, nil
		}
	}
}

func (a *App) Status(ctx context.Context) error {
	st, err := gitx.GetStatus(ctx, a.repoRoot)
	if err != nil {
		return err
	}
	a.ui.Info("Current branch: " + st.Branch)
	a.printFiles("Modified files", st.Modified)
	a.printFiles("Deleted files", st.Deleted)
	a.printFiles("New files", st.New)
	a.printFiles("Staged files", st.Staged)
	return nil
}

func (a *App) printFiles(title string, files []string) {
	if len(files) == 0 {
		return
	}
	a.ui.Print(title + ":")
	for _, f := range files {
		a.ui.Print("  " + f)
	}
}

func (a *App) Changes(ctx context.Context) error {
	diff, err := gitx.Diff(ctx, a.repoRoot)
	if err != nil {
		return err
	}
	if strings.TrimSpace(diff) == "" {
		a.ui.Info("No changes.")
		return nil
	}
	a.ui.Print(diff)
	return nil
}

func (a *App) Branch(ctx context.Context, name string) error {
	if err := gitx.CreateBranch(ctx, a.repoRoot, name); err != nil {
		return err
	}
	a.ui.Success(fmt.Sprintf("Switched to a new branch '%s'", name))
	return nil
}

// Push pushes branch, or the current branch when empty, to origin.
func (a *App) Push(ctx context.Context, branch string) error {
	pushed, err := gitx.Push(ctx, a.repoRoot, branch)
	if err != nil {
		return err
	}
	a.ui.Success(fmt.Sprintf("Pushed %s to origin.", pushed))
	return nil
}

func (a *App) ChangeModel(ctx context.Context) error {
	return a.orch.ChangeModel(ctx, true)
}

func (a *App) ChangePrompt(ctx context.Context) error {
	return a.orch.ChangePromptTemplate(ctx)
}

func (a *App) InstallHook(ctx context.Context) error {
	path, err := InstallHook(ctx, a.repoRoot)
	if err != nil {
		return err
	}
	a.ui.Success("Hook installed to " + path)
	return nil
}

// FilterDiff drops the file sections of a unified diff whose path matches
// one of ignores.
func FilterDiff(diff string, ignores []string) string {
	if len(ignores) == 0 || diff == "" {
		return diff
	}
	var b strings.Builder
	skip := false
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			skip = shouldIgnore(diffPath(line), ignores)
		}
		if !skip {
			b.WriteString(line)
		}
	}
	return b.String()
}

// diffPath returns the b/ side of a "diff --git a/x b/x" header.
func diffPath(header string) string {
	header = strings.TrimRight(header, "\r\n")
	if i := strings.LastIndex(header, " b/"); i >= 0 {
		return header[i+3:]
	}
	return ""
}

func shouldIgnore(pattern string, ignores []string) bool {
	if pattern == "" {
		return false
	}
	base := filepath.Base(pattern)
	for _, ign := range ignores {
		if ign == base || ign == pattern {
			return true
		}
		if matched, _ := filepath.Match(ign, base); matched {
			return true
		}
	}
	return false
}
