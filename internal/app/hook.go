package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/hoanghonghuy/commita/internal/gitx"
)

const hookName = "prepare-commit-msg"

// InstallHook writes a prepare-commit-msg hook into the repository at
// repoRoot and returns its path. An existing hook is never overwritten.
func InstallHook(ctx context.Context, repoRoot string) (string, error) {
	out, err := gitx.Git(ctx, repoRoot, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", errors.Wrap(err, "locate hooks directory")
	}
	hooksDir := strings.TrimSpace(out)
	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(repoRoot, hooksDir)
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create hooks dir")
	}

	hookPath := filepath.Join(hooksDir, hookName)
	if _, err := os.Stat(hookPath); err == nil {
		return "", errors.WithHint(
			errors.Newf("hook %s already exists", hookPath),
			"remove it first or merge the commita call into it by hand")
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "commita"
	} else if abs, err := filepath.Abs(exe); err == nil {
		exe = abs
	}

	if err := os.WriteFile(hookPath, []byte(hookScript(exe)), 0o755); err != nil {
		return "", errors.Wrap(err, "write hook file")
	}
	return hookPath, nil
}

// hookScript runs commita against the terminal so prompts work inside git.
// Commits that already carry a message (-m, merges, amends) are left alone.
func hookScript(exe string) string {
	return fmt.Sprintf(`#!/bin/sh
# commita hook
COMMIT_MSG_FILE=$1
COMMIT_SOURCE=$2

case "$COMMIT_SOURCE" in
  message|merge|squash|commit) exit 0 ;;
esac

exec < /dev/tty
"%s" suggest-commit --hook "$COMMIT_MSG_FILE" > /dev/tty
`, exe)
}
