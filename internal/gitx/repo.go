package gitx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ResolveRepoRoot returns the top level of the repository containing dir,
// or the working directory when dir is empty.
func ResolveRepoRoot(ctx context.Context, dir string) (string, error) {
	start, err := startDir(dir)
	if err != nil {
		return "", err
	}
	root, err := Git(ctx, start, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.Wrapf(err, "%s is not inside a git repository", start)
	}
	return strings.TrimSpace(root), nil
}

func startDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		wd, err := os.Getwd()
		return wd, errors.WithStack(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", errors.Wrap(err, "repository path")
	}
	return abs, nil
}
