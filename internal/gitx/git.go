package gitx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Status is the working tree summary shown by `commita status`.
type Status struct {
	Branch   string
	Modified []string
	Deleted  []string
	New      []string
	Staged   []string
}

func Git(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoRoot}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %v failed: %v\n%s", args, err, stderr.String())
	}
	return stdout.String(), nil
}

func CurrentBranch(ctx context.Context, repoRoot string) (string, error) {
	out, err := Git(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func GitConfig(ctx context.Context, repoRoot, key string) (string, error) {
	out, err := Git(ctx, repoRoot, "config", "--get", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Diff returns every change to tracked files since the last commit, staged
// or not. In a repository without commits it falls back to the index and
// the working tree.
func Diff(ctx context.Context, repoRoot string) (string, error) {
	out, err := Git(ctx, repoRoot, "diff", "HEAD")
	if err == nil {
		return out, nil
	}
	staged, err := Git(ctx, repoRoot, "diff", "--cached")
	if err != nil {
		return "", err
	}
	unstaged, err := Git(ctx, repoRoot, "diff")
	if err != nil {
		return "", err
	}
	return staged + unstaged, nil
}

func GetStatus(ctx context.Context, repoRoot string) (*Status, error) {
	branch, err := CurrentBranch(ctx, repoRoot)
	if err != nil {
		// Fresh repositories have no HEAD yet.
		branch, _ = Git(ctx, repoRoot, "branch", "--show-current")
		branch = strings.TrimSpace(branch)
	}
	out, err := Git(ctx, repoRoot, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	st := ParsePorcelain(out)
	st.Branch = branch
	return st, nil
}

// ParsePorcelain reads `git status --porcelain` (v1) output.
func ParsePorcelain(out string) *Status {
	st := &Status{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		x, y, path := line[0], line[1], line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}

		switch {
		case x == '?' && y == '?':
			st.New = append(st.New, path)
		case x == 'A':
			st.New = append(st.New, path)
			st.Staged = append(st.Staged, path)
		case x == 'D' || y == 'D':
			st.Deleted = append(st.Deleted, path)
			if x == 'D' {
				st.Staged = append(st.Staged, path)
			}
		default:
			st.Modified = append(st.Modified, path)
			if x != ' ' {
				st.Staged = append(st.Staged, path)
			}
		}
	}
	return st
}

func AddAll(ctx context.Context, repoRoot string) error {
	_, err := Git(ctx, repoRoot, "add", ".")
	return err
}

func Commit(ctx context.Context, repoRoot, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return fmt.Errorf("commit message cannot be empty")
	}
	_, err := Git(ctx, repoRoot, "commit", "-m", msg)
	return err
}

// Push pushes branch to origin. An empty branch means the current one.
func Push(ctx context.Context, repoRoot, branch string) (string, error) {
	if strings.TrimSpace(branch) == "" {
		b, err := CurrentBranch(ctx, repoRoot)
		if err != nil {
			return "", err
		}
		branch = b
	}
	_, err := Git(ctx, repoRoot, "push", "origin", branch)
	return branch, err
}

func CreateBranch(ctx context.Context, repoRoot, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	_, err := Git(ctx, repoRoot, "checkout", "-b", name)
	return err
}
