package builder

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v6"
)

// FindWorktreeRoot returns the root of the git worktree containing dir
func FindWorktreeRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%s is not inside a git repository", dir)
	}
	if err != nil {
		return "", err
	}

	w, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("could not get worktree: %w", err)
	}
	return w.Filesystem.Root(), nil
}
