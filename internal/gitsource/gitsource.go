// Package gitsource keeps a local checkout of a git-hosted vocabulary catalog.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones repoURL into localPath if nothing is there yet, or pulls the
// latest changes into the existing checkout.
func Sync(ctx context.Context, repoURL, localPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gitsource", "url", repoURL, "path", localPath)

	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("cloning catalog repository")
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(localPath), err)
		}
		if _, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: repoURL}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		logger.Info("clone complete")
	case err == nil:
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			logger.Debug("catalog already up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		logger.Info("pulled catalog changes")
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// LocalPath maps a repository URL to a directory under baseDir, for example
// https://github.com/acme/words.git to baseDir/github.com/acme/words. SCP-like
// URLs (git@host:owner/repo.git) are accepted too.
func LocalPath(baseDir, repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh" || u.Scheme == "file") {
		p := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
		if p == "" {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		host := u.Host
		if host == "" {
			host = "local"
		}
		return filepath.Join(baseDir, host, filepath.FromSlash(p)), nil
	}

	userHost, p, ok := strings.Cut(repoURL, ":")
	if !ok || !strings.Contains(userHost, "@") {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	_, host, _ := strings.Cut(userHost, "@")
	p = strings.TrimSuffix(strings.Trim(p, "/"), ".git")
	if host == "" || p == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return filepath.Join(baseDir, host, filepath.FromSlash(p)), nil
}
