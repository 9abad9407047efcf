// Package vcs inspects the project's git checkout before the release workflow
// tags and pushes it. Mutations still go through the git CLI.
package vcs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrDetachedHead is returned when HEAD does not point at a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// Repo is a read-only view of a git repository.
type Repo struct {
	repo *git.Repository
}

// Open finds the repository containing dir, walking up to the .git directory.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", dir, err)
	}
	return &Repo{repo: repo}, nil
}

// CurrentBranch returns the short name of the checked out branch.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// TagExists reports whether a tag named name is present locally.
func (r *Repo) TagExists(name string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewTagReferenceName(name), true)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("look up tag %s: %w", name, err)
}

// HasRemote reports whether a remote called name is configured.
func (r *Repo) HasRemote(name string) (bool, error) {
	_, err := r.repo.Remote(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, git.ErrRemoteNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("look up remote %s: %w", name, err)
}

// RemoteURL returns the first fetch URL configured for remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("look up remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", name)
	}
	return urls[0], nil
}

// ReleasePageURL maps a GitHub remote URL to its new-release page.
// It returns "" for remotes hosted elsewhere.
func ReleasePageURL(remoteURL string) string {
	path := strings.TrimSpace(remoteURL)
	switch {
	case strings.HasPrefix(path, "git@github.com:"):
		path = strings.TrimPrefix(path, "git@github.com:")
	case strings.HasPrefix(path, "ssh://git@github.com/"):
		path = strings.TrimPrefix(path, "ssh://git@github.com/")
	case strings.HasPrefix(path, "https://github.com/"):
		path = strings.TrimPrefix(path, "https://github.com/")
	default:
		return ""
	}
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
	if strings.Count(path, "/") != 1 {
		return ""
	}
	return "https://github.com/" + path + "/releases/new"
}
