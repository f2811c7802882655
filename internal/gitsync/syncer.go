// Package gitsync keeps local working copies of game repositories in step
// with their remotes and reports a deterministic content version per sync.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/manifest"
)

// Checkout is a synchronized working copy plus its content version.
type Checkout struct {
	// Path is the working copy root.
	Path string

	// Commit is the HEAD commit SHA after sync.
	Commit string

	// Version is the deterministic content version of the checkout.
	// Identical content always yields an identical version.
	Version string
}

// Syncer produces an up-to-date working copy for a game spec. Implementations
// other than git (tarball download, local path) can satisfy the same contract.
type Syncer interface {
	Sync(ctx context.Context, spec manifest.GameSpec, dir string) (*Checkout, error)
}

// GitSyncer implements Syncer using go-git.
type GitSyncer struct{}

// NewGitSyncer creates a git-backed syncer.
func NewGitSyncer() *GitSyncer { return &GitSyncer{} }

// Sync clones spec.RepoURL into dir, or incrementally updates an existing
// clone. A clone that cannot be opened or updated locally is discarded and
// re-fetched in full once before failure is surfaced.
func (s *GitSyncer) Sync(ctx context.Context, spec manifest.GameSpec, dir string) (*Checkout, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		checkout, err := s.update(ctx, spec, dir)
		if err == nil {
			return checkout, nil
		}
		var unreachable *UnreachableError
		if errors.As(err, &unreachable) {
			return nil, err
		}

		// Local state is unusable; discard and re-fetch fully once.
		slog.Warn("Working copy unusable, discarding and re-cloning",
			logfields.Game(spec.Name), logfields.Path(dir), logfields.Error(err))
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, &CorruptError{Path: dir, Err: rmErr}
		}
		checkout, cloneErr := s.clone(ctx, spec, dir)
		if cloneErr != nil {
			var cloneUnreachable *UnreachableError
			if errors.As(cloneErr, &cloneUnreachable) {
				return nil, cloneErr
			}
			return nil, &CorruptError{Path: dir, Err: cloneErr}
		}
		return checkout, nil
	}

	return s.clone(ctx, spec, dir)
}

func (s *GitSyncer) clone(ctx context.Context, spec manifest.GameSpec, dir string) (*Checkout, error) {
	slog.Debug("Cloning repository",
		logfields.Game(spec.Name), logfields.URL(spec.RepoURL), logfields.Path(dir))

	opts := &git.CloneOptions{URL: spec.RepoURL}
	if spec.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(spec.Branch)
		opts.SingleBranch = true
	}

	auth, err := authMethod(spec.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	opts.Auth = auth

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, classifyRemoteError("clone", spec.RepoURL, err)
	}

	return s.checkout(spec, dir, repo)
}

func (s *GitSyncer) update(ctx context.Context, spec manifest.GameSpec, dir string) (*Checkout, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	auth, err := authMethod(spec.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}

	fetchOpts := &git.FetchOptions{RemoteName: "origin", Auth: auth, Tags: git.NoTags}
	if err := repo.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, classifyRemoteError("fetch", spec.RepoURL, err)
	}

	branch := spec.Branch
	if branch == "" {
		head, headErr := repo.Head()
		if headErr != nil {
			return nil, fmt.Errorf("resolve head: %w", headErr)
		}
		branch = head.Name().Short()
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve origin/%s: %w", branch, err)
	}

	// Hard reset to the remote head: the working copy is build scratch, local
	// drift is never worth preserving.
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return nil, fmt.Errorf("reset to origin/%s: %w", branch, err)
	}

	slog.Debug("Repository updated",
		logfields.Game(spec.Name),
		slog.String("commit", remoteRef.Hash().String()[:8]))

	return s.checkout(spec, dir, repo)
}

func (s *GitSyncer) checkout(spec manifest.GameSpec, dir string, repo *git.Repository) (*Checkout, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	version, err := ComputeContentVersion(dir, head.Hash().String())
	if err != nil {
		return nil, fmt.Errorf("compute content version: %w", err)
	}

	slog.Info("Repository synchronized",
		logfields.Game(spec.Name),
		logfields.URL(spec.RepoURL),
		slog.String("commit", head.Hash().String()[:8]),
		logfields.Version(version[:12]))

	return &Checkout{
		Path:    dir,
		Commit:  head.Hash().String(),
		Version: version,
	}, nil
}
