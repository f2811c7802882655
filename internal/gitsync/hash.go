package gitsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ComputeContentVersion computes a deterministic version for a repository at
// the given commit. The version covers the commit SHA and the full tree
// (path + blob hash per file), so identical content always produces an
// identical version regardless of when or where it was cloned.
func ComputeContentVersion(repoPath, commit string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return "", fmt.Errorf("resolve commit %s: %w", commit, err)
	}

	commitObj, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("get commit object: %w", err)
	}

	tree, err := commitObj.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}

	var fileHashes []string
	err = tree.Files().ForEach(func(file *object.File) error {
		fileHashes = append(fileHashes, fmt.Sprintf("%s:%s", file.Name, file.Hash.String()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash tree: %w", err)
	}

	// Sort for deterministic ordering.
	sort.Strings(fileHashes)

	h := sha256.New()
	h.Write([]byte(commitObj.Hash.String()))
	for _, fh := range fileHashes {
		h.Write([]byte(fh))
		h.Write([]byte("\n"))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
