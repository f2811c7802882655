package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/arcadebuilder/internal/manifest"
)

// initOrigin creates a local origin repository with one initial commit.
func initOrigin(t *testing.T) (string, *git.Repository) {
	t.Helper()
	originPath := filepath.Join(t.TempDir(), "origin")

	repo, err := git.PlainInit(originPath, false)
	require.NoError(t, err)

	writeAndCommit(t, repo, originPath, "index.html", "<html>v1</html>", "Initial commit")
	return originPath, repo
}

func writeAndCommit(t *testing.T, repo *git.Repository, repoPath, file, content, msg string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, file), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(file)
	require.NoError(t, err)

	commit, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com"},
	})
	require.NoError(t, err)
	return commit.String()
}

func TestSyncFullClone(t *testing.T) {
	originPath, _ := initOrigin(t)
	spec := manifest.GameSpec{Name: "pong", RepoURL: originPath}
	dir := filepath.Join(t.TempDir(), "pong")

	syncer := NewGitSyncer()
	checkout, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)

	assert.Equal(t, dir, checkout.Path)
	assert.Len(t, checkout.Commit, 40)
	assert.Len(t, checkout.Version, 64)
	assert.FileExists(t, filepath.Join(dir, "index.html"))
}

func TestSyncIncrementalUpdate(t *testing.T) {
	originPath, origin := initOrigin(t)
	spec := manifest.GameSpec{Name: "pong", RepoURL: originPath}
	dir := filepath.Join(t.TempDir(), "pong")

	syncer := NewGitSyncer()
	first, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)

	// Unchanged origin: same commit, same version.
	again, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)
	assert.Equal(t, first.Commit, again.Commit)
	assert.Equal(t, first.Version, again.Version)

	// New upstream commit: update must pick it up and change the version.
	newCommit := writeAndCommit(t, origin, originPath, "index.html", "<html>v2</html>", "Second commit")
	updated, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)
	assert.Equal(t, newCommit, updated.Commit)
	assert.NotEqual(t, first.Version, updated.Version)

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>v2</html>", string(data))
}

func TestSyncRecoversFromCorruptWorkingCopy(t *testing.T) {
	originPath, _ := initOrigin(t)
	spec := manifest.GameSpec{Name: "pong", RepoURL: originPath}
	dir := filepath.Join(t.TempDir(), "pong")

	syncer := NewGitSyncer()
	first, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)

	// Break the clone so PlainOpen fails; sync must discard and re-clone once.
	require.NoError(t, os.Remove(filepath.Join(dir, ".git", "HEAD")))

	recovered, err := syncer.Sync(context.Background(), spec, dir)
	require.NoError(t, err)
	assert.Equal(t, first.Version, recovered.Version)
}

func TestSyncUnreachableRemote(t *testing.T) {
	spec := manifest.GameSpec{Name: "pong", RepoURL: filepath.Join(t.TempDir(), "missing-origin")}
	dir := filepath.Join(t.TempDir(), "pong")

	_, err := NewGitSyncer().Sync(context.Background(), spec, dir)
	require.Error(t, err)

	var unreachable *UnreachableError
	assert.ErrorAs(t, err, &unreachable)
}

func TestContentVersionDeterministic(t *testing.T) {
	originPath, repo := initOrigin(t)
	head, err := repo.Head()
	require.NoError(t, err)

	v1, err := ComputeContentVersion(originPath, head.Hash().String())
	require.NoError(t, err)
	v2, err := ComputeContentVersion(originPath, head.Hash().String())
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
}

func TestContentVersionChangesWithContent(t *testing.T) {
	originPath, repo := initOrigin(t)
	head, err := repo.Head()
	require.NoError(t, err)
	v1, err := ComputeContentVersion(originPath, head.Hash().String())
	require.NoError(t, err)

	c2 := writeAndCommit(t, repo, originPath, "game.js", "console.log(1)", "Add game.js")
	v2, err := ComputeContentVersion(originPath, c2)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}
