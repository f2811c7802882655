package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/arcadebuilder/internal/index"
	"git.home.luguber.info/inful/arcadebuilder/internal/manifest"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
)

func newTestPublisher(t *testing.T) (*Publisher, string, *state.SQLiteStore) {
	t.Helper()
	store, err := state.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	publicRoot := filepath.Join(t.TempDir(), "public")
	pages := index.NewGenerator(index.Site{Title: "Arcade"})
	return NewPublisher(publicRoot, store, pages), publicRoot, store
}

func makeArtifact(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "dist")
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestPublishNewGame(t *testing.T) {
	pub, publicRoot, store := newTestPublisher(t)
	ctx := context.Background()

	artifact := makeArtifact(t, map[string]string{
		"index.html":    "<html>pong</html>",
		"assets/p.webp": "img",
	})
	spec := manifest.GameSpec{Name: "pong", RepoURL: "u", BuildCommand: "make", Description: "Pong!"}

	require.NoError(t, pub.Publish(ctx, spec, artifact, "v1", "c1", "run1"))

	// Content is live under /<name>/.
	data, err := os.ReadFile(filepath.Join(publicRoot, "pong", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>pong</html>", string(data))
	assert.FileExists(t, filepath.Join(publicRoot, "pong", "assets", "p.webp"))

	// Info page was staged into the same swap.
	assert.FileExists(t, filepath.Join(publicRoot, "pong", "info", "index.html"))

	// Version record written after the swap.
	rec, err := store.Get(ctx, "pong")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v1", rec.Version)
	assert.Equal(t, "c1", rec.Commit)

	// No staging leftovers.
	entries, err := os.ReadDir(publicRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pong", entries[0].Name())
}

func TestPublishReplacesPreviousAtomically(t *testing.T) {
	pub, publicRoot, store := newTestPublisher(t)
	ctx := context.Background()
	spec := manifest.GameSpec{Name: "pong", RepoURL: "u", BuildCommand: "make"}

	v1 := makeArtifact(t, map[string]string{"index.html": "v1", "old-only.js": "x"})
	require.NoError(t, pub.Publish(ctx, spec, v1, "ver1", "c1", "run1"))

	v2 := makeArtifact(t, map[string]string{"index.html": "v2", "new-only.js": "y"})
	require.NoError(t, pub.Publish(ctx, spec, v2, "ver2", "c2", "run2"))

	data, err := os.ReadFile(filepath.Join(publicRoot, "pong", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// Fully replaced, not merged.
	assert.NoFileExists(t, filepath.Join(publicRoot, "pong", "old-only.js"))
	assert.FileExists(t, filepath.Join(publicRoot, "pong", "new-only.js"))

	rec, err := store.Get(ctx, "pong")
	require.NoError(t, err)
	assert.Equal(t, "ver2", rec.Version)
}

func TestPublishFailureLeavesStateUntouched(t *testing.T) {
	pub, publicRoot, store := newTestPublisher(t)
	ctx := context.Background()
	spec := manifest.GameSpec{Name: "pong", RepoURL: "u", BuildCommand: "make"}

	v1 := makeArtifact(t, map[string]string{"index.html": "v1"})
	require.NoError(t, pub.Publish(ctx, spec, v1, "ver1", "c1", "run1"))

	// An unreadable artifact path makes staging fail before any swap.
	err := pub.Publish(ctx, spec, filepath.Join(t.TempDir(), "nonexistent"), "ver2", "c2", "run2")
	require.Error(t, err)

	// Old content still live, record still ver1.
	data, readErr := os.ReadFile(filepath.Join(publicRoot, "pong", "index.html"))
	require.NoError(t, readErr)
	assert.Equal(t, "v1", string(data))

	rec, getErr := store.Get(ctx, "pong")
	require.NoError(t, getErr)
	assert.Equal(t, "ver1", rec.Version)

	// No stage or old debris.
	entries, readDirErr := os.ReadDir(publicRoot)
	require.NoError(t, readDirErr)
	require.Len(t, entries, 1)
}

func TestPublishDifferentGamesAreIndependent(t *testing.T) {
	pub, publicRoot, _ := newTestPublisher(t)
	ctx := context.Background()

	a := makeArtifact(t, map[string]string{"index.html": "game-a"})
	b := makeArtifact(t, map[string]string{"index.html": "game-b"})

	require.NoError(t, pub.Publish(ctx, manifest.GameSpec{Name: "game-a", RepoURL: "u", BuildCommand: "m"}, a, "va", "ca", "run1"))
	require.NoError(t, pub.Publish(ctx, manifest.GameSpec{Name: "game-b", RepoURL: "u", BuildCommand: "m"}, b, "vb", "cb", "run1"))

	dataA, err := os.ReadFile(filepath.Join(publicRoot, "game-a", "index.html"))
	require.NoError(t, err)
	dataB, err := os.ReadFile(filepath.Join(publicRoot, "game-b", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "game-a", string(dataA))
	assert.Equal(t, "game-b", string(dataB))
}

func TestThumbnailHookFailureDoesNotAffectPublish(t *testing.T) {
	pub, _, store := newTestPublisher(t)
	pub.WithThumbnailHook(NewThumbnailHook("exit 1", "320x240"))
	ctx := context.Background()

	artifact := makeArtifact(t, map[string]string{"index.html": "x"})
	spec := manifest.GameSpec{Name: "pong", RepoURL: "u", BuildCommand: "make"}

	require.NoError(t, pub.Publish(ctx, spec, artifact, "v1", "c1", "run1"))

	rec, err := store.Get(ctx, "pong")
	require.NoError(t, err)
	assert.Equal(t, "v1", rec.Version)
}

func TestThumbnailHookReceivesArguments(t *testing.T) {
	pub, publicRoot, _ := newTestPublisher(t)
	outFile := filepath.Join(t.TempDir(), "hook-args")
	pub.WithThumbnailHook(NewThumbnailHook("echo >"+outFile, "320x240"))
	ctx := context.Background()

	artifact := makeArtifact(t, map[string]string{"index.html": "x"})
	require.NoError(t, pub.Publish(ctx, manifest.GameSpec{Name: "pong", RepoURL: "u", BuildCommand: "m"}, artifact, "v1", "c1", "run1"))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), filepath.Join(publicRoot, "pong"))
	assert.Contains(t, string(data), "320x240")
}

func TestNewThumbnailHookEmptyCommand(t *testing.T) {
	assert.Nil(t, NewThumbnailHook("", "320x240"))
}
