package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/arcadebuilder/internal/builder"
	"git.home.luguber.info/inful/arcadebuilder/internal/gitsync"
	"git.home.luguber.info/inful/arcadebuilder/internal/index"
	"git.home.luguber.info/inful/arcadebuilder/internal/publish"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
	"git.home.luguber.info/inful/arcadebuilder/internal/workspace"
)

// initGameRepo creates a local origin with one commit of game content.
func initGameRepo(t *testing.T, name string) (string, *git.Repository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	commitFile(t, repo, path, "game.js", "console.log('"+name+" v1')")
	return path, repo
}

func commitFile(t *testing.T, repo *git.Repository, repoPath, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, file), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(file)
	require.NoError(t, err)
	_, err = wt.Commit("Update "+file, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com"},
	})
	require.NoError(t, err)
}

// realStack wires the orchestrator with the production components against
// local fixture repositories.
func realStack(t *testing.T, manifestPath string, buildTimeout time.Duration) (*Orchestrator, state.Store, string) {
	t.Helper()
	publicRoot := filepath.Join(t.TempDir(), "public")

	store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pages := index.NewGenerator(index.Site{Title: "Arcade"})
	o := New(
		manifestPath, publicRoot,
		gitsync.NewGitSyncer(),
		builder.NewRunner(buildTimeout),
		publish.NewPublisher(publicRoot, store, pages),
		store,
		workspace.NewManager(t.TempDir()),
		pages,
		WithWorkers(2),
	)
	return o, store, publicRoot
}

func writeIntegrationManifest(t *testing.T, entries string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.yaml")
	require.NoError(t, os.WriteFile(path, []byte("games:\n"+entries), 0o644))
	return path
}

func TestEndToEndPublishSkipRepublish(t *testing.T) {
	repoPath, repo := initGameRepo(t, "pong")
	manifestPath := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+repoPath+`
    description: Classic paddle game
    build_command: mkdir -p dist && cp game.js dist/ && echo '<html></html>' > dist/index.html
`)
	o, store, publicRoot := realStack(t, manifestPath, time.Minute)

	// First run builds and publishes.
	summary, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Published)
	assert.FileExists(t, filepath.Join(publicRoot, "pong", "index.html"))
	assert.FileExists(t, filepath.Join(publicRoot, "pong", "game.js"))
	assert.FileExists(t, filepath.Join(publicRoot, "index.html"))

	rec, err := store.Get(context.Background(), "pong")
	require.NoError(t, err)
	require.NotNil(t, rec)
	firstVersion := rec.Version

	// Second run with unchanged source skips.
	summary, err = o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Published)

	// A new commit triggers a rebuild and a new version.
	commitFile(t, repo, repoPath, "game.js", "console.log('pong v2')")
	summary, err = o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)

	rec, err = store.Get(context.Background(), "pong")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEqual(t, firstVersion, rec.Version)

	published, err := os.ReadFile(filepath.Join(publicRoot, "pong", "game.js"))
	require.NoError(t, err)
	assert.Contains(t, string(published), "v2")
}

func TestEndToEndMixedSkipAndRebuild(t *testing.T) {
	pongPath, _ := initGameRepo(t, "pong")
	tetrisPath, tetris := initGameRepo(t, "tetris")
	manifestPath := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+pongPath+`
    build_command: mkdir -p dist && cp game.js dist/
  - name: tetris
    repo_url: `+tetrisPath+`
    build_command: mkdir -p dist && cp game.js dist/
`)
	o, _, publicRoot := realStack(t, manifestPath, time.Minute)

	summary, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Published)

	// Only tetris changes; pong must skip, tetris must republish.
	commitFile(t, tetris, tetrisPath, "game.js", "console.log('tetris v2')")
	summary, err = o.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, summary.Results[0].State)
	assert.Equal(t, StatePublished, summary.Results[1].State)

	// Each game's public directory holds only its own content.
	pong, err := os.ReadFile(filepath.Join(publicRoot, "pong", "game.js"))
	require.NoError(t, err)
	assert.Contains(t, string(pong), "pong")
	assert.NotContains(t, string(pong), "tetris")

	tetrisOut, err := os.ReadFile(filepath.Join(publicRoot, "tetris", "game.js"))
	require.NoError(t, err)
	assert.Contains(t, string(tetrisOut), "tetris v2")

	// The index lists both, in manifest order.
	page, err := os.ReadFile(filepath.Join(publicRoot, "index.html"))
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(string(page), "pong"),
		strings.Index(string(page), "tetris"))
}

func TestEndToEndBuildFailureKeepsPreviousPublish(t *testing.T) {
	repoPath, repo := initGameRepo(t, "pong")
	okManifest := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+repoPath+`
    build_command: mkdir -p dist && cp game.js dist/
`)
	o, store, publicRoot := realStack(t, okManifest, time.Minute)

	summary, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Published)

	// Break the build and push a new commit so change detection fires.
	commitFile(t, repo, repoPath, "game.js", "console.log('broken')")
	badManifest := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+repoPath+`
    build_command: exit 7
`)
	o2 := New(badManifest, publicRoot,
		gitsync.NewGitSyncer(),
		builder.NewRunner(time.Minute),
		publish.NewPublisher(publicRoot, store, index.NewGenerator(index.Site{Title: "Arcade"})),
		store,
		workspace.NewManager(t.TempDir()),
		index.NewGenerator(index.Site{Title: "Arcade"}),
	)

	summary, err = o2.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, StateBuildFailed, summary.Results[0].State)
	assert.Equal(t, BuildNonZeroExit, summary.Results[0].Kind)

	// The previously published tree stays live and listed.
	content, err := os.ReadFile(filepath.Join(publicRoot, "pong", "game.js"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "broken")

	page, err := os.ReadFile(filepath.Join(publicRoot, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "pong")
}

func TestEndToEndBuildTimeout(t *testing.T) {
	repoPath, _ := initGameRepo(t, "pong")
	manifestPath := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+repoPath+`
    build_command: sleep 30
`)
	o, store, _ := realStack(t, manifestPath, 500*time.Millisecond)

	start := time.Now()
	summary, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 15*time.Second, "timeout must kill the build promptly")

	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, StateBuildFailed, summary.Results[0].State)
	assert.Equal(t, BuildTimedOut, summary.Results[0].Kind)

	rec, err := store.Get(context.Background(), "pong")
	require.NoError(t, err)
	assert.Nil(t, rec, "a failed build must not leave a publish record")
}

func TestEndToEndEmptyOutputIsFailure(t *testing.T) {
	repoPath, _ := initGameRepo(t, "pong")
	manifestPath := writeIntegrationManifest(t, `
  - name: pong
    repo_url: `+repoPath+`
    build_command: "true"
`)
	o, _, publicRoot := realStack(t, manifestPath, time.Minute)

	summary, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, BuildOutputMissing, summary.Results[0].Kind)
	assert.NoDirExists(t, filepath.Join(publicRoot, "pong"))
}
