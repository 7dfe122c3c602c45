package scm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestHeadFromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commit := commitFile(t, repo, dir, "pom.xml", "<project/>")

	sub := filepath.Join(dir, "module-a")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	rev, err := Head(sub)
	require.NoError(t, err)
	assert.Equal(t, commit, rev.Commit)
	assert.NotEmpty(t, rev.Branch)
	assert.False(t, rev.Dirty)
	assert.Equal(t, rev.Branch+"@"+commit[:12], rev.String())
}

func TestHeadDirtyWorktree(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "pom.xml", "<project/>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte("<project>changed</project>"), 0o600))

	rev, err := Head(dir)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
	assert.Contains(t, rev.String(), "+dirty")
}

func TestHeadWithoutCommits(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	rev, err := Head(dir)
	require.NoError(t, err)
	assert.Empty(t, rev.String())
}

func TestHeadOutsideRepository(t *testing.T) {
	_, err := Head(t.TempDir())
	require.ErrorIs(t, err, ErrNotARepository)
}
