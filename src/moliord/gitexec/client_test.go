package gitexec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// initRepo creates a throwaway git repository with one commit and one tag,
// used as the fixture for Clone/Checkout/tag-listing tests.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hello"), 0o644))
	run("add", "README")
	run("commit", "-m", "initial commit")
	run("tag", "v1.0.0")
	return dir
}

func TestClient_CloneAndShowHead(t *testing.T) {
	src := initRepo(t)
	dest := filepath.Join(t.TempDir(), "clone")

	c := New(false)
	var lines []string
	err := c.Clone(context.Background(), src, dest, func(l string) { lines = append(lines, l) })
	require.NoError(t, err)

	head, err := c.ShowHead(context.Background(), dest)
	require.NoError(t, err)
	require.Equal(t, "test", head.AuthorName)
	require.Equal(t, "test@example.com", head.AuthorEmail)
	require.NotEmpty(t, head.CommitHash)
}

func TestClient_ListTags(t *testing.T) {
	src := initRepo(t)

	c := New(false)
	tags, err := c.ListTags(context.Background(), src)
	require.NoError(t, err)
	require.Contains(t, tags, "v1.0.0")
}

func TestClient_LatestValidTag_SkipsInvalidTags(t *testing.T) {
	src := initRepo(t)
	cmd := exec.Command("git", "tag", "nightly")
	cmd.Dir = src
	require.NoError(t, cmd.Run())

	c := New(false)
	tag, err := c.LatestValidTag(context.Background(), src, func(tag string) bool {
		return tag == "v1.0.0"
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", tag)
}

func TestClient_LatestValidTag_NoneValidReturnsError(t *testing.T) {
	src := initRepo(t)

	c := New(false)
	_, err := c.LatestValidTag(context.Background(), src, func(string) bool { return false }, nil)
	require.Error(t, err)
}

func TestClient_Checkout(t *testing.T) {
	src := initRepo(t)

	c := New(false)
	err := c.Checkout(context.Background(), src, "v1.0.0", nil)
	require.NoError(t, err)
}
