package gitrepo

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/gitexec"
	"github.com/bitswalk/molior/src/moliord/storage"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *db.SourceRepositoryRepository, *db.BuildRepository, *db.SourceRepoProjectVersionRepository, *db.ProjectVersionRepository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "molior.db")
	database, err := db.New(db.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repos := db.NewSourceRepositoryRepository(database)
	builds := db.NewBuildRepository(database)
	projectVersionAttachments := db.NewSourceRepoProjectVersionRepository(database)
	projectVersions := db.NewProjectVersionRepository(database)
	store, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	return New(repos, builds, projectVersionAttachments, gitexec.New(false), store, nil), repos, builds, projectVersionAttachments, projectVersions
}

func upstreamRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-m", "initial")
	return dir
}

func TestManager_Clone_TransitionsReadyOnSuccess(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)
	upstream := upstreamRepo(t)

	repo := &db.SourceRepository{URL: upstream}
	require.NoError(t, repos.Create(repo))

	require.NoError(t, m.Clone(context.Background(), repo, 0))
	require.Equal(t, db.RepoStateReady, repo.State)

	got, err := repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.Equal(t, db.RepoStateReady, got.State)
}

func TestManager_Clone_TransitionsErrorOnFailure(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)

	repo := &db.SourceRepository{URL: "/nonexistent/upstream"}
	require.NoError(t, repos.Create(repo))

	err := m.Clone(context.Background(), repo, 0)
	require.Error(t, err)
	require.Equal(t, db.RepoStateError, repo.State)
}

func TestManager_AcquireRelease(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)

	repo := &db.SourceRepository{URL: "irrelevant", State: db.RepoStateReady}
	require.NoError(t, repos.Create(repo))

	require.NoError(t, m.Acquire(repo))
	require.Equal(t, db.RepoStateBusy, repo.State)

	require.NoError(t, m.Release(repo))
	require.Equal(t, db.RepoStateReady, repo.State)
}

func TestManager_Acquire_RejectsNonReady(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)

	repo := &db.SourceRepository{URL: "irrelevant", State: db.RepoStateNew}
	require.NoError(t, repos.Create(repo))

	err := m.Acquire(repo)
	require.Error(t, err)
}

func TestManager_DeleteRepo_SkippedWhenBuildsAttached(t *testing.T) {
	m, repos, builds, _, _ := newTestManager(t)

	repo := &db.SourceRepository{URL: "irrelevant", State: db.RepoStateReady}
	require.NoError(t, repos.Create(repo))
	b := &db.Build{BuildType: db.BuildTypeSource, SourceRepository: &repo.ID}
	require.NoError(t, builds.Create(b))

	require.NoError(t, m.DeleteRepo(context.Background(), repo))

	got, err := repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestManager_DeleteRepo_RemovesWhenNoBuilds(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)

	repo := &db.SourceRepository{URL: "irrelevant", State: db.RepoStateReady}
	require.NoError(t, repos.Create(repo))

	require.NoError(t, m.DeleteRepo(context.Background(), repo))

	got, err := repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestManager_MergeDuplicateRepo_ReassignsBuildsAndDeletesDup(t *testing.T) {
	m, repos, builds, _, _ := newTestManager(t)

	keep := &db.SourceRepository{URL: "keep", State: db.RepoStateReady}
	require.NoError(t, repos.Create(keep))
	dup := &db.SourceRepository{URL: "dup", State: db.RepoStateReady}
	require.NoError(t, repos.Create(dup))

	b := &db.Build{BuildType: db.BuildTypeSource, SourceRepository: &dup.ID}
	require.NoError(t, builds.Create(b))

	require.NoError(t, m.MergeDuplicateRepo(context.Background(), keep, dup))

	got, err := repos.GetByID(dup.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	reassigned, err := builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, keep.ID, *reassigned.SourceRepository)
}

func TestManager_MergeDuplicateRepo_RejectsWhenEitherNotReady(t *testing.T) {
	m, repos, _, _, _ := newTestManager(t)

	keep := &db.SourceRepository{URL: "keep", State: db.RepoStateReady}
	require.NoError(t, repos.Create(keep))
	dup := &db.SourceRepository{URL: "dup", State: db.RepoStateCloning}
	require.NoError(t, repos.Create(dup))

	err := m.MergeDuplicateRepo(context.Background(), keep, dup)
	require.Error(t, err)
}

func TestManager_DeleteRepo_SkippedWhenProjectVersionAttached(t *testing.T) {
	m, repos, _, attachments, projectVersions := newTestManager(t)

	repo := &db.SourceRepository{URL: "irrelevant", State: db.RepoStateReady}
	require.NoError(t, repos.Create(repo))
	pv := &db.ProjectVersion{ProjectName: "demo", VersionName: "1.0"}
	require.NoError(t, projectVersions.Create(pv))
	_, err := attachments.Create(repo.ID, pv.ID)
	require.NoError(t, err)

	require.NoError(t, m.DeleteRepo(context.Background(), repo))

	got, err := repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestManager_MergeDuplicateRepo_ReassignsProjectVersionWithNoConflict(t *testing.T) {
	m, repos, _, attachments, projectVersions := newTestManager(t)

	keep := &db.SourceRepository{URL: "keep", State: db.RepoStateReady}
	require.NoError(t, repos.Create(keep))
	dup := &db.SourceRepository{URL: "dup", State: db.RepoStateReady}
	require.NoError(t, repos.Create(dup))

	pv := &db.ProjectVersion{ProjectName: "demo", VersionName: "1.0"}
	require.NoError(t, projectVersions.Create(pv))
	_, err := attachments.Create(dup.ID, pv.ID)
	require.NoError(t, err)

	require.NoError(t, m.MergeDuplicateRepo(context.Background(), keep, dup))

	moved, err := attachments.GetBySourceAndProjectVersion(keep.ID, pv.ID)
	require.NoError(t, err)
	require.NotNil(t, moved)

	remaining, err := attachments.CountBySourceRepository(dup.ID)
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestManager_MergeDuplicateRepo_DropsDuplicateRowOnProjectVersionConflict(t *testing.T) {
	m, repos, _, attachments, projectVersions := newTestManager(t)

	keep := &db.SourceRepository{URL: "keep", State: db.RepoStateReady}
	require.NoError(t, repos.Create(keep))
	dup := &db.SourceRepository{URL: "dup", State: db.RepoStateReady}
	require.NoError(t, repos.Create(dup))

	pv := &db.ProjectVersion{ProjectName: "demo", VersionName: "1.0"}
	require.NoError(t, projectVersions.Create(pv))
	kept, err := attachments.Create(keep.ID, pv.ID)
	require.NoError(t, err)
	_, err = attachments.Create(dup.ID, pv.ID)
	require.NoError(t, err)

	require.NoError(t, m.MergeDuplicateRepo(context.Background(), keep, dup))

	survivor, err := attachments.GetBySourceAndProjectVersion(keep.ID, pv.ID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	require.Equal(t, kept.ID, survivor.ID)

	count, err := attachments.CountBySourceRepository(keep.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIsValidVersionTag(t *testing.T) {
	cases := map[string]bool{
		"1.0.0":     true,
		"v1.0.0":    true,
		"v2.3":      true,
		"1.0.0-3":   true,
		"nightly":   false,
		"v1.0.0rc1": false,
		"":          false,
	}
	for tag, want := range cases {
		require.Equal(t, want, IsValidVersionTag(tag), "tag %q", tag)
	}
}
