package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitswalk/molior/src/moliord/clock"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/notify"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *db.BuildRepository, *db.BuildTaskRepository, *db.SourceRepositoryRepository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "molior.db")
	database, err := db.New(db.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	builds := db.NewBuildRepository(database)
	buildTasks := db.NewBuildTaskRepository(database)
	repos := db.NewSourceRepositoryRepository(database)
	projectVersions := db.NewProjectVersionRepository(database)
	sm := NewBuildStateMachine(builds, projectVersions, notify.New(), clock.NewFixed(time.Now()), nil)

	return NewReconciler(builds, buildTasks, repos, sm), builds, buildTasks, repos
}

func TestReconciler_ResetsAbandonedBuildingToFailed(t *testing.T) {
	r, builds, buildTasks, _ := newTestReconciler(t)

	b := &db.Build{BuildType: db.BuildTypeDeb, BuildState: db.BuildStateBuilding}
	require.NoError(t, builds.Create(b))
	require.NoError(t, buildTasks.Create(b.ID, "build"))

	require.NoError(t, r.Run(context.Background()))

	got, err := builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateBuildFailed, got.BuildState)

	row, err := buildTasks.GetByBuildID(b.ID)
	require.NoError(t, err)
	require.Nil(t, row, "orphaned buildtask row should be deleted")
}

func TestReconciler_ResetsAbandonedPublishingToPublishFailed(t *testing.T) {
	r, builds, _, _ := newTestReconciler(t)

	b := &db.Build{BuildType: db.BuildTypeSource, BuildState: db.BuildStatePublishing}
	require.NoError(t, builds.Create(b))

	require.NoError(t, r.Run(context.Background()))

	got, err := builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStatePublishFailed, got.BuildState)
}

func TestReconciler_DoesNotTouchTopLevelBuildType(t *testing.T) {
	r, builds, _, _ := newTestReconciler(t)

	root := &db.Build{BuildType: db.BuildTypeBuild, BuildState: db.BuildStateBuilding}
	require.NoError(t, builds.Create(root))

	require.NoError(t, r.Run(context.Background()))

	got, err := builds.GetByID(root.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateBuilding, got.BuildState, "top-level build rows are excluded from reconciliation")
}

func TestReconciler_BackfillsRepositoryNameFromURL(t *testing.T) {
	r, _, _, repos := newTestReconciler(t)

	repo := &db.SourceRepository{URL: "https://example.com/group/myproject.git"}
	require.NoError(t, repos.Create(repo))

	require.NoError(t, r.Run(context.Background()))

	got, err := repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	require.Equal(t, "myproject", *got.Name)
}

func TestReconciler_IsIdempotent(t *testing.T) {
	r, builds, _, _ := newTestReconciler(t)

	b := &db.Build{BuildType: db.BuildTypeDeb, BuildState: db.BuildStateBuilding}
	require.NoError(t, builds.Create(b))

	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Run(context.Background()))

	got, err := builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateBuildFailed, got.BuildState)
}
