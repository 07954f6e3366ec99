package engine

import (
	"testing"

	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/stretchr/testify/require"
)

func TestFailBuild_TransitionsToBuildFailed(t *testing.T) {
	tw := newTestWorker(t)

	b := &db.Build{BuildType: db.BuildTypeSource, BuildState: db.BuildStateBuilding}
	require.NoError(t, tw.builds.Create(b))

	tw.worker.failBuild(b.ID, "synthetic failure")

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateBuildFailed, got.BuildState)
}

func TestFailBuild_MissingBuildIsNoop(t *testing.T) {
	tw := newTestWorker(t)
	require.NotPanics(t, func() { tw.worker.failBuild(999, "synthetic failure") })
}

func TestJobBuildProcess_CheckoutFailureFailsBuildWithoutDebChildren(t *testing.T) {
	tw := newTestWorker(t)

	repo := &db.SourceRepository{URL: "https://example.com/pkg.git"}
	require.NoError(t, tw.repos.Create(repo))
	require.NoError(t, tw.repos.SetState(repo.ID, db.RepoStateBusy))

	b := &db.Build{BuildType: db.BuildTypeSource, BuildState: db.BuildStateBuilding,
		Version: "1.2.3", SourceRepository: &repo.ID}
	require.NoError(t, tw.builds.Create(b))

	// jobBuildProcess checks out the ref via the real git collaborator; the
	// repository was never cloned, so Checkout fails fast on its missing
	// source path and the build is sent to build_failed before any deb child
	// is created.
	tw.worker.jobBuildProcess(BuildTask{
		BuildID: b.ID, RepoID: repo.ID, GitRef: "nonexistent-ref", Targets: []string{"amd64", "arm64"},
	})

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateBuildFailed, got.BuildState, "checkout of a nonexistent ref in an uninitialized worktree must fail the build")

	children, err := tw.builds.Children(b.ID)
	require.NoError(t, err)
	require.Empty(t, children, "no deb children should be created once checkout fails")
}

func TestJobCreateBuildEnv_ReleasesGovernorSlotOnCompletion(t *testing.T) {
	tw := newTestWorker(t)
	tw.worker.governor = NewChrootGovernor(1)
	require.True(t, tw.worker.governor.TryAcquire())

	b := &db.Build{BuildType: db.BuildTypeChroot, BuildState: db.BuildStateScheduled}
	require.NoError(t, tw.builds.Create(b))

	tw.worker.jobCreateBuildEnv(BuildEnvTask{BuildID: b.ID, ChrootID: 1, Dist: "bookworm", Arch: "amd64"})

	require.Equal(t, int64(0), tw.worker.governor.Occupancy())

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateSuccessful, got.BuildState)
}

func TestJobCreateBuildEnv_MissingBuildStillReleasesSlot(t *testing.T) {
	tw := newTestWorker(t)
	tw.worker.governor = NewChrootGovernor(1)
	require.True(t, tw.worker.governor.TryAcquire())

	tw.worker.jobCreateBuildEnv(BuildEnvTask{BuildID: 999})

	require.Equal(t, int64(0), tw.worker.governor.Occupancy())
}

func TestBuildoutPath_IsScopedByBuildID(t *testing.T) {
	require.Equal(t, "/var/lib/molior/buildout/42", buildoutPath(42))
	require.NotEqual(t, buildoutPath(1), buildoutPath(2))
}
