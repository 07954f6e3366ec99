package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitswalk/molior/src/moliord/buildlog"
	"github.com/bitswalk/molior/src/moliord/clock"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/gitexec"
	"github.com/bitswalk/molior/src/moliord/gitrepo"
	"github.com/bitswalk/molior/src/moliord/notify"
	"github.com/stretchr/testify/require"
)

// fakePublishQueue records SrcPublish calls without depending on the apt
// package, avoiding the engine->apt import that package structurally
// forbids.
type fakePublishQueue struct {
	published []int64
}

func (f *fakePublishQueue) SrcPublish(buildID int64) {
	f.published = append(f.published, buildID)
}

type testWorker struct {
	worker  *Worker
	builds  *db.BuildRepository
	repos   *db.SourceRepositoryRepository
	chroots *db.ChrootRepository
	queue   *TaskQueue
	publish *fakePublishQueue
	storage *fakeStorage
}

func newTestWorker(t *testing.T) *testWorker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "molior.db")
	database, err := db.New(db.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	builds := db.NewBuildRepository(database)
	repos := db.NewSourceRepositoryRepository(database)
	chroots := db.NewChrootRepository(database)
	buildTasks := db.NewBuildTaskRepository(database)
	projectVersions := db.NewProjectVersionRepository(database)
	buildNodes := db.NewBuildNodeRepository(database)
	maintainers := db.NewMaintainerRepository(database)
	repoProjectVersions := db.NewSourceRepoProjectVersionRepository(database)

	logw := buildlog.New(t.TempDir())
	git := gitexec.New(false)
	store := &fakeStorage{}
	repoMgr := gitrepo.New(repos, builds, repoProjectVersions, git, store, logw)
	sm := NewBuildStateMachine(builds, projectVersions, notify.New(), clock.NewFixed(time.Now()), logw)
	governor := NewChrootGovernor(0)
	backend := &fakeBackend{}
	scheduler := NewSchedulerPass(builds, projectVersions, backend, sm)
	publish := &fakePublishQueue{}
	_ = buildNodes

	queue := NewTaskQueue()
	worker := NewWorker(queue, builds, repos, chroots, buildTasks, maintainers, repoMgr, sm, governor, scheduler, backend, publish, store)

	return &testWorker{worker: worker, builds: builds, repos: repos, chroots: chroots, queue: queue, publish: publish, storage: store}
}

func TestHandleClone_MissingRepoDrops(t *testing.T) {
	tw := newTestWorker(t)
	err := tw.worker.handleClone(context.Background(), CloneTask{RepoID: 999, BuildID: 1})
	require.NoError(t, err)
}

func TestHandleClone_NewRepoMovesToCloning(t *testing.T) {
	tw := newTestWorker(t)

	repo := &db.SourceRepository{URL: "https://example.com/pkg.git"}
	require.NoError(t, tw.repos.Create(repo))

	err := tw.worker.handleClone(context.Background(), CloneTask{RepoID: repo.ID, BuildID: 1})
	require.NoError(t, err)

	got, err := tw.repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.Equal(t, db.RepoStateCloning, got.State)
}

func TestHandleClone_BusyRepoRequeuesWithoutChangingState(t *testing.T) {
	tw := newTestWorker(t)

	repo := &db.SourceRepository{URL: "https://example.com/pkg.git"}
	require.NoError(t, tw.repos.Create(repo))
	require.NoError(t, tw.repos.SetState(repo.ID, db.RepoStateBusy))

	err := tw.worker.handleClone(context.Background(), CloneTask{RepoID: repo.ID, BuildID: 1})
	require.NoError(t, err)

	got, err := tw.repos.GetByID(repo.ID)
	require.NoError(t, err)
	require.Equal(t, db.RepoStateBusy, got.State)
	require.Equal(t, 1, tw.queue.Len())
}

func TestHandleBuildLatest_ReadyRepoDispatchesJob(t *testing.T) {
	tw := newTestWorker(t)

	repo := &db.SourceRepository{URL: "https://example.com/pkg.git"}
	require.NoError(t, tw.repos.Create(repo))
	require.NoError(t, tw.repos.SetState(repo.ID, db.RepoStateReady))

	err := tw.worker.handleBuildLatest(context.Background(), BuildLatestTask{RepoID: repo.ID, BuildID: 1})
	require.NoError(t, err)
}

func TestHandleBuildEnv_GovernorCapReachedRequeues(t *testing.T) {
	tw := newTestWorker(t)
	tw.worker.governor = NewChrootGovernor(1)
	tw.worker.governor.TryAcquire()

	err := tw.worker.handleBuildEnv(context.Background(), BuildEnvTask{BuildID: 1, ChrootID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, tw.queue.Len())
}

func TestHandleRebuild_IneligibleBuildIsDropped(t *testing.T) {
	tw := newTestWorker(t)

	b := &db.Build{BuildType: db.BuildTypeDeb, BuildState: db.BuildStateSuccessful}
	require.NoError(t, tw.builds.Create(b))

	err := tw.worker.handleRebuild(context.Background(), RebuildTask{BuildID: b.ID})
	require.NoError(t, err)

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateSuccessful, got.BuildState)
}

func TestHandleRebuild_DebBuildFailedResetsToNeedsBuildAndErasesBuildout(t *testing.T) {
	tw := newTestWorker(t)

	b := &db.Build{BuildType: db.BuildTypeDeb, BuildState: db.BuildStateBuildFailed}
	require.NoError(t, tw.builds.Create(b))

	err := tw.worker.handleRebuild(context.Background(), RebuildTask{BuildID: b.ID})
	require.NoError(t, err)

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateNeedsBuild, got.BuildState)
	require.Contains(t, tw.storage.deleted, buildoutPath(b.ID))

	task, err := tw.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.IsType(t, ScheduleTask{}, task)
}

func TestHandleRebuild_SourceBuildPublishFailedResetsToNeedsPublish(t *testing.T) {
	tw := newTestWorker(t)

	b := &db.Build{BuildType: db.BuildTypeSource, BuildState: db.BuildStatePublishFailed}
	require.NoError(t, tw.builds.Create(b))

	err := tw.worker.handleRebuild(context.Background(), RebuildTask{BuildID: b.ID})
	require.NoError(t, err)

	got, err := tw.builds.GetByID(b.ID)
	require.NoError(t, err)
	require.Equal(t, db.BuildStateNeedsPublish, got.BuildState)
	require.Equal(t, []int64{b.ID}, tw.publish.published)
}

func TestHandleRebuild_ChrootBuildEnqueuesBuildEnvTask(t *testing.T) {
	tw := newTestWorker(t)

	b := &db.Build{BuildType: db.BuildTypeChroot, BuildState: db.BuildStateBuildFailed}
	require.NoError(t, tw.builds.Create(b))
	c := &db.Chroot{BuildID: b.ID, Architecture: "amd64", BasemirrorDist: "bookworm"}
	require.NoError(t, tw.chroots.Create(c))

	err := tw.worker.handleRebuild(context.Background(), RebuildTask{BuildID: b.ID})
	require.NoError(t, err)

	task, err := tw.queue.Dequeue(context.Background())
	require.NoError(t, err)
	envTask, ok := task.(BuildEnvTask)
	require.True(t, ok)
	require.Equal(t, c.ID, envTask.ChrootID)
}

func TestHandleDeleteRepo_MissingRepoIsIdempotentNoop(t *testing.T) {
	tw := newTestWorker(t)
	err := tw.worker.handleDeleteRepo(context.Background(), DeleteRepoTask{RepoID: 999})
	require.NoError(t, err)
}

func TestHandleMergeDuplicateRepo_MissingRepoDrops(t *testing.T) {
	tw := newTestWorker(t)
	err := tw.worker.handleMergeDuplicateRepo(context.Background(), MergeDuplicateRepoTask{KeepID: 1, DupID: 999})
	require.NoError(t, err)
}

// unknownTestTask satisfies Task (whose marker method is unexported, so
// only types in this package can implement it) without matching any case in
// Worker.dispatch's type switch, exercising the default drop path.
type unknownTestTask struct{}

func (unknownTestTask) taskMarker() {}

func TestDispatch_UnknownTaskDoesNotPanic(t *testing.T) {
	tw := newTestWorker(t)
	require.NotPanics(t, func() {
		tw.worker.dispatch(context.Background(), unknownTestTask{})
	})
}

func TestTaskTag_CoversEveryTaskType(t *testing.T) {
	cases := []struct {
		task Task
		want string
	}{
		{CloneTask{}, "clone"},
		{BuildTask{}, "build"},
		{BuildLatestTask{}, "buildlatest"},
		{RebuildTask{}, "rebuild"},
		{ScheduleTask{}, "schedule"},
		{BuildEnvTask{}, "buildenv"},
		{MergeDuplicateRepoTask{}, "merge_duplicate_repo"},
		{DeleteRepoTask{}, "delete_repo"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, taskTag(c.task))
	}
}
