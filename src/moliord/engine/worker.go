package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bitswalk/molior/src/moliord/buildnode"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/gitrepo"
	"github.com/bitswalk/molior/src/moliord/storage"
)

// requeueDelay is the yield duration a handler sleeps for after requeueing
// an item whose precondition transiently failed, per spec §4.1/§4.6.
const requeueDelay = 2 * time.Second

// PublishQueue is the minimal surface the rebuild handler needs from the
// APT publish queue, satisfied structurally by apt.Queue without engine
// importing the apt package (which itself builds on engine.Queue).
type PublishQueue interface {
	SrcPublish(buildID int64)
}

// Worker is the single cooperative consumer described by spec §4.2: one
// iteration pops one task, type-switches on it, and invokes the matching
// handler. It never performs I/O-bound work itself; any such operation is
// spawned as a detached job.
type Worker struct {
	queue       *TaskQueue
	builds      *db.BuildRepository
	repos       *db.SourceRepositoryRepository
	chroots     *db.ChrootRepository
	buildTasks  *db.BuildTaskRepository
	maintainers *db.MaintainerRepository
	repoMgr     *gitrepo.Manager
	sm          *BuildStateMachine
	governor    *ChrootGovernor
	scheduler   *SchedulerPass
	backend     buildnode.Backend
	publish     PublishQueue
	storage     storage.Backend
}

// NewWorker creates a Worker wired to every collaborator its handlers need.
func NewWorker(
	queue *TaskQueue,
	builds *db.BuildRepository,
	repos *db.SourceRepositoryRepository,
	chroots *db.ChrootRepository,
	buildTasks *db.BuildTaskRepository,
	maintainers *db.MaintainerRepository,
	repoMgr *gitrepo.Manager,
	sm *BuildStateMachine,
	governor *ChrootGovernor,
	scheduler *SchedulerPass,
	backend buildnode.Backend,
	publish PublishQueue,
	store storage.Backend,
) *Worker {
	return &Worker{
		queue:       queue,
		builds:      builds,
		repos:       repos,
		chroots:     chroots,
		buildTasks:  buildTasks,
		maintainers: maintainers,
		repoMgr:     repoMgr,
		sm:          sm,
		governor:    governor,
		scheduler:   scheduler,
		backend:     backend,
		publish:     publish,
		storage:     store,
	}
}

// Run drives the Worker main loop until ctx is cancelled or a nil Task (the
// shutdown sentinel) is dequeued.
func (w *Worker) Run(ctx context.Context) {
	log.Info("worker started")
	defer log.Info("worker stopped")

	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if task == nil {
			return
		}
		w.dispatch(ctx, task)
	}
}

// dispatch invokes the handler matching task's concrete type, recovering
// from any panic so the loop survives, matching the teacher's worker
// recover pattern.
func (w *Worker) dispatch(ctx context.Context, task Task) {
	tag := taskTag(task)

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker recovered from panic", "task", tag, "panic", fmt.Sprintf("%v", r))
			WorkerPanics.Inc()
		}
		WorkerIterations.WithLabelValues(tag).Inc()
	}()

	var err error
	switch t := task.(type) {
	case CloneTask:
		err = w.handleClone(ctx, t)
	case BuildTask:
		err = w.handleBuild(ctx, t)
	case BuildLatestTask:
		err = w.handleBuildLatest(ctx, t)
	case RebuildTask:
		err = w.handleRebuild(ctx, t)
	case ScheduleTask:
		err = w.handleSchedule(ctx, t)
	case BuildEnvTask:
		err = w.handleBuildEnv(ctx, t)
	case MergeDuplicateRepoTask:
		err = w.handleMergeDuplicateRepo(ctx, t)
	case DeleteRepoTask:
		err = w.handleDeleteRepo(ctx, t)
	default:
		log.Warn("unknown task key, dropping", "type", fmt.Sprintf("%T", task))
		return
	}
	if err != nil {
		log.Error("task handler failed", "task", tag, "error", err)
	}
}

func taskTag(task Task) string {
	switch task.(type) {
	case CloneTask:
		return "clone"
	case BuildTask:
		return "build"
	case BuildLatestTask:
		return "buildlatest"
	case RebuildTask:
		return "rebuild"
	case ScheduleTask:
		return "schedule"
	case BuildEnvTask:
		return "buildenv"
	case MergeDuplicateRepoTask:
		return "merge_duplicate_repo"
	case DeleteRepoTask:
		return "delete_repo"
	default:
		return "unknown"
	}
}

// requeueAfterDelay re-enqueues task after yielding ~2s, for a handler that
// observed a transient precondition failure. The sleep runs in the calling
// handler itself: the Worker is strictly sequential and must not dequeue
// another task until the current one returns, so this blocks the loop for
// the full yield rather than detaching it into a goroutine. ctx cancellation
// cuts the wait short, so shutdown is not delayed by a pending requeue.
func (w *Worker) requeueAfterDelay(ctx context.Context, task Task) {
	timer := time.NewTimer(requeueDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	w.queue.Enqueue(task)
}
