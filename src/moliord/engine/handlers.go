package engine

import (
	"context"

	"github.com/bitswalk/molior/src/moliord/db"
)

// handleClone implements the clone handler contract: repo.state must be new
// or error; on success the repo moves to cloning and a GitClone job is
// spawned.
func (w *Worker) handleClone(ctx context.Context, t CloneTask) error {
	repo, err := w.repos.GetByID(t.RepoID)
	if err != nil {
		return err
	}
	if repo == nil {
		log.Warn("clone: repository not found, dropping", "repo_id", t.RepoID)
		return nil
	}
	if repo.State != db.RepoStateNew && repo.State != db.RepoStateError {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	if err := w.repos.SetState(repo.ID, db.RepoStateCloning); err != nil {
		return err
	}
	go w.jobGitClone(t.BuildID, t.RepoID)
	return nil
}

// handleBuild implements the build handler contract: repo.state must be
// ready; on success the build moves to building, the repo to busy, and a
// BuildProcess job is spawned.
func (w *Worker) handleBuild(ctx context.Context, t BuildTask) error {
	repo, err := w.repos.GetByID(t.RepoID)
	if err != nil {
		return err
	}
	if repo == nil {
		log.Warn("build: repository not found, dropping", "repo_id", t.RepoID)
		return nil
	}
	if repo.State != db.RepoStateReady {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	b, err := w.builds.GetByID(t.BuildID)
	if err != nil {
		return err
	}
	if b == nil {
		log.Warn("build: build not found, dropping", "build_id", t.BuildID)
		return nil
	}
	if err := w.repoMgr.Acquire(repo); err != nil {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	if err := w.sm.apply(b, db.BuildStateBuilding); err != nil {
		return err
	}
	go w.jobBuildProcess(t)
	return nil
}

// handleBuildLatest implements the buildlatest handler contract: repo.state
// must be ready; a tag-resolution job is spawned that enqueues a follow-up
// build task for the latest valid tag.
func (w *Worker) handleBuildLatest(ctx context.Context, t BuildLatestTask) error {
	repo, err := w.repos.GetByID(t.RepoID)
	if err != nil {
		return err
	}
	if repo == nil {
		log.Warn("buildlatest: repository not found, dropping", "repo_id", t.RepoID)
		return nil
	}
	if repo.State != db.RepoStateReady {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	go w.jobBuildLatest(t.RepoID, t.BuildID)
	return nil
}

// handleRebuild implements the rebuild handler contract: the build must sit
// in a terminal failure state and its project version, if any, must not be
// locked. Rebuild actions are type-specific per spec §4.3.
func (w *Worker) handleRebuild(ctx context.Context, t RebuildTask) error {
	b, err := w.builds.GetByID(t.BuildID)
	if err != nil {
		return err
	}
	if b == nil {
		log.Warn("rebuild: build not found, dropping", "build_id", t.BuildID)
		return nil
	}
	eligible, err := w.sm.IsRebuildEligible(b)
	if err != nil {
		return err
	}
	if !eligible {
		log.Info("rebuild: build not eligible, dropping", "build_id", b.ID, "state", b.BuildState)
		return nil
	}

	switch b.BuildType {
	case db.BuildTypeDeb:
		if w.storage != nil {
			if err := w.storage.Delete(ctx, buildoutPath(b.ID)); err != nil {
				return err
			}
		}
		if err := w.sm.apply(b, db.BuildStateNeedsBuild); err != nil {
			return err
		}
		w.queue.Enqueue(ScheduleTask{})
		return nil

	case db.BuildTypeSource:
		if err := w.sm.apply(b, db.BuildStateNeedsPublish); err != nil {
			return err
		}
		if w.publish != nil {
			w.publish.SrcPublish(b.ID)
		}
		return nil

	case db.BuildTypeChroot:
		c, err := w.chroots.GetByBuildID(b.ID)
		if err != nil {
			return err
		}
		if c == nil {
			log.Warn("rebuild: no chroot row for build, dropping", "build_id", b.ID)
			return nil
		}
		w.queue.Enqueue(BuildEnvTask{
			ChrootID: c.ID,
			BuildID:  b.ID,
			Dist:     c.BasemirrorDist,
			Name:     c.BasemirrorName,
			Arch:     c.Architecture,
			Comps:    c.BasemirrorComps,
			URL:      c.MirrorURL,
			Keys:     c.MirrorKeys,
		})
		return nil

	default:
		log.Warn("rebuild: unsupported build type combination, dropping", "build_id", b.ID, "type", b.BuildType)
		return nil
	}
}

// handleSchedule spawns a ScheduleBuilds job, always.
func (w *Worker) handleSchedule(ctx context.Context, t ScheduleTask) error {
	go w.jobScheduleBuilds(ctx)
	return nil
}

// handleBuildEnv implements the buildenv handler contract: the chroot
// governor must have a free slot; on success the counter is incremented and
// a CreateBuildEnv job is spawned, decrementing the counter on completion.
func (w *Worker) handleBuildEnv(ctx context.Context, t BuildEnvTask) error {
	if !w.governor.TryAcquire() {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	go w.jobCreateBuildEnv(t)
	return nil
}

// handleMergeDuplicateRepo implements the merge_duplicate_repo handler
// contract: both repositories must be ready.
func (w *Worker) handleMergeDuplicateRepo(ctx context.Context, t MergeDuplicateRepoTask) error {
	keep, err := w.repos.GetByID(t.KeepID)
	if err != nil {
		return err
	}
	dup, err := w.repos.GetByID(t.DupID)
	if err != nil {
		return err
	}
	if keep == nil || dup == nil {
		log.Warn("merge_duplicate_repo: repository not found, dropping", "keep_id", t.KeepID, "dup_id", t.DupID)
		return nil
	}
	if keep.State != db.RepoStateReady || dup.State != db.RepoStateReady {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	return w.repoMgr.MergeDuplicateRepo(ctx, keep, dup)
}

// handleDeleteRepo implements the delete_repo handler contract: the
// repository must be ready and reference no builds. A missing repository
// (e.g. a repeated delete_repo after success) is a no-op.
func (w *Worker) handleDeleteRepo(ctx context.Context, t DeleteRepoTask) error {
	repo, err := w.repos.GetByID(t.RepoID)
	if err != nil {
		return err
	}
	if repo == nil {
		return nil
	}
	if repo.State != db.RepoStateReady {
		w.requeueAfterDelay(ctx, t)
		return nil
	}
	return w.repoMgr.DeleteRepo(ctx, repo)
}
