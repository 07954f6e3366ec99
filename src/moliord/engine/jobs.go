package engine

import (
	"context"
	"fmt"

	"github.com/bitswalk/molior/src/moliord/db"
)

// buildoutBasePath is the filesystem root owned by Build rows for their
// per-build artifacts, erased on rebuild.
const buildoutBasePath = "/var/lib/molior/buildout"

func buildoutPath(buildID int64) string {
	return fmt.Sprintf("%s/%d", buildoutBasePath, buildID)
}

// failBuild transitions buildID directly to build_failed, bypassing the
// forward-only transition graph, matching the operational-failure error kind
// of spec §7: the driving build moves straight to its terminal failure state
// regardless of its current state.
func (w *Worker) failBuild(buildID int64, reason string) {
	b, err := w.builds.GetByID(buildID)
	if err != nil || b == nil {
		log.Error("failBuild: could not load driving build", "build_id", buildID, "error", err)
		return
	}
	log.Error("build failed", "build_id", buildID, "reason", reason)
	if err := w.sm.apply(b, db.BuildStateBuildFailed); err != nil {
		log.Error("failBuild: could not apply build_failed", "build_id", buildID, "error", err)
	}
}

// jobGitClone is the detached job spawned by the clone handler. It performs
// the actual checkout and, on success, enqueues buildlatest; on failure it
// fails the driving build and leaves the repository in error (set by
// gitrepo.Manager).
func (w *Worker) jobGitClone(buildID, repoID int64) {
	ctx := context.Background()

	repo, err := w.repos.GetByID(repoID)
	if err != nil || repo == nil {
		log.Error("jobGitClone: could not load repository", "repo_id", repoID, "error", err)
		return
	}

	if err := w.repoMgr.Clone(ctx, repo, buildID); err != nil {
		w.failBuild(buildID, fmt.Sprintf("clone failed: %v", err))
		return
	}

	w.resolveMaintainer(ctx, repo, buildID)

	w.queue.Enqueue(BuildLatestTask{RepoID: repoID, BuildID: buildID})
}

// resolveMaintainer reads the repository's current HEAD and attributes
// buildID to its author, creating the Maintainer row if this is the first
// build seen from that author. Failure to resolve a maintainer is logged and
// does not fail the build: attribution is best-effort.
func (w *Worker) resolveMaintainer(ctx context.Context, repo *db.SourceRepository, buildID int64) {
	if w.maintainers == nil {
		return
	}

	head, err := w.repoMgr.ShowHead(ctx, repo)
	if err != nil {
		log.Warn("resolveMaintainer: could not read HEAD", "repo_id", repo.ID, "error", err)
		return
	}

	maintainer, err := w.maintainers.GetOrCreate(head.AuthorName, head.AuthorEmail)
	if err != nil {
		log.Warn("resolveMaintainer: could not resolve maintainer", "repo_id", repo.ID, "error", err)
		return
	}

	b, err := w.builds.GetByID(buildID)
	if err != nil || b == nil {
		log.Warn("resolveMaintainer: could not load driving build", "build_id", buildID, "error", err)
		return
	}
	b.MaintainerID = &maintainer.ID
	if err := w.builds.Update(b); err != nil {
		log.Warn("resolveMaintainer: could not persist maintainer", "build_id", buildID, "error", err)
	}
}

// jobBuildLatest resolves the latest valid tag on repoID and enqueues a
// follow-up BuildTask against buildID, or fails buildID if no valid tag is
// found.
func (w *Worker) jobBuildLatest(repoID, buildID int64) {
	ctx := context.Background()

	repo, err := w.repos.GetByID(repoID)
	if err != nil || repo == nil {
		log.Error("jobBuildLatest: could not load repository", "repo_id", repoID, "error", err)
		return
	}

	if err := w.repoMgr.Acquire(repo); err != nil {
		log.Error("jobBuildLatest: could not acquire repository", "repo_id", repoID, "error", err)
		return
	}
	defer func() {
		if err := w.repoMgr.Release(repo); err != nil {
			log.Error("jobBuildLatest: could not release repository", "repo_id", repoID, "error", err)
		}
	}()

	tag, err := w.repoMgr.LatestTag(ctx, repo, buildID)
	if err != nil {
		w.failBuild(buildID, fmt.Sprintf("no valid tag: %v", err))
		return
	}

	w.queue.Enqueue(BuildTask{BuildID: buildID, RepoID: repoID, GitRef: tag})
}

// jobBuildProcess checks out the requested ref, creates one deb child build
// per requested target architecture, promotes the source build to
// needs_publish, and releases the repository. Any failure along the way
// fails the driving build and still releases the repository.
func (w *Worker) jobBuildProcess(t BuildTask) {
	ctx := context.Background()

	repo, err := w.repos.GetByID(t.RepoID)
	if err != nil || repo == nil {
		log.Error("jobBuildProcess: could not load repository", "repo_id", t.RepoID, "error", err)
		return
	}

	release := func() {
		if err := w.repoMgr.Release(repo); err != nil {
			log.Error("jobBuildProcess: could not release repository", "repo_id", t.RepoID, "error", err)
		}
	}

	ref := t.GitRef
	if t.ForceCI || ref == "" {
		ref = t.CIBranch
	}
	if err := w.repoMgr.Checkout(ctx, repo, ref, t.BuildID); err != nil {
		w.failBuild(t.BuildID, fmt.Sprintf("checkout %q failed: %v", ref, err))
		release()
		return
	}

	b, err := w.builds.GetByID(t.BuildID)
	if err != nil || b == nil {
		log.Error("jobBuildProcess: could not load driving build", "build_id", t.BuildID, "error", err)
		release()
		return
	}

	for _, arch := range t.Targets {
		child := &db.Build{
			ParentID:         &b.ID,
			BuildType:        db.BuildTypeDeb,
			BuildState:       db.BuildStateNew,
			Version:          b.Version,
			GitRef:           ref,
			Architecture:     arch,
			IsCI:             t.ForceCI,
			SourceRepository: b.SourceRepository,
			ProjectVersionID: b.ProjectVersionID,
			MaintainerID:     b.MaintainerID,
		}
		if err := w.builds.Create(child); err != nil {
			w.failBuild(t.BuildID, fmt.Sprintf("could not create deb build for %s: %v", arch, err))
			release()
			return
		}
		if err := w.sm.apply(child, db.BuildStateNeedsBuild); err != nil {
			log.Error("jobBuildProcess: could not transition deb build to needs_build", "build_id", child.ID, "error", err)
		}
	}

	if err := w.sm.apply(b, db.BuildStateNeedsPublish); err != nil {
		log.Error("jobBuildProcess: could not transition build to needs_publish", "build_id", b.ID, "error", err)
	}
	if w.publish != nil {
		w.publish.SrcPublish(b.ID)
	}
	if len(t.Targets) > 0 {
		w.queue.Enqueue(ScheduleTask{})
	}

	release()
}

// jobScheduleBuilds runs one scheduler pass.
func (w *Worker) jobScheduleBuilds(ctx context.Context) {
	if err := w.scheduler.Run(ctx); err != nil {
		log.Error("jobScheduleBuilds: scheduler pass failed", "error", err)
	}
}

// jobCreateBuildEnv handles the chroot build environment described by t,
// releasing the chroot governor slot on completion regardless of outcome.
// It is a stub: no chroot is built and no build-node backend is called; it
// logs the request and drives the owning build through building to
// successful so the rest of the pipeline (rebuild, reconciliation) observes
// a consistent lifecycle.
func (w *Worker) jobCreateBuildEnv(t BuildEnvTask) {
	defer w.governor.Release()

	b, err := w.builds.GetByID(t.BuildID)
	if err != nil || b == nil {
		log.Error("jobCreateBuildEnv: could not load driving build", "build_id", t.BuildID, "error", err)
		return
	}

	if err := w.sm.apply(b, db.BuildStateBuilding); err != nil {
		log.Error("jobCreateBuildEnv: could not transition to building", "build_id", b.ID, "error", err)
		return
	}

	log.Info("chroot build environment constructed", "build_id", b.ID, "chroot_id", t.ChrootID,
		"dist", t.Dist, "arch", t.Arch)

	if err := w.sm.apply(b, db.BuildStateSuccessful); err != nil {
		log.Error("jobCreateBuildEnv: could not transition to successful", "build_id", b.ID, "error", err)
	}
}
