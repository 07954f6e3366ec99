package engine

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/bitswalk/molior/src/common/logs"
	"github.com/bitswalk/molior/src/moliord/db"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the engine package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Reconciler restores the invariant that building/publishing states are
// never observed without an active process owning them, run once before the
// Worker main loop starts.
type Reconciler struct {
	builds     *db.BuildRepository
	buildTasks *db.BuildTaskRepository
	repos      *db.SourceRepositoryRepository
	sm         *BuildStateMachine
}

// NewReconciler creates a Reconciler.
func NewReconciler(builds *db.BuildRepository, buildTasks *db.BuildTaskRepository,
	repos *db.SourceRepositoryRepository, sm *BuildStateMachine) *Reconciler {
	return &Reconciler{builds: builds, buildTasks: buildTasks, repos: repos, sm: sm}
}

// Run performs the full startup reconciliation: abandoned build states are
// reset to failure, orphaned buildtask rows are deleted, and repository
// names are backfilled from their URL. Idempotent: running it twice in
// succession produces no additional changes after the first.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.reconcileBuilds(db.BuildStateBuilding, db.BuildStateBuildFailed); err != nil {
		return err
	}
	if err := r.reconcileBuilds(db.BuildStatePublishing, db.BuildStatePublishFailed); err != nil {
		return err
	}
	return r.backfillRepositoryNames()
}

func (r *Reconciler) reconcileBuilds(abandoned, failTo db.BuildState) error {
	builds, err := r.builds.ListNonBuildTypeInState(abandoned)
	if err != nil {
		return fmt.Errorf("failed to list abandoned %s builds: %w", abandoned, err)
	}
	for _, b := range builds {
		if err := r.sm.apply(b, failTo); err != nil {
			return fmt.Errorf("failed to reconcile build %d from %s to %s: %w", b.ID, abandoned, failTo, err)
		}
		if err := r.buildTasks.DeleteByBuildID(b.ID); err != nil {
			return fmt.Errorf("failed to delete orphaned buildtask for build %d: %w", b.ID, err)
		}
		log.Info("reconciled abandoned build", "build_id", b.ID, "from", abandoned, "to", failTo)
	}
	return nil
}

func (r *Reconciler) backfillRepositoryNames() error {
	repos, err := r.repos.ListWithoutName()
	if err != nil {
		return fmt.Errorf("failed to list unnamed repositories: %w", err)
	}
	for _, repo := range repos {
		name, err := deriveRepoName(repo.URL)
		if err != nil {
			log.Warn("failed to derive repository name from url", "repo_id", repo.ID, "url", repo.URL, "error", err)
			continue
		}
		if err := r.repos.SetName(repo.ID, name); err != nil {
			return fmt.Errorf("failed to backfill name for repository %d: %w", repo.ID, err)
		}
	}
	return nil
}

// deriveRepoName extracts the repository name from its clone URL, stripping
// a trailing ".git" suffix.
func deriveRepoName(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse repository url %q: %w", repoURL, err)
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("repository url %q has no derivable name", repoURL)
	}
	return base, nil
}
