// Package gitrepo drives the SourceRepository lifecycle lock exactly as
// spec's repository-lifecycle contract describes, delegating actual git
// invocation to the gitexec collaborator.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitswalk/molior/src/common/errors"
	"github.com/bitswalk/molior/src/common/logs"
	"github.com/bitswalk/molior/src/moliord/buildlog"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/gitexec"
	"github.com/bitswalk/molior/src/moliord/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the gitrepo package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Manager drives SourceRepository.state transitions.
type Manager struct {
	repos       *db.SourceRepositoryRepository
	builds      *db.BuildRepository
	projectVers *db.SourceRepoProjectVersionRepository
	git         *gitexec.Client
	storage     storage.Backend
	logw        *buildlog.Writer
}

// New creates a Manager.
func New(repos *db.SourceRepositoryRepository, builds *db.BuildRepository,
	projectVers *db.SourceRepoProjectVersionRepository, git *gitexec.Client,
	store storage.Backend, logw *buildlog.Writer) *Manager {
	return &Manager{repos: repos, builds: builds, projectVers: projectVers, git: git, storage: store, logw: logw}
}

func (m *Manager) lineWriter(buildID int64) gitexec.LineWriter {
	if m.logw == nil {
		return nil
	}
	return func(line string) { m.logw.Log(buildID, line) }
}

// Clone performs: ensure the repo's parent directory, remove any existing
// checkout, invoke git clone, then run the post-clone sslverify/lfs
// configuration. Success transitions the repository to ready; any failure
// transitions it to error.
func (m *Manager) Clone(ctx context.Context, repo *db.SourceRepository, buildID int64) error {
	if err := m.repos.SetState(repo.ID, db.RepoStateCloning); err != nil {
		return err
	}
	repo.State = db.RepoStateCloning

	dest := repo.SrcPath()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		m.fail(repo)
		return fmt.Errorf("failed to create parent directory for repository %d: %w", repo.ID, err)
	}

	if err := m.git.Clone(ctx, repo.URL, dest, m.lineWriter(buildID)); err != nil {
		m.fail(repo)
		return err
	}

	if err := m.repos.SetState(repo.ID, db.RepoStateReady); err != nil {
		return err
	}
	repo.State = db.RepoStateReady
	return nil
}

func (m *Manager) fail(repo *db.SourceRepository) {
	if err := m.repos.SetState(repo.ID, db.RepoStateError); err != nil {
		log.Error("failed to mark repository error", "repo_id", repo.ID, "error", err)
		return
	}
	repo.State = db.RepoStateError
}

// Checkout checks out ref in repo's worktree, streaming git output to
// buildID's log.
func (m *Manager) Checkout(ctx context.Context, repo *db.SourceRepository, ref string, buildID int64) error {
	return m.git.Checkout(ctx, repo.SrcPath(), ref, m.lineWriter(buildID))
}

// LatestTag synchronizes tags (clean + fetch), enumerates them, filters by
// IsValidVersionTag, orders by commit timestamp, and returns the maximum.
func (m *Manager) LatestTag(ctx context.Context, repo *db.SourceRepository, buildID int64) (string, error) {
	return m.git.LatestValidTag(ctx, repo.SrcPath(), IsValidVersionTag, m.lineWriter(buildID))
}

// ShowHead resolves the current HEAD commit and author of repo's checkout,
// used to attribute a build to the Maintainer who authored it.
func (m *Manager) ShowHead(ctx context.Context, repo *db.SourceRepository) (*gitexec.HeadInfo, error) {
	return m.git.ShowHead(ctx, repo.SrcPath())
}

// Acquire transitions a ready repository to busy, the exclusive right to
// mutate its on-disk tree. Returns ErrRepositoryNotReady if the repository
// is not currently ready.
func (m *Manager) Acquire(repo *db.SourceRepository) error {
	if repo.State != db.RepoStateReady {
		return errors.ErrRepositoryNotReady
	}
	if err := m.repos.SetState(repo.ID, db.RepoStateBusy); err != nil {
		return err
	}
	repo.State = db.RepoStateBusy
	return nil
}

// Release transitions a busy repository back to ready, matching the
// every-set_busy-is-followed-by-set_ready-or-set_error invariant.
func (m *Manager) Release(repo *db.SourceRepository) error {
	if err := m.repos.SetState(repo.ID, db.RepoStateReady); err != nil {
		return err
	}
	repo.State = db.RepoStateReady
	return nil
}

// MergeDuplicateRepo requires both repositories to be ready, reconciles
// dup's project-version attachments onto keep (merging away any row keep
// already carries for the same project version, reassigning the rest),
// reassigns every build referencing dup to keep, then deletes dup's row and
// erases its on-disk tree.
func (m *Manager) MergeDuplicateRepo(ctx context.Context, keep, dup *db.SourceRepository) error {
	if keep.State != db.RepoStateReady || dup.State != db.RepoStateReady {
		return errors.ErrRepositoryNotReady
	}
	if err := m.mergeProjectVersions(keep.ID, dup.ID); err != nil {
		return err
	}
	if err := m.builds.ReassignSourceRepository(dup.ID, keep.ID); err != nil {
		return err
	}
	if err := m.repos.Delete(dup.ID); err != nil {
		return err
	}
	return m.eraseTree(ctx, dup)
}

// mergeProjectVersions walks dup's project-version attachments: one that
// collides with a row keep already has is dropped, one that does not is
// reassigned onto keep. Either way dup carries no attachments afterward, so
// deleting its row is always safe.
func (m *Manager) mergeProjectVersions(keepID, dupID int64) error {
	attachments, err := m.projectVers.ListBySourceRepository(dupID)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		existing, err := m.projectVers.GetBySourceAndProjectVersion(keepID, a.ProjectVersionID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := m.projectVers.Delete(a.ID); err != nil {
				return err
			}
			continue
		}
		if err := m.projectVers.Reassign(a.ID, keepID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRepo is only permitted when the repository has no builds and no
// project-version attachments; otherwise it is a no-op with a log line.
func (m *Manager) DeleteRepo(ctx context.Context, repo *db.SourceRepository) error {
	if repo.State != db.RepoStateReady {
		return errors.ErrRepositoryNotReady
	}
	buildCount, err := m.builds.CountBySourceRepository(repo.ID)
	if err != nil {
		return err
	}
	pvCount, err := m.projectVers.CountBySourceRepository(repo.ID)
	if err != nil {
		return err
	}
	if buildCount > 0 || pvCount > 0 {
		log.Info("delete_repo skipped: repository still has builds or projectversions attached",
			"repo_id", repo.ID, "builds", buildCount, "projectversions", pvCount)
		return nil
	}
	if err := m.repos.Delete(repo.ID); err != nil {
		return err
	}
	return m.eraseTree(ctx, repo)
}

func (m *Manager) eraseTree(ctx context.Context, repo *db.SourceRepository) error {
	if m.storage == nil {
		return nil
	}
	if err := m.storage.Delete(ctx, repo.Path()); err != nil {
		return fmt.Errorf("failed to erase tree for repository %d: %w", repo.ID, err)
	}
	return nil
}
