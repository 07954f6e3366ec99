package db

import (
	"database/sql"
	"fmt"
	"time"
)

// BuildRepository handles Build row persistence.
type BuildRepository struct {
	db *Database
}

// NewBuildRepository creates a new build repository.
func NewBuildRepository(db *Database) *BuildRepository {
	return &BuildRepository{db: db}
}

const selectBuildsQuery = `
	SELECT id, parent_id, build_type, build_state, created_stamp, start_stamp,
		build_end_stamp, end_stamp, version, git_ref, ci_branch, source_name,
		architecture, is_ci, build_deps, project_versions, sourcerepository_id,
		projectversion_id, maintainer_id
	FROM builds
`

// Create inserts a new Build row.
func (r *BuildRepository) Create(b *Build) error {
	if b.CreatedStamp.IsZero() {
		b.CreatedStamp = time.Now()
	}
	if b.BuildState == "" {
		b.BuildState = BuildStateNew
	}

	res, err := r.db.DB().Exec(`
		INSERT INTO builds (parent_id, build_type, build_state, created_stamp,
			start_stamp, build_end_stamp, end_stamp, version, git_ref, ci_branch,
			source_name, architecture, is_ci, build_deps, project_versions,
			sourcerepository_id, projectversion_id, maintainer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ParentID, b.BuildType, b.BuildState, b.CreatedStamp, b.StartStamp,
		b.BuildEndStamp, b.EndStamp, b.Version, b.GitRef, b.CIBranch,
		b.SourceName, b.Architecture, b.IsCI, b.BuildDeps, b.ProjectVersions,
		b.SourceRepository, b.ProjectVersionID, b.MaintainerID)
	if err != nil {
		return fmt.Errorf("failed to create build: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new build id: %w", err)
	}
	b.ID = id
	return nil
}

// GetByID retrieves a Build by id.
func (r *BuildRepository) GetByID(id int64) (*Build, error) {
	row := r.db.DB().QueryRow(selectBuildsQuery+" WHERE id = ?", id)
	return scanBuild(row)
}

// Children returns all direct children of the given build id, ordered by id.
func (r *BuildRepository) Children(parentID int64) ([]*Build, error) {
	rows, err := r.db.DB().Query(selectBuildsQuery+" WHERE parent_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of build %d: %w", parentID, err)
	}
	defer rows.Close()
	return scanBuilds(rows)
}

// Siblings returns every build sharing the given build's parent, including
// the build itself.
func (r *BuildRepository) Siblings(b *Build) ([]*Build, error) {
	if b.ParentID == nil {
		return []*Build{b}, nil
	}
	return r.Children(*b.ParentID)
}

// Parent returns the given build's parent, or nil if it is a root build.
func (r *BuildRepository) Parent(b *Build) (*Build, error) {
	if b.ParentID == nil {
		return nil, nil
	}
	return r.GetByID(*b.ParentID)
}

// Root walks parent links up to the top-level `build` row.
func (r *BuildRepository) Root(b *Build) (*Build, error) {
	cur := b
	for cur.ParentID != nil {
		parent, err := r.GetByID(*cur.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return cur, nil
		}
		cur = parent
	}
	return cur, nil
}

// ListByState returns all builds in the given state, ordered by id (FIFO).
func (r *BuildRepository) ListByState(state BuildState) ([]*Build, error) {
	rows, err := r.db.DB().Query(selectBuildsQuery+" WHERE build_state = ? ORDER BY id", state)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds in state %s: %w", state, err)
	}
	defer rows.Close()
	return scanBuilds(rows)
}

// ListByTypeAndState returns all builds of a type in the given state.
func (r *BuildRepository) ListByTypeAndState(t BuildType, state BuildState) ([]*Build, error) {
	rows, err := r.db.DB().Query(selectBuildsQuery+" WHERE build_type = ? AND build_state = ? ORDER BY id", t, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s builds in state %s: %w", t, state, err)
	}
	defer rows.Close()
	return scanBuilds(rows)
}

// ListNonBuildTypeInState returns every build whose type is not the
// top-level `build` type and whose state matches, used by the startup
// reconciler.
func (r *BuildRepository) ListNonBuildTypeInState(state BuildState) ([]*Build, error) {
	rows, err := r.db.DB().Query(selectBuildsQuery+" WHERE build_type != ? AND build_state = ? ORDER BY id", BuildTypeBuild, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list non-build builds in state %s: %w", state, err)
	}
	defer rows.Close()
	return scanBuilds(rows)
}

// Update persists every mutable field of the given Build.
func (r *BuildRepository) Update(b *Build) error {
	_, err := r.db.DB().Exec(`
		UPDATE builds SET build_state = ?, start_stamp = ?, build_end_stamp = ?,
			end_stamp = ?, version = ?, git_ref = ?, ci_branch = ?, source_name = ?,
			architecture = ?, is_ci = ?, build_deps = ?, project_versions = ?,
			sourcerepository_id = ?, projectversion_id = ?, maintainer_id = ?
		WHERE id = ?`,
		b.BuildState, b.StartStamp, b.BuildEndStamp, b.EndStamp, b.Version,
		b.GitRef, b.CIBranch, b.SourceName, b.Architecture, b.IsCI, b.BuildDeps,
		b.ProjectVersions, b.SourceRepository, b.ProjectVersionID, b.MaintainerID, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update build %d: %w", b.ID, err)
	}
	return nil
}

// CountBySourceRepository reports how many builds reference the given
// source repository, used by delete_repo and merge_duplicate_repo.
func (r *BuildRepository) CountBySourceRepository(repoID int64) (int, error) {
	var count int
	err := r.db.DB().QueryRow("SELECT COUNT(*) FROM builds WHERE sourcerepository_id = ?", repoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count builds for repo %d: %w", repoID, err)
	}
	return count, nil
}

// ReassignSourceRepository moves every build referencing fromRepo to
// referencing toRepo, for merge_duplicate_repo.
func (r *BuildRepository) ReassignSourceRepository(fromRepo, toRepo int64) error {
	_, err := r.db.DB().Exec("UPDATE builds SET sourcerepository_id = ? WHERE sourcerepository_id = ?", toRepo, fromRepo)
	if err != nil {
		return fmt.Errorf("failed to reassign builds from repo %d to %d: %w", fromRepo, toRepo, err)
	}
	return nil
}

func scanBuild(row *sql.Row) (*Build, error) {
	b := &Build{}
	err := row.Scan(&b.ID, &b.ParentID, &b.BuildType, &b.BuildState, &b.CreatedStamp,
		&b.StartStamp, &b.BuildEndStamp, &b.EndStamp, &b.Version, &b.GitRef,
		&b.CIBranch, &b.SourceName, &b.Architecture, &b.IsCI, &b.BuildDeps,
		&b.ProjectVersions, &b.SourceRepository, &b.ProjectVersionID, &b.MaintainerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan build: %w", err)
	}
	return b, nil
}

func scanBuilds(rows *sql.Rows) ([]*Build, error) {
	var builds []*Build
	for rows.Next() {
		b := &Build{}
		if err := rows.Scan(&b.ID, &b.ParentID, &b.BuildType, &b.BuildState, &b.CreatedStamp,
			&b.StartStamp, &b.BuildEndStamp, &b.EndStamp, &b.Version, &b.GitRef,
			&b.CIBranch, &b.SourceName, &b.Architecture, &b.IsCI, &b.BuildDeps,
			&b.ProjectVersions, &b.SourceRepository, &b.ProjectVersionID, &b.MaintainerID); err != nil {
			return nil, fmt.Errorf("failed to scan build row: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
