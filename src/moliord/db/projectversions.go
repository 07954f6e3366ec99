package db

import (
	"database/sql"
	"fmt"
)

// ProjectVersionRepository handles ProjectVersion persistence.
type ProjectVersionRepository struct {
	db *Database
}

// NewProjectVersionRepository creates a new project version repository.
func NewProjectVersionRepository(db *Database) *ProjectVersionRepository {
	return &ProjectVersionRepository{db: db}
}

const selectProjectVersionsQuery = `
	SELECT id, project_name, version_name, basemirror_name, basemirror_version,
		architectures, is_locked
	FROM project_versions
`

// Create inserts a new ProjectVersion row.
func (r *ProjectVersionRepository) Create(pv *ProjectVersion) error {
	res, err := r.db.DB().Exec(`
		INSERT INTO project_versions (project_name, version_name, basemirror_name,
			basemirror_version, architectures, is_locked)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pv.ProjectName, pv.VersionName, pv.BasemirrorName, pv.BasemirrorVersion,
		pv.Architectures, pv.IsLocked)
	if err != nil {
		return fmt.Errorf("failed to create project version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new project version id: %w", err)
	}
	pv.ID = id
	return nil
}

// GetByID retrieves a ProjectVersion by id.
func (r *ProjectVersionRepository) GetByID(id int64) (*ProjectVersion, error) {
	row := r.db.DB().QueryRow(selectProjectVersionsQuery+" WHERE id = ?", id)
	return scanProjectVersion(row)
}

// IsLocked reports whether the given project version rejects new builds,
// used by rebuild eligibility checks.
func (r *ProjectVersionRepository) IsLocked(id int64) (bool, error) {
	pv, err := r.GetByID(id)
	if err != nil {
		return false, err
	}
	if pv == nil {
		return false, nil
	}
	return pv.IsLocked, nil
}

// SetLocked updates the lock flag on a project version.
func (r *ProjectVersionRepository) SetLocked(id int64, locked bool) error {
	_, err := r.db.DB().Exec("UPDATE project_versions SET is_locked = ? WHERE id = ?", locked, id)
	if err != nil {
		return fmt.Errorf("failed to set project version %d locked=%v: %w", id, locked, err)
	}
	return nil
}

func scanProjectVersion(row *sql.Row) (*ProjectVersion, error) {
	pv := &ProjectVersion{}
	err := row.Scan(&pv.ID, &pv.ProjectName, &pv.VersionName, &pv.BasemirrorName,
		&pv.BasemirrorVersion, &pv.Architectures, &pv.IsLocked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project version: %w", err)
	}
	return pv, nil
}
