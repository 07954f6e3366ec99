package db

import (
	"database/sql"
	"fmt"
)

// SourceRepoProjectVersionRepository handles SourceRepoProjectVersion
// persistence.
type SourceRepoProjectVersionRepository struct {
	db *Database
}

// NewSourceRepoProjectVersionRepository creates a new join-table repository.
func NewSourceRepoProjectVersionRepository(db *Database) *SourceRepoProjectVersionRepository {
	return &SourceRepoProjectVersionRepository{db: db}
}

const selectSourceRepoProjectVersionsQuery = `SELECT id, sourcerepository_id, projectversion_id FROM source_repository_project_versions`

// Create attaches sourceRepositoryID to projectVersionID.
func (r *SourceRepoProjectVersionRepository) Create(sourceRepositoryID, projectVersionID int64) (*SourceRepoProjectVersion, error) {
	res, err := r.db.DB().Exec(
		"INSERT INTO source_repository_project_versions (sourcerepository_id, projectversion_id) VALUES (?, ?)",
		sourceRepositoryID, projectVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach repository %d to project version %d: %w", sourceRepositoryID, projectVersionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new attachment id: %w", err)
	}
	return &SourceRepoProjectVersion{ID: id, SourceRepositoryID: sourceRepositoryID, ProjectVersionID: projectVersionID}, nil
}

// ListBySourceRepository returns every attachment belonging to repositoryID.
func (r *SourceRepoProjectVersionRepository) ListBySourceRepository(repositoryID int64) ([]*SourceRepoProjectVersion, error) {
	rows, err := r.db.DB().Query(selectSourceRepoProjectVersionsQuery+" WHERE sourcerepository_id = ?", repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments for repository %d: %w", repositoryID, err)
	}
	defer rows.Close()
	return scanSourceRepoProjectVersions(rows)
}

// GetBySourceAndProjectVersion returns the attachment linking repositoryID
// to projectVersionID, or nil if no such row exists.
func (r *SourceRepoProjectVersionRepository) GetBySourceAndProjectVersion(repositoryID, projectVersionID int64) (*SourceRepoProjectVersion, error) {
	row := r.db.DB().QueryRow(selectSourceRepoProjectVersionsQuery+" WHERE sourcerepository_id = ? AND projectversion_id = ?",
		repositoryID, projectVersionID)
	return scanSourceRepoProjectVersion(row)
}

// CountBySourceRepository returns how many project versions repositoryID is
// attached to, the precondition DeleteRepo checks alongside build count.
func (r *SourceRepoProjectVersionRepository) CountBySourceRepository(repositoryID int64) (int, error) {
	var count int
	err := r.db.DB().QueryRow(
		"SELECT COUNT(*) FROM source_repository_project_versions WHERE sourcerepository_id = ?", repositoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attachments for repository %d: %w", repositoryID, err)
	}
	return count, nil
}

// Reassign repoints an existing attachment row at a different repository,
// used by MergeDuplicateRepo when the kept repository has no conflicting row
// for that project version yet.
func (r *SourceRepoProjectVersionRepository) Reassign(id, newSourceRepositoryID int64) error {
	_, err := r.db.DB().Exec(
		"UPDATE source_repository_project_versions SET sourcerepository_id = ? WHERE id = ?",
		newSourceRepositoryID, id)
	if err != nil {
		return fmt.Errorf("failed to reassign attachment %d: %w", id, err)
	}
	return nil
}

// Delete removes an attachment row, used by MergeDuplicateRepo when the kept
// repository already carries the attachment and the duplicate's row is
// redundant.
func (r *SourceRepoProjectVersionRepository) Delete(id int64) error {
	_, err := r.db.DB().Exec("DELETE FROM source_repository_project_versions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment %d: %w", id, err)
	}
	return nil
}

func scanSourceRepoProjectVersion(row *sql.Row) (*SourceRepoProjectVersion, error) {
	a := &SourceRepoProjectVersion{}
	err := row.Scan(&a.ID, &a.SourceRepositoryID, &a.ProjectVersionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}
	return a, nil
}

func scanSourceRepoProjectVersions(rows *sql.Rows) ([]*SourceRepoProjectVersion, error) {
	var attachments []*SourceRepoProjectVersion
	for rows.Next() {
		a := &SourceRepoProjectVersion{}
		if err := rows.Scan(&a.ID, &a.SourceRepositoryID, &a.ProjectVersionID); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
