package db

import (
	"database/sql"
	"fmt"
)

// SourceRepositoryRepository handles SourceRepository persistence.
type SourceRepositoryRepository struct {
	db *Database
}

// NewSourceRepositoryRepository creates a new source repository repository.
func NewSourceRepositoryRepository(db *Database) *SourceRepositoryRepository {
	return &SourceRepositoryRepository{db: db}
}

const selectSourceRepositoriesQuery = `SELECT id, url, name, state FROM source_repositories`

// Create inserts a new SourceRepository row in state "new".
func (r *SourceRepositoryRepository) Create(repo *SourceRepository) error {
	if repo.State == "" {
		repo.State = RepoStateNew
	}
	res, err := r.db.DB().Exec("INSERT INTO source_repositories (url, name, state) VALUES (?, ?, ?)",
		repo.URL, repo.Name, repo.State)
	if err != nil {
		return fmt.Errorf("failed to create source repository: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new repository id: %w", err)
	}
	repo.ID = id
	return nil
}

// GetByID retrieves a SourceRepository by id.
func (r *SourceRepositoryRepository) GetByID(id int64) (*SourceRepository, error) {
	row := r.db.DB().QueryRow(selectSourceRepositoriesQuery+" WHERE id = ?", id)
	return scanSourceRepository(row)
}

// ListWithoutName returns repositories whose name has not yet been
// backfilled, for the startup reconciler.
func (r *SourceRepositoryRepository) ListWithoutName() ([]*SourceRepository, error) {
	rows, err := r.db.DB().Query(selectSourceRepositoriesQuery + " WHERE name IS NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to list unnamed repositories: %w", err)
	}
	defer rows.Close()
	return scanSourceRepositories(rows)
}

// SetState transitions the repository to the given state.
func (r *SourceRepositoryRepository) SetState(id int64, state RepositoryState) error {
	_, err := r.db.DB().Exec("UPDATE source_repositories SET state = ? WHERE id = ?", state, id)
	if err != nil {
		return fmt.Errorf("failed to set repository %d state to %s: %w", id, state, err)
	}
	return nil
}

// SetName backfills the derived repository name.
func (r *SourceRepositoryRepository) SetName(id int64, name string) error {
	_, err := r.db.DB().Exec("UPDATE source_repositories SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("failed to set repository %d name: %w", id, err)
	}
	return nil
}

// SetURL updates the remote URL, used by GitChangeUrl-equivalent renames.
func (r *SourceRepositoryRepository) SetURL(id int64, url string) error {
	_, err := r.db.DB().Exec("UPDATE source_repositories SET url = ? WHERE id = ?", url, id)
	if err != nil {
		return fmt.Errorf("failed to set repository %d url: %w", id, err)
	}
	return nil
}

// Delete removes the repository row.
func (r *SourceRepositoryRepository) Delete(id int64) error {
	_, err := r.db.DB().Exec("DELETE FROM source_repositories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete repository %d: %w", id, err)
	}
	return nil
}

func scanSourceRepository(row *sql.Row) (*SourceRepository, error) {
	repo := &SourceRepository{}
	err := row.Scan(&repo.ID, &repo.URL, &repo.Name, &repo.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source repository: %w", err)
	}
	return repo, nil
}

func scanSourceRepositories(rows *sql.Rows) ([]*SourceRepository, error) {
	var repos []*SourceRepository
	for rows.Next() {
		repo := &SourceRepository{}
		if err := rows.Scan(&repo.ID, &repo.URL, &repo.Name, &repo.State); err != nil {
			return nil, fmt.Errorf("failed to scan source repository row: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}
