package db

import (
	"database/sql"
	"fmt"
)

// MaintainerRepository handles Maintainer persistence.
type MaintainerRepository struct {
	db *Database
}

// NewMaintainerRepository creates a new maintainer repository.
func NewMaintainerRepository(db *Database) *MaintainerRepository {
	return &MaintainerRepository{db: db}
}

const selectMaintainersQuery = `SELECT id, name, email FROM maintainers`

// GetByEmail retrieves a Maintainer by email, or nil if none is registered.
func (r *MaintainerRepository) GetByEmail(email string) (*Maintainer, error) {
	row := r.db.DB().QueryRow(selectMaintainersQuery+" WHERE email = ?", email)
	return scanMaintainer(row)
}

// GetByID retrieves a Maintainer by id.
func (r *MaintainerRepository) GetByID(id int64) (*Maintainer, error) {
	row := r.db.DB().QueryRow(selectMaintainersQuery+" WHERE id = ?", id)
	return scanMaintainer(row)
}

// GetOrCreate returns the maintainer matching name and email, inserting one
// if none exists yet. Used after a clone to link a build to the author of the
// repository's HEAD commit.
func (r *MaintainerRepository) GetOrCreate(name, email string) (*Maintainer, error) {
	existing, err := r.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	res, err := r.db.DB().Exec("INSERT INTO maintainers (name, email) VALUES (?, ?)", name, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create maintainer %s: %w", email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new maintainer id: %w", err)
	}
	return &Maintainer{ID: id, Name: name, Email: email}, nil
}

func scanMaintainer(row *sql.Row) (*Maintainer, error) {
	m := &Maintainer{}
	err := row.Scan(&m.ID, &m.Name, &m.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan maintainer: %w", err)
	}
	return m, nil
}
