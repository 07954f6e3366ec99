package db

import (
	"database/sql"
	"fmt"
)

// ChrootRepository handles Chroot persistence.
type ChrootRepository struct {
	db *Database
}

// NewChrootRepository creates a new chroot repository.
func NewChrootRepository(db *Database) *ChrootRepository {
	return &ChrootRepository{db: db}
}

const selectChrootsQuery = `
	SELECT id, build_id, architecture, basemirror_project, basemirror_name,
		basemirror_dist, basemirror_components, mirror_url, mirror_keys
	FROM chroots
`

// Create inserts a new Chroot row.
func (r *ChrootRepository) Create(c *Chroot) error {
	res, err := r.db.DB().Exec(`
		INSERT INTO chroots (build_id, architecture, basemirror_project,
			basemirror_name, basemirror_dist, basemirror_components, mirror_url, mirror_keys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BuildID, c.Architecture, c.BasemirrorProject, c.BasemirrorName,
		c.BasemirrorDist, c.BasemirrorComps, c.MirrorURL, c.MirrorKeys)
	if err != nil {
		return fmt.Errorf("failed to create chroot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new chroot id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByBuildID returns the Chroot row tied to the given build, used by
// rebuild for a failed chroot-type build.
func (r *ChrootRepository) GetByBuildID(buildID int64) (*Chroot, error) {
	row := r.db.DB().QueryRow(selectChrootsQuery+" WHERE build_id = ?", buildID)
	c := &Chroot{}
	err := row.Scan(&c.ID, &c.BuildID, &c.Architecture, &c.BasemirrorProject,
		&c.BasemirrorName, &c.BasemirrorDist, &c.BasemirrorComps, &c.MirrorURL, &c.MirrorKeys)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chroot for build %d: %w", buildID, err)
	}
	return c, nil
}
