package db

import (
	"database/sql"
	"fmt"
)

// BuildNodeRepository handles BuildNode persistence.
type BuildNodeRepository struct {
	db *Database
}

// NewBuildNodeRepository creates a new build node repository.
func NewBuildNodeRepository(db *Database) *BuildNodeRepository {
	return &BuildNodeRepository{db: db}
}

const selectBuildNodesQuery = `SELECT id, name, state, architecture, basemirror_name FROM build_nodes`

// Create registers a new build node, offline until it reports in.
func (r *BuildNodeRepository) Create(n *BuildNode) error {
	if n.State == "" {
		n.State = BuildNodeOffline
	}
	res, err := r.db.DB().Exec("INSERT INTO build_nodes (name, state, architecture, basemirror_name) VALUES (?, ?, ?, ?)",
		n.Name, n.State, n.Architecture, n.BasemirrorName)
	if err != nil {
		return fmt.Errorf("failed to create build node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new build node id: %w", err)
	}
	n.ID = id
	return nil
}

// GetByID retrieves a BuildNode by id.
func (r *BuildNodeRepository) GetByID(id int64) (*BuildNode, error) {
	row := r.db.DB().QueryRow(selectBuildNodesQuery+" WHERE id = ?", id)
	return scanBuildNode(row)
}

// GetByName retrieves a BuildNode by its unique name.
func (r *BuildNodeRepository) GetByName(name string) (*BuildNode, error) {
	row := r.db.DB().QueryRow(selectBuildNodesQuery+" WHERE name = ?", name)
	return scanBuildNode(row)
}

// ListIdleByArchitectureAndBasemirror returns idle nodes matching the
// architecture and basemirror a pending build requires, for the scheduler
// pass to match against.
func (r *BuildNodeRepository) ListIdleByArchitectureAndBasemirror(architecture, basemirrorName string) ([]*BuildNode, error) {
	rows, err := r.db.DB().Query(
		selectBuildNodesQuery+" WHERE state = ? AND architecture = ? AND basemirror_name = ? ORDER BY id",
		BuildNodeIdle, architecture, basemirrorName)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle build nodes: %w", err)
	}
	defer rows.Close()
	return scanBuildNodes(rows)
}

// SetState transitions a build node to the given state.
func (r *BuildNodeRepository) SetState(id int64, state BuildNodeState) error {
	_, err := r.db.DB().Exec("UPDATE build_nodes SET state = ? WHERE id = ?", state, id)
	if err != nil {
		return fmt.Errorf("failed to set build node %d state to %s: %w", id, state, err)
	}
	return nil
}

// List returns every registered build node.
func (r *BuildNodeRepository) List() ([]*BuildNode, error) {
	rows, err := r.db.DB().Query(selectBuildNodesQuery + " ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list build nodes: %w", err)
	}
	defer rows.Close()
	return scanBuildNodes(rows)
}

func scanBuildNode(row *sql.Row) (*BuildNode, error) {
	n := &BuildNode{}
	err := row.Scan(&n.ID, &n.Name, &n.State, &n.Architecture, &n.BasemirrorName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan build node: %w", err)
	}
	return n, nil
}

func scanBuildNodes(rows *sql.Rows) ([]*BuildNode, error) {
	var nodes []*BuildNode
	for rows.Next() {
		n := &BuildNode{}
		if err := rows.Scan(&n.ID, &n.Name, &n.State, &n.Architecture, &n.BasemirrorName); err != nil {
			return nil, fmt.Errorf("failed to scan build node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
