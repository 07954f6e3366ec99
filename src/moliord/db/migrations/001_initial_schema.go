package migrations

import "database/sql"

// migration001InitialSchema creates the build orchestrator's core schema:
// project versions, source repositories, the build tree, chroots, build
// nodes, and the buildtask audit table.
func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "initial schema with project versions, repositories, builds, chroots and build nodes",
		Up:          migration001Up,
	}
}

func migration001Up(tx *sql.Tx) error {
	statements := []string{
		projectVersionsTableSQL,
		maintainersTableSQL,
		sourceRepositoriesTableSQL,
		sourceRepositoriesIndexesSQL,
		buildsTableSQL,
		buildsIndexesSQL,
		chrootsTableSQL,
		chrootsIndexesSQL,
		buildNodesTableSQL,
		buildTasksTableSQL,
		buildTasksIndexesSQL,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

const projectVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS project_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	version_name TEXT NOT NULL,
	basemirror_name TEXT,
	basemirror_version TEXT,
	architectures TEXT,
	is_locked BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE(project_name, version_name)
)`

const maintainersTableSQL = `
CREATE TABLE IF NOT EXISTS maintainers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE
)`

const sourceRepositoriesTableSQL = `
CREATE TABLE IF NOT EXISTS source_repositories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	name TEXT,
	state TEXT NOT NULL DEFAULT 'new'
)`

const sourceRepositoriesIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_source_repositories_state ON source_repositories(state);
CREATE INDEX IF NOT EXISTS idx_source_repositories_name ON source_repositories(name)`

const buildsTableSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id INTEGER,
	build_type TEXT NOT NULL,
	build_state TEXT NOT NULL DEFAULT 'new',
	created_stamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	start_stamp DATETIME,
	build_end_stamp DATETIME,
	end_stamp DATETIME,
	version TEXT,
	git_ref TEXT,
	ci_branch TEXT,
	source_name TEXT,
	architecture TEXT,
	is_ci BOOLEAN NOT NULL DEFAULT 0,
	build_deps TEXT,
	project_versions TEXT,
	sourcerepository_id INTEGER,
	projectversion_id INTEGER,
	maintainer_id INTEGER,
	FOREIGN KEY (parent_id) REFERENCES builds(id) ON DELETE CASCADE,
	FOREIGN KEY (sourcerepository_id) REFERENCES source_repositories(id) ON DELETE SET NULL,
	FOREIGN KEY (projectversion_id) REFERENCES project_versions(id) ON DELETE SET NULL,
	FOREIGN KEY (maintainer_id) REFERENCES maintainers(id) ON DELETE SET NULL
)`

const buildsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_builds_parent ON builds(parent_id);
CREATE INDEX IF NOT EXISTS idx_builds_state ON builds(build_state);
CREATE INDEX IF NOT EXISTS idx_builds_type ON builds(build_type);
CREATE INDEX IF NOT EXISTS idx_builds_sourcerepo ON builds(sourcerepository_id)`

const chrootsTableSQL = `
CREATE TABLE IF NOT EXISTS chroots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id INTEGER NOT NULL,
	architecture TEXT NOT NULL,
	basemirror_project TEXT,
	basemirror_name TEXT,
	basemirror_dist TEXT,
	basemirror_components TEXT,
	mirror_url TEXT,
	mirror_keys TEXT,
	FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
)`

const chrootsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_chroots_build ON chroots(build_id)`

const buildNodesTableSQL = `
CREATE TABLE IF NOT EXISTS build_nodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	state TEXT NOT NULL DEFAULT 'offline',
	architecture TEXT,
	basemirror_name TEXT
)`

const buildTasksTableSQL = `
CREATE TABLE IF NOT EXISTS build_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id INTEGER NOT NULL,
	task TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
)`

const buildTasksIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_build_tasks_build ON build_tasks(build_id)`
