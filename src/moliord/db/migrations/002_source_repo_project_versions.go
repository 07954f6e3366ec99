package migrations

import "database/sql"

// migration002SourceRepoProjectVersions adds the join table recording which
// project versions a source repository is attached to, mirroring the
// original many-to-many SouRepProVer relation. DeleteRepo and
// MergeDuplicateRepo both consult it.
func migration002SourceRepoProjectVersions() Migration {
	return Migration{
		Version:     2,
		Description: "add source_repository_project_versions join table",
		Up:          migration002Up,
	}
}

func migration002Up(tx *sql.Tx) error {
	statements := []string{
		sourceRepoProjectVersionsTableSQL,
		sourceRepoProjectVersionsIndexesSQL,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

const sourceRepoProjectVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS source_repository_project_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sourcerepository_id INTEGER NOT NULL,
	projectversion_id INTEGER NOT NULL,
	UNIQUE(sourcerepository_id, projectversion_id),
	FOREIGN KEY (sourcerepository_id) REFERENCES source_repositories(id) ON DELETE CASCADE,
	FOREIGN KEY (projectversion_id) REFERENCES project_versions(id) ON DELETE CASCADE
)`

const sourceRepoProjectVersionsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_sourepprover_sourcerepo ON source_repository_project_versions(sourcerepository_id);
CREATE INDEX IF NOT EXISTS idx_sourepprover_projectversion ON source_repository_project_versions(projectversion_id)`
