package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectVersionRepository_IsLocked(t *testing.T) {
	database := newTestDB(t)
	repo := NewProjectVersionRepository(database)

	pv := &ProjectVersion{ProjectName: "base", VersionName: "1.0"}
	require.NoError(t, repo.Create(pv))

	locked, err := repo.IsLocked(pv.ID)
	require.NoError(t, err)
	require.False(t, locked)

	require.NoError(t, repo.SetLocked(pv.ID, true))

	locked, err = repo.IsLocked(pv.ID)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestProjectVersionRepository_IsLocked_Missing(t *testing.T) {
	database := newTestDB(t)
	repo := NewProjectVersionRepository(database)

	locked, err := repo.IsLocked(999)
	require.NoError(t, err)
	require.False(t, locked)
}
