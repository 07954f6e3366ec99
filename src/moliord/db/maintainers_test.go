package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaintainerRepository_GetOrCreate(t *testing.T) {
	database := newTestDB(t)
	repo := NewMaintainerRepository(database)

	m, err := repo.GetOrCreate("Jane Doe", "jane@example.com")
	require.NoError(t, err)
	require.NotZero(t, m.ID)

	again, err := repo.GetOrCreate("Jane Doe", "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, m.ID, again.ID)
}

func TestMaintainerRepository_GetByEmail_Missing(t *testing.T) {
	database := newTestDB(t)
	repo := NewMaintainerRepository(database)

	m, err := repo.GetByEmail("nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, m)
}
