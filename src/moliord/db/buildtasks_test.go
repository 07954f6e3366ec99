package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTaskRepository_CreateGetDelete(t *testing.T) {
	database := newTestDB(t)
	builds := NewBuildRepository(database)
	tasks := NewBuildTaskRepository(database)

	b := &Build{BuildType: BuildTypeDeb}
	require.NoError(t, builds.Create(b))

	require.NoError(t, tasks.Create(b.ID, "build"))

	row, err := tasks.GetByBuildID(b.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "build", row.Task)

	require.NoError(t, tasks.DeleteByBuildID(b.ID))

	row, err = tasks.GetByBuildID(b.ID)
	require.NoError(t, err)
	require.Nil(t, row)
}
