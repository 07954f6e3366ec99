package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChrootRepository_CreateAndGetByBuildID(t *testing.T) {
	database := newTestDB(t)
	builds := NewBuildRepository(database)
	chroots := NewChrootRepository(database)

	b := &Build{BuildType: BuildTypeChroot}
	require.NoError(t, builds.Create(b))

	c := &Chroot{
		BuildID:           b.ID,
		Architecture:      "amd64",
		BasemirrorProject: "debian",
		BasemirrorName:    "bookworm",
		BasemirrorDist:    "bookworm",
		BasemirrorComps:   "main",
		MirrorURL:         "https://deb.debian.org/debian",
		MirrorKeys:        "0x1234",
	}
	require.NoError(t, chroots.Create(c))
	require.NotZero(t, c.ID)

	got, err := chroots.GetByBuildID(b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "amd64", got.Architecture)
	require.Equal(t, "bookworm", got.BasemirrorDist)
}

func TestChrootRepository_GetByBuildID_Missing(t *testing.T) {
	database := newTestDB(t)
	chroots := NewChrootRepository(database)

	got, err := chroots.GetByBuildID(999)
	require.NoError(t, err)
	require.Nil(t, got)
}
