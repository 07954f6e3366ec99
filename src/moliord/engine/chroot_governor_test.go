package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChrootGovernor_UncappedAlwaysAcquires(t *testing.T) {
	g := NewChrootGovernor(0)
	for i := 0; i < 5; i++ {
		require.True(t, g.TryAcquire())
	}
	require.Equal(t, int64(5), g.Occupancy())
}

func TestChrootGovernor_CapEnforced(t *testing.T) {
	g := NewChrootGovernor(2)
	require.True(t, g.TryAcquire())
	require.True(t, g.TryAcquire())
	require.False(t, g.TryAcquire())
	require.Equal(t, int64(2), g.Occupancy())
}

func TestChrootGovernor_ReleaseFreesSlot(t *testing.T) {
	g := NewChrootGovernor(1)
	require.True(t, g.TryAcquire())
	require.False(t, g.TryAcquire())

	g.Release()
	require.True(t, g.TryAcquire())
}
