package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixed_NowReturnsPinnedInstant(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	c := NewFixed(at)
	require.True(t, c.Now().Equal(at))
	require.True(t, c.Now().Equal(at), "Now must not advance on its own")
}

func TestFixed_Advance(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	c := NewFixed(at)
	c.Advance(time.Hour)
	require.True(t, c.Now().Equal(at.Add(time.Hour)))
}

func TestSystem_NowUsesConfiguredLocation(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	c := NewSystem(loc)
	require.Equal(t, loc, c.Now().Location())
}

func TestSystem_NilLocationFallsBackToLocal(t *testing.T) {
	c := NewSystem(nil)
	require.Equal(t, time.Local, c.Now().Location())
}
