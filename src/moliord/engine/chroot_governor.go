package engine

import "sync/atomic"

// ChrootGovernor caps the number of concurrently running buildenv
// constructions. A MaxParallel of zero or less disables the cap, matching
// spec's "absent/zero/non-int disables the cap" for max_parallel_chroots.
type ChrootGovernor struct {
	count       atomic.Int64
	MaxParallel int
}

// NewChrootGovernor creates a governor capped at maxParallel.
func NewChrootGovernor(maxParallel int) *ChrootGovernor {
	return &ChrootGovernor{MaxParallel: maxParallel}
}

// TryAcquire attempts to reserve one chroot construction slot. Returns
// false if the cap has been reached; the caller must requeue its task and
// yield rather than retry in place.
func (g *ChrootGovernor) TryAcquire() bool {
	if g.MaxParallel <= 0 {
		g.count.Add(1)
		ChrootOccupancy.Set(float64(g.count.Load()))
		return true
	}
	for {
		cur := g.count.Load()
		if cur >= int64(g.MaxParallel) {
			return false
		}
		if g.count.CompareAndSwap(cur, cur+1) {
			ChrootOccupancy.Set(float64(g.count.Load()))
			return true
		}
	}
}

// Release returns a previously acquired slot, called once CreateBuildEnv
// completes regardless of outcome.
func (g *ChrootGovernor) Release() {
	g.count.Add(-1)
	ChrootOccupancy.Set(float64(g.count.Load()))
}

// Occupancy returns the current in-flight count, for tests.
func (g *ChrootGovernor) Occupancy() int64 {
	return g.count.Load()
}
