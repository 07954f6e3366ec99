package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/bitswalk/molior/src/moliord/buildnode"
	"github.com/bitswalk/molior/src/moliord/db"
)

// SchedulerPass scans builds in needs_build and matches each against an
// idle, compatible build node, per spec §4.5.
type SchedulerPass struct {
	builds          *db.BuildRepository
	projectVersions *db.ProjectVersionRepository
	backend         buildnode.Backend
	sm              *BuildStateMachine
}

// NewSchedulerPass creates a SchedulerPass.
func NewSchedulerPass(builds *db.BuildRepository, projectVersions *db.ProjectVersionRepository,
	backend buildnode.Backend, sm *BuildStateMachine) *SchedulerPass {
	return &SchedulerPass{builds: builds, projectVersions: projectVersions, backend: backend, sm: sm}
}

// Run performs one scheduling pass. It is idempotent and opportunistic: no
// fairness guarantee beyond build id order, and a no-op when there is
// nothing to schedule.
func (s *SchedulerPass) Run(ctx context.Context) error {
	pending, err := s.builds.ListByTypeAndState(db.BuildTypeDeb, db.BuildStateNeedsBuild)
	if err != nil {
		return fmt.Errorf("failed to list needs_build deb builds: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	nodes, err := s.backend.NodesInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to list build nodes: %w", err)
	}

	idle := make(map[string][]buildnode.NodeInfo)
	for _, n := range nodes {
		if n.State != db.BuildNodeIdle {
			continue
		}
		key := matchKey(n.Architecture, n.BasemirrorName)
		idle[key] = append(idle[key], n)
	}

	for _, b := range pending {
		basemirror := ""
		if b.ProjectVersionID != nil {
			pv, err := s.projectVersions.GetByID(*b.ProjectVersionID)
			if err != nil {
				return fmt.Errorf("failed to resolve project version for build %d: %w", b.ID, err)
			}
			if pv != nil {
				basemirror = pv.BasemirrorName
			}
		}
		key := matchKey(b.Architecture, basemirror)
		candidates := idle[key]
		if len(candidates) == 0 {
			continue
		}
		node := candidates[0]
		idle[key] = candidates[1:]

		if err := s.sm.Transition(b, db.BuildStateScheduled); err != nil {
			return fmt.Errorf("failed to schedule build %d: %w", b.ID, err)
		}
		if err := s.backend.Dispatch(ctx, b, node); err != nil {
			return fmt.Errorf("failed to dispatch build %d to node %d: %w", b.ID, node.ID, err)
		}
	}
	return nil
}

func matchKey(architecture, basemirror string) string {
	return architecture + "|" + basemirror
}
