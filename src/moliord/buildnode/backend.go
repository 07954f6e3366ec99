// Package buildnode is the build-node backend collaborator: a plugin-style
// boundary the scheduler dispatches completed scheduling decisions through.
// The concrete implementation here is a stub backed by the BuildNode table,
// matching the core's explicit deferral of real remote dispatch.
package buildnode

import (
	"context"
	"fmt"

	"github.com/bitswalk/molior/src/common/logs"
	"github.com/bitswalk/molior/src/moliord/db"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the buildnode package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// NodeInfo is the stable shape the scheduler matches against: callers only
// rely on ID and Name being stable identifiers.
type NodeInfo struct {
	ID             int64
	Name           string
	State          db.BuildNodeState
	Architecture   string
	BasemirrorName string
}

// Backend is the contract the scheduler pass consumes.
type Backend interface {
	NodesInfo(ctx context.Context) ([]NodeInfo, error)
	Dispatch(ctx context.Context, build *db.Build, node NodeInfo) error
}

// StubBackend reads BuildNode rows and logs dispatch requests instead of
// actually driving remote package builds, per the core's Non-goals.
type StubBackend struct {
	nodes *db.BuildNodeRepository
}

// NewStubBackend creates a StubBackend.
func NewStubBackend(nodes *db.BuildNodeRepository) *StubBackend {
	return &StubBackend{nodes: nodes}
}

// NodesInfo returns every registered build node.
func (b *StubBackend) NodesInfo(_ context.Context) ([]NodeInfo, error) {
	rows, err := b.nodes.List()
	if err != nil {
		return nil, err
	}
	infos := make([]NodeInfo, 0, len(rows))
	for _, n := range rows {
		infos = append(infos, NodeInfo{
			ID:             n.ID,
			Name:           n.Name,
			State:          n.State,
			Architecture:   n.Architecture,
			BasemirrorName: n.BasemirrorName,
		})
	}
	return infos, nil
}

// Dispatch marks the node busy and logs the hand-off; no remote execution
// happens here, matching the core's explicit Non-goal.
func (b *StubBackend) Dispatch(_ context.Context, build *db.Build, node NodeInfo) error {
	if err := b.nodes.SetState(node.ID, db.BuildNodeBusy); err != nil {
		return fmt.Errorf("failed to mark node %d busy for build %d: %w", node.ID, build.ID, err)
	}
	log.Info("dispatched build to node", "build_id", build.ID, "node_id", node.ID, "node", node.Name)
	return nil
}
