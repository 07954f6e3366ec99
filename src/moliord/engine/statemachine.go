package engine

import (
	"fmt"

	"github.com/bitswalk/molior/src/common/errors"
	"github.com/bitswalk/molior/src/moliord/buildlog"
	"github.com/bitswalk/molior/src/moliord/clock"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/notify"
)

// transitions is the permitted Build state graph. A from-state absent from
// the map, or a to-state not listed under it, is rejected by Transition.
var transitions = map[db.BuildState][]db.BuildState{
	db.BuildStateNew:          {db.BuildStateNeedsBuild, db.BuildStateAlreadyExists, db.BuildStateNothingDone},
	db.BuildStateNeedsBuild:   {db.BuildStateScheduled},
	db.BuildStateScheduled:    {db.BuildStateBuilding},
	db.BuildStateBuilding:     {db.BuildStateBuildFailed, db.BuildStateNeedsPublish},
	db.BuildStateNeedsPublish: {db.BuildStatePublishing},
	db.BuildStatePublishing:   {db.BuildStatePublishFailed, db.BuildStateSuccessful},
}

// hookQualifyingStates are the deb-build states whose transitions fire
// project-configured outbound hooks.
var hookQualifyingStates = map[db.BuildState]bool{
	db.BuildStateBuilding:      true,
	db.BuildStateSuccessful:    true,
	db.BuildStateBuildFailed:   true,
	db.BuildStatePublishFailed: true,
}

// terminalStates are the states that close a build's log stream with a
// "Done" title, per §7's "terminal failures always close the log with a
// Done title" (extended here to every terminal state, not only failures).
var terminalStates = map[db.BuildState]bool{
	db.BuildStateBuildFailed:   true,
	db.BuildStatePublishFailed: true,
	db.BuildStateSuccessful:    true,
	db.BuildStateAlreadyExists: true,
	db.BuildStateNothingDone:   true,
}

// BuildStateMachine drives every Build state transition, its timestamp side
// effects, and the parent/child aggregation rules of the build tree.
type BuildStateMachine struct {
	builds          *db.BuildRepository
	projectVersions *db.ProjectVersionRepository
	notifier        *notify.Notifier
	clock           clock.Clock
	log             *buildlog.Writer
}

// NewBuildStateMachine creates a BuildStateMachine. log may be nil, in which
// case title/Done markers are skipped (useful in tests that only assert on
// database state).
func NewBuildStateMachine(builds *db.BuildRepository, projectVersions *db.ProjectVersionRepository,
	notifier *notify.Notifier, c clock.Clock, logWriter *buildlog.Writer) *BuildStateMachine {
	return &BuildStateMachine{
		builds:          builds,
		projectVersions: projectVersions,
		notifier:        notifier,
		clock:           c,
		log:             logWriter,
	}
}

// Transition validates that from b.BuildState to `to` is permitted, applies
// the timestamp side effects, persists the row, notifies, fires hooks for
// qualifying deb transitions, and runs the parent/child aggregation rules.
func (sm *BuildStateMachine) Transition(b *db.Build, to db.BuildState) error {
	if !sm.isAllowed(b.BuildState, to) {
		return errors.ErrInvalidTransition.WithMessagef(
			"build %d: %s -> %s is not a permitted transition", b.ID, b.BuildState, to)
	}
	return sm.apply(b, to)
}

func (sm *BuildStateMachine) isAllowed(from, to db.BuildState) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// apply performs the mechanical work of a transition without checking the
// graph, used both by Transition (after validation) and by aggregation
// (which drives side-effect transitions on other rows in the tree).
func (sm *BuildStateMachine) apply(b *db.Build, to db.BuildState) error {
	sm.applyTimestamps(b, to)
	if err := sm.builds.Update(b); err != nil {
		return fmt.Errorf("failed to persist build %d transition to %s: %w", b.ID, to, err)
	}

	sm.notifier.Notify("build", "changed", snapshotBuild(b))

	if b.BuildType == db.BuildTypeDeb && hookQualifyingStates[to] {
		sm.notifier.RunHooks(b.ID, snapshotBuild(b))
	}

	if terminalStates[to] {
		sm.emitDone(b)
	}

	return sm.aggregate(b, to)
}

func (sm *BuildStateMachine) applyTimestamps(b *db.Build, to db.BuildState) {
	now := sm.clock.Now()
	switch to {
	case db.BuildStateBuilding:
		b.StartStamp = &now
	case db.BuildStateNeedsPublish:
		b.BuildEndStamp = &now
	case db.BuildStateBuildFailed:
		b.BuildEndStamp = &now
		b.EndStamp = &now
	case db.BuildStatePublishFailed, db.BuildStateSuccessful:
		b.EndStamp = &now
	case db.BuildStateNeedsBuild:
		b.EndStamp = nil
		b.BuildEndStamp = nil
	case db.BuildStateAlreadyExists, db.BuildStateNothingDone:
		b.EndStamp = &now
	}
	b.BuildState = to
}

// aggregate implements the parent/child aggregation rules of spec §4.3.
func (sm *BuildStateMachine) aggregate(b *db.Build, to db.BuildState) error {
	switch b.BuildType {
	case db.BuildTypeDeb:
		switch to {
		case db.BuildStateBuildFailed, db.BuildStatePublishFailed:
			return sm.escalateGrandparentFailure(b)
		case db.BuildStateSuccessful:
			return sm.promoteIfAllSiblingsSuccessful(b)
		case db.BuildStateNeedsBuild:
			return sm.ensureGrandparentBuilding(b)
		}
	case db.BuildTypeSource:
		if to == db.BuildStateBuildFailed {
			return sm.propagateFailureToParent(b)
		}
	}
	return nil
}

// escalateGrandparentFailure implements: "A deb build transitioning to
// build_failed or publish_failed escalates: if the grandparent (root build)
// is not already build_failed, mark it build_failed and emit a terminal log
// title 'Done'." The decided reading of the open `set_publish_failed`
// ambiguity (DESIGN.md) keeps the escalation target build_failed in both
// cases, matching the existing, not the "probably intended", behavior.
func (sm *BuildStateMachine) escalateGrandparentFailure(b *db.Build) error {
	root, err := sm.builds.Root(b)
	if err != nil {
		return err
	}
	if root == nil || root.ID == b.ID || root.BuildState == db.BuildStateBuildFailed {
		return nil
	}
	return sm.apply(root, db.BuildStateBuildFailed)
}

// propagateFailureToParent implements: "A source build failing propagates
// to its build parent via parent.set_failed()." For a source build, Root
// and Parent coincide (the tree is build -> source -> deb).
func (sm *BuildStateMachine) propagateFailureToParent(b *db.Build) error {
	parent, err := sm.builds.Parent(b)
	if err != nil {
		return err
	}
	if parent == nil || parent.BuildState == db.BuildStateBuildFailed {
		return nil
	}
	return sm.apply(parent, db.BuildStateBuildFailed)
}

// promoteIfAllSiblingsSuccessful implements: "A deb build reaching
// successful scans its siblings under the same source parent; if all
// siblings are successful, the grandparent is promoted to successful."
func (sm *BuildStateMachine) promoteIfAllSiblingsSuccessful(b *db.Build) error {
	siblings, err := sm.builds.Siblings(b)
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.BuildState != db.BuildStateSuccessful {
			return nil
		}
	}
	root, err := sm.builds.Root(b)
	if err != nil {
		return err
	}
	if root == nil || root.ID == b.ID {
		return nil
	}
	return sm.apply(root, db.BuildStateSuccessful)
}

// ensureGrandparentBuilding implements: "A deb build entering needs_build
// ensures the grandparent is building (re-open timing: clear its endstamp,
// call set_building)."
func (sm *BuildStateMachine) ensureGrandparentBuilding(b *db.Build) error {
	root, err := sm.builds.Root(b)
	if err != nil {
		return err
	}
	if root == nil || root.ID == b.ID {
		return nil
	}
	root.EndStamp = nil
	return sm.apply(root, db.BuildStateBuilding)
}

func (sm *BuildStateMachine) emitDone(b *db.Build) {
	if sm.log != nil {
		sm.log.Done(b.ID)
	}
}

// IsRebuildEligible implements spec §4.3's rebuild eligibility: the build
// must sit in a terminal failure state and, if it references a project
// version, that project version must not be locked.
func (sm *BuildStateMachine) IsRebuildEligible(b *db.Build) (bool, error) {
	if !b.IsTerminalFailure() {
		return false, nil
	}
	if b.ProjectVersionID == nil {
		return true, nil
	}
	locked, err := sm.projectVersions.IsLocked(*b.ProjectVersionID)
	if err != nil {
		return false, err
	}
	return !locked, nil
}

// snapshotBuild returns the already-computed, already-serializable view of b
// handed to notify sinks, never a live handle, per the cyclic-notification
// design note.
func snapshotBuild(b *db.Build) map[string]interface{} {
	return map[string]interface{}{
		"id":           b.ID,
		"parent_id":    b.ParentID,
		"build_type":   b.BuildType,
		"build_state":  b.BuildState,
		"version":      b.Version,
		"git_ref":      b.GitRef,
		"architecture": b.Architecture,
		"is_ci":        b.IsCI,
	}
}
