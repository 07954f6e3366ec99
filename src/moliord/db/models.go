// Package db provides the relational store for moliord: Build, SourceRepository,
// Chroot, ProjectVersion and the supporting tables, backed by sqlite3 via
// database/sql and versioned through the migrations package.
package db

import (
	"strconv"
	"time"
)

// BuildType enumerates the kinds of Build row.
type BuildType string

const (
	BuildTypeBuild  BuildType = "build"
	BuildTypeSource BuildType = "source"
	BuildTypeDeb    BuildType = "deb"
	BuildTypeChroot BuildType = "chroot"
	BuildTypeMirror BuildType = "mirror"
)

// BuildState enumerates the permitted Build.buildstate values.
type BuildState string

const (
	BuildStateNew            BuildState = "new"
	BuildStateNeedsBuild     BuildState = "needs_build"
	BuildStateScheduled      BuildState = "scheduled"
	BuildStateBuilding       BuildState = "building"
	BuildStateBuildFailed    BuildState = "build_failed"
	BuildStateNeedsPublish   BuildState = "needs_publish"
	BuildStatePublishing     BuildState = "publishing"
	BuildStatePublishFailed  BuildState = "publish_failed"
	BuildStateSuccessful     BuildState = "successful"
	BuildStateAlreadyExists  BuildState = "already_exists"
	BuildStateNothingDone    BuildState = "nothing_done"
)

// Build is one recorded attempt at producing an artifact, or the top-level
// build-tree root aggregating those attempts.
type Build struct {
	ID               int64
	ParentID         *int64
	BuildType        BuildType
	BuildState       BuildState
	CreatedStamp     time.Time
	StartStamp       *time.Time
	BuildEndStamp    *time.Time
	EndStamp         *time.Time
	Version          string
	GitRef           string
	CIBranch         string
	SourceName       string
	Architecture     string
	IsCI             bool
	BuildDeps        string
	ProjectVersions  string
	SourceRepository *int64
	ProjectVersionID *int64
	MaintainerID     *int64
}

// IsTerminalFailure reports whether the build sits in one of the two states
// rebuild eligibility (spec §4.3) checks against.
func (b *Build) IsTerminalFailure() bool {
	return b.BuildState == BuildStateBuildFailed || b.BuildState == BuildStatePublishFailed
}

// RepositoryState enumerates the SourceRepository lifecycle flag.
type RepositoryState string

const (
	RepoStateNew     RepositoryState = "new"
	RepoStateCloning RepositoryState = "cloning"
	RepoStateReady   RepositoryState = "ready"
	RepoStateBusy    RepositoryState = "busy"
	RepoStateError   RepositoryState = "error"
)

// SourceRepository is a Git-hosted source, with state acting as an advisory
// mutex over its on-disk checkout.
type SourceRepository struct {
	ID    int64
	URL   string
	Name  *string
	State RepositoryState
}

// Path is the directory molior owns for this repository's checkout.
func (r *SourceRepository) Path() string {
	return repoBasePath(r.ID)
}

// SrcPath is the actual git worktree beneath Path, named after the repo.
func (r *SourceRepository) SrcPath() string {
	name := ""
	if r.Name != nil {
		name = *r.Name
	}
	return repoBasePath(r.ID) + "/" + name
}

func repoBasePath(id int64) string {
	return "/var/lib/molior/repositories/" + strconv.FormatInt(id, 10)
}

// SourceRepoProjectVersion attaches a SourceRepository to a ProjectVersion,
// the relation DeleteRepo and MergeDuplicateRepo consult before mutating a
// repository's row.
type SourceRepoProjectVersion struct {
	ID                 int64
	SourceRepositoryID int64
	ProjectVersionID   int64
}

// Chroot is an isolated build environment keyed by (distribution,
// architecture, components), rebuilt on `chroot`-type build failure.
type Chroot struct {
	ID                 int64
	BuildID            int64
	Architecture       string
	BasemirrorProject  string
	BasemirrorName     string
	BasemirrorDist     string
	BasemirrorComps    string
	MirrorURL          string
	MirrorKeys         string
}

// ProjectVersion is a named release line with a base mirror that can be
// locked to prevent rebuilds.
type ProjectVersion struct {
	ID                 int64
	ProjectName        string
	VersionName        string
	BasemirrorName     string
	BasemirrorVersion  string
	Architectures      string
	IsLocked           bool
}

// BuildTaskRow audits which queue item drove a Build into `building` or
// `publishing`, deleted by the startup reconciler once that Build leaves the
// state it was driving.
type BuildTaskRow struct {
	ID        int64
	BuildID   int64
	Task      string
	CreatedAt time.Time
}

// BuildNodeState enumerates a remote build node's availability.
type BuildNodeState string

const (
	BuildNodeIdle    BuildNodeState = "idle"
	BuildNodeBusy    BuildNodeState = "busy"
	BuildNodeOffline BuildNodeState = "offline"
)

// BuildNode is a minimal local stand-in for the external build-node backend's
// NodesInfo contract, giving the scheduler pass something concrete to match
// needs_build rows against.
type BuildNode struct {
	ID                 int64
	Name               string
	State              BuildNodeState
	Architecture       string
	BasemirrorName     string
}

// Maintainer is the Git author surfaced by the Git collaborator's show_head
// contract.
type Maintainer struct {
	ID    int64
	Name  string
	Email string
}
