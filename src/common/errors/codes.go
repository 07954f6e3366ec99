package errors

import "net/http"

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
	CodeTimeout        Code = "timeout"
)

// ============================================================================
// Repository Errors
// ============================================================================

var (
	// ErrRepositoryNotFound is returned when a source repository cannot be found
	ErrRepositoryNotFound = New(DomainRepository, CodeNotFound, http.StatusNotFound,
		"source repository not found")

	// ErrRepositoryBusy is returned when a handler attempts to mutate a repository
	// that another handler currently holds in the busy state
	ErrRepositoryBusy = New(DomainRepository, CodeConflict, http.StatusConflict,
		"source repository is busy")

	// ErrRepositoryNotReady is returned when an operation requires state=ready
	// but the repository is in some other state
	ErrRepositoryNotReady = New(DomainRepository, CodeConflict, http.StatusConflict,
		"source repository is not ready")

	// ErrRepositoryHasBuilds is returned when deleting a repository that still
	// has build rows attached
	ErrRepositoryHasBuilds = New(DomainRepository, CodeConflict, http.StatusConflict,
		"source repository still has builds")

	// ErrRepositoryHasProjectVersions is returned when deleting a repository
	// that still has project-version attachments
	ErrRepositoryHasProjectVersions = New(DomainRepository, CodeConflict, http.StatusConflict,
		"source repository still has project version attachments")
)

// ============================================================================
// Build Errors
// ============================================================================

var (
	// ErrBuildNotFound is returned when a build row cannot be found
	ErrBuildNotFound = New(DomainBuild, CodeNotFound, http.StatusNotFound,
		"build not found")

	// ErrInvalidTransition is returned when a state machine transition is not permitted
	ErrInvalidTransition = New(DomainBuild, CodeInvalidRequest, http.StatusConflict,
		"invalid build state transition")

	// ErrNotRebuildable is returned when a rebuild is requested for a build that
	// does not satisfy rebuild eligibility
	ErrNotRebuildable = New(DomainBuild, CodeConflict, http.StatusConflict,
		"build is not eligible for rebuild")

	// ErrProjectVersionLocked is returned when a rebuild targets a locked project version
	ErrProjectVersionLocked = New(DomainBuild, CodeConflict, http.StatusConflict,
		"project version is locked")
)

// ============================================================================
// Task Queue Errors
// ============================================================================

var (
	// ErrUnknownTask is returned when a task carries a key the Worker does not recognize
	ErrUnknownTask = New(DomainTask, CodeInvalidRequest, http.StatusBadRequest,
		"unknown task key")

	// ErrQueueClosed is returned when enqueue is attempted after the queue has
	// been told to shut down
	ErrQueueClosed = New(DomainTask, CodeUnavailable, http.StatusServiceUnavailable,
		"task queue is closed")
)

// ============================================================================
// Chroot Errors
// ============================================================================

var (
	// ErrChrootNotFound is returned when a chroot row cannot be found
	ErrChrootNotFound = New(DomainChroot, CodeNotFound, http.StatusNotFound,
		"chroot not found")
)

// ============================================================================
// Git Collaborator Errors
// ============================================================================

var (
	// ErrGitCommandFailed is returned when an invoked git subprocess exits non-zero
	ErrGitCommandFailed = New(DomainGit, CodeInternal, http.StatusInternalServerError,
		"git command failed")

	// ErrNoValidTag is returned when tag discovery yields no tag that satisfies
	// the caller-supplied version-format validator
	ErrNoValidTag = New(DomainGit, CodeNotFound, http.StatusNotFound,
		"no valid tag found")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	// ErrStorageNotFound is returned when a storage object cannot be found
	ErrStorageNotFound = New(DomainStorage, CodeNotFound, http.StatusNotFound,
		"object not found in storage")

	// ErrStorageUnavailable is returned when the storage backend is unreachable
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, http.StatusServiceUnavailable,
		"storage backend unavailable")
)

// ============================================================================
// Database Errors
// ============================================================================

var (
	// ErrDatabaseConnection is returned when database connection fails
	ErrDatabaseConnection = New(DomainDatabase, "connection_failed", http.StatusServiceUnavailable,
		"database connection failed")

	// ErrDatabaseQuery is returned when a database query fails
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", http.StatusInternalServerError,
		"database query failed")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	// ErrValidationFailed is returned when request validation fails
	ErrValidationFailed = New(DomainValidation, "validation_failed", http.StatusBadRequest,
		"validation failed")

	// ErrMissingRequiredField is returned when a required field is missing
	ErrMissingRequiredField = New(DomainValidation, "missing_field", http.StatusBadRequest,
		"missing required field")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal server error
	ErrInternal = New(DomainInternal, CodeInternal, http.StatusInternalServerError,
		"internal error")
)
