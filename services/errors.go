package services

import (
	"errors"
	"fmt"

	"backend/models"
)

// Sentinel errors for the control layer. Checks fail closed: a request that
// would fail several checks reports the first one in the fixed order
// tenant scope -> lock -> version.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAccessNotFound  = errors.New("supplier access not found")
	ErrWorkflowClosed  = errors.New("action not allowed in current state")
)

// ValidationError is a malformed or incomplete payload (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TenantForbiddenError is a cross-company or capability denial (HTTP 403).
// DeniedIDs is populated for multi-id operations so callers can report
// exactly which of N requested resources were refused.
type TenantForbiddenError struct {
	Capability Capability
	CompanyID  int
	DeniedIDs  []string
}

func (e *TenantForbiddenError) Error() string {
	if len(e.DeniedIDs) > 0 {
		return fmt.Sprintf("access denied for %d resource(s)", len(e.DeniedIDs))
	}
	return fmt.Sprintf("capability %q denied for company %d", e.Capability, e.CompanyID)
}

// LockConflictError reports the current holder and context of a contested
// lock, plus the canonical project state when the resource concerns a
// project, so the caller can reconcile without a second round trip.
type LockConflictError struct {
	ResourceKey string
	Holder      string
	Context     string
	ProjectID   string
	Project     *models.Project
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("resource %q is locked by %s", e.ResourceKey, e.Holder)
}

// VersionConflictError reports a stale base_version. It carries the canonical
// current project and the server_version the client should retry with.
type VersionConflictError struct {
	ProjectID     string
	Project       *models.Project
	ServerVersion string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("stale version for project %s (server version %s)", e.ProjectID, e.ServerVersion)
}
