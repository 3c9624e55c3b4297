package models

import (
	"time"
)

type ErrorResponse struct {
	Error   string `json:"error" example:"Invalid request"`
	Details string `json:"details,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:""`
}

type LoginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
	Role         string `json:"role"`
	CompanyID    int    `json:"company_id"`
}

// ProjectUpdateRequest is a single project write carrying the optimistic
// version token the caller last observed.
type ProjectUpdateRequest struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Items       []interface{} `json:"items"`
	Meta        JSONMap       `json:"meta,omitempty"`
	BaseVersion string        `json:"base_version"`
}

type BulkProjectUpdateRequest struct {
	Projects []ProjectUpdateRequest `json:"projects"`
}

type ProjectCreateRequest struct {
	ID    string        `json:"id,omitempty"`
	Name  string        `json:"name"`
	Items []interface{} `json:"items,omitempty"`
}

// ProjectPayload is the API representation of a project, including the
// version stamp clients must echo back on the next write.
type ProjectPayload struct {
	ID        string    `json:"id"`
	CompanyID int       `json:"company_id"`
	Name      string    `json:"name"`
	Data      JSONMap   `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   string    `json:"version"`
}

func NewProjectPayload(p Project) ProjectPayload {
	return ProjectPayload{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		Data:      p.Data,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version(),
	}
}

// VersionConflictResponse carries the canonical current project state so the
// client can reconcile and retry without a second fetch.
type VersionConflictResponse struct {
	Code          string         `json:"code" example:"version_conflict"`
	ProjectID     string         `json:"project_id"`
	Project       ProjectPayload `json:"project"`
	ServerVersion string         `json:"server_version"`
}

// LockConflictResponse reports the current holder and, when the contested
// resource concerns a project, that project's canonical state.
type LockConflictResponse struct {
	Code        string          `json:"code" example:"lock_conflict"`
	ResourceKey string          `json:"resource_key"`
	Holder      string          `json:"holder"`
	Context     string          `json:"context"`
	ProjectID   string          `json:"project_id,omitempty"`
	Project     *ProjectPayload `json:"project,omitempty"`
}

type LockAcquireRequest struct {
	ResourceKey string `json:"resource_key"`
	ProjectID   string `json:"project_id"`
	Context     string `json:"context,omitempty"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
}

type LockReleaseRequest struct {
	ResourceKey string `json:"resource_key"`
}

type ExportRequest struct {
	ProjectIDs []string `json:"project_ids"`
	Format     string   `json:"format,omitempty"` // xlsx (default) | csv
}

type ExportDeniedResponse struct {
	Error            string   `json:"error"`
	DeniedProjectIDs []string `json:"denied_project_ids"`
}

type SupplierAccessGenerateRequest struct {
	ProjectID      string        `json:"project_id"`
	SupplierName   string        `json:"supplier_name"`
	SupplierEmail  string        `json:"supplier_email,omitempty"`
	RequestedItems []interface{} `json:"requested_items"`
}

// SupplierSubmissionRequest is a supplier draft save or final submission.
type SupplierSubmissionRequest struct {
	SupplierContactName  string        `json:"supplier_contact_name,omitempty"`
	SupplierContactEmail string        `json:"supplier_contact_email,omitempty"`
	Currency             string        `json:"currency,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	Items                []interface{} `json:"items"`
}

type ReopenRequest struct {
	Reason string `json:"reason,omitempty"`
}

type QuoteCreateRequest struct {
	ProjectID    string  `json:"project_id"`
	SupplierName string  `json:"supplier_name"`
	Currency     string  `json:"currency,omitempty"`
	Data         JSONMap `json:"data,omitempty"`
}

type ValidateSessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID int    `json:"company_id"`
}
