package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// Roles a user profile can carry within a company.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleViewer     = "viewer"
)

// SupplierAccess workflow states.
const (
	AccessStatusSent      = "sent"
	AccessStatusViewed    = "viewed"
	AccessStatusSubmitted = "submitted"
	AccessStatusApproved  = "approved"
)

// JSONMap is a JSONB document column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for JSONMap scan")
		}
		b = []byte(s)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Items returns the item list of a project data document.
func (m JSONMap) Items() []interface{} {
	items, _ := m["items"].([]interface{})
	return items
}

// JSONArray is a JSONB array column (e.g. requested item subsets).
type JSONArray []interface{}

func (a JSONArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONArray{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for JSONArray scan")
		}
		b = []byte(s)
	}
	if len(b) == 0 {
		*a = JSONArray{}
		return nil
	}
	return json.Unmarshal(b, a)
}

type Company struct {
	ID        int       `json:"id" example:"1"`
	Name      string    `json:"name" example:"Acme Industrial"`
	IsActive  bool      `json:"is_active" example:"true"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

func (Company) TableName() string {
	return "companies"
}

type User struct {
	ID        int       `json:"id" example:"1"`
	Email     string    `json:"email" example:"user@example.com"`
	Password  string    `json:"password,omitempty" example:""`
	FirstName string    `json:"first_name" example:"John"`
	LastName  string    `json:"last_name" example:"Doe"`
	Suspended bool      `json:"suspended" example:"false"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// UserCompanyProfile binds a user to exactly one company and a role.
// Superadmin profiles carry no company (CompanyID 0).
type UserCompanyProfile struct {
	ID        int    `json:"id" example:"1"`
	UserID    int    `json:"user_id" example:"1"`
	CompanyID int    `json:"company_id" example:"1"`
	Role      string `json:"role" example:"editor"`
	IsActive  bool   `json:"is_active" example:"true"`
}

// Identity is the resolved acting identity for a request. It is re-validated
// against the session table on every call, never cached across requests.
type Identity struct {
	UserID    int    `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID int    `json:"company_id"` // 0 for superadmin
}

func (i Identity) IsSuperadmin() bool {
	return i.Role == RoleSuperadmin
}

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    int       `json:"user_id"`
	HostName  string    `json:"host_name"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Project is the unit of collaborative editing. UpdatedAt doubles as the
// optimistic-concurrency version stamp and advances strictly on every write.
type Project struct {
	ID        string    `json:"id" example:"proj-7f3a"`
	CompanyID int       `json:"company_id" example:"1"`
	Name      string    `json:"name" example:"Line 4 Retrofit RFQ"`
	Data      JSONMap   `json:"data"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// Version returns the stamp in the wire format clients echo back as base_version.
func (p Project) Version() string {
	return p.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// SupplierAccess is a single-use-per-round token granting one external
// supplier access to one project's RFQ items. The token id is the credential.
type SupplierAccess struct {
	ID             string     `json:"id"`
	CompanyID      int        `json:"company_id"`
	ProjectID      string     `json:"project_id"`
	SupplierName   string     `json:"supplier_name"`
	SupplierEmail  string     `json:"supplier_email,omitempty"`
	RequestedItems JSONArray  `json:"requested_items"`
	SubmissionData JSONMap    `json:"submission_data"`
	Status         string     `json:"status"`
	Round          int        `json:"round"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SupplierAccessRound is the immutable archive of a superseded round.
type SupplierAccessRound struct {
	ID             int        `json:"id"`
	AccessID       string     `json:"access_id"`
	CompanyID      int        `json:"company_id"`
	ProjectID      string     `json:"project_id"`
	SupplierName   string     `json:"supplier_name"`
	Round          int        `json:"round"`
	Status         string     `json:"status"`
	RequestedItems JSONArray  `json:"requested_items"`
	SubmissionData JSONMap    `json:"submission_data"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ArchivedAt     time.Time  `json:"archived_at"`
}

// ResourceLock is an exclusive advisory lock on a resource key.
// At most one non-expired lock exists per key.
type ResourceLock struct {
	ResourceKey string    `json:"resource_key" example:"project:proj-7f3a:edit"`
	HolderID    int       `json:"holder_id"`
	HolderEmail string    `json:"holder_email"`
	ProjectID   string    `json:"project_id"`
	Context     string    `json:"context" example:"project-data"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (l ResourceLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AuditLogEntry is an immutable record of a privileged action.
type AuditLogEntry struct {
	ID         int       `json:"id"`
	Action     string    `json:"action" example:"lock.force_unlock"`
	EntityType string    `json:"entity_type" example:"lock"`
	EntityID   string    `json:"entity_id"`
	ActorID    int       `json:"actor_id"`
	ActorEmail string    `json:"actor_email"`
	CompanyID  int       `json:"company_id"`
	Metadata   JSONMap   `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Quote is a filed quote record, created when a supplier submission is
// approved or entered manually. Persisted through GORM.
type Quote struct {
	ID           int       `json:"id" gorm:"primaryKey"`
	CompanyID    int       `json:"company_id" gorm:"index"`
	ProjectID    string    `json:"project_id" gorm:"index"`
	SupplierName string    `json:"supplier_name"`
	Source       string    `json:"source"` // manual | supplier_portal
	Currency     string    `json:"currency"`
	Data         JSONMap   `json:"data" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Quote) TableName() string {
	return "quotes"
}

// SupplierInteractionFile is metadata for a file exchanged during a round.
// The payload lives on disk; only metadata is stored here.
type SupplierInteractionFile struct {
	ID           int       `json:"id"`
	CompanyID    int       `json:"company_id"`
	AccessID     string    `json:"access_id"`
	Round        int       `json:"round"`
	StoredPath   string    `json:"-"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	UploadedBy   string    `json:"uploaded_by"` // supplier | internal
	CreatedAt    time.Time `json:"created_at"`
}
