package services

import (
	"database/sql"

	"github.com/lib/pq"

	"backend/models"
)

// Capability is the access level a request needs on a tenant-owned entity.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
	CapabilityAdmin Capability = "admin"
)

// rolePermissions is the static role x capability table. Evaluated once per
// request; anything not listed is denied.
var rolePermissions = map[string]map[Capability]bool{
	models.RoleSuperadmin: {CapabilityRead: true, CapabilityWrite: true, CapabilityAdmin: true},
	models.RoleAdmin:      {CapabilityRead: true, CapabilityWrite: true, CapabilityAdmin: true},
	models.RoleEditor:     {CapabilityRead: true, CapabilityWrite: true},
	models.RoleViewer:     {CapabilityRead: true},
}

// RoleAllows reports whether a role grants a capability at all, before any
// company matching.
func RoleAllows(role string, capability Capability) bool {
	return rolePermissions[role][capability]
}

// Authorize decides whether identity may exercise capability on an entity
// owned by companyID. Superadmin bypasses the company match; every other
// role requires an exact match. Pure decision, no side effects: audit
// recording stays with the caller.
func Authorize(identity models.Identity, capability Capability, companyID int) error {
	if !RoleAllows(identity.Role, capability) {
		return &TenantForbiddenError{Capability: capability, CompanyID: companyID}
	}
	if identity.IsSuperadmin() {
		return nil
	}
	if identity.CompanyID == 0 || identity.CompanyID != companyID {
		return &TenantForbiddenError{Capability: capability, CompanyID: companyID}
	}
	return nil
}

// FilterProjectIDs splits the requested project ids into the allowed and
// denied subsets for identity. Unknown ids are denied rather than reported
// as missing so that existence is never leaked across tenants. The company
// of each project is fetched explicitly here, never lazily downstream.
func FilterProjectIDs(db *sql.DB, identity models.Identity, projectIDs []string, capability Capability) (allowed []string, denied []string, err error) {
	if !RoleAllows(identity.Role, capability) {
		return nil, append(denied, projectIDs...), nil
	}

	companyByID := make(map[string]int, len(projectIDs))
	rows, err := db.Query(`SELECT id, company_id FROM projects WHERE id = ANY($1)`, pq.Array(projectIDs))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var companyID int
		if err := rows.Scan(&id, &companyID); err != nil {
			return nil, nil, err
		}
		companyByID[id] = companyID
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, id := range projectIDs {
		companyID, ok := companyByID[id]
		if !ok {
			denied = append(denied, id)
			continue
		}
		if identity.IsSuperadmin() || identity.CompanyID == companyID {
			allowed = append(allowed, id)
		} else {
			denied = append(denied, id)
		}
	}
	return allowed, denied, nil
}
