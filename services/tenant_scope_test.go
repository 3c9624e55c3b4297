package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"backend/models"
)

func TestRoleAllows(t *testing.T) {
	cases := []struct {
		role       string
		capability Capability
		want       bool
	}{
		{models.RoleSuperadmin, CapabilityRead, true},
		{models.RoleSuperadmin, CapabilityWrite, true},
		{models.RoleSuperadmin, CapabilityAdmin, true},
		{models.RoleAdmin, CapabilityRead, true},
		{models.RoleAdmin, CapabilityWrite, true},
		{models.RoleAdmin, CapabilityAdmin, true},
		{models.RoleEditor, CapabilityRead, true},
		{models.RoleEditor, CapabilityWrite, true},
		{models.RoleEditor, CapabilityAdmin, false},
		{models.RoleViewer, CapabilityRead, true},
		{models.RoleViewer, CapabilityWrite, false},
		{models.RoleViewer, CapabilityAdmin, false},
		{"", CapabilityRead, false},
		{"intern", CapabilityRead, false},
	}
	for _, tc := range cases {
		if got := RoleAllows(tc.role, tc.capability); got != tc.want {
			t.Errorf("RoleAllows(%q, %q) = %v, want %v", tc.role, tc.capability, got, tc.want)
		}
	}
}

func TestAuthorizeCompanyMatch(t *testing.T) {
	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}

	if err := Authorize(editor, CapabilityWrite, 3); err != nil {
		t.Fatalf("same-company write should pass: %v", err)
	}

	err := Authorize(editor, CapabilityWrite, 4)
	var forbidden *TenantForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("cross-company write should be forbidden, got %v", err)
	}

	if err := Authorize(editor, CapabilityAdmin, 3); err == nil {
		t.Fatal("editor must not hold admin capability, even in its own company")
	}
}

func TestAuthorizeSuperadminBypassesCompany(t *testing.T) {
	super := models.Identity{UserID: 1, Email: "root@ops.test", Role: models.RoleSuperadmin}
	for _, companyID := range []int{1, 2, 99} {
		if err := Authorize(super, CapabilityAdmin, companyID); err != nil {
			t.Fatalf("superadmin denied on company %d: %v", companyID, err)
		}
	}
}

func TestAuthorizeNoCompanyProfile(t *testing.T) {
	// A non-superadmin identity without a company matches nothing.
	orphan := models.Identity{UserID: 9, Role: models.RoleAdmin, CompanyID: 0}
	if err := Authorize(orphan, CapabilityRead, 1); err == nil {
		t.Fatal("companyless admin should be denied")
	}
}

func TestFilterProjectIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// p-own belongs to the caller, p-other to a different tenant, p-ghost
	// does not exist at all. Both of the latter end up denied, so a caller
	// cannot distinguish a foreign project from a missing one.
	mock.ExpectQuery("SELECT id, company_id FROM projects").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id"}).
			AddRow("p-own", 3).
			AddRow("p-other", 4))

	editor := models.Identity{UserID: 7, Role: models.RoleEditor, CompanyID: 3}
	allowed, denied, err := FilterProjectIDs(db, editor, []string{"p-own", "p-other", "p-ghost"}, CapabilityRead)
	if err != nil {
		t.Fatalf("FilterProjectIDs: %v", err)
	}
	if len(allowed) != 1 || allowed[0] != "p-own" {
		t.Fatalf("unexpected allowed set: %v", allowed)
	}
	if len(denied) != 2 || denied[0] != "p-other" || denied[1] != "p-ghost" {
		t.Fatalf("unexpected denied set: %v", denied)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFilterProjectIDsRoleDeniedSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	viewer := models.Identity{UserID: 2, Role: models.RoleViewer, CompanyID: 3}
	allowed, denied, err := FilterProjectIDs(db, viewer, []string{"p-1", "p-2"}, CapabilityWrite)
	if err != nil {
		t.Fatalf("FilterProjectIDs: %v", err)
	}
	if len(allowed) != 0 {
		t.Fatalf("viewer must not write anything, got %v", allowed)
	}
	if len(denied) != 2 {
		t.Fatalf("expected every id denied, got %v", denied)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
