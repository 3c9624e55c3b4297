package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"backend/models"
)

var accessCols = []string{"id", "company_id", "project_id", "supplier_name", "supplier_email",
	"requested_items", "submission_data", "status", "round", "submitted_at", "created_at", "updated_at"}

func accessRow(token, status string, submissionData string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(accessCols).
		AddRow(token, 3, "p-1", "Stahlwerk GmbH", "quotes@stahlwerk.test",
			[]byte(`[]`), []byte(submissionData), status, 1, nil, now.Add(-time.Hour), now)
}

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		action string
		status string
		want   bool
	}{
		{ActionSaveDraft, models.AccessStatusSent, true},
		{ActionSaveDraft, models.AccessStatusViewed, true},
		{ActionSaveDraft, models.AccessStatusSubmitted, false},
		{ActionSaveDraft, models.AccessStatusApproved, false},
		{ActionSubmit, models.AccessStatusSent, true},
		{ActionSubmit, models.AccessStatusViewed, true},
		{ActionSubmit, models.AccessStatusSubmitted, false},
		{ActionSubmit, models.AccessStatusApproved, false},
		{ActionApprove, models.AccessStatusSubmitted, true},
		{ActionApprove, models.AccessStatusSent, false},
		{ActionApprove, models.AccessStatusViewed, false},
		{ActionApprove, models.AccessStatusApproved, false},
		{"reopen", models.AccessStatusApproved, false},
	}
	for _, tc := range cases {
		if got := TransitionAllowed(tc.action, tc.status); got != tc.want {
			t.Errorf("TransitionAllowed(%q, %q) = %v, want %v", tc.action, tc.status, got, tc.want)
		}
	}
}

func TestSaveDraftFirstTouchMarksViewed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM supplier_access WHERE id").
		WithArgs("tok-1").
		WillReturnRows(accessRow("tok-1", models.AccessStatusSent, `{}`))
	mock.ExpectExec("UPDATE supplier_access SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	access, err := SaveDraft(db, "tok-1", models.SupplierSubmissionRequest{
		Items: []interface{}{map[string]interface{}{"id": "i-1"}},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if access.Status != models.AccessStatusViewed {
		t.Fatalf("first draft should move sent to viewed, got %q", access.Status)
	}
	if isDraft, _ := access.SubmissionData["is_draft"].(bool); !isDraft {
		t.Fatalf("draft flag not set: %v", access.SubmissionData)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSubmitQuoteOnClosedToken(t *testing.T) {
	for _, status := range []string{models.AccessStatusSubmitted, models.AccessStatusApproved} {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM supplier_access WHERE id").
			WithArgs("tok-1").
			WillReturnRows(accessRow("tok-1", status, `{}`))
		mock.ExpectRollback()

		_, err = SubmitQuote(db, "tok-1", models.SupplierSubmissionRequest{
			Items: []interface{}{map[string]interface{}{"id": "i-1", "price": 12.5}},
		})
		if !errors.Is(err, ErrWorkflowClosed) {
			t.Fatalf("submit on %s token should be closed, got %v", status, err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations for %s: %v", status, err)
		}
		db.Close()
	}
}

func TestSubmitQuoteStampsSubmission(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM supplier_access WHERE id").
		WithArgs("tok-1").
		WillReturnRows(accessRow("tok-1", models.AccessStatusViewed, `{"is_draft":true}`))
	mock.ExpectExec("UPDATE supplier_access SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	access, err := SubmitQuote(db, "tok-1", models.SupplierSubmissionRequest{
		Currency: "EUR",
		Items:    []interface{}{map[string]interface{}{"id": "i-1", "price": 12.5}},
	})
	if err != nil {
		t.Fatalf("SubmitQuote: %v", err)
	}
	if access.Status != models.AccessStatusSubmitted {
		t.Fatalf("unexpected status %q", access.Status)
	}
	if access.SubmittedAt == nil {
		t.Fatal("submitted_at not stamped")
	}
	if isDraft, _ := access.SubmissionData["is_draft"].(bool); isDraft {
		t.Fatal("final submission must clear the draft flag")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateSubmission(t *testing.T) {
	valid := models.SupplierSubmissionRequest{
		Items: []interface{}{map[string]interface{}{"id": "i-1", "price": 12.5}},
	}
	if err := validateSubmission(valid); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}

	var validation *ValidationError
	if err := validateSubmission(models.SupplierSubmissionRequest{}); !errors.As(err, &validation) {
		t.Fatalf("empty submission should fail, got %v", err)
	}
	noID := models.SupplierSubmissionRequest{
		Items: []interface{}{map[string]interface{}{"price": 12.5}},
	}
	if err := validateSubmission(noID); !errors.As(err, &validation) {
		t.Fatalf("item without id should fail, got %v", err)
	}
	noPrice := models.SupplierSubmissionRequest{
		Items: []interface{}{map[string]interface{}{"id": "i-1"}},
	}
	if err := validateSubmission(noPrice); !errors.As(err, &validation) {
		t.Fatalf("item without price should fail, got %v", err)
	}
}

func TestApproveSubmissionPropagatesQuotes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	stamp := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	submission := `{"currency":"EUR","items":[{"id":"i-1","price":12.5,"moq":100,"lead_time":"6 weeks"}]}`

	mock.ExpectBegin()
	mock.ExpectQuery("FROM supplier_access WHERE id").
		WithArgs("tok-1").
		WillReturnRows(accessRow("tok-1", models.AccessStatusSubmitted, submission))
	mock.ExpectQuery("FROM projects WHERE id").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow("p-1", 3, "Line 4 RFQ", []byte(`{"id":"p-1","items":[{"id":"i-1","description":"bracket"},{"id":"i-2"}]}`), stamp.Add(-time.Hour), stamp))
	mock.ExpectQuery("FROM resource_locks WHERE project_id").
		WithArgs("p-1", 1).
		WillReturnRows(sqlmock.NewRows(lockCols))
	mock.ExpectExec("UPDATE projects SET name").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE supplier_access SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO quotes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("supplier_access.approve", "supplier_access", "tok-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	admin := models.Identity{UserID: 1, Email: "a@acme.test", Role: models.RoleAdmin, CompanyID: 3}
	access, err := ApproveSubmission(db, admin, "tok-1")
	if err != nil {
		t.Fatalf("ApproveSubmission: %v", err)
	}
	if access.Status != models.AccessStatusApproved {
		t.Fatalf("unexpected status %q", access.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveSubmissionTwiceIsClosed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM supplier_access WHERE id").
		WithArgs("tok-1").
		WillReturnRows(accessRow("tok-1", models.AccessStatusApproved, `{}`))
	mock.ExpectRollback()

	admin := models.Identity{UserID: 1, Email: "a@acme.test", Role: models.RoleAdmin, CompanyID: 3}
	if _, err := ApproveSubmission(db, admin, "tok-1"); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("re-approval should be closed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPropagateQuotedItems(t *testing.T) {
	project := &models.Project{
		ID: "p-1",
		Data: models.JSONMap{
			"items": []interface{}{
				map[string]interface{}{"id": "i-1", "description": "bracket"},
				map[string]interface{}{"id": "i-2", "description": "bolt"},
			},
		},
	}
	access := &models.SupplierAccess{
		SupplierName: "Stahlwerk GmbH",
		SubmissionData: models.JSONMap{
			"currency": "EUR",
			"items": []interface{}{
				map[string]interface{}{"id": "i-1", "price": 12.5, "moq": 100.0, "lead_time": "6 weeks"},
			},
		},
	}

	propagateQuotedItems(project, access)

	items := project.Data.Items()
	quoted := items[0].(map[string]interface{})
	if quoted["price_1"] != 12.5 || quoted["moq_1"] != 100.0 || quoted["lead_time_1"] != "6 weeks" {
		t.Fatalf("quoted fields not propagated: %v", quoted)
	}
	if quoted["supplier"] != "Stahlwerk GmbH" || quoted["status"] != "Quoted" || quoted["currency"] != "EUR" {
		t.Fatalf("attribution fields not set: %v", quoted)
	}
	if quoted["description"] != "bracket" {
		t.Fatalf("unrelated fields must be preserved: %v", quoted)
	}

	untouched := items[1].(map[string]interface{})
	if _, present := untouched["price_1"]; present {
		t.Fatalf("unquoted item must stay untouched: %v", untouched)
	}
}

func TestRequestReopenOnApprovedToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM supplier_access WHERE id").
		WithArgs("tok-1").
		WillReturnRows(accessRow("tok-1", models.AccessStatusApproved, `{}`))
	mock.ExpectExec("UPDATE supplier_access SET submission_data").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	access, err := RequestReopen(db, "tok-1", "prices outdated")
	if err != nil {
		t.Fatalf("RequestReopen: %v", err)
	}
	if requested, _ := access.SubmissionData["reopen_requested"].(bool); !requested {
		t.Fatalf("reopen marker not set: %v", access.SubmissionData)
	}
	if access.SubmissionData["reopen_reason"] != "prices outdated" {
		t.Fatalf("reason not recorded: %v", access.SubmissionData)
	}
	if access.Status != models.AccessStatusApproved {
		t.Fatalf("reopen must not change the primary status, got %q", access.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGenerateSupplierAccessArchivesPreviousRound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	stamp := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM projects WHERE id").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow("p-1", 3, "Line 4 RFQ", []byte(`{"id":"p-1"}`), stamp.Add(-time.Hour), stamp))
	mock.ExpectQuery("FROM supplier_access").
		WithArgs("p-1", "Stahlwerk GmbH").
		WillReturnRows(accessRow("tok-old", models.AccessStatusApproved, `{"items":[]}`))
	mock.ExpectExec("INSERT INTO supplier_access_rounds").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM supplier_access WHERE id").
		WithArgs("tok-old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO supplier_access ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("supplier_access.generate", "supplier_access",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	admin := models.Identity{UserID: 1, Email: "a@acme.test", Role: models.RoleAdmin, CompanyID: 3}
	access, err := GenerateSupplierAccess(db, admin, models.SupplierAccessGenerateRequest{
		ProjectID:    "p-1",
		SupplierName: "Stahlwerk GmbH",
	})
	if err != nil {
		t.Fatalf("GenerateSupplierAccess: %v", err)
	}
	if access.Round != 2 {
		t.Fatalf("superseding token should start round 2, got %d", access.Round)
	}
	if access.Status != models.AccessStatusSent {
		t.Fatalf("fresh token should start in sent, got %q", access.Status)
	}
	if access.ID == "tok-old" || access.ID == "" {
		t.Fatalf("a new opaque token must be issued, got %q", access.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
