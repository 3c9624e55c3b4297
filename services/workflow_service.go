package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"backend/models"
	"backend/repository"
)

// Workflow actions on a supplier access token.
const (
	ActionSaveDraft = "save_draft"
	ActionSubmit    = "submit"
	ActionApprove   = "approve"
)

// workflowTransitions lists the allowed source states per action. Anything
// outside the table is a closed quote: a client error, never an unchecked
// status assignment or a server fault.
var workflowTransitions = map[string]map[string]bool{
	ActionSaveDraft: {
		models.AccessStatusSent:   true,
		models.AccessStatusViewed: true,
	},
	ActionSubmit: {
		models.AccessStatusSent:   true,
		models.AccessStatusViewed: true,
	},
	ActionApprove: {
		models.AccessStatusSubmitted: true,
	},
}

// TransitionAllowed reports whether action may run from the given state.
func TransitionAllowed(action, status string) bool {
	return workflowTransitions[action][status]
}

// FetchSupplierAccess loads an access row by its opaque token.
func FetchSupplierAccess(db *sql.DB, token string) (*models.SupplierAccess, error) {
	return scanSupplierAccess(db.QueryRow(`SELECT `+accessColumns+` FROM supplier_access WHERE id = $1`, token))
}

// SaveDraft persists partial submission data for a supplier. The first touch
// of a fresh token moves it from sent to viewed; later drafts only update the
// submission data.
func SaveDraft(db *sql.DB, token string, req models.SupplierSubmissionRequest) (*models.SupplierAccess, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	access, err := fetchSupplierAccessForUpdateTx(tx, token)
	if err != nil {
		return nil, err
	}
	if !TransitionAllowed(ActionSaveDraft, access.Status) {
		return nil, ErrWorkflowClosed
	}

	mergeSubmission(access, req)
	access.SubmissionData["is_draft"] = true
	if access.Status == models.AccessStatusSent {
		access.Status = models.AccessStatusViewed
	}
	access.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(`UPDATE supplier_access SET status = $1, submission_data = $2, updated_at = $3 WHERE id = $4`,
		access.Status, access.SubmissionData, access.UpdatedAt, access.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return access, nil
}

// SubmitQuote finalizes a supplier submission. Allowed from sent or viewed;
// an already approved (or already submitted) token is rejected as closed.
func SubmitQuote(db *sql.DB, token string, req models.SupplierSubmissionRequest) (*models.SupplierAccess, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	access, err := fetchSupplierAccessForUpdateTx(tx, token)
	if err != nil {
		return nil, err
	}
	if !TransitionAllowed(ActionSubmit, access.Status) {
		return nil, ErrWorkflowClosed
	}
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mergeSubmission(access, req)
	access.SubmissionData["is_draft"] = false
	access.Status = models.AccessStatusSubmitted
	access.SubmittedAt = &now
	access.UpdatedAt = now

	if _, err := tx.Exec(`UPDATE supplier_access SET status = $1, submission_data = $2, submitted_at = $3, updated_at = $4 WHERE id = $5`,
		access.Status, access.SubmissionData, now, now, access.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return access, nil
}

// validateSubmission checks the required item fields of a final submission.
// Drafts are exempt: partial data is their point.
func validateSubmission(req models.SupplierSubmissionRequest) error {
	if len(req.Items) == 0 {
		return &ValidationError{Message: "submission must contain at least one item"}
	}
	for i, raw := range req.Items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			return &ValidationError{Message: fmt.Sprintf("item %d is not an object", i)}
		}
		if id, _ := item["id"].(string); id == "" {
			return &ValidationError{Message: fmt.Sprintf("item %d is missing its id", i)}
		}
		if price := fmt.Sprint(item["price"]); price == "" || price == "<nil>" {
			return &ValidationError{Message: fmt.Sprintf("item %d is missing a price", i)}
		}
	}
	return nil
}

// ApproveSubmission moves a submitted access to approved and propagates the
// quoted prices into the owning project's items. The propagation is the one
// place state crosses from SupplierAccess into Project, so it runs as an
// internal write through the same lock and version discipline as any other
// project mutation, in one transaction with the status change and the audit
// entry.
func ApproveSubmission(db *sql.DB, identity models.Identity, token string) (*models.SupplierAccess, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	access, err := fetchSupplierAccessForUpdateTx(tx, token)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, CapabilityWrite, access.CompanyID); err != nil {
		return nil, err
	}
	if !TransitionAllowed(ActionApprove, access.Status) {
		// Re-approval of an approved token is rejected, not reapplied.
		return nil, ErrWorkflowClosed
	}

	project, err := fetchProjectForUpdateTx(tx, access.ProjectID)
	if err != nil {
		return nil, err
	}
	if lock, err := activeProjectLockTx(tx, project.ID, identity.UserID); err != nil {
		return nil, err
	} else if lock != nil {
		return nil, &LockConflictError{
			ResourceKey: lock.ResourceKey,
			Holder:      lock.HolderEmail,
			Context:     lock.Context,
			ProjectID:   project.ID,
			Project:     project,
		}
	}

	propagateQuotedItems(project, access)
	project.UpdatedAt = NextVersionStamp(project.UpdatedAt)
	if _, err := tx.Exec(`UPDATE projects SET name = $1, data = $2, updated_at = $3 WHERE id = $4`,
		project.Name, project.Data, project.UpdatedAt, project.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	access.Status = models.AccessStatusApproved
	access.UpdatedAt = now
	if _, err := tx.Exec(`UPDATE supplier_access SET status = $1, updated_at = $2 WHERE id = $3`,
		access.Status, now, access.ID); err != nil {
		return nil, err
	}

	// File the approved submission as a quote record.
	currency, _ := access.SubmissionData["currency"].(string)
	quoteData, err := models.JSONMap{
		"round":      access.Round,
		"submission": map[string]interface{}(access.SubmissionData),
	}.Value()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`
		INSERT INTO quotes (company_id, project_id, supplier_name, source, currency, data, created_at, updated_at)
		VALUES ($1, $2, $3, 'supplier_portal', $4, $5, $6, $6)`,
		access.CompanyID, access.ProjectID, access.SupplierName, currency, quoteData, now); err != nil {
		return nil, err
	}

	if err := AppendAuditTx(tx, "supplier_access.approve", "supplier_access", access.ID, identity, models.JSONMap{
		"project_id": access.ProjectID,
		"supplier":   access.SupplierName,
		"round":      access.Round,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return access, nil
}

// propagateQuotedItems copies price, lead time and supplier fields from the
// submission onto the matching project items (matched by item id) and marks
// them Quoted.
func propagateQuotedItems(project *models.Project, access *models.SupplierAccess) {
	submitted, _ := access.SubmissionData["items"].([]interface{})
	if len(submitted) == 0 {
		return
	}
	byID := make(map[string]map[string]interface{}, len(submitted))
	for _, raw := range submitted {
		if item, ok := raw.(map[string]interface{}); ok {
			if id, _ := item["id"].(string); id != "" {
				byID[id] = item
			}
		}
	}

	if project.Data == nil {
		project.Data = models.JSONMap{}
	}
	items := project.Data.Items()
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := item["id"].(string)
		quoted, ok := byID[id]
		if !ok {
			continue
		}
		if price, present := quoted["price"]; present {
			item["price_1"] = price
		}
		if moq, present := quoted["moq"]; present {
			item["moq_1"] = moq
		}
		if leadTime, present := quoted["lead_time"]; present {
			item["lead_time_1"] = leadTime
		}
		if currency, _ := access.SubmissionData["currency"].(string); currency != "" {
			item["currency"] = currency
		}
		item["supplier"] = access.SupplierName
		item["status"] = "Quoted"
	}
	project.Data["items"] = items
}

// RequestReopen records a reopen request on an access token in any state,
// including already approved. It tolerates missing or partial submission
// data and never surfaces an internal fault: the worst case is a no-op that
// still reports success. The primary status is untouched; an admin decides
// the actual transition later.
func RequestReopen(db *sql.DB, token, reason string) (*models.SupplierAccess, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	access, err := fetchSupplierAccessForUpdateTx(tx, token)
	if err != nil {
		return nil, err
	}

	if access.SubmissionData == nil {
		access.SubmissionData = models.JSONMap{}
	}
	access.SubmissionData["reopen_requested"] = true
	access.SubmissionData["reopen_requested_at"] = time.Now().UTC().Format(time.RFC3339)
	if reason != "" {
		access.SubmissionData["reopen_reason"] = reason
	}
	access.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(`UPDATE supplier_access SET submission_data = $1, updated_at = $2 WHERE id = $3`,
		access.SubmissionData, access.UpdatedAt, access.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return access, nil
}

// GenerateSupplierAccess issues a fresh token for a project/supplier pair.
// An existing token for the pair is archived as an immutable historical
// round and superseded; the new token starts the next round in state sent.
func GenerateSupplierAccess(db *sql.DB, identity models.Identity, req models.SupplierAccessGenerateRequest) (*models.SupplierAccess, error) {
	if req.ProjectID == "" || req.SupplierName == "" {
		return nil, &ValidationError{Message: "project_id and supplier_name are required"}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	project, err := fetchProjectTx(tx, req.ProjectID, false)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, CapabilityWrite, project.CompanyID); err != nil {
		return nil, err
	}

	previous, err := scanSupplierAccess(tx.QueryRow(`
		SELECT `+accessColumns+` FROM supplier_access
		WHERE project_id = $1 AND supplier_name = $2
		FOR UPDATE`, req.ProjectID, req.SupplierName))
	if err != nil && !errors.Is(err, ErrAccessNotFound) {
		return nil, err
	}

	round := 1
	if previous != nil {
		round = previous.Round + 1
		if _, err := tx.Exec(`
			INSERT INTO supplier_access_rounds (access_id, company_id, project_id, supplier_name, round, status, requested_items, submission_data, submitted_at, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
			previous.ID, previous.CompanyID, previous.ProjectID, previous.SupplierName,
			previous.Round, previous.Status, previous.RequestedItems, previous.SubmissionData,
			previous.SubmittedAt); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM supplier_access WHERE id = $1`, previous.ID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	access := &models.SupplierAccess{
		ID:             repository.GenerateOpaqueToken(),
		CompanyID:      project.CompanyID,
		ProjectID:      project.ID,
		SupplierName:   req.SupplierName,
		SupplierEmail:  req.SupplierEmail,
		RequestedItems: models.JSONArray(req.RequestedItems),
		SubmissionData: models.JSONMap{},
		Status:         models.AccessStatusSent,
		Round:          round,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := tx.Exec(`
		INSERT INTO supplier_access (id, company_id, project_id, supplier_name, supplier_email, requested_items, submission_data, status, round, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		access.ID, access.CompanyID, access.ProjectID, access.SupplierName, access.SupplierEmail,
		access.RequestedItems, access.SubmissionData, access.Status, access.Round, now); err != nil {
		return nil, err
	}

	if err := AppendAuditTx(tx, "supplier_access.generate", "supplier_access", access.ID, identity, models.JSONMap{
		"project_id": access.ProjectID,
		"supplier":   access.SupplierName,
		"round":      access.Round,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return access, nil
}

func mergeSubmission(access *models.SupplierAccess, req models.SupplierSubmissionRequest) {
	if access.SubmissionData == nil {
		access.SubmissionData = models.JSONMap{}
	}
	if req.SupplierContactName != "" {
		access.SubmissionData["supplier_contact_name"] = req.SupplierContactName
	}
	if req.SupplierContactEmail != "" {
		access.SubmissionData["supplier_contact_email"] = req.SupplierContactEmail
	}
	if req.Currency != "" {
		access.SubmissionData["currency"] = req.Currency
	}
	if req.Notes != "" {
		access.SubmissionData["notes"] = req.Notes
	}
	if req.Items != nil {
		access.SubmissionData["items"] = req.Items
	}
}

const accessColumns = `id, company_id, project_id, supplier_name, supplier_email, requested_items, submission_data, status, round, submitted_at, created_at, updated_at`

func scanSupplierAccess(row rowScanner) (*models.SupplierAccess, error) {
	var access models.SupplierAccess
	var supplierEmail sql.NullString
	var submittedAt sql.NullTime
	err := row.Scan(&access.ID, &access.CompanyID, &access.ProjectID, &access.SupplierName,
		&supplierEmail, &access.RequestedItems, &access.SubmissionData, &access.Status,
		&access.Round, &submittedAt, &access.CreatedAt, &access.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccessNotFound
	}
	if err != nil {
		return nil, err
	}
	access.SupplierEmail = supplierEmail.String
	if submittedAt.Valid {
		access.SubmittedAt = &submittedAt.Time
	}
	return &access, nil
}

func fetchSupplierAccessForUpdateTx(tx *sql.Tx, token string) (*models.SupplierAccess, error) {
	return scanSupplierAccess(tx.QueryRow(`SELECT `+accessColumns+` FROM supplier_access WHERE id = $1 FOR UPDATE`, token))
}
