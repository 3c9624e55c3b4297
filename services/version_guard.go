package services

import (
	"database/sql"
	"time"

	"backend/models"
)

// ProjectMutation is one project write that has already passed payload
// binding. BaseVersion is the stamp the caller last observed.
type ProjectMutation struct {
	ProjectID   string
	Name        string
	Items       []interface{}
	Meta        models.JSONMap
	BaseVersion string
}

// ApplyProjectMutations is the write pipeline for projects. For each mutation
// it runs, inside one shared transaction and in this fixed order: tenant
// scope, advisory-lock check, optimistic version check, persist, audit. The
// first failing check aborts and rolls back the whole batch, so a bulk
// request is all-or-nothing: a stale sub-item leaves every project in the
// batch untouched.
func ApplyProjectMutations(db *sql.DB, identity models.Identity, mutations []ProjectMutation, auditAction string) ([]models.Project, error) {
	if len(mutations) == 0 {
		return nil, &ValidationError{Message: "no projects in request"}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	updated := make([]models.Project, 0, len(mutations))
	for _, mutation := range mutations {
		project, err := applyProjectMutationTx(tx, identity, mutation, auditAction)
		if err != nil {
			return nil, err
		}
		updated = append(updated, *project)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func applyProjectMutationTx(tx *sql.Tx, identity models.Identity, mutation ProjectMutation, auditAction string) (*models.Project, error) {
	if mutation.ProjectID == "" {
		return nil, &ValidationError{Message: "project id is required"}
	}

	// Row lock first: the compare-and-set below must be race-free against
	// concurrent writers of the same project.
	project, err := fetchProjectForUpdateTx(tx, mutation.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := Authorize(identity, CapabilityWrite, project.CompanyID); err != nil {
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

	// base_version belongs to the version stage: a request against a locked
	// project reports the lock conflict even when the payload is incomplete.
	if mutation.BaseVersion == "" {
		return nil, &ValidationError{Message: "base_version is required"}
	}
	baseVersion, err := time.Parse(time.RFC3339Nano, mutation.BaseVersion)
	if err != nil {
		return nil, &ValidationError{Message: "base_version is not a valid timestamp"}
	}

	if !project.UpdatedAt.UTC().Equal(baseVersion.UTC()) {
		return nil, &VersionConflictError{
			ProjectID:     project.ID,
			Project:       project,
			ServerVersion: project.Version(),
		}
	}

	applyMutation(project, mutation)
	project.UpdatedAt = NextVersionStamp(project.UpdatedAt)

	if _, err := tx.Exec(`UPDATE projects SET name = $1, data = $2, updated_at = $3 WHERE id = $4`,
		project.Name, project.Data, project.UpdatedAt, project.ID); err != nil {
		return nil, err
	}

	if err := AppendAuditTx(tx, auditAction, "project", project.ID, identity, models.JSONMap{
		"base_version": mutation.BaseVersion,
		"new_version":  project.Version(),
	}); err != nil {
		return nil, err
	}

	return project, nil
}

func applyMutation(project *models.Project, mutation ProjectMutation) {
	if project.Data == nil {
		project.Data = models.JSONMap{}
	}
	if mutation.Name != "" {
		project.Name = mutation.Name
		project.Data["name"] = mutation.Name
	}
	if mutation.Items != nil {
		project.Data["items"] = mutation.Items
	}
	for key, value := range mutation.Meta {
		project.Data[key] = value
	}
	project.Data["id"] = project.ID
}

// NextVersionStamp returns a stamp strictly greater than the previous one.
// Concurrent commits within one clock tick still advance the version.
func NextVersionStamp(previous time.Time) time.Time {
	next := time.Now().UTC()
	if !next.After(previous) {
		next = previous.Add(time.Microsecond)
	}
	return next
}

const projectColumns = `id, company_id, name, data, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	err := row.Scan(&project.ID, &project.CompanyID, &project.Name, &project.Data,
		&project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func fetchProjectTx(tx *sql.Tx, projectID string, forUpdate bool) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanProject(tx.QueryRow(query, projectID))
}

func fetchProjectForUpdateTx(tx *sql.Tx, projectID string) (*models.Project, error) {
	return fetchProjectTx(tx, projectID, true)
}

// FetchProject loads a project outside any transaction, for read paths.
func FetchProject(db *sql.DB, projectID string) (*models.Project, error) {
	return scanProject(db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID))
}
