package services

import (
	"database/sql"
	"errors"
	"os"
	"strconv"
	"time"

	"backend/models"
)

// DefaultLockTTL applies when a client does not ask for an explicit TTL.
func DefaultLockTTL() time.Duration {
	if v := os.Getenv("LOCK_TTL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return 15 * time.Minute
}

// MaxLockTTL caps client-requested TTLs.
const MaxLockTTL = 2 * time.Hour

// AcquireLock takes or renews the exclusive advisory lock on a resource key.
// An expired lock counts as absent. A non-expired lock held by someone else
// yields a LockConflictError carrying the holder, the context and the
// canonical state of the contested project.
func AcquireLock(db *sql.DB, identity models.Identity, resourceKey, projectID, context string, ttl time.Duration) (*models.ResourceLock, error) {
	if resourceKey == "" {
		return nil, &ValidationError{Message: "resource_key is required"}
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL()
	}
	if ttl > MaxLockTTL {
		ttl = MaxLockTTL
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if projectID != "" {
		project, err := fetchProjectTx(tx, projectID, false)
		if err != nil {
			return nil, err
		}
		if err := Authorize(identity, CapabilityWrite, project.CompanyID); err != nil {
			return nil, err
		}
	}

	existing, err := lockRowTx(tx, resourceKey, true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing != nil && !existing.Expired(now) && existing.HolderID != identity.UserID {
		conflict := &LockConflictError{
			ResourceKey: resourceKey,
			Holder:      existing.HolderEmail,
			Context:     existing.Context,
			ProjectID:   existing.ProjectID,
		}
		if existing.ProjectID != "" {
			if project, err := fetchProjectTx(tx, existing.ProjectID, false); err == nil {
				conflict.Project = project
			}
		}
		return nil, conflict
	}

	lock := &models.ResourceLock{
		ResourceKey: resourceKey,
		HolderID:    identity.UserID,
		HolderEmail: identity.Email,
		ProjectID:   projectID,
		Context:     context,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(ttl),
	}
	if existing != nil && !existing.Expired(now) {
		// Re-entrant renewal keeps the original acquire time.
		lock.AcquiredAt = existing.AcquiredAt
	}

	// The upsert is itself the compare-and-swap. Two transactions racing on an
	// unheld key both read "no lock" above, because FOR UPDATE has no row to
	// block on yet; the loser's ON CONFLICT branch then fires against the
	// winner's committed row, so the DO UPDATE must refuse to overwrite a live
	// lock held by someone else.
	res, err := tx.Exec(`
		INSERT INTO resource_locks (resource_key, holder_id, holder_email, project_id, lock_context, acquired_at, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (resource_key) DO UPDATE SET
			holder_id = EXCLUDED.holder_id,
			holder_email = EXCLUDED.holder_email,
			project_id = EXCLUDED.project_id,
			lock_context = EXCLUDED.lock_context,
			acquired_at = $8,
			expires_at = EXCLUDED.expires_at
		WHERE resource_locks.holder_id = EXCLUDED.holder_id
		   OR resource_locks.expires_at <= NOW()`,
		lock.ResourceKey, lock.HolderID, lock.HolderEmail, lock.ProjectID,
		lock.Context, now, lock.ExpiresAt, lock.AcquiredAt,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race: another holder committed first. Re-read their row for
		// the conflict payload.
		winner, err := lockRowTx(tx, resourceKey, false)
		if err != nil {
			return nil, err
		}
		conflict := &LockConflictError{ResourceKey: resourceKey}
		if winner != nil {
			conflict.Holder = winner.HolderEmail
			conflict.Context = winner.Context
			conflict.ProjectID = winner.ProjectID
			if winner.ProjectID != "" {
				if project, err := fetchProjectTx(tx, winner.ProjectID, false); err == nil {
					conflict.Project = project
				}
			}
		}
		return nil, conflict
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lock, nil
}

// ReleaseLock drops the lock if identity holds it. Releasing a lock that is
// absent or held by someone else is a no-op, never an error: release must not
// unlock another holder's session.
func ReleaseLock(db *sql.DB, identity models.Identity, resourceKey string) error {
	if resourceKey == "" {
		return &ValidationError{Message: "resource_key is required"}
	}
	_, err := db.Exec(`DELETE FROM resource_locks WHERE resource_key = $1 AND holder_id = $2`,
		resourceKey, identity.UserID)
	return err
}

// ForceUnlock unconditionally clears a lock on behalf of an admin of the
// lock's project's company. The audit entry is written inside the same
// transaction and is never skipped, including on an idempotent double-unlock
// of an already absent lock.
func ForceUnlock(db *sql.DB, identity models.Identity, resourceKey string) error {
	if resourceKey == "" {
		return &ValidationError{Message: "resource_key is required"}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := lockRowTx(tx, resourceKey, true)
	if err != nil {
		return err
	}

	// Resolve the owning company through the lock's project with an explicit
	// fetch inside the transaction. A lock that is already gone is scoped to
	// the actor's own company.
	companyID := identity.CompanyID
	if existing != nil && existing.ProjectID != "" {
		project, err := fetchProjectTx(tx, existing.ProjectID, false)
		if err != nil && !errors.Is(err, ErrProjectNotFound) {
			return err
		}
		if project != nil {
			companyID = project.CompanyID
		}
	}
	if err := Authorize(identity, CapabilityAdmin, companyID); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM resource_locks WHERE resource_key = $1`, resourceKey); err != nil {
		return err
	}

	metadata := models.JSONMap{"resource_key": resourceKey}
	if existing != nil {
		metadata["previous_holder"] = existing.HolderEmail
		if existing.ProjectID != "" {
			metadata["project_id"] = existing.ProjectID
		}
	}
	if err := AppendAuditTx(tx, "lock.force_unlock", "lock", resourceKey, identity, metadata); err != nil {
		return err
	}

	return tx.Commit()
}

// LockStatus returns the non-expired lock on a resource key, or nil.
func LockStatus(db *sql.DB, resourceKey string) (*models.ResourceLock, error) {
	lock, err := lockRow(db, resourceKey)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return lock, nil
}

// SweepExpiredLocks deletes expired lock rows. Expired locks are already
// treated as absent everywhere; this is housekeeping for the cron job.
func SweepExpiredLocks(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM resource_locks WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLock(row rowScanner) (*models.ResourceLock, error) {
	var lock models.ResourceLock
	var projectID sql.NullString
	var lockContext sql.NullString
	err := row.Scan(&lock.ResourceKey, &lock.HolderID, &lock.HolderEmail,
		&projectID, &lockContext, &lock.AcquiredAt, &lock.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lock.ProjectID = projectID.String
	lock.Context = lockContext.String
	return &lock, nil
}

const lockColumns = `resource_key, holder_id, holder_email, project_id, lock_context, acquired_at, expires_at`

func lockRow(db *sql.DB, resourceKey string) (*models.ResourceLock, error) {
	return scanLock(db.QueryRow(`SELECT `+lockColumns+` FROM resource_locks WHERE resource_key = $1`, resourceKey))
}

func lockRowTx(tx *sql.Tx, resourceKey string, forUpdate bool) (*models.ResourceLock, error) {
	query := `SELECT ` + lockColumns + ` FROM resource_locks WHERE resource_key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanLock(tx.QueryRow(query, resourceKey))
}

// activeProjectLockTx returns a non-expired lock on the project held by
// anyone other than holderID, if one exists. Project writes conflict with any
// live lock on the project, whatever its granularity, so a whole-project save
// cannot race an open item-detail editing session.
func activeProjectLockTx(tx *sql.Tx, projectID string, holderID int) (*models.ResourceLock, error) {
	return scanLock(tx.QueryRow(`
		SELECT `+lockColumns+`
		FROM resource_locks
		WHERE project_id = $1 AND holder_id <> $2 AND expires_at > NOW()
		ORDER BY acquired_at
		LIMIT 1`, projectID, holderID))
}
