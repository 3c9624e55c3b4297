package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"backend/models"
)

var lockCols = []string{"resource_key", "holder_id", "holder_email", "project_id", "lock_context", "acquired_at", "expires_at"}

func TestAcquireLockFreshKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:item:i-9").
		WillReturnRows(sqlmock.NewRows(lockCols))
	mock.ExpectExec("INSERT INTO resource_locks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	lock, err := AcquireLock(db, editor, "project:p-1:item:i-9", "", "item-detail", 10*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if lock.HolderID != 7 || lock.HolderEmail != "e@acme.test" {
		t.Fatalf("lock not attributed to the caller: %+v", lock)
	}
	if !lock.ExpiresAt.After(lock.AcquiredAt) {
		t.Fatalf("lock must expire after acquisition: %+v", lock)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcquireLockHeldByOther(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols).
			AddRow("project:p-1:edit", 2, "other@acme.test", "p-1", "project-data", now.Add(-time.Minute), now.Add(10*time.Minute)))
	mock.ExpectQuery("FROM projects WHERE id").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "data", "created_at", "updated_at"}).
			AddRow("p-1", 3, "Line 4 RFQ", []byte(`{"id":"p-1"}`), now, now))
	mock.ExpectRollback()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	_, err = AcquireLock(db, editor, "project:p-1:edit", "", "project-data", 10*time.Minute)
	var conflict *LockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected LockConflictError, got %v", err)
	}
	if conflict.Holder != "other@acme.test" {
		t.Fatalf("conflict must name the holder, got %q", conflict.Holder)
	}
	if conflict.Project == nil || conflict.Project.ID != "p-1" {
		t.Fatalf("conflict should carry the canonical project state: %+v", conflict.Project)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcquireLockLostUpsertRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// The key looks unheld at read time, but a concurrent transaction commits
	// its own lock before our upsert lands: the guarded DO UPDATE touches no
	// row and the caller gets the winner's lock back as a conflict.
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols))
	mock.ExpectExec("INSERT INTO resource_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols).
			AddRow("project:p-1:edit", 2, "other@acme.test", "p-1", "project-data", now, now.Add(10*time.Minute)))
	mock.ExpectQuery("FROM projects WHERE id").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "data", "created_at", "updated_at"}).
			AddRow("p-1", 3, "Line 4 RFQ", []byte(`{"id":"p-1"}`), now, now))
	mock.ExpectRollback()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	_, err = AcquireLock(db, editor, "project:p-1:edit", "", "project-data", 10*time.Minute)
	var conflict *LockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("losing the upsert race must surface a LockConflictError, got %v", err)
	}
	if conflict.Holder != "other@acme.test" {
		t.Fatalf("conflict must name the winning holder, got %q", conflict.Holder)
	}
	if conflict.Project == nil || conflict.Project.ID != "p-1" {
		t.Fatalf("conflict should carry the canonical project state: %+v", conflict.Project)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcquireLockExpiredCountsAsAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols).
			AddRow("project:p-1:edit", 2, "other@acme.test", "p-1", "project-data", now.Add(-time.Hour), now.Add(-time.Minute)))
	mock.ExpectExec("INSERT INTO resource_locks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	lock, err := AcquireLock(db, editor, "project:p-1:edit", "", "project-data", 10*time.Minute)
	if err != nil {
		t.Fatalf("expired lock should not block acquisition: %v", err)
	}
	if lock.HolderID != 7 {
		t.Fatalf("lock should transfer to the caller: %+v", lock)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcquireLockRenewalKeepsAcquiredAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	originalAcquire := now.Add(-5 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols).
			AddRow("project:p-1:edit", 7, "e@acme.test", "p-1", "project-data", originalAcquire, now.Add(5*time.Minute)))
	mock.ExpectExec("INSERT INTO resource_locks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	lock, err := AcquireLock(db, editor, "project:p-1:edit", "", "project-data", 10*time.Minute)
	if err != nil {
		t.Fatalf("re-entrant renewal must succeed: %v", err)
	}
	if !lock.AcquiredAt.Equal(originalAcquire) {
		t.Fatalf("renewal must keep the original acquire time, got %v", lock.AcquiredAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseLockOnlyDeletesOwnRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit", 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	editor := models.Identity{UserID: 7, Role: models.RoleEditor, CompanyID: 3}
	// Someone else holds the lock: the scoped delete touches nothing and
	// release still reports success.
	if err := ReleaseLock(db, editor, "project:p-1:edit"); err != nil {
		t.Fatalf("release of a foreign lock must be a no-op, not an error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForceUnlockAuditsEvenWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols))
	mock.ExpectExec("DELETE FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("lock.force_unlock", "lock", "project:p-1:edit",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	admin := models.Identity{UserID: 1, Email: "a@acme.test", Role: models.RoleAdmin, CompanyID: 3}
	if err := ForceUnlock(db, admin, "project:p-1:edit"); err != nil {
		t.Fatalf("double force-unlock must stay idempotent: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForceUnlockRequiresAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols))
	mock.ExpectRollback()

	editor := models.Identity{UserID: 7, Email: "e@acme.test", Role: models.RoleEditor, CompanyID: 3}
	err = ForceUnlock(db, editor, "project:p-1:edit")
	var forbidden *TenantForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("editor force-unlock should be forbidden, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockStatusHidesExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM resource_locks WHERE resource_key").
		WithArgs("project:p-1:edit").
		WillReturnRows(sqlmock.NewRows(lockCols).
			AddRow("project:p-1:edit", 2, "other@acme.test", "p-1", "project-data", now.Add(-time.Hour), now.Add(-time.Second)))

	lock, err := LockStatus(db, "project:p-1:edit")
	if err != nil {
		t.Fatalf("LockStatus: %v", err)
	}
	if lock != nil {
		t.Fatalf("expired lock must read as absent, got %+v", lock)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResourceLockExpired(t *testing.T) {
	now := time.Now().UTC()
	live := models.ResourceLock{ExpiresAt: now.Add(time.Minute)}
	if live.Expired(now) {
		t.Fatal("future expiry reported as expired")
	}
	boundary := models.ResourceLock{ExpiresAt: now}
	if !boundary.Expired(now) {
		t.Fatal("a lock expiring exactly now must count as expired")
	}
}
