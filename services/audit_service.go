package services

import (
	"database/sql"
	"encoding/json"
	"time"

	"backend/models"
)

// AppendAuditTx writes one audit entry inside the caller's transaction so a
// failed privileged action rolls its audit record back with it. There is no
// update or delete path for audit rows.
func AppendAuditTx(tx *sql.Tx, action, entityType, entityID string, actor models.Identity, metadata models.JSONMap) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	if metadata == nil {
		meta = []byte("{}")
	}

	_, err = tx.Exec(`
		INSERT INTO audit_logs (action, entity_type, entity_id, actor_id, actor_email, company_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		action, entityType, entityID, actor.UserID, actor.Email, actor.CompanyID, meta, time.Now().UTC(),
	)
	return err
}
