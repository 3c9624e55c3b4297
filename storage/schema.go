package storage

import (
	"database/sql"
)

// schemaStatements bootstraps the tables on first run. Guarded by
// RUN_MIGRATIONS in main so production deploys can manage DDL themselves.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		suspended BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_company_profiles (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL UNIQUE REFERENCES users(id),
		company_id INTEGER REFERENCES companies(id),
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS session (
		session_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		host_name TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		name TEXT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS supplier_access (
		id TEXT PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		project_id TEXT NOT NULL REFERENCES projects(id),
		supplier_name TEXT NOT NULL,
		supplier_email TEXT,
		requested_items JSONB NOT NULL DEFAULT '[]',
		submission_data JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'sent',
		round INTEGER NOT NULL DEFAULT 1,
		submitted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (project_id, supplier_name)
	)`,
	`CREATE TABLE IF NOT EXISTS supplier_access_rounds (
		id SERIAL PRIMARY KEY,
		access_id TEXT NOT NULL,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		project_id TEXT NOT NULL REFERENCES projects(id),
		supplier_name TEXT NOT NULL,
		round INTEGER NOT NULL,
		status TEXT NOT NULL,
		requested_items JSONB NOT NULL DEFAULT '[]',
		submission_data JSONB NOT NULL DEFAULT '{}',
		submitted_at TIMESTAMPTZ,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS resource_locks (
		resource_key TEXT PRIMARY KEY,
		holder_id INTEGER NOT NULL REFERENCES users(id),
		holder_email TEXT NOT NULL,
		project_id TEXT REFERENCES projects(id),
		lock_context TEXT,
		acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resource_locks_project ON resource_locks (project_id, expires_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id SERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor_id INTEGER NOT NULL DEFAULT 0,
		actor_email TEXT NOT NULL DEFAULT '',
		company_id INTEGER NOT NULL DEFAULT 0,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_company ON audit_logs (company_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS quotes (
		id SERIAL PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		project_id TEXT NOT NULL REFERENCES projects(id),
		supplier_name TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'manual',
		currency TEXT NOT NULL DEFAULT '',
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS supplier_interaction_files (
		id SERIAL PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		access_id TEXT NOT NULL,
		round INTEGER NOT NULL DEFAULT 1,
		stored_path TEXT NOT NULL,
		original_name TEXT NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		uploaded_by TEXT NOT NULL DEFAULT 'supplier',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
