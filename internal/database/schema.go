package database

import (
	"context"
	"fmt"
)

// schema holds the DDL applied on startup. Statements are idempotent so a
// restart against an existing database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS task_queue (
		task_id      TEXT PRIMARY KEY,
		station_id   INTEGER NOT NULL,
		task_type    INTEGER NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		params       JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		assigned_at  TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_queue_status_created
		ON task_queue (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS task_records (
		id              BIGSERIAL PRIMARY KEY,
		task_id         TEXT NOT NULL,
		task_type       INTEGER NOT NULL,
		station_id      INTEGER NOT NULL,
		image_ref       TEXT,
		result          JSONB,
		status          TEXT NOT NULL DEFAULT 'normal',
		confidence      DOUBLE PRECISION,
		processing_time DOUBLE PRECISION,
		recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_records_recorded_at
		ON task_records (recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_task_records_station
		ON task_records (station_id, recorded_at DESC)`,

	`CREATE TABLE IF NOT EXISTS alert_log (
		id          BIGSERIAL PRIMARY KEY,
		record_id   BIGINT REFERENCES task_records(id) ON DELETE SET NULL,
		level       TEXT NOT NULL,
		alert_type  TEXT NOT NULL,
		message     TEXT NOT NULL,
		handled     BOOLEAN NOT NULL DEFAULT FALSE,
		raised_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_log_unhandled
		ON alert_log (raised_at DESC) WHERE NOT handled`,

	`CREATE TABLE IF NOT EXISTS cart_status (
		id              SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		online          BOOLEAN NOT NULL DEFAULT FALSE,
		current_station INTEGER,
		mode            TEXT NOT NULL DEFAULT 'idle',
		battery_level   INTEGER,
		last_activity   TEXT,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context) error {
	p := Pool()
	if p == nil {
		return fmt.Errorf("database not initialized")
	}
	for _, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}
	return nil
}
