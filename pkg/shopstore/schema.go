package shopstore

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the shop schema in-place.
//
// The schema covers:
// - powder inventory rows with the last scale reading
// - job registry rows (identity and eligibility fields only)
// - spray batches and their per-job timers
// - the powder usage audit trail
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS powders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			powder_color TEXT NOT NULL,
			manufacturer TEXT,
			product_code TEXT,
			on_hand_kg REAL NOT NULL DEFAULT 0,
			last_weighed_kg REAL,
			last_weighed_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_powders_color ON powders(powder_color);`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company TEXT NOT NULL,
			color TEXT,
			description TEXT,
			priority TEXT,
			due_by TEXT,
			status TEXT NOT NULL DEFAULT 'Intake',
			department TEXT,
			on_screen INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);`,

		`CREATE TABLE IF NOT EXISTS spray_batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			powder_id INTEGER NOT NULL,
			role TEXT NOT NULL DEFAULT 'primary',
			operator TEXT,
			note TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			start_weight_kg REAL NOT NULL,
			end_weight_kg REAL,
			used_kg REAL,
			duration_min REAL,
			FOREIGN KEY(powder_id) REFERENCES powders(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spray_batches_powder ON spray_batches(powder_id);`,
		`CREATE INDEX IF NOT EXISTS idx_spray_batches_ended_at ON spray_batches(ended_at);`,

		`CREATE TABLE IF NOT EXISTS spray_batch_jobs (
			batch_id INTEGER NOT NULL,
			job_id INTEGER NOT NULL,
			time_min REAL,
			start_ts TEXT,
			end_ts TEXT,
			elapsed_seconds REAL NOT NULL DEFAULT 0,
			running_since TEXT,
			PRIMARY KEY(batch_id, job_id),
			FOREIGN KEY(batch_id) REFERENCES spray_batches(id) ON DELETE CASCADE,
			FOREIGN KEY(job_id) REFERENCES jobs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spray_batch_jobs_job ON spray_batch_jobs(job_id);`,

		`CREATE TABLE IF NOT EXISTS powder_usage (
			usage_id TEXT PRIMARY KEY,
			powder_id INTEGER NOT NULL,
			job_id INTEGER,
			used_kg REAL NOT NULL,
			note TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY(powder_id) REFERENCES powders(id),
			FOREIGN KEY(job_id) REFERENCES jobs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_powder_usage_powder ON powder_usage(powder_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
