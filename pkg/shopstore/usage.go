package shopstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one audit entry of powder consumption. Batch close records
// usage at batch granularity, so JobID is nil for engine-written rows.
type UsageRecord struct {
	UsageID   string
	PowderID  int64
	JobID     *int64
	UsedKg    float64
	Note      string
	CreatedAt time.Time
}

// AppendUsage inserts a usage record and returns its generated id.
func AppendUsage(ctx context.Context, q DBTX, powderID int64, jobID *int64, usedKg float64, note string, now time.Time) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	usageID := uuid.NewString()
	_, err := q.ExecContext(ctx,
		`INSERT INTO powder_usage (usage_id, powder_id, job_id, used_kg, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		usageID, powderID, jobID, usedKg, note, fmtTime(now))
	if err != nil {
		return "", fmt.Errorf("append usage: %w", err)
	}
	return usageID, nil
}

// ListUsageForPowder lists usage records for a powder, newest first.
func ListUsageForPowder(ctx context.Context, q DBTX, powderID int64) ([]UsageRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := q.QueryContext(ctx,
		`SELECT usage_id, powder_id, job_id, used_kg, note, created_at
		 FROM powder_usage
		 WHERE powder_id = ?
		 ORDER BY created_at DESC`, powderID)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UsageRecord
	for rows.Next() {
		var u UsageRecord
		var jobID sql.NullInt64
		var note sql.NullString
		var createdAtRaw any

		if err := rows.Scan(&u.UsageID, &u.PowderID, &jobID, &u.UsedKg, &note, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}

		if jobID.Valid {
			u.JobID = &jobID.Int64
		}
		u.Note = note.String

		createdAt, err := parseDBTime(createdAtRaw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		u.CreatedAt = createdAt

		out = append(out, u)
	}
	return out, rows.Err()
}
