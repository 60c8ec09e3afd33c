package shopstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Batch represents one continuous dispensing of a single powder, tracked
// from start weight to end weight.
//
// EndedAt, EndWeightKg, UsedKg and DurationMin are nil while the batch is
// open and are set exactly once when the batch is closed.
type Batch struct {
	ID            int64
	PowderID      int64
	Role          string
	Operator      string
	Note          string
	StartedAt     time.Time
	EndedAt       *time.Time
	StartWeightKg float64
	EndWeightKg   *float64
	UsedKg        *float64
	DurationMin   *float64
}

// Open reports whether the batch has not been closed yet.
func (b *Batch) Open() bool {
	return b.EndedAt == nil
}

// NewBatchParams carries the caller-supplied fields for CreateBatch.
type NewBatchParams struct {
	PowderID      int64
	Role          string
	Operator      string
	Note          string
	StartWeightKg float64
	StartedAt     time.Time
}

const batchColumns = `id, powder_id, role, operator, note, started_at, ended_at,
       start_weight_kg, end_weight_kg, used_kg, duration_min`

// CreateBatch inserts an open batch and returns it with its assigned id.
func CreateBatch(ctx context.Context, q DBTX, params NewBatchParams) (*Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	role := params.Role
	if role == "" {
		role = "primary"
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO spray_batches
		 (powder_id, role, operator, note, started_at, start_weight_kg)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		params.PowderID, role, params.Operator, params.Note,
		fmtTime(params.StartedAt), params.StartWeightKg)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("batch insert id: %w", err)
	}

	return &Batch{
		ID:            id,
		PowderID:      params.PowderID,
		Role:          role,
		Operator:      params.Operator,
		Note:          params.Note,
		StartedAt:     params.StartedAt.UTC(),
		StartWeightKg: params.StartWeightKg,
	}, nil
}

// GetBatch retrieves a batch by id. Returns ErrNotFound if absent.
func GetBatch(ctx context.Context, q DBTX, batchID int64) (*Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM spray_batches WHERE id = ?`, batchID)

	b, err := scanBatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListOpenBatches lists batches with no end time, newest first.
func ListOpenBatches(ctx context.Context, q DBTX) ([]Batch, error) {
	return listBatches(ctx, q,
		`SELECT `+batchColumns+` FROM spray_batches
		 WHERE ended_at IS NULL
		 ORDER BY started_at DESC`)
}

// ListRecentBatches lists the most recently closed batches.
func ListRecentBatches(ctx context.Context, q DBTX, limit int) ([]Batch, error) {
	return listBatches(ctx, q,
		`SELECT `+batchColumns+` FROM spray_batches
		 WHERE ended_at IS NOT NULL
		 ORDER BY ended_at DESC
		 LIMIT ?`, limit)
}

// FinalizeBatch writes the close-time figures onto an open batch.
//
// The WHERE guard on ended_at makes concurrent closes race-safe inside a
// transaction: only one caller observes an affected row. Returns ErrNotFound
// when the batch does not exist or is already closed.
func FinalizeBatch(ctx context.Context, q DBTX, batchID int64, endedAt time.Time, endWeightKg, usedKg, durationMin float64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`UPDATE spray_batches
		 SET ended_at = ?, end_weight_kg = ?, used_kg = ?, duration_min = ?
		 WHERE id = ? AND ended_at IS NULL`,
		fmtTime(endedAt), endWeightKg, usedKg, durationMin, batchID)
	if err != nil {
		return fmt.Errorf("finalize batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("open batch %d: %w", batchID, ErrNotFound)
	}
	return nil
}

func listBatches(ctx context.Context, q DBTX, query string, args ...any) ([]Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBatch(scan func(dest ...any) error) (*Batch, error) {
	var b Batch
	var operator, note sql.NullString
	var startedAtRaw, endedAtRaw any
	var endWeight, usedKg, durationMin sql.NullFloat64

	err := scan(
		&b.ID, &b.PowderID, &b.Role, &operator, &note,
		&startedAtRaw, &endedAtRaw,
		&b.StartWeightKg, &endWeight, &usedKg, &durationMin)
	if err != nil {
		return nil, err
	}

	b.Operator = operator.String
	b.Note = note.String

	startedAt, err := parseDBTime(startedAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	b.StartedAt = startedAt

	endedAt, err := parseOptionalDBTime(endedAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	b.EndedAt = endedAt

	if endWeight.Valid {
		b.EndWeightKg = &endWeight.Float64
	}
	if usedKg.Valid {
		b.UsedKg = &usedKg.Float64
	}
	if durationMin.Valid {
		b.DurationMin = &durationMin.Float64
	}

	return &b, nil
}
