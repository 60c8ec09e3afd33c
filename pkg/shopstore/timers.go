package shopstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BatchJob is the per-job work timer within a batch.
//
// Field invariants:
// - StartTS is set on the first transition into running and never cleared.
// - RunningSince is non-nil exactly while the timer is actively counting.
// - EndTS is set once, by an explicit stop or by batch close.
// - ElapsedSeconds only grows; it is accumulated exclusively on pause.
type BatchJob struct {
	BatchID        int64
	JobID          int64
	TimeMin        *float64
	StartTS        *time.Time
	EndTS          *time.Time
	ElapsedSeconds float64
	RunningSince   *time.Time
}

const batchJobColumns = `batch_id, job_id, time_min, start_ts, end_ts, elapsed_seconds, running_since`

// AttachJob creates the timer row for (batch, job) if absent.
//
// Attaching an already-attached job is a no-op; the bool reports whether a
// row was created.
func AttachJob(ctx context.Context, q DBTX, batchID, jobID int64) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO spray_batch_jobs (batch_id, job_id)
		 VALUES (?, ?)
		 ON CONFLICT(batch_id, job_id) DO NOTHING`,
		batchID, jobID)
	if err != nil {
		return false, fmt.Errorf("attach job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetBatchJob retrieves one timer row. Returns ErrNotFound if absent.
func GetBatchJob(ctx context.Context, q DBTX, batchID, jobID int64) (*BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+batchJobColumns+` FROM spray_batch_jobs
		 WHERE batch_id = ? AND job_id = ?`, batchID, jobID)

	bj, err := scanBatchJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %d job %d: %w", batchID, jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job: %w", err)
	}
	return bj, nil
}

// ListBatchJobs lists every timer row attached to a batch.
func ListBatchJobs(ctx context.Context, q DBTX, batchID int64) ([]BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+batchJobColumns+` FROM spray_batch_jobs
		 WHERE batch_id = ?
		 ORDER BY job_id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BatchJob
	for rows.Next() {
		bj, err := scanBatchJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		out = append(out, *bj)
	}
	return out, rows.Err()
}

// DeleteBatchJob removes a timer row outright, discarding any accumulated
// time. The bool reports whether a row existed.
func DeleteBatchJob(ctx context.Context, q DBTX, batchID, jobID int64) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`DELETE FROM spray_batch_jobs WHERE batch_id = ? AND job_id = ?`,
		batchID, jobID)
	if err != nil {
		return false, fmt.Errorf("delete batch job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkTimerRunning transitions a timer into running state.
//
// start_ts is set only if still null (set-once), and running_since only if
// the timer is neither running nor stopped. Both guards live in SQL so a
// concurrent transition cannot overwrite an earlier one.
func MarkTimerRunning(ctx context.Context, q DBTX, batchID, jobID int64, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ts := fmtTime(now)
	if _, err := q.ExecContext(ctx,
		`UPDATE spray_batch_jobs SET start_ts = ?
		 WHERE batch_id = ? AND job_id = ? AND start_ts IS NULL`,
		ts, batchID, jobID); err != nil {
		return fmt.Errorf("set start_ts: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE spray_batch_jobs SET running_since = ?
		 WHERE batch_id = ? AND job_id = ? AND running_since IS NULL AND end_ts IS NULL`,
		ts, batchID, jobID); err != nil {
		return fmt.Errorf("set running_since: %w", err)
	}
	return nil
}

// PauseTimer clears running_since and persists the accumulated figures.
func PauseTimer(ctx context.Context, q DBTX, batchID, jobID int64, elapsedSeconds, timeMin float64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE spray_batch_jobs
		 SET running_since = NULL, elapsed_seconds = ?, time_min = ?
		 WHERE batch_id = ? AND job_id = ?`,
		elapsedSeconds, timeMin, batchID, jobID); err != nil {
		return fmt.Errorf("pause timer: %w", err)
	}
	return nil
}

// SetTimerEnd finalizes a timer. end_ts is set-once; a second stop never
// moves it.
func SetTimerEnd(ctx context.Context, q DBTX, batchID, jobID int64, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE spray_batch_jobs
		 SET end_ts = COALESCE(end_ts, ?)
		 WHERE batch_id = ? AND job_id = ?`,
		fmtTime(now), batchID, jobID); err != nil {
		return fmt.Errorf("set end_ts: %w", err)
	}
	return nil
}

// UpdateTimerTotals overwrites the persisted time figures for one timer.
// Used by batch close after reconciliation.
func UpdateTimerTotals(ctx context.Context, q DBTX, batchID, jobID int64, timeMin, elapsedSeconds float64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE spray_batch_jobs
		 SET time_min = ?, elapsed_seconds = ?
		 WHERE batch_id = ? AND job_id = ?`,
		timeMin, elapsedSeconds, batchID, jobID); err != nil {
		return fmt.Errorf("update timer totals: %w", err)
	}
	return nil
}

func scanBatchJob(scan func(dest ...any) error) (*BatchJob, error) {
	var bj BatchJob
	var timeMin sql.NullFloat64
	var startRaw, endRaw, runningRaw any

	err := scan(
		&bj.BatchID, &bj.JobID, &timeMin,
		&startRaw, &endRaw, &bj.ElapsedSeconds, &runningRaw)
	if err != nil {
		return nil, err
	}

	if timeMin.Valid {
		bj.TimeMin = &timeMin.Float64
	}

	startTS, err := parseOptionalDBTime(startRaw)
	if err != nil {
		return nil, fmt.Errorf("parse start_ts: %w", err)
	}
	bj.StartTS = startTS

	endTS, err := parseOptionalDBTime(endRaw)
	if err != nil {
		return nil, fmt.Errorf("parse end_ts: %w", err)
	}
	bj.EndTS = endTS

	runningSince, err := parseOptionalDBTime(runningRaw)
	if err != nil {
		return nil, fmt.Errorf("parse running_since: %w", err)
	}
	bj.RunningSince = runningSince

	return &bj, nil
}
