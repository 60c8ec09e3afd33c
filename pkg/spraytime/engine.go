// Package spraytime implements the spray-batch time-tracking engine:
// per-job pause/resume work timers inside a powder batch, and the
// close-time reconciliation of those timers against measured powder
// consumption.
package spraytime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

// ErrValidation marks malformed or out-of-range input. Surfaced before any
// mutation.
var ErrValidation = errors.New("spraytime: validation")

// ErrConflict marks an operation against a batch in the wrong lifecycle
// state, such as closing an already-closed batch.
var ErrConflict = errors.New("spraytime: conflict")

// Engine executes every timer and batch transition as one short
// read-modify-write transaction. Callers inject now explicitly; the engine
// never reads the system clock.
type Engine struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{db: db, log: log}
}

// StartBatchParams carries the operator-supplied fields for StartBatch.
type StartBatchParams struct {
	PowderID      int64
	Role          string
	Operator      string
	Note          string
	StartWeightKg float64
}

// StartBatch opens a new batch for one continuous dispensing of a powder.
func (e *Engine) StartBatch(ctx context.Context, params StartBatchParams, now time.Time) (*shopstore.Batch, error) {
	if params.PowderID <= 0 {
		return nil, fmt.Errorf("powder id is required: %w", ErrValidation)
	}
	if params.StartWeightKg <= 0 {
		return nil, fmt.Errorf("start weight must be positive: %w", ErrValidation)
	}

	var batch *shopstore.Batch
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := shopstore.GetPowder(ctx, tx, params.PowderID); err != nil {
			return err
		}

		b, err := shopstore.CreateBatch(ctx, tx, shopstore.NewBatchParams{
			PowderID:      params.PowderID,
			Role:          params.Role,
			Operator:      params.Operator,
			Note:          params.Note,
			StartWeightKg: params.StartWeightKg,
			StartedAt:     now,
		})
		if err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("batch started",
		zap.Int64("batch_id", batch.ID),
		zap.Int64("powder_id", batch.PowderID),
		zap.Float64("start_weight_kg", batch.StartWeightKg))
	return batch, nil
}

// Attach adds jobs to an open batch, creating a timer row per job. Already
// attached jobs are skipped. Returns the number of rows created.
func (e *Engine) Attach(ctx context.Context, batchID int64, jobIDs []int64, _ time.Time) (int, error) {
	if len(jobIDs) == 0 {
		return 0, fmt.Errorf("at least one job id is required: %w", ErrValidation)
	}

	attached := 0
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.openBatch(ctx, tx, batchID); err != nil {
			return err
		}
		for _, jobID := range jobIDs {
			if _, err := shopstore.GetJob(ctx, tx, jobID); err != nil {
				return err
			}
			created, err := shopstore.AttachJob(ctx, tx, batchID, jobID)
			if err != nil {
				return err
			}
			if created {
				attached++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attached, nil
}

// Start transitions a job timer into running. Idempotent for running and
// stopped timers. The job is attached first if it is not already, so a
// sprayer can start timing directly from the hit list.
func (e *Engine) Start(ctx context.Context, batchID, jobID int64, now time.Time) error {
	return shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.openBatch(ctx, tx, batchID); err != nil {
			return err
		}
		if _, err := shopstore.GetJob(ctx, tx, jobID); err != nil {
			return err
		}
		if _, err := shopstore.AttachJob(ctx, tx, batchID, jobID); err != nil {
			return err
		}

		row, err := shopstore.GetBatchJob(ctx, tx, batchID, jobID)
		if err != nil {
			return err
		}
		_, err = startRow(ctx, tx, *row, now)
		return err
	})
}

// Pause suspends a running timer, accumulating the in-flight interval into
// elapsed_seconds. No-op unless the timer is running.
func (e *Engine) Pause(ctx context.Context, batchID, jobID int64, now time.Time) error {
	return shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.openBatch(ctx, tx, batchID); err != nil {
			return err
		}
		row, err := shopstore.GetBatchJob(ctx, tx, batchID, jobID)
		if err != nil {
			return err
		}
		_, _, err = pauseRow(ctx, tx, *row, now)
		return err
	})
}

// Stop finalizes a timer: any in-flight interval is captured as in Pause,
// then end_ts is set once. Stopping an already-stopped timer never moves
// end_ts and never double-counts.
func (e *Engine) Stop(ctx context.Context, batchID, jobID int64, now time.Time) error {
	return shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.openBatch(ctx, tx, batchID); err != nil {
			return err
		}
		row, err := shopstore.GetBatchJob(ctx, tx, batchID, jobID)
		if err != nil {
			return err
		}
		_, err = stopRow(ctx, tx, *row, now)
		return err
	})
}

// Remove deletes a job's timer row from an open batch. Permitted in any
// timer state; removal mid-run discards accumulated time.
func (e *Engine) Remove(ctx context.Context, batchID, jobID int64) error {
	return shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.openBatch(ctx, tx, batchID); err != nil {
			return err
		}
		deleted, err := shopstore.DeleteBatchJob(ctx, tx, batchID, jobID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("batch %d job %d: %w", batchID, jobID, shopstore.ErrNotFound)
		}
		return nil
	})
}

// StartAll starts every not-started or paused timer attached to an open
// batch, skipping stopped rows. Returns the number of timers transitioned.
func (e *Engine) StartAll(ctx context.Context, batchID int64, now time.Time) (int, error) {
	count := 0
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		rows, err := e.openBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			started, err := startRow(ctx, tx, row, now)
			if err != nil {
				return err
			}
			if started {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResumeAll is StartAll: resume is simply start called on paused timers.
func (e *Engine) ResumeAll(ctx context.Context, batchID int64, now time.Time) (int, error) {
	return e.StartAll(ctx, batchID, now)
}

// PauseAll pauses every running timer attached to an open batch. Returns
// the number of timers paused.
func (e *Engine) PauseAll(ctx context.Context, batchID int64, now time.Time) (int, error) {
	count := 0
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		rows, err := e.openBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			_, paused, err := pauseRow(ctx, tx, row, now)
			if err != nil {
				return err
			}
			if paused {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// StopAll stops every attached timer. Returns the number of timers newly
// finalized.
func (e *Engine) StopAll(ctx context.Context, batchID int64, now time.Time) (int, error) {
	count := 0
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		rows, err := e.openBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			stopped, err := stopRow(ctx, tx, row, now)
			if err != nil {
				return err
			}
			if stopped {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// openBatch loads a batch and rejects closed ones with ErrConflict.
func (e *Engine) openBatch(ctx context.Context, q shopstore.DBTX, batchID int64) (*shopstore.Batch, error) {
	batch, err := shopstore.GetBatch(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Open() {
		return nil, fmt.Errorf("batch %d is closed: %w", batchID, ErrConflict)
	}
	return batch, nil
}

func (e *Engine) openBatchJobs(ctx context.Context, q shopstore.DBTX, batchID int64) ([]shopstore.BatchJob, error) {
	if _, err := e.openBatch(ctx, q, batchID); err != nil {
		return nil, err
	}
	return shopstore.ListBatchJobs(ctx, q, batchID)
}

// startRow applies the start transition to one loaded row. Reports whether
// the row actually transitioned into running.
func startRow(ctx context.Context, q shopstore.DBTX, row shopstore.BatchJob, now time.Time) (bool, error) {
	switch StateOf(row) {
	case TimerRunning, TimerStopped:
		return false, nil
	}
	if err := shopstore.MarkTimerRunning(ctx, q, row.BatchID, row.JobID, now); err != nil {
		return false, err
	}
	return true, nil
}

// pauseRow accumulates the in-flight interval and suspends one loaded row.
// This is the only place elapsed time is ever accumulated. Returns the
// updated row and whether it was running.
func pauseRow(ctx context.Context, q shopstore.DBTX, row shopstore.BatchJob, now time.Time) (shopstore.BatchJob, bool, error) {
	if StateOf(row) != TimerRunning {
		return row, false, nil
	}

	elapsed := row.ElapsedSeconds + math.Max(0, now.Sub(*row.RunningSince).Seconds())
	elapsed = roundSeconds(elapsed)
	minutes := roundMinutes(elapsed / 60.0)

	if err := shopstore.PauseTimer(ctx, q, row.BatchID, row.JobID, elapsed, minutes); err != nil {
		return row, false, err
	}

	row.ElapsedSeconds = elapsed
	row.TimeMin = &minutes
	row.RunningSince = nil
	return row, true, nil
}

// stopRow pauses then finalizes one loaded row. Reports whether end_ts was
// newly set.
func stopRow(ctx context.Context, q shopstore.DBTX, row shopstore.BatchJob, now time.Time) (bool, error) {
	row, _, err := pauseRow(ctx, q, row, now)
	if err != nil {
		return false, err
	}
	if row.EndTS != nil {
		return false, nil
	}
	if err := shopstore.SetTimerEnd(ctx, q, row.BatchID, row.JobID, now); err != nil {
		return false, err
	}
	return true, nil
}
