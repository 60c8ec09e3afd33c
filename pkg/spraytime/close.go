package spraytime

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

// CloseParams carries the operator-supplied fields for Close.
type CloseParams struct {
	EndWeightKg float64

	// MarkSprayed jobs get status Sprayed; MarkFinished jobs additionally
	// get a completion timestamp and come off the active board.
	MarkSprayed  []int64
	MarkFinished []int64
}

// Close finalizes a batch: stops every attached timer, reconciles per-job
// minutes (backfilling an even share of batch duration for jobs with no
// derivable time), records powder usage, and overwrites the powder's
// on-hand quantity with the measured end weight.
//
// Validation failures happen before any write; everything else is applied
// in a single transaction, so a caller never observes timers stopped
// without the matching ledger update.
func (e *Engine) Close(ctx context.Context, batchID int64, params CloseParams, now time.Time) error {
	if params.EndWeightKg < 0 {
		return fmt.Errorf("end weight must be >= 0: %w", ErrValidation)
	}

	var usedKg, durationMin float64
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		batch, err := shopstore.GetBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if !batch.Open() {
			return fmt.Errorf("batch %d already closed: %w", batchID, ErrConflict)
		}

		usedKg = math.Max(0, batch.StartWeightKg-params.EndWeightKg)
		durationMin = math.Max(0, now.Sub(batch.StartedAt).Minutes())

		rows, err := shopstore.ListBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := stopRow(ctx, tx, row, now); err != nil {
				return err
			}
		}

		// Re-read after stopping so in-flight intervals are reflected.
		rows, err = shopstore.ListBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}

		readings := make(map[int64]Reading, len(rows))
		var missing []int64
		for _, row := range rows {
			r := deriveReading(row)
			if r.Missing() {
				missing = append(missing, row.JobID)
				continue
			}
			readings[row.JobID] = r
		}

		// Jobs with a real reading keep it; only the missing ones share the
		// batch duration evenly.
		if len(missing) > 0 {
			per := durationMin / float64(len(missing))
			for _, jobID := range missing {
				readings[jobID] = backfilled(per)
			}
		}

		for jobID, r := range readings {
			err := shopstore.UpdateTimerTotals(ctx, tx, batchID, jobID,
				roundMinutes(r.Minutes), roundSeconds(r.Seconds))
			if err != nil {
				return err
			}
		}

		if err := shopstore.FinalizeBatch(ctx, tx, batchID, now, params.EndWeightKg, usedKg, durationMin); err != nil {
			return err
		}

		if usedKg > 0 {
			note := fmt.Sprintf("batch #%d", batchID)
			if _, err := shopstore.AppendUsage(ctx, tx, batch.PowderID, nil, usedKg, note, now); err != nil {
				return err
			}
		}

		if err := shopstore.RecordScaleReading(ctx, tx, batch.PowderID, params.EndWeightKg, now); err != nil {
			return err
		}

		if err := shopstore.MarkJobsSprayed(ctx, tx, params.MarkSprayed); err != nil {
			return err
		}
		return shopstore.MarkJobsFinished(ctx, tx, params.MarkFinished, now)
	})
	if err != nil {
		return err
	}

	e.log.Info("batch closed",
		zap.Int64("batch_id", batchID),
		zap.Float64("end_weight_kg", params.EndWeightKg),
		zap.Float64("used_kg", usedKg),
		zap.Float64("duration_min", durationMin))
	return nil
}

// JobTimer is one attached job with its timer and the live-computed elapsed
// figures. For running timers the in-flight interval is included on read
// and is not persisted until pause or stop.
type JobTimer struct {
	Job            shopstore.Job
	Timer          shopstore.BatchJob
	State          TimerState
	ElapsedSeconds float64
	ElapsedMinutes float64
}

// BatchDetail is the full read model for one batch.
type BatchDetail struct {
	Batch      shopstore.Batch
	Powder     shopstore.Powder
	Jobs       []JobTimer
	Candidates []shopstore.Job
}

// Detail loads a batch with its powder, attached job timers, and the
// eligible jobs that could still be attached.
func (e *Engine) Detail(ctx context.Context, batchID int64, now time.Time) (*BatchDetail, error) {
	var detail BatchDetail
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		batch, err := shopstore.GetBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		detail.Batch = *batch

		powder, err := shopstore.GetPowder(ctx, tx, batch.PowderID)
		if err != nil {
			return err
		}
		detail.Powder = *powder

		rows, err := shopstore.ListBatchJobs(ctx, tx, batchID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			job, err := shopstore.GetJob(ctx, tx, row.JobID)
			if err != nil {
				return err
			}
			elapsed := liveElapsedSeconds(row, now)
			detail.Jobs = append(detail.Jobs, JobTimer{
				Job:            *job,
				Timer:          row,
				State:          StateOf(row),
				ElapsedSeconds: elapsed,
				ElapsedMinutes: roundMinutes(elapsed / 60.0),
			})
		}

		candidates, err := shopstore.ListAttachCandidates(ctx, tx, batchID)
		if err != nil {
			return err
		}
		detail.Candidates = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Dashboard is the batches landing read model: the powder list, open
// batches, and recently closed ones.
type Dashboard struct {
	Powders       []shopstore.Powder
	OpenBatches   []shopstore.Batch
	RecentBatches []shopstore.Batch
}

const recentBatchLimit = 20

// Dashboard loads the batches landing read model.
func (e *Engine) Dashboard(ctx context.Context) (*Dashboard, error) {
	var dash Dashboard
	err := shopstore.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		powders, err := shopstore.ListPowders(ctx, tx)
		if err != nil {
			return err
		}
		dash.Powders = powders

		open, err := shopstore.ListOpenBatches(ctx, tx)
		if err != nil {
			return err
		}
		dash.OpenBatches = open

		recent, err := shopstore.ListRecentBatches(ctx, tx, recentBatchLimit)
		if err != nil {
			return err
		}
		dash.RecentBatches = recent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dash, nil
}
