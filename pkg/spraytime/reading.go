package spraytime

import (
	"math"
	"time"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

// TimerState is the derived state of one batch-job timer.
type TimerState string

const (
	// TimerNotStarted: no timestamps recorded yet.
	TimerNotStarted TimerState = "not_started"
	// TimerRunning: actively counting since running_since.
	TimerRunning TimerState = "running"
	// TimerPaused: started at least once, currently not counting.
	TimerPaused TimerState = "paused"
	// TimerStopped: finalized; terminal.
	TimerStopped TimerState = "stopped"
)

// StateOf derives the timer state from a stored row.
//
// end_ts wins over running_since: the two are never both set, but if a
// corrupt row had both, stopped is the safe reading.
func StateOf(bj shopstore.BatchJob) TimerState {
	switch {
	case bj.EndTS != nil:
		return TimerStopped
	case bj.RunningSince != nil:
		return TimerRunning
	case bj.StartTS != nil:
		return TimerPaused
	default:
		return TimerNotStarted
	}
}

// ReadingKind tags where a per-job time figure came from at close.
type ReadingKind int

const (
	// ReadingMissing: no derivable time; candidate for backfill.
	ReadingMissing ReadingKind = iota
	// ReadingExact: from accumulated elapsed_seconds.
	ReadingExact
	// ReadingCachedMinutes: from a previously cached time_min figure.
	ReadingCachedMinutes
	// ReadingWallSpan: wall-clock span between start_ts and end_ts.
	ReadingWallSpan
	// ReadingBackfilled: an even share of batch duration assigned at close.
	ReadingBackfilled
)

// Reading is the authoritative time figure for one job at batch close.
// Kind makes the fallback chain explicit instead of null-chasing.
type Reading struct {
	Kind    ReadingKind
	Seconds float64
	Minutes float64
}

// Missing reports whether the job had no derivable time of its own.
func (r Reading) Missing() bool {
	return r.Kind == ReadingMissing
}

// deriveReading resolves a timer row to a time figure using, in priority
// order: accumulated seconds, the cached minute figure, then the wall-clock
// span of the start/end timestamps.
func deriveReading(bj shopstore.BatchJob) Reading {
	if bj.ElapsedSeconds > 0 {
		return Reading{
			Kind:    ReadingExact,
			Seconds: bj.ElapsedSeconds,
			Minutes: bj.ElapsedSeconds / 60.0,
		}
	}

	if bj.TimeMin != nil && *bj.TimeMin > 0 {
		return Reading{
			Kind:    ReadingCachedMinutes,
			Seconds: *bj.TimeMin * 60.0,
			Minutes: *bj.TimeMin,
		}
	}

	if bj.StartTS != nil && bj.EndTS != nil {
		seconds := math.Max(0, bj.EndTS.Sub(*bj.StartTS).Seconds())
		return Reading{
			Kind:    ReadingWallSpan,
			Seconds: seconds,
			Minutes: seconds / 60.0,
		}
	}

	return Reading{Kind: ReadingMissing}
}

// backfilled builds the even-share reading assigned to jobs with no timer
// data of their own.
func backfilled(minutes float64) Reading {
	return Reading{
		Kind:    ReadingBackfilled,
		Seconds: minutes * 60.0,
		Minutes: minutes,
	}
}

// liveElapsedSeconds computes the on-read elapsed figure for a timer,
// including any in-flight running interval. Nothing is persisted here; the
// running interval is only accumulated on pause or stop.
func liveElapsedSeconds(bj shopstore.BatchJob, now time.Time) float64 {
	elapsed := bj.ElapsedSeconds
	if elapsed == 0 && bj.TimeMin != nil {
		elapsed = *bj.TimeMin * 60.0
	}
	if bj.RunningSince != nil {
		elapsed += math.Max(0, now.Sub(*bj.RunningSince).Seconds())
	}
	return elapsed
}

// Stored figures are rounded so repeated reads return stable values:
// seconds to 3 decimal places, minutes to 1.
func roundSeconds(s float64) float64 {
	return math.Round(s*1000) / 1000
}

func roundMinutes(m float64) float64 {
	return math.Round(m*10) / 10
}
