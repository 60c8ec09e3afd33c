package spraytime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64    { return &f }

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStateOf(t *testing.T) {
	start := mustParse("2026-08-01T08:00:00Z")
	end := mustParse("2026-08-01T09:00:00Z")

	tests := []struct {
		name string
		row  shopstore.BatchJob
		want TimerState
	}{
		{"fresh row", shopstore.BatchJob{}, TimerNotStarted},
		{"running", shopstore.BatchJob{StartTS: ptrTime(start), RunningSince: ptrTime(start)}, TimerRunning},
		{"paused", shopstore.BatchJob{StartTS: ptrTime(start)}, TimerPaused},
		{"stopped", shopstore.BatchJob{StartTS: ptrTime(start), EndTS: ptrTime(end)}, TimerStopped},
		{"end wins over running", shopstore.BatchJob{StartTS: ptrTime(start), EndTS: ptrTime(end), RunningSince: ptrTime(start)}, TimerStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(tt.row))
		})
	}
}

func TestDeriveReading(t *testing.T) {
	start := mustParse("2026-08-01T08:00:00Z")
	end := mustParse("2026-08-01T08:20:00Z")

	t.Run("elapsed seconds win", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{
			ElapsedSeconds: 600,
			TimeMin:        ptrFloat(99),
			StartTS:        ptrTime(start),
			EndTS:          ptrTime(end),
		})
		assert.Equal(t, ReadingExact, r.Kind)
		assert.Equal(t, 600.0, r.Seconds)
		assert.Equal(t, 10.0, r.Minutes)
	})

	t.Run("cached minutes next", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{
			TimeMin: ptrFloat(15),
			StartTS: ptrTime(start),
			EndTS:   ptrTime(end),
		})
		assert.Equal(t, ReadingCachedMinutes, r.Kind)
		assert.Equal(t, 900.0, r.Seconds)
		assert.Equal(t, 15.0, r.Minutes)
	})

	t.Run("wall span last", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{
			StartTS: ptrTime(start),
			EndTS:   ptrTime(end),
		})
		assert.Equal(t, ReadingWallSpan, r.Kind)
		assert.Equal(t, 1200.0, r.Seconds)
		assert.Equal(t, 20.0, r.Minutes)
	})

	t.Run("inverted span clamps to zero", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{
			StartTS: ptrTime(end),
			EndTS:   ptrTime(start),
		})
		assert.Equal(t, ReadingWallSpan, r.Kind)
		assert.Equal(t, 0.0, r.Seconds)
	})

	t.Run("missing", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{})
		assert.True(t, r.Missing())
	})

	t.Run("zero cached minutes is missing", func(t *testing.T) {
		r := deriveReading(shopstore.BatchJob{TimeMin: ptrFloat(0)})
		assert.True(t, r.Missing())
	})
}

func TestLiveElapsedSeconds(t *testing.T) {
	start := mustParse("2026-08-01T08:00:00Z")
	now := start.Add(90 * time.Second)

	t.Run("paused uses stored elapsed", func(t *testing.T) {
		got := liveElapsedSeconds(shopstore.BatchJob{ElapsedSeconds: 300}, now)
		assert.Equal(t, 300.0, got)
	})

	t.Run("running adds in-flight interval", func(t *testing.T) {
		got := liveElapsedSeconds(shopstore.BatchJob{
			ElapsedSeconds: 300,
			RunningSince:   ptrTime(start),
		}, now)
		assert.Equal(t, 390.0, got)
	})

	t.Run("cached minutes back stop for legacy rows", func(t *testing.T) {
		got := liveElapsedSeconds(shopstore.BatchJob{TimeMin: ptrFloat(5)}, now)
		assert.Equal(t, 300.0, got)
	})

	t.Run("clock skew never subtracts", func(t *testing.T) {
		got := liveElapsedSeconds(shopstore.BatchJob{
			ElapsedSeconds: 300,
			RunningSince:   ptrTime(now.Add(time.Hour)),
		}, now)
		assert.Equal(t, 300.0, got)
	})
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.234, roundSeconds(1.2341))
	assert.Equal(t, 1.235, roundSeconds(1.2346))
	assert.Equal(t, 10.0, roundMinutes(10.04))
	assert.Equal(t, 10.1, roundMinutes(10.06))
}
