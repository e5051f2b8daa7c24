package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProgressStore is the slice of the job store the reporter needs.
type ProgressStore interface {
	SetProgress(ctx context.Context, id uuid.UUID, pct int, step string) (bool, error)
}

// Reporter maps a stage's fractional progress into the absolute percentage
// window assigned to that stage and deduplicates writes: a value is only
// persisted when the mapped percentage increases, except for the terminal
// unit which is always flushed. This keeps the persisted percentage
// monotonic even when a stage emits out-of-order or duplicate callbacks.
type Reporter struct {
	store  ProgressStore
	log    zerolog.Logger
	jobID  uuid.UUID
	window Range
	label  string // fmt pattern with two %d verbs: current, total

	mu   sync.Mutex
	last int
}

func NewReporter(store ProgressStore, log zerolog.Logger, jobID uuid.UUID, window Range, label string) *Reporter {
	return &Reporter{
		store:  store,
		log:    log,
		jobID:  jobID,
		window: window,
		label:  label,
		last:   -1,
	}
}

// Report records one unit of stage progress. current runs from 0 to
// total-1; the current==total-1 update is treated as terminal.
func (r *Reporter) Report(ctx context.Context, current, total int) {
	if r.window.Width() <= 0 || total <= 0 {
		return
	}

	fraction := 1.0
	if total > 1 {
		fraction = float64(current) / float64(total-1)
	}
	pct := r.window.Start + int(math.Round(fraction*float64(r.window.Width())))

	// Clamp into [start, end); 100 is written only at final completion.
	if pct < r.window.Start {
		pct = r.window.Start
	}
	if pct >= r.window.End {
		pct = r.window.End - 1
	}

	final := current >= total-1

	r.mu.Lock()
	if pct <= r.last && !final {
		r.mu.Unlock()
		return
	}
	if pct > r.last {
		r.last = pct
	} else {
		pct = r.last
	}
	r.mu.Unlock()

	step := fmt.Sprintf(r.label, current+1, total)
	if _, err := r.store.SetProgress(ctx, r.jobID, pct, step); err != nil {
		r.log.Warn().Err(err).Str("job_id", r.jobID.String()).Msg("progress update failed")
		return
	}
	r.log.Debug().
		Str("job_id", r.jobID.String()).
		Int("progress", pct).
		Int("unit", current+1).
		Int("total", total).
		Msg("progress update")
}
