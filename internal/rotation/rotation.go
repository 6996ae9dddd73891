// Package rotation cycles the fullscreen display through the floor plans.
package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Rotator owns the index of the floor currently on display. The label order
// is fixed at construction.
type Rotator struct {
	log      zerolog.Logger
	labels   []string
	interval time.Duration

	mu    sync.Mutex
	index int
	since time.Time
	now   func() time.Time

	// reset restarts the Run ticker after a manual Set.
	reset chan struct{}
}

type Options struct {
	Interval time.Duration
	Now      func() time.Time
}

func New(log zerolog.Logger, labels []string, opts Options) *Rotator {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Rotator{
		log:      log,
		labels:   append([]string(nil), labels...),
		interval: interval,
		since:    now(),
		now:      now,
		reset:    make(chan struct{}, 1),
	}
}

// Position describes the floor on display.
type Position struct {
	Label string
	Index int
	Count int
	Since time.Time
	Next  time.Time
}

// Current returns the floor on display. ok is false when there are no floors.
func (r *Rotator) Current() (Position, bool) {
	if r == nil || len(r.labels) == 0 {
		return Position{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position(), true
}

// Advance moves to the next floor, wrapping after the last one.
func (r *Rotator) Advance() (Position, bool) {
	if r == nil || len(r.labels) == 0 {
		return Position{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = (r.index + 1) % len(r.labels)
	r.since = r.now()
	return r.position(), true
}

// Set jumps to the floor with the given label. The floor stays on display for
// a full interval.
func (r *Rotator) Set(label string) (Position, bool) {
	if r == nil {
		return Position{}, false
	}
	for i, l := range r.labels {
		if l != label {
			continue
		}
		r.mu.Lock()
		r.index = i
		r.since = r.now()
		pos := r.position()
		r.mu.Unlock()

		select {
		case r.reset <- struct{}{}:
		default:
		}
		return pos, true
	}
	return Position{}, false
}

func (r *Rotator) position() Position {
	return Position{
		Label: r.labels[r.index],
		Index: r.index,
		Count: len(r.labels),
		Since: r.since,
		Next:  r.since.Add(r.interval),
	}
}

// Run advances every interval until ctx is done. A single floor never rotates.
func (r *Rotator) Run(ctx context.Context) {
	if r == nil || len(r.labels) < 2 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reset:
			ticker.Reset(r.interval)
			continue
		case <-ticker.C:
		}
		pos, _ := r.Advance()
		r.log.Debug().Str("floor", pos.Label).Int("index", pos.Index).Msg("rotated floor")
	}
}
