package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"roomload/core-go/internal/occupancy"
	"roomload/core-go/internal/topology"
)

// Result is one completed refresh. Results are immutable once published.
type Result struct {
	Seq        uint64
	StartedAt  time.Time
	FinishedAt time.Time

	Snapshot *topology.Snapshot
	Floors   []occupancy.FloorOverlay
	Issues   occupancy.Aggregation

	// LiveCounts is the number of access points whose device count came from
	// the live count source instead of the store.
	LiveCounts int
}

// Floor returns the overlay of the floor with the given id.
func (r *Result) Floor(id topology.FloorID) (occupancy.FloorOverlay, bool) {
	if r == nil {
		return occupancy.FloorOverlay{}, false
	}
	for _, f := range r.Floors {
		if f.Floor.ID == id {
			return f, true
		}
	}
	return occupancy.FloorOverlay{}, false
}

// FloorByLabel returns the first floor (in building, floor id order) whose
// label matches.
func (r *Result) FloorByLabel(label string) (occupancy.FloorOverlay, bool) {
	if r == nil {
		return occupancy.FloorOverlay{}, false
	}
	for _, f := range r.Floors {
		if f.Floor.Name == label {
			return f, true
		}
	}
	return occupancy.FloorOverlay{}, false
}

// newerThan orders results by refresh start, then by sequence number.
func (r *Result) newerThan(o *Result) bool {
	if !r.StartedAt.Equal(o.StartedAt) {
		return r.StartedAt.After(o.StartedAt)
	}
	return r.Seq > o.Seq
}

type Status struct {
	CurrentSeq          uint64
	LastStartedAt       time.Time
	LastSuccessAt       time.Time
	LastErrorAt         time.Time
	LastError           string
	ConsecutiveFailures int
	Refreshes           uint64
	Failures            uint64
	Superseded          uint64
}

// Board holds the latest published Result. Readers never block writers.
type Board struct {
	cur atomic.Pointer[Result]

	mu     sync.Mutex
	status Status
}

func NewBoard() *Board {
	return &Board{}
}

// Current returns the latest published result, or nil before the first one.
func (b *Board) Current() *Result {
	if b == nil {
		return nil
	}
	return b.cur.Load()
}

// Publish installs r unless a result from a later refresh start is already
// published. It reports whether r was installed.
func (b *Board) Publish(r *Result) bool {
	if b == nil || r == nil {
		return false
	}
	for {
		old := b.cur.Load()
		if old != nil && !r.newerThan(old) {
			return false
		}
		if b.cur.CompareAndSwap(old, r) {
			return true
		}
	}
}

func (b *Board) Status() Status {
	if b == nil {
		return Status{}
	}
	b.mu.Lock()
	s := b.status
	b.mu.Unlock()
	if cur := b.cur.Load(); cur != nil {
		s.CurrentSeq = cur.Seq
	}
	return s
}

func (b *Board) recordStart(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if at.After(b.status.LastStartedAt) {
		b.status.LastStartedAt = at
	}
}

func (b *Board) recordSuccess(at time.Time, superseded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Refreshes++
	b.status.ConsecutiveFailures = 0
	if superseded {
		b.status.Superseded++
	}
	if at.After(b.status.LastSuccessAt) {
		b.status.LastSuccessAt = at
	}
}

// recordFailure counts a failed refresh that started at started. A failure of
// a refresh older than the published result does not touch the failure streak
// or the last error.
func (b *Board) recordFailure(started, at time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Refreshes++
	b.status.Failures++
	if cur := b.cur.Load(); cur != nil && cur.StartedAt.After(started) {
		return
	}
	b.status.ConsecutiveFailures++
	b.status.LastErrorAt = at
	b.status.LastError = err.Error()
}
