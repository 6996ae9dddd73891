// Package poller periodically reads the topology store, recomputes every
// floor and publishes the result for readers.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomload/core-go/internal/metrics"
	"roomload/core-go/internal/occupancy"
	"roomload/core-go/internal/topology"
)

// CountSource supplies live connected-device counts. Access points missing
// from the returned map keep the count read from the store.
type CountSource interface {
	Counts(ctx context.Context, aps []topology.AccessPoint) (map[topology.AccessPointID]int, error)
}

// Publisher receives every result that was installed on the board.
type Publisher interface {
	Publish(ctx context.Context, r *Result) error
}

const maxBackoff = time.Minute

type Poller struct {
	log        zerolog.Logger
	q          Queries
	reg        occupancy.Lookup
	board      *Board
	interval   time.Duration
	timeout    time.Duration
	buildingID int64
	counts     CountSource
	publisher  Publisher
	metrics    *metrics.Metrics
	now        func() time.Time

	stampMu sync.Mutex
	seq     uint64

	// pushMu serializes publisher calls; pushed is the last result handed out.
	pushMu sync.Mutex
	pushed *Result
}

type Options struct {
	Interval   time.Duration
	Timeout    time.Duration
	BuildingID int64
	Counts     CountSource
	Publisher  Publisher
	Board      *Board
	Now        func() time.Time
}

func New(log zerolog.Logger, q Queries, reg occupancy.Lookup, opts Options, m *metrics.Metrics) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	board := opts.Board
	if board == nil {
		board = NewBoard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	buildingID := opts.BuildingID
	if buildingID < 0 {
		buildingID = 0
	}

	return &Poller{
		log:        log,
		q:          q,
		reg:        reg,
		board:      board,
		interval:   interval,
		timeout:    timeout,
		buildingID: buildingID,
		counts:     opts.Counts,
		publisher:  opts.Publisher,
		metrics:    m,
		now:        now,
	}
}

func (p *Poller) Board() *Board {
	if p == nil {
		return nil
	}
	return p.board
}

// Run refreshes immediately and then every interval until ctx is done.
// Consecutive failures back off exponentially.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.q == nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := p.Refresh(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(p.interval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 5 * time.Second
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > maxBackoff {
		if base > maxBackoff {
			return base
		}
		return maxBackoff
	}
	return d
}

// Refresh runs one full refresh. On failure the previously published result
// stays in place and the error is returned. When a refresh that started later
// has already published, the finished result is discarded and the current one
// is returned.
func (p *Poller) Refresh(ctx context.Context) (*Result, error) {
	if p == nil || p.q == nil {
		return nil, errors.New("poller is not configured")
	}

	seq, started := p.stamp()
	p.board.recordStart(started)
	log := p.log.With().Uint64("refresh_seq", seq).Logger()

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := Fetch(execCtx, p.q, p.buildingID, started)
	if err != nil {
		p.fail(log, started, err)
		return nil, err
	}

	live := p.applyLiveCounts(execCtx, log, snap)

	floors, issues := occupancy.ComputeAll(snap, p.reg)
	res := &Result{
		Seq:        seq,
		StartedAt:  started,
		FinishedAt: p.now(),
		Snapshot:   snap,
		Floors:     floors,
		Issues:     issues,
		LiveCounts: live,
	}

	published := p.board.Publish(res)
	p.board.recordSuccess(res.FinishedAt, !published)
	p.metrics.IncRefresh("ok")
	p.metrics.ObserveRefreshDuration(res.FinishedAt.Sub(started))

	if !published {
		p.metrics.IncRefreshSuperseded()
		log.Debug().Msg("refresh result superseded by a newer refresh")
		return p.board.Current(), nil
	}

	p.reportIssues(log, res)
	for _, f := range res.Floors {
		for tier, n := range f.TierCounts() {
			p.metrics.SetFloorRooms(f.Floor.Name, tier.String(), n)
		}
	}

	p.push(execCtx, log, res)

	log.Debug().
		Int("floors", len(res.Floors)).
		Int("live_counts", live).
		Dur("duration", res.FinishedAt.Sub(started)).
		Msg("refresh published")
	return res, nil
}

// push hands res to the publisher unless a newer result was pushed already or
// has replaced res on the board in the meantime.
func (p *Poller) push(ctx context.Context, log zerolog.Logger, res *Result) {
	if p.publisher == nil {
		return
	}
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	if p.board.Current() != res || (p.pushed != nil && !res.newerThan(p.pushed)) {
		log.Debug().Msg("skipping publish of superseded result")
		return
	}
	if err := p.publisher.Publish(ctx, res); err != nil {
		log.Warn().Err(err).Msg("failed to publish refresh result")
	}
	p.pushed = res
}

func (p *Poller) stamp() (uint64, time.Time) {
	p.stampMu.Lock()
	defer p.stampMu.Unlock()
	p.seq++
	return p.seq, p.now()
}

func (p *Poller) fail(log zerolog.Logger, started time.Time, err error) {
	p.board.recordFailure(started, p.now(), err)
	p.metrics.IncRefresh("error")
	p.metrics.ObserveRefreshDuration(p.now().Sub(started))
	log.Error().Err(err).Msg("refresh failed; keeping previous result")
}

// applyLiveCounts overrides store counts with live ones and returns how many
// access points were overridden. A failing source is not fatal.
func (p *Poller) applyLiveCounts(ctx context.Context, log zerolog.Logger, snap *topology.Snapshot) int {
	if p.counts == nil || len(snap.AccessPoints) == 0 {
		return 0
	}
	counts, err := p.counts.Counts(ctx, snap.AccessPoints)
	if err != nil {
		log.Warn().Err(err).Msg("live device counts unavailable; using stored counts")
	}
	var n int
	for i := range snap.AccessPoints {
		c, ok := counts[snap.AccessPoints[i].ID]
		if !ok {
			continue
		}
		snap.AccessPoints[i].ConnectedDevices = c
		n++
	}
	return n
}

func (p *Poller) reportIssues(log zerolog.Logger, res *Result) {
	issues := res.Issues
	p.metrics.AddIntegrityIssues("dangling_access_point", len(issues.Dangling))
	p.metrics.AddIntegrityIssues("duplicate_association", len(issues.Duplicates))
	p.metrics.AddIntegrityIssues("negative_device_count", len(issues.Clamped))

	var unplaced int
	for _, f := range res.Floors {
		unplaced += len(f.Unplaced)
	}
	p.metrics.AddIntegrityIssues("unplaced_room", unplaced)

	if len(issues.Dangling) > 0 {
		log.Warn().Int("count", len(issues.Dangling)).Msg("associations reference unknown access points; counted as 0")
		for _, a := range issues.Dangling {
			log.Debug().
				Int64("room_id", int64(a.RoomID)).
				Int64("accesspoint_id", int64(a.AccesspointID)).
				Msg("dangling association")
		}
	}
	if len(issues.Duplicates) > 0 {
		log.Warn().Int("count", len(issues.Duplicates)).Msg("duplicate room/access point associations ignored")
		for _, a := range issues.Duplicates {
			log.Debug().
				Int64("room_id", int64(a.RoomID)).
				Int64("accesspoint_id", int64(a.AccesspointID)).
				Msg("duplicate association")
		}
	}
	if len(issues.Clamped) > 0 {
		log.Warn().Int("count", len(issues.Clamped)).Msg("negative device counts read as 0")
		for _, id := range issues.Clamped {
			log.Debug().Int64("accesspoint_id", int64(id)).Msg("negative device count")
		}
	}
	if unplaced > 0 {
		log.Debug().Int("count", unplaced).Msg("active rooms without a floor plan entry")
	}
}
