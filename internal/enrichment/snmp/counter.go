package snmp

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"roomload/core-go/internal/topology"
)

// HostResolver turns an access point name into addresses.
type HostResolver interface {
	LookupHost(ctx context.Context, name string) ([]netip.Addr, error)
}

type clientCounter interface {
	CountClients(ctx context.Context, target Target, oid string) (int, error)
}

// Counter reads live connected-device counts from access points.
type Counter struct {
	log      zerolog.Logger
	client   clientCounter
	resolver HostResolver
	oid      string
	workers  int
}

type CounterOptions struct {
	OID     string
	Workers int
	// Resolver is used for access points without a usable IPAddress. Nil
	// skips those access points.
	Resolver HostResolver
}

func NewCounter(log zerolog.Logger, client *Client, opts CounterOptions) *Counter {
	return newCounter(log, client, opts)
}

func newCounter(log zerolog.Logger, client clientCounter, opts CounterOptions) *Counter {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Counter{
		log:      log,
		client:   client,
		resolver: opts.Resolver,
		oid:      opts.OID,
		workers:  workers,
	}
}

// Counts queries every access point it can address. Access points that do not
// answer are left out of the result. An error is returned only when no access
// point answered at all.
func (c *Counter) Counts(ctx context.Context, aps []topology.AccessPoint) (map[topology.AccessPointID]int, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("snmp counter not configured")
	}
	out := make(map[topology.AccessPointID]int, len(aps))
	if len(aps) == 0 {
		return out, nil
	}

	var (
		mu       sync.Mutex
		attempts int
		lastErr  error
	)

	jobs := make(chan topology.AccessPoint)
	wg := sync.WaitGroup{}

	worker := func() {
		defer wg.Done()
		for ap := range jobs {
			if ctx.Err() != nil {
				return
			}
			addr, ok := c.address(ctx, ap)
			if !ok {
				continue
			}

			n, err := c.client.CountClients(ctx, Target{ID: int64(ap.ID), Address: addr.String()}, c.oid)
			mu.Lock()
			attempts++
			if err != nil {
				lastErr = err
			} else {
				out[ap.ID] = n
			}
			mu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Int64("accesspoint_id", int64(ap.ID)).Str("address", addr.String()).Msg("snmp client count failed")
			}
		}
	}

	workers := c.workers
	if workers > len(aps) {
		workers = len(aps)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

dispatch:
	for _, ap := range aps {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- ap:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil && len(out) == 0 {
		return nil, err
	}
	if attempts > 0 && len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

// address picks the SNMP target for an access point: its stored IP address
// when it parses, otherwise the first address its name resolves to.
func (c *Counter) address(ctx context.Context, ap topology.AccessPoint) (netip.Addr, bool) {
	if a, err := netip.ParseAddr(strings.TrimSpace(ap.IPAddress)); err == nil {
		return a.Unmap(), true
	}
	name := strings.TrimSpace(ap.Name)
	if c.resolver == nil || name == "" {
		return netip.Addr{}, false
	}
	addrs, err := c.resolver.LookupHost(ctx, name)
	if err != nil || len(addrs) == 0 {
		c.log.Debug().Err(err).Str("name", name).Msg("access point name did not resolve")
		return netip.Addr{}, false
	}
	return addrs[0], true
}
