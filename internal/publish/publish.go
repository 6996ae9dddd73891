// Package publish mirrors refresh results into Redis so wall displays and
// other readers can consume them without calling the HTTP API.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"roomload/core-go/internal/poller"
	"roomload/core-go/internal/view"
)

// KVStore is the subset of Redis the publisher needs. Get reports ok=false
// for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message string) error
}

// RedisStore implements KVStore with go-redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis opens a client and checks the connection.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Publish(ctx context.Context, channel string, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}

// Publisher writes one overlay document per floor, the floor index and an
// update notification.
type Publisher struct {
	log    zerolog.Logger
	kv     KVStore
	plans  view.PlanLookup
	prefix string
	ttl    time.Duration
}

type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

func New(log zerolog.Logger, kv KVStore, plans view.PlanLookup, opts Options) *Publisher {
	prefix := opts.KeyPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = "roomload:"
	}
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &Publisher{log: log, kv: kv, plans: plans, prefix: prefix, ttl: ttl}
}

func (p *Publisher) FloorKey(floorID int64) string {
	return fmt.Sprintf("%sfloor:%d:overlay", p.prefix, floorID)
}

func (p *Publisher) IndexKey() string { return p.prefix + "floors" }

func (p *Publisher) Channel() string { return p.prefix + "updates" }

type notification struct {
	RefreshSeq      uint64    `json:"refresh_seq"`
	RefreshedAt     time.Time `json:"refreshed_at"`
	FloorIDs        []int64   `json:"floor_ids"`
	RemovedFloorIDs []int64   `json:"removed_floor_ids,omitempty"`
}

// Publish writes res. Floor documents are written before the index and the
// notification, so a reader reacting to the notification sees them. Floors
// listed in the previous index but missing from res have their documents
// deleted. Failed floor writes are skipped; the joined error is returned
// after all writes were attempted.
func (p *Publisher) Publish(ctx context.Context, res *poller.Result) error {
	if p == nil || p.kv == nil {
		return errors.New("publisher not configured")
	}
	if res == nil {
		return nil
	}

	var errs []error
	written := make([]int64, 0, len(res.Floors))
	for _, f := range res.Floors {
		doc := view.NewOverlay(res, f, p.plans)
		if err := p.setJSON(ctx, p.FloorKey(doc.FloorID), doc); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, doc.FloorID)
	}

	previous, err := p.indexedFloorIDs(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	if err := p.setJSON(ctx, p.IndexKey(), view.NewFloors(res, p.plans)); err != nil {
		errs = append(errs, err)
	}

	current := make(map[int64]struct{}, len(res.Floors))
	for _, f := range res.Floors {
		current[int64(f.Floor.ID)] = struct{}{}
	}
	var removed []int64
	var staleKeys []string
	for _, id := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		removed = append(removed, id)
		staleKeys = append(staleKeys, p.FloorKey(id))
	}
	if len(staleKeys) > 0 {
		if err := p.kv.Del(ctx, staleKeys...); err != nil {
			errs = append(errs, fmt.Errorf("delete stale floors: %w", err))
			removed = nil
		}
	}

	msg, err := json.Marshal(notification{
		RefreshSeq:      res.Seq,
		RefreshedAt:     res.StartedAt.UTC(),
		FloorIDs:        written,
		RemovedFloorIDs: removed,
	})
	if err == nil {
		err = p.kv.Publish(ctx, p.Channel(), string(msg))
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("publish %s: %w", p.Channel(), err))
	}

	if len(errs) == 0 {
		p.log.Debug().Uint64("refresh_seq", res.Seq).Int("floors", len(written)).Msg("published refresh to redis")
	}
	return errors.Join(errs...)
}

// indexedFloorIDs returns the floor ids of the index document currently stored.
func (p *Publisher) indexedFloorIDs(ctx context.Context) ([]int64, error) {
	raw, ok, err := p.kv.Get(ctx, p.IndexKey())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.IndexKey(), err)
	}
	if !ok {
		return nil, nil
	}
	var idx view.Floors
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.IndexKey(), err)
	}
	ids := make([]int64, 0, len(idx.Floors))
	for _, f := range idx.Floors {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (p *Publisher) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.kv.Set(ctx, key, string(b), p.ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
