package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"roomload/core-go/internal/config"
	"roomload/core-go/internal/db"
	"roomload/core-go/internal/enrichment/resolve"
	"roomload/core-go/internal/enrichment/snmp"
	"roomload/core-go/internal/httpapi"
	"roomload/core-go/internal/metrics"
	"roomload/core-go/internal/poller"
	"roomload/core-go/internal/publish"
	"roomload/core-go/internal/registry"
	"roomload/core-go/internal/rotation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The level is unknown until config parses.
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := loadRegistry(cfg.RegistryPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RegistryPath).Msg("failed to load floor plan registry")
	}

	m := metrics.New()
	board := poller.NewBoard()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	} else {
		logger.Warn().Msg("DATABASE_URL not set; occupancy will not be refreshed")
	}

	deps := httpapi.Deps{
		Board:   board,
		Plans:   reg,
		Metrics: m,
	}

	if pool != nil {
		opts := poller.Options{
			Interval:   cfg.RefreshInterval,
			Timeout:    cfg.RefreshTimeout,
			BuildingID: cfg.BuildingID,
			Board:      board,
		}
		if counter := newCounter(logger, cfg); counter != nil {
			opts.Counts = counter
		}
		if pub, closeRedis := newPublisher(ctx, logger, cfg, reg); pub != nil {
			defer closeRedis()
			opts.Publisher = pub
		}

		p := poller.New(logger, pool.Queries(), reg, opts, m)
		go p.Run(ctx)

		deps.DB = pool
		deps.Refresher = p
	}

	rot := rotation.New(logger, reg.Floors(), rotation.Options{Interval: cfg.RotationInterval})
	go rot.Run(ctx)
	deps.Rotation = rot

	h := httpapi.NewHandler(logger, deps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Int("floors", len(reg.Floors())).Msg("roomload listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadFile(path)
}

func newCounter(logger zerolog.Logger, cfg config.Config) *snmp.Counter {
	if !cfg.SNMP.Enabled {
		return nil
	}

	var resolver snmp.HostResolver
	r, err := resolve.New(resolve.Options{Server: cfg.DNSServer})
	if err != nil {
		logger.Warn().Err(err).Msg("dns resolver unavailable; access points without an ip address are skipped")
	} else {
		resolver = r
	}

	client := snmp.NewClient(snmp.Config{
		Community: cfg.SNMP.Community,
		Version:   cfg.SNMP.Version,
		Port:      cfg.SNMP.Port,
		Timeout:   cfg.SNMP.Timeout,
		Retries:   cfg.SNMP.Retries,
	})
	logger.Info().Str("oid", cfg.SNMP.ClientCountOID).Int("workers", cfg.SNMP.Workers).Msg("live device counts enabled")
	return snmp.NewCounter(logger, client, snmp.CounterOptions{
		OID:      cfg.SNMP.ClientCountOID,
		Workers:  cfg.SNMP.Workers,
		Resolver: resolver,
	})
}

func newPublisher(ctx context.Context, logger zerolog.Logger, cfg config.Config, reg *registry.Registry) (*publish.Publisher, func()) {
	if !cfg.Redis.Enabled() {
		return nil, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := publish.DialRedis(dialCtx, publish.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; results will not be published")
		return nil, nil
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Str("prefix", cfg.Redis.KeyPrefix).Msg("publishing results to redis")
	pub := publish.New(logger, publish.NewRedisStore(client), reg, publish.Options{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.TTL,
	})
	return pub, func() { _ = client.Close() }
}
