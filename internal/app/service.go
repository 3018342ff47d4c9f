package app

import (
	"context"
	"errors"
	"fleet-dispatch-service/internal/adapters/cache"
	"fleet-dispatch-service/internal/adapters/distance"
	"fleet-dispatch-service/internal/adapters/publisher"
	"fleet-dispatch-service/internal/adapters/repositories"
	"fleet-dispatch-service/internal/api"
	"fleet-dispatch-service/internal/config"
	"fleet-dispatch-service/internal/platform/db"
	"fleet-dispatch-service/internal/platform/logger"
	"fleet-dispatch-service/internal/platform/obs"
	"fleet-dispatch-service/internal/ports"
	"fleet-dispatch-service/internal/services"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Service owns the dispatch engine and every adapter behind it.
type Service struct {
	Engine   *services.Engine
	Location *time.Location
	Registry *prometheus.Registry

	cfg     *config.Config
	log     logger.Logger
	closers []func() error
}

// New wires provider, cache store, publisher and metrics from cfg.
func New(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Location, err = cfg.Location(); err != nil {
		return nil, err
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := obs.NewMetrics(s.Registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	obs.SetDefault(metrics)

	provider, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("distance provider: %w", err)
	}

	store, closeStore, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("distance store: %w", err)
	}
	s.closers = append(s.closers, closeStore)

	var pub ports.SuggestionPublisher = publisher.NopPublisher{}
	if cfg.Publisher.Enabled {
		mp, err := publisher.NewMQTTPublisher(cfg.Publisher, logger.New("publisher"))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { mp.Close(); return nil })
		pub = mp
	}

	d, err := services.NewDispatcher(provider, nil, params,
		services.WithMetrics(metrics),
		services.WithLogger(logger.New("dispatcher")),
	)
	if err != nil {
		return nil, err
	}
	s.Engine = services.NewEngine(d, store, pub, logger.New("engine"))

	n, err := s.Engine.Restore(ctx, time.Now().Unix())
	if err != nil {
		s.log.Warnf("%v", err)
	} else if n > 0 {
		s.log.Infof("restored %d distance samples from %s", n, cfg.Cache.Backend)
	}

	return s, nil
}

// NewProvider returns nil for the offline kind; the dispatcher then
// estimates every uncached leg.
func NewProvider(cfg config.ProviderConfig) (ports.DurationProvider, error) {
	if cfg.Kind != config.ProviderGoogle {
		return nil, nil
	}
	p, err := distance.NewMatrixProvider(cfg.Matrix)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenStore opens the configured distance sample store. The returned close
// function is never nil. A nil store means samples live in memory only.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (ports.DistanceCacheStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.CacheSqlite:
		if dir := filepath.Dir(cfg.SqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, noop, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		sqlDB, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			return nil, noop, err
		}
		if err := repositories.InitSchema(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, noop, err
		}
		return cache.NewSqliteDistanceCache(sqlDB), sqlDB.Close, nil

	case config.CachePostgres:
		sqlDB, err := db.Open(cfg.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		if err := repositories.InitSchema(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, noop, err
		}
		return cache.NewSQLDistanceCache(sqlDB), sqlDB.Close, nil

	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisDistanceCache(client, cfg.RedisKey), client.Close, nil
	}
	return nil, noop, nil
}

// Handler builds the HTTP router.
func (s *Service) Handler() http.Handler {
	deps := api.RouterDeps{
		Engine:   s.Engine,
		Location: s.Location,
		Logger:   logger.New("http"),
	}
	if s.cfg.Metrics.Enabled {
		deps.Gatherer = s.Registry
	}
	return api.NewRouter(deps)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("server listening addr=%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Close releases adapters in reverse order of creation.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
