// Package app initializes and holds the long-lived console services, acting as
// a dependency injection container for the CLI and the console server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/admin"
	"github.com/JakeFAU/searchconsole/internal/cache"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/config"
	"github.com/JakeFAU/searchconsole/internal/crawl"
	"github.com/JakeFAU/searchconsole/internal/discovery"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/health"
	"github.com/JakeFAU/searchconsole/internal/id/uuid"
	"github.com/JakeFAU/searchconsole/internal/metrics"
	"github.com/JakeFAU/searchconsole/internal/policy/ratelimit"
	"github.com/JakeFAU/searchconsole/internal/querylog"
	querylogmemory "github.com/JakeFAU/searchconsole/internal/querylog/memory"
	querylogpubsub "github.com/JakeFAU/searchconsole/internal/querylog/pubsub"
	"github.com/JakeFAU/searchconsole/internal/search"
	"github.com/JakeFAU/searchconsole/internal/session"
	"github.com/JakeFAU/searchconsole/internal/storage/local"
	"github.com/JakeFAU/searchconsole/internal/storage/memory"
	"github.com/JakeFAU/searchconsole/internal/storage/postgres"
)

// Options override the providers New would otherwise build from config.
type Options struct {
	Logger       *zap.Logger
	Clock        clock.Clock
	HTTPClient   *http.Client
	SessionStore session.Store
	QueryLog     querylog.Logger
}

// App holds the shared, long-lived services.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Clock     clock.Clock
	Cache     *cache.Cache
	Limiter   *ratelimit.Limiter
	Gateway   *gateway.Client
	Session   *session.Manager
	Search    *search.Service
	Crawl     *crawl.Client
	Admin     *admin.Client
	Health    *health.Aggregator
	Discovery *discovery.Service
	QueryLog  querylog.Logger

	closers   []func() error
	stopSweep chan struct{}
}

// New builds every service from cfg. It fails fast if a configured provider
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = system.New()
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger, Clock: clk}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.Cache = cache.New(cache.Config{DefaultTTL: cfg.CacheTTL(), Clock: clk})
	a.closers = append(a.closers, func() error { a.Cache.Close(); return nil })
	a.Limiter = ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RateLimitRPS,
		DefaultBurst: cfg.HTTP.RateLimitBurst,
	})

	gw, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		Timeout:        cfg.Timeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
		HTTPClient:     opts.HTTPClient,
		Limiter:        a.Limiter,
		Clock:          clk,
		IDs:            uuid.New(),
		Logger:         logger.Named("gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("init gateway client: %w", err)
	}
	a.Gateway = gw

	store := opts.SessionStore
	if store == nil {
		store, err = a.newSessionStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	a.Session, err = session.NewManager(session.Config{
		Client:      gw,
		Store:       store,
		Clock:       clk,
		Logger:      logger.Named("session"),
		RefreshSkew: cfg.RefreshSkew(),
	})
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	a.closers = append(a.closers, func() error { a.Session.Close(); return nil })

	ql := opts.QueryLog
	if ql == nil {
		ql, err = a.newQueryLog(ctx)
		if err != nil {
			return nil, err
		}
	}
	// Searches never wait on the query log sink.
	a.QueryLog = querylog.NewAsync(ql, querylog.AsyncConfig{Logger: logger.Named("querylog")})
	a.closers = append(a.closers, a.QueryLog.Close)

	a.Search, err = search.New(search.Config{
		Client:          gw,
		Cache:           a.Cache,
		QueryLog:        a.QueryLog,
		Clock:           clk,
		Logger:          logger.Named("search"),
		DefaultTopK:     cfg.Search.DefaultTopK,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		SuggestionTTL:   cfg.SuggestionTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("init search service: %w", err)
	}
	if a.Crawl, err = crawl.New(gw, clk, logger.Named("crawl")); err != nil {
		return nil, fmt.Errorf("init crawl client: %w", err)
	}
	if a.Admin, err = admin.New(gw, a.Session, logger.Named("admin")); err != nil {
		return nil, fmt.Errorf("init admin client: %w", err)
	}
	a.Health, err = health.New(health.Config{
		Client:       gw,
		ProbeTimeout: cfg.ProbeTimeout(),
		Clock:        clk,
		Logger:       logger.Named("health"),
	})
	if err != nil {
		return nil, fmt.Errorf("init health aggregator: %w", err)
	}
	a.Discovery, err = discovery.New(discovery.Config{
		Client:       gw,
		RegistryURL:  cfg.Discovery.RegistryURL,
		ProbeTimeout: cfg.ProbeTimeout(),
		Clock:        clk,
		Logger:       logger.Named("discovery"),
	})
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}

	a.startSweep(cfg.CleanupInterval())
	ok = true
	logger.Info("console services initialized",
		zap.String("gateway", cfg.Gateway.BaseURL),
		zap.String("session_store", cfg.Session.Store),
		zap.String("querylog", cfg.QueryLog.Provider),
	)
	return a, nil
}

func (a *App) newSessionStore(ctx context.Context) (session.Store, error) {
	cfg := a.Config.Session
	switch cfg.Store {
	case config.SessionStoreMemory:
		return memory.NewSessionStore(), nil
	case config.SessionStoreFile:
		store, err := local.New(local.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("init file session store: %w", err)
		}
		return store, nil
	case config.SessionStorePostgres:
		if cfg.Table == "" || cfg.Table == postgres.DefaultTable {
			if err := postgres.Migrate(cfg.DSN); err != nil {
				return nil, err
			}
		}
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table, Key: cfg.Key})
		if err != nil {
			return nil, fmt.Errorf("init postgres session store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Store)
	}
}

func (a *App) newQueryLog(ctx context.Context) (querylog.Logger, error) {
	cfg := a.Config.QueryLog
	switch cfg.Provider {
	case config.QueryLogNoop, "":
		return querylog.Noop{}, nil
	case config.QueryLogLog:
		return querylog.NewZap(a.Logger.Named("querylog")), nil
	case config.QueryLogMemory:
		return querylogmemory.New(), nil
	case config.QueryLogPubSub:
		a.Logger.Info("connecting to Pub/Sub query log", zap.String("topic", cfg.TopicID))
		l, err := querylogpubsub.New(ctx, cfg.ProjectID, cfg.TopicID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub query log: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown querylog provider: %s", cfg.Provider)
	}
}

// startSweep evicts expired cache entries eagerly every interval, on top of
// the per-entry timers.
func (a *App) startSweep(interval time.Duration) {
	if interval <= 0 {
		return
	}
	a.stopSweep = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-a.stopSweep:
				return
			case <-ticker.C:
				if n := a.Cache.Cleanup(); n > 0 {
					a.Logger.Debug("cache sweep", zap.Int("evicted", n))
				}
			}
		}
	}()
}

// RestoreSession resumes a stored session. On any failure the console stays
// anonymous and the stored record is cleared.
func (a *App) RestoreSession(ctx context.Context) error {
	if err := a.Session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

// Close shuts down every service in reverse construction order.
func (a *App) Close() error {
	if a.stopSweep != nil {
		close(a.stopSweep)
		a.stopSweep = nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("error closing service", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.Logger.Sync(); err != nil {
		a.Logger.Debug("logger sync failed", zap.Error(err))
	}
	return errors.Join(errs...)
}
