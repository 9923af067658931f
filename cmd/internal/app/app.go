// Package app wires the Aegis server runtime: config, logging, stores, the
// authentication engine, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"aegis/cmd/identity"
	"aegis/cmd/internal/audit"
	authapi "aegis/cmd/internal/auth/api"
	"aegis/cmd/internal/auth/engine"
	"aegis/cmd/internal/auth/session"
	"aegis/cmd/internal/auth/token"
	"aegis/cmd/internal/codes"
	"aegis/cmd/internal/mail"
)

// App is the Aegis server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	redisClient *redis.Client

	registry *prometheus.Registry
	auth     *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
//
// Without AEGIS_DATABASE_URL the server still starts and serves health and
// metrics endpoints, but auth routes are not registered.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{cfg: cfg, log: log, registry: registry}

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.auth_routes_off")
		return a, nil
	}

	ctx := context.Background()

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbPool = pool
	a.dbEnabled = true
	log.Info("db.enabled.postgres_store")

	redisClient, err := NewRedisClient(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.redisClient = redisClient
	log.Info("redis.enabled.code_store")

	tokenCfg, err := token.LoadConfigFromEnv()
	if err != nil {
		a.closeStores()
		return nil, err
	}
	issuer, err := token.NewIssuer(tokenCfg)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	creds, err := identity.NewPostgresStore(pool)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	eng := engine.New(
		creds,
		session.NewPostgresStore(pool),
		codes.NewRedisStore(redisClient),
		issuer,
		mail.NewLogSender(log),
		log,
	)

	apiCfg := authapi.Config{
		MaxBodyBytes:     cfg.MaxBodyBytes,
		TrustProxy:       cfg.AuthTrustProxy,
		LoginIPMax:       cfg.LoginIPMax,
		LoginIPWindow:    cfg.LoginIPWindow,
		LoginEmailMax:    cfg.LoginEmailMax,
		LoginEmailWindow: cfg.LoginEmailWindow,
	}
	a.auth = authapi.NewHandler(log, apiCfg, eng, audit.NewPostgresRecorder(pool, log), authapi.NewMetrics(registry))
	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.registry)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.closeStores()
	a.log.Info("server.stopped")
	return nil
}

func (a *App) closeStores() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redisClient = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
