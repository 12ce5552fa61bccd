package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"coreops/internal/domain/audit"
	"coreops/internal/domain/auth"
	"coreops/internal/domain/governance"
	"coreops/internal/domain/leave"
	"coreops/internal/domain/timesheet"
	"coreops/internal/platform/cache"
	"coreops/internal/platform/clock"
	"coreops/internal/platform/config"
	"coreops/internal/platform/db"
	"coreops/internal/platform/jobs"
	"coreops/internal/platform/metrics"
	"coreops/internal/transport/http/api"
	audithandler "coreops/internal/transport/http/handlers/audit"
	governancehandler "coreops/internal/transport/http/handlers/governance"
	leavehandler "coreops/internal/transport/http/handlers/leave"
	timesheethandler "coreops/internal/transport/http/handlers/timesheet"
	"coreops/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *db.Pool
	Redis   *redis.Client
	Router  http.Handler
	Metrics *metrics.Collector
	Jobs    *jobs.Service

	Leave      *leave.Service
	Timesheets *timesheet.Service
	Governance *governance.Service
	Audit      *audit.Service
}

// New connects storage, applies migrations and seed data when configured, and
// builds the router. Callers own the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}
	if cfg.RedisAddr != "" {
		client, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			pool.Close()
			return nil, err
		}
		app.Redis = client
	}

	sysClock := clock.System{}
	txManager := db.NewTransactionManager(pool)
	authStore := auth.NewStore(pool)
	leaveStore := leave.NewStore(pool)

	if cfg.RunSeed {
		if err := db.Seed(ctx, authStore, leaveStore); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Audit = audit.New(pool, sysClock)
	writer := audit.NewWriter(txManager, app.Audit)
	writer.OnCommit = func(evt audit.Event) {
		app.Metrics.Transition(evt.EntityType, evt.Action)
	}

	app.Governance = governance.NewService(governance.NewStore(pool), writer, sysClock)
	app.Leave = leave.NewService(leaveStore, app.Governance, writer, sysClock, leavePolicy(cfg.Policy.Leave))
	app.Timesheets = timesheet.NewService(timesheet.NewStore(pool), app.Governance, writer, sysClock, timesheet.Policy{
		ApprovalLevels: cfg.Policy.Timesheet.ApprovalLevels,
		MaxHoursPerDay: decimal.NewFromFloat(cfg.Policy.Timesheet.MaxHoursPerDay),
	})
	app.Jobs = jobs.New(pool, app.Audit, sysClock, jobs.Config{
		AuditVerifyInterval: cfg.AuditVerifyInterval,
		AuditVerifyWindow:   cfg.AuditVerifyWindow,
	})

	var idempotency middleware.IdempotencyStore = middleware.NewPGIdempotencyStore(pool, cfg.IdempotencyTTL)
	if app.Redis != nil {
		idempotency = middleware.NewRedisIdempotencyStore(app.Redis, cfg.IdempotencyTTL)
	}

	app.Router = app.routes(authStore, idempotency)
	return app, nil
}

func leavePolicy(p config.LeavePolicy) leave.Policy {
	return leave.Policy{
		ApprovalLevels:          p.ApprovalLevels,
		AllowHalfDay:            p.AllowHalfDay,
		AllowBackdated:          p.AllowBackdated,
		BackdateLimitDays:       p.BackdateLimitDays,
		AllowCancelPastApproved: p.AllowCancelPastApproved,
	}
}

func (a *App) routes(resolver middleware.PermissionResolver, idempotency middleware.IdempotencyStore) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.Logger(a.Metrics))
	router.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Idempotent-Replay", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, resolver))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if a.Redis != nil {
			if err := a.Redis.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.Idempotency(idempotency))

		leavehandler.NewHandler(a.Leave, a.Metrics).RegisterRoutes(r)
		timesheethandler.NewHandler(a.Timesheets, a.Metrics).RegisterRoutes(r)
		governancehandler.NewHandler(a.Governance, a.Metrics).RegisterRoutes(r)
		audithandler.NewHandler(a.Audit, a.Metrics, cfg.AuditVerifyWindow).RegisterRoutes(r)
	})
	return router
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func NewLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	slog.SetDefault(NewLogger(cfg))

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	app.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("coreops server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}
