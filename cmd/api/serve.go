package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sehansi-9/gztprocessor/internal/app"
	"github.com/sehansi-9/gztprocessor/internal/archive"
	"github.com/sehansi-9/gztprocessor/internal/backend"
	"github.com/sehansi-9/gztprocessor/internal/cache"
	"github.com/sehansi-9/gztprocessor/internal/cascade"
	"github.com/sehansi-9/gztprocessor/internal/commit"
	"github.com/sehansi-9/gztprocessor/internal/config"
	"github.com/sehansi-9/gztprocessor/internal/gitrepo"
	"github.com/sehansi-9/gztprocessor/internal/logging"
	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/reconcile"
	"github.com/sehansi-9/gztprocessor/internal/search"
	"github.com/sehansi-9/gztprocessor/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFiles...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("component", "api")

	reg := prometheus.NewRegistry()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	m := metrics.New(reg)

	client := backend.New(cfg.Backend.URL, backend.Options{
		Timeout:  cfg.Backend.Timeout,
		RetryMax: cfg.Backend.Retries,
		Logger:   log,
		Metrics:  m,
	})

	deps := app.Deps{
		Backend: client,
		Logger:  log,
		Metrics: m,
	}

	engineOpts := []reconcile.Option{reconcile.WithLogger(log), reconcile.WithMetrics(m)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		snapshots, err := cache.NewRedisStore(cfg.RedisURL, cfg.SnapshotCacheTTL, log)
		if err != nil {
			return errors.Wrap(err, "redis connection failed")
		}
		defer snapshots.Close()
		engineOpts = append(engineOpts, reconcile.WithCache(snapshots))
		deps.Cache = snapshots
		log.Info("caching backend snapshots in redis")
	}
	deps.Engine = reconcile.New(client, engineOpts...)

	tracker := cascade.NewTracker(client, cfg.WarningTimeout, log, m)
	deps.Cascade = tracker
	deps.Pipeline = commit.NewPipeline(client, commit.WithLogger(log), commit.WithMetrics(m))

	if err := os.MkdirAll(cfg.DraftReposDir, 0o755); err != nil {
		return errors.Wrap(err, "create draft repos dir")
	}
	deps.Journal = gitrepo.New(cfg.DraftReposDir)

	closeRegistry, err := openRegistry(ctx, cfg, log, &deps)
	if err != nil {
		return err
	}
	defer closeRegistry()

	if cfg.Archive.Enabled() {
		payloads, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		}, log)
		if err != nil {
			return errors.Wrap(err, "archive setup failed")
		}
		deps.Archive = payloads
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		deps.Meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
	}

	service := app.New(deps)
	defer service.Close()
	if err := service.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "bootstrap failed")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin, metricsHandler, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("gazette API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown error")
		}
		// Outstanding warning writes get the rest of the shutdown window.
		if err := tracker.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("warning writes still pending at shutdown")
		}
		return nil
	})
	return g.Wait()
}

// openRegistry sets the Postgres registry when DATABASE_URL is set and an
// in-memory one otherwise.
func openRegistry(ctx context.Context, cfg config.Config, log *logrus.Entry, deps *app.Deps) (func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Warn("DATABASE_URL not set; commit log is kept in memory")
		deps.Registry = store.NewMemoryStore(store.DefaultPresidents)
		return func() {}, nil
	}

	conn, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "database connection failed")
	}
	applied, err := migrate(ctx, conn, cfg.MigrationsDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.WithField("applied", applied).Info("migrations applied")
	}
	pg := store.NewPostgresStore(conn)
	if err := pg.EnsurePresidents(ctx, store.DefaultPresidents); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "seed presidents")
	}
	deps.Registry = pg
	return func() { conn.Close() }, nil
}
