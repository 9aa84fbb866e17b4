package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web3-frozen/akash-stats-bot/internal/akash"
	"github.com/web3-frozen/akash-stats-bot/internal/chart"
	"github.com/web3-frozen/akash-stats-bot/internal/config"
	"github.com/web3-frozen/akash-stats-bot/internal/dedup"
	"github.com/web3-frozen/akash-stats-bot/internal/handler"
	"github.com/web3-frozen/akash-stats-bot/internal/middleware"
	"github.com/web3-frozen/akash-stats-bot/internal/narrator"
	"github.com/web3-frozen/akash-stats-bot/internal/pipeline"
	"github.com/web3-frozen/akash-stats-bot/internal/poster"
	"github.com/web3-frozen/akash-stats-bot/internal/scheduler"
	"github.com/web3-frozen/akash-stats-bot/internal/store"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding settings.yaml and .secrets.yaml")
	once := flag.Bool("once", false, "run the report once and exit")
	snapshot := flag.String("snapshot", "", "print the report composed from a saved raw snapshot and exit")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	// Offline replay needs no poster credentials.
	if *snapshot != "" {
		p := pipeline.New(pipeline.Deps{Fetcher: akash.NewSnapshotFetcher(*snapshot)}, pipeline.Options{}, logger)
		text, _, err := p.Preview(context.Background(), time.Now())
		if err != nil {
			logger.Error("snapshot preview failed", "path", *snapshot, "error", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := akash.NewFetcher(cfg.AkashAPI.ConsoleServer, cfg.AkashAPI.CloudmosServer, logger)
	deps := pipeline.Deps{
		Fetcher:  fetcher,
		Renderer: chart.New(logger),
		Narrator: narrator.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger,
			narrator.WithCharLimit(cfg.OpenAI.CharLimit)),
		Poster: poster.NewThreader(newBackend(cfg, logger), cfg.Schedule.PostPause, logger),
	}
	ready := map[string]handler.Pinger{}
	var (
		runLister handler.RunLister
		posted    handler.PostedGuard
	)

	// Run log
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected and migrated")
		deps.RunLog = db
		runLister = db
		ready["postgres"] = db
	}

	// Redis dedup (retry up to 30s for ExternalSecret to sync)
	if cfg.RedisURL != "" {
		var dd *dedup.Deduplicator
		for i := 0; i < 6; i++ {
			dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Error("failed to connect to redis after retries", "error", err)
			os.Exit(1)
		}
		defer dd.Close()
		logger.Info("redis connected for report dedup")
		deps.Guard = dd
		posted = dd
		ready["redis"] = dd
	}

	p := pipeline.New(deps, pipeline.Options{
		PlotDir:     cfg.PlotDir,
		SnapshotDir: cfg.SnapshotDir,
		Window:      chart.Window{Granularity: cfg.Schedule.Granularity, Amount: cfg.Schedule.Amount},
	}, logger)

	if *once {
		out, err := p.Run(ctx, time.Now())
		switch {
		case errors.Is(err, pipeline.ErrAlreadyPosted):
			logger.Info("report already posted today", "root_id", out.RootID)
		case err != nil:
			logger.Error("report run failed", "error", err)
			os.Exit(1)
		default:
			logger.Info("report posted", "root_id", out.RootID, "duration", out.Duration)
		}
		return
	}

	sched, err := scheduler.New(cfg.Schedule.Time, cfg.Schedule.Timezone, cfg.Schedule.PollInterval,
		func(ctx context.Context, now time.Time) error {
			_, err := p.Run(ctx, now)
			return err
		}, logger)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}
	go sched.Run(ctx)
	logger.Info("scheduler started", "next", sched.Next())

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(ready))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", handler.Stats(p))
		r.Get("/runs", handler.ListRuns(runLister))
		r.Get("/report/preview", handler.PreviewReport(p))
		r.Post("/run", handler.TriggerRun(p))
		r.Delete("/posted/{date}", handler.ClearPosted(posted))
		r.Get("/raw", handler.ListRawMetrics(fetcher))
		r.Get("/raw/{metric}", handler.RawMetric(fetcher))
	})

	// POST /api/run holds the connection for a whole run.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newBackend(cfg config.Config, logger *slog.Logger) poster.Backend {
	switch cfg.Poster {
	case config.PosterTelegram:
		return poster.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	case config.PosterDryRun:
		return poster.NewDryRun(logger)
	default:
		return poster.NewX(poster.XCredentials{
			ConsumerKey:       cfg.X.ConsumerKey,
			ConsumerSecret:    cfg.X.ConsumerSecret,
			AccessToken:       cfg.X.AccessToken,
			AccessTokenSecret: cfg.X.AccessTokenSecret,
		})
	}
}
