package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journey-animator/internal/animate"
	"journey-animator/internal/config"
	"journey-animator/internal/db"
	"journey-animator/internal/logging"
	"journey-animator/internal/marker"
	"journey-animator/internal/metrics"
	"journey-animator/internal/publisher"
)

func main() {
	// Load configuration from the optional file, .env and environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.NewStructuredLogger(os.Stdout, level)
	fatal := func(msg string, err error) {
		logging.LogError(logger, msg, err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		fatal("db open error", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		fatal("db ping error", err)
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		// A read-only role can still load an existing network.
		logging.LogError(logger, "ensure schema failed", err)
	}

	start := time.Now()
	snap, err := db.LoadSnapshot(ctx, sqlDB)
	if err != nil {
		fatal("load network error", err)
	}
	logging.LogOperation(logger, "network loaded",
		slog.Int("nodes", snap.NodeCount()),
		slog.Int("links", snap.LinkCount()),
		slog.Int("trips", len(snap.Trips())),
		slog.Duration("duration", time.Since(start)))

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(time.Duration(cfg.Step) * time.Second)
		srv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pubs := map[string]publisher.Publisher{}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, mcol.ForSink("nats"), logger)
		if err != nil {
			fatal("nats error", err)
		}
		defer pub.Close()
		pubs["nats"] = pub
	}
	if cfg.AMQPURL != "" {
		pub, err := publisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, mcol.ForSink("amqp"), logger)
		if err != nil {
			fatal("amqp error", err)
		}
		defer pub.Close()
		pubs["amqp"] = pub
	}

	sink, err := marker.NewDirSink(cfg.OutputDir, cfg.OutputBase)
	if err != nil {
		fatal("output error", err)
	}

	anim := animate.New(snap, sink, animate.Options{
		Workers:    cfg.Workers,
		Publishers: pubs,
		Metrics:    mcol,
		Logger:     logger,
	})
	win := animate.Window{Start: cfg.Start, End: cfg.End, Step: cfg.Step}
	if err := anim.Run(ctx, win); err != nil {
		if ctx.Err() != nil {
			logger.Info("animation interrupted", slog.String("run_id", anim.RunID()))
			return
		}
		// Deferred cleanup is skipped by os.Exit, so close the store first.
		sqlDB.Close()
		fatal("animation failed", err)
	}
	logger.Info("animation complete",
		slog.String("run_id", anim.RunID()),
		slog.Int("frames", win.Len()),
		slog.String("output", cfg.OutputDir))
}
