package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/speedwagon-io/homechecks/internal/buffer"
	"github.com/speedwagon-io/homechecks/internal/collector"
	"github.com/speedwagon-io/homechecks/internal/collector/adapters"
	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/health"
	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
	"github.com/speedwagon-io/homechecks/internal/sender"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log metrics instead of sending")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting homechecks",
		slog.String("env", cfg.Env),
		slog.String("sender", cfg.Sender.Type),
		slog.Bool("dry_run", *dryRun),
	)

	jobs, err := buildJobs(log, cfg)
	if err != nil {
		log.Error("failed to set up checks", sl.Err(err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var dataSender sender.Sender
	if *dryRun {
		dataSender = sender.NewLogSender(log)
		log.Info("dry-run mode: metrics will be logged instead of sent")
	} else {
		dataSender, err = sender.New(log, &cfg.Sender)
		if err != nil {
			log.Error("failed to create sender", sl.Err(err))
			os.Exit(1)
		}
	}

	if ps, ok := dataSender.(*sender.PrometheusSender); ok {
		registry.MustRegister(ps)
	}

	var buf buffer.Buffer
	var sqliteBuf *buffer.SQLiteBuffer
	if cfg.Buffer.Enabled && !*dryRun {
		sqliteBuf, err = buffer.NewSQLiteBuffer(log, cfg.Buffer.Path)
		if err != nil {
			log.Error("failed to create buffer", sl.Err(err))
			os.Exit(1)
		}
		buf = sqliteBuf
		log.Info("buffer enabled", slog.String("path", cfg.Buffer.Path))
	}

	manager := collector.NewManager(log, jobs, dataSender, buf, cfg.Polling.Timeout, cfg.Buffer.MaxAge)

	healthServer := health.NewServer(log, cfg.Health.Address)
	healthServer.ExposeMetrics(registry)
	healthServer.SetReadiness(manager.Ready)
	healthServer.AddDelivery(health.NewSenderReporter(senderKind(cfg, *dryRun), dataSender.Health))
	if sqliteBuf != nil {
		healthServer.AddDelivery(health.NewBufferReporter(sqliteBuf.Count, cfg.Buffer.MaxPending))
	}
	for _, job := range jobs {
		healthServer.AddCheck(health.NewCycleReporter(job.Check.Name(), manager.Status))
	}

	if err := healthServer.Start(); err != nil {
		log.Error("failed to start health server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	manager.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	manager.Stop()

	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop health server", sl.Err(err))
	}

	if err := dataSender.Close(); err != nil {
		log.Error("failed to close sender", sl.Err(err))
	}

	if buf != nil {
		if err := buf.Close(); err != nil {
			log.Error("failed to close buffer", sl.Err(err))
		}
	}

	log.Info("homechecks stopped")
}

func senderKind(cfg *config.Config, dryRun bool) string {
	if dryRun {
		return config.SenderLog
	}
	return cfg.Sender.Type
}

// buildJobs creates one job per enabled check.
func buildJobs(log *slog.Logger, cfg *config.Config) ([]collector.Job, error) {
	var jobs []collector.Job
	checks := cfg.Checks

	if checks.Cozytouch.Enabled {
		c, err := adapters.NewCozytouch(log.With(slog.String("check", "cozytouch")), &checks.Cozytouch, cfg.Polling.Timeout)
		if err != nil {
			return nil, fmt.Errorf("cozytouch: %w", err)
		}
		jobs = append(jobs, newJob(log, c, checks.Cozytouch.Prefix, adapters.CozytouchLayouts, cfg.IntervalFor(checks.Cozytouch.Interval)))
	}

	if checks.Netatmo.Enabled {
		n := adapters.NewNetatmo(log.With(slog.String("check", "netatmo")), &checks.Netatmo, cfg.Polling.Timeout)
		jobs = append(jobs, newJob(log, n, checks.Netatmo.Prefix, adapters.NetatmoLayouts, cfg.IntervalFor(checks.Netatmo.Interval)))
	}

	if checks.SBFspot.Enabled {
		s, err := adapters.NewSBFspot(log.With(slog.String("check", "sbfspot")), &checks.SBFspot)
		if err != nil {
			return nil, fmt.Errorf("sbfspot: %w", err)
		}
		jobs = append(jobs, newJob(log, s, checks.SBFspot.Prefix, adapters.SBFspotLayouts, cfg.IntervalFor(checks.SBFspot.Interval)))
	}

	return jobs, nil
}

func newJob(log *slog.Logger, check collector.Check, prefix string, layouts map[string]pipeline.Layout, interval time.Duration) collector.Job {
	return collector.Job{
		Check:    check,
		Walker:   pipeline.NewWalker(log.With(slog.String("check", check.Name())), prefix, layouts),
		Interval: interval,
	}
}
