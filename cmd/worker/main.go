package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/outreach-engine/internal/app"
	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func main() {
	cfg := config.Load(logging.NewLogger("info", os.Getenv("APP_ENV")))
	log := logging.NewLoggerWithService("outreach-worker", cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, nil, false)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to initialize")
	}
	defer a.Close()

	worker := service.NewWorker(ctx, a.Outreach, a.CampaignService, log)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		q, err := a.NewQueue()
		if err != nil {
			log.WithError(err).Fatal("❌ Failed to connect to job queue")
		}
		if err := worker.Subscribe(q); err != nil {
			log.WithError(err).Fatal("❌ Failed to register consumers")
		}
		log.WithField("queue", cfg.AMQPQueue).Info("Worker consuming jobs")
	} else {
		log.Warn("⚠️ AMQP_URL not set, only scheduled passes will run")
	}

	g.Go(func() error {
		runSchedule(gctx, cfg.SyncInterval, log, worker.RunCycle)
		return nil
	})

	log.WithField("interval", cfg.SyncInterval).Info("🚀 Worker running")
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("❌ Worker stopped with error")
	}
}

// runSchedule calls cycle once right away and then every interval until ctx
// is done. A cycle that overruns the interval delays the next one.
func runSchedule(ctx context.Context, interval time.Duration, log logrus.FieldLogger, cycle func(context.Context)) {
	if interval <= 0 {
		interval = time.Hour
	}

	cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			cycle(ctx)
		}
	}
}
