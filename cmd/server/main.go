// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/outreach-engine/internal/app"
	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/controller"
	"github.com/unclebandit/outreach-engine/internal/handler"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func main() {
	cfg := config.Load(logging.NewLogger("info", os.Getenv("APP_ENV")))
	log := logging.NewLoggerWithService("outreach-server", cfg.LogLevel, cfg.Env)

	for _, missing := range cfg.Validate() {
		log.WithField("setting", missing).Warn("⚠️ Configuration incomplete")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, reg, true)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to initialize")
	}
	defer a.Close()

	if n, err := a.TemplateService.SeedDefaults(ctx); err != nil {
		log.WithError(err).Warn("⚠️ Failed to seed default templates")
	} else if n > 0 {
		log.WithField("count", n).Info("Seeded default templates")
	}

	q, err := a.NewQueue()
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to set up job queue")
	}

	// with a broker, cmd/worker consumes; otherwise jobs run in this process
	if _, inProcess := q.(*queue.InMemoryQueue); inProcess {
		worker := service.NewWorker(ctx, a.Outreach, a.CampaignService, log)
		if err := worker.Subscribe(q); err != nil {
			log.WithError(err).Fatal("❌ Failed to start in-process worker")
		}
	}

	router := handler.NewRouter(handler.Routes{
		Outreach: &handler.OutreachHandler{Outreach: a.Outreach, Queue: q, DB: a.DB, Log: log},
		Campaigns: &controller.CampaignController{
			CampaignService: a.CampaignService,
			Queue:           q,
			Log:             log,
		},
		Contacts:  &controller.ContactController{Outreach: a.Outreach, Log: log},
		Templates: &controller.TemplateController{Templates: a.TemplateService, Log: log},
		Metrics:   a.Metrics,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("❌ Server stopped with error")
	}
	if mq, ok := q.(*queue.InMemoryQueue); ok {
		mq.Wait()
	}
}
