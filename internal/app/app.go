// Package app wires configuration, storage, clients and services into the
// object graph shared by the server, the worker and the CLI.
package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/client"
	"github.com/unclebandit/outreach-engine/internal/client/agent"
	"github.com/unclebandit/outreach-engine/internal/client/llm"
	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/db"
	"github.com/unclebandit/outreach-engine/internal/lock"
	"github.com/unclebandit/outreach-engine/internal/metrics"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
	"github.com/unclebandit/outreach-engine/internal/service"
)

type App struct {
	Config  *config.Config
	Log     logrus.FieldLogger
	DB      *sql.DB
	Metrics *metrics.Collector

	Contacts  *repository.ContactRepository
	Campaigns *repository.CampaignRepository
	Templates *repository.TemplateRepository

	Agent *agent.Client

	Outreach        *service.OutreachService
	CampaignService *service.CampaignService
	TemplateService *service.TemplateService

	closers []func() error
}

// New connects to the database (retrying while it starts up), applies
// migrations when migrate is set and builds the services.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, reg *prometheus.Registry, migrate bool) (*App, error) {
	var conn *sql.DB
	err := db.WithRetry(ctx, log, "connect database", 5, time.Second, func() error {
		var err error
		conn, err = db.Open(ctx, db.DefaultOptions(cfg.DatabaseURL), log)
		return err
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, DB: conn}
	a.closers = append(a.closers, conn.Close)

	if migrate {
		if err := db.Migrate(ctx, conn); err != nil {
			_ = a.Close()
			return nil, err
		}
		log.Info("✅ Database schema is up to date")
	}

	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	a.Contacts = repository.NewContactRepository(conn)
	a.Campaigns = &repository.CampaignRepository{DB: conn}
	a.Templates = &repository.TemplateRepository{DB: conn}

	a.Agent = agent.NewClient(agent.Config{
		BaseURL:                   cfg.AgentAPIBase,
		APIKey:                    cfg.AgentAPIKey,
		AgentID:                   cfg.AgentID,
		DefaultConnectionTemplate: cfg.DefaultConnectionTemplate,
		Timeout:                   30 * time.Second,
		Retry:                     client.DefaultRetryConfig(),
	}, log)

	a.TemplateService = &service.TemplateService{
		Repo:                      a.Templates,
		DefaultConnectionTemplate: cfg.DefaultConnectionTemplate,
		Log:                       log,
	}

	a.CampaignService = &service.CampaignService{
		CampaignRepo: a.Campaigns,
		ContactRepo:  a.Contacts,
		Templates:    a.TemplateService,
		Agent:        a.Agent,
		Log:          log,
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Outreach = &service.OutreachService{
		Store:      a.Contacts,
		Reconciler: service.NewReconciler(a.Contacts, log, a.Metrics),
		Scheduler: service.NewFollowupScheduler(
			a.Contacts, a.followupGenerator(), cfg.MaxFollowupAttempts, cfg.FollowupDelay, log, a.Metrics,
		),
		Agent:   a.Agent,
		Locker:  locker,
		Log:     log,
		Metrics: a.Metrics,
	}

	return a, nil
}

// followupGenerator uses the generation service when a key is configured and
// the stored follow-up templates otherwise.
func (a *App) followupGenerator() service.FollowupGenerator {
	if a.Config.LLMAPIKey == "" {
		a.Log.Warn("⚠️ DEEPSEEK_API_KEY not set, follow-ups will use stored templates")
		return &service.TemplateFollowupGenerator{Repo: a.Templates}
	}
	return llm.NewClient(llm.Config{
		APIURL:  a.Config.LLMAPIURL,
		APIKey:  a.Config.LLMAPIKey,
		Model:   a.Config.LLMModel,
		Timeout: 30 * time.Second,
		Retry:   client.DefaultRetryConfig(),
	}, a.Log)
}

// newLocker leases the pass lock in Redis when configured. Without Redis
// passes are serialized within this process only; across processes the
// conditional contact writes still keep attempt counts and replies intact.
func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.RedisURL == "" {
		a.Log.Warn("⚠️ REDIS_URL not set, passes are serialized within this process only")
		return lock.NewMemoryLocker(), nil
	}
	locker, err := lock.NewRedisLockerFromURL(ctx, a.Config.RedisURL, a.Config.PassLockTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, locker.Close)
	a.Log.Info("✅ Pass lock backed by Redis")
	return locker, nil
}

// NewQueue dials RabbitMQ when AMQP_URL is set and falls back to an
// in-process queue otherwise.
func (a *App) NewQueue() (queue.Queue, error) {
	if a.Config.AMQPURL == "" {
		a.Log.Info("AMQP_URL not set, using in-memory job queue")
		return queue.NewInMemoryQueue(a.Log), nil
	}

	var q *queue.AMQPQueue
	err := db.WithRetry(context.Background(), a.Log, "connect rabbitmq", 5, time.Second, func() error {
		var err error
		q, err = queue.DialAMQP(a.Config.AMQPURL, a.Config.AMQPQueue, a.Log)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	a.Log.Info("✅ Connected to RabbitMQ")
	return q, nil
}

// Close releases everything New and NewQueue opened, newest first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
