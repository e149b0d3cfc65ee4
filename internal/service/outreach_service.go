package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/lock"
	"github.com/unclebandit/outreach-engine/internal/metrics"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// passLockName guards every pass that writes to the contact store.
const passLockName = "contact-pass"

// ResultFetcher pulls outcome records from the automation agent.
type ResultFetcher interface {
	FetchResults(ctx context.Context) ([]model.OutcomeRecord, error)
}

// BatchResult reports "N of M processed" for a pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// OutreachService is the entry point the HTTP layer, the worker and the CLI
// drive the engine through.
type OutreachService struct {
	Store      repository.ContactRepositoryInterface
	Reconciler *Reconciler
	Scheduler  *FollowupScheduler
	Agent      ResultFetcher
	Locker     lock.Locker
	Log        logrus.FieldLogger
	Metrics    *metrics.Collector
}

// withPassLock runs fn while holding the pass lock. A nil Locker leaves
// serialization to the caller.
func (s *OutreachService) withPassLock(ctx context.Context, pass string, fn func() error) error {
	if s.Locker != nil {
		release, ok, err := s.Locker.TryAcquire(ctx, passLockName)
		if err != nil {
			return err
		}
		if !ok {
			s.Log.WithField("pass", pass).Warn("⚠️ Another pass holds the contact store, skipping")
			return appErrors.ErrPassInProgress
		}
		defer release()
	}

	defer s.Metrics.ObservePass(pass, time.Now())
	return fn()
}

// Sync fetches the agent's results and reconciles them.
func (s *OutreachService) Sync(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	err := s.withPassLock(ctx, "sync", func() error {
		outcomes, err := s.Agent.FetchResults(ctx)
		if err != nil {
			return err
		}
		res.Total = len(outcomes)
		res.Processed, err = s.Reconciler.Reconcile(ctx, outcomes)
		return err
	})
	return res, err
}

// Reconcile merges outcomes reported directly by a caller.
func (s *OutreachService) Reconcile(ctx context.Context, outcomes []model.OutcomeRecord) (BatchResult, error) {
	res := BatchResult{Total: len(outcomes)}
	err := s.withPassLock(ctx, "reconcile", func() error {
		var err error
		res.Processed, err = s.Reconciler.Reconcile(ctx, outcomes)
		return err
	})
	return res, err
}

// RunFollowups runs one follow-up pass over the currently eligible contacts.
func (s *OutreachService) RunFollowups(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	err := s.withPassLock(ctx, "followup", func() error {
		contacts, err := s.Scheduler.SelectEligible(ctx)
		if err != nil {
			return err
		}
		res.Total = len(contacts)
		res.Processed, err = s.Scheduler.Process(ctx, contacts)
		return err
	})
	return res, err
}

func (s *OutreachService) EligibleContacts(ctx context.Context) ([]*model.Contact, error) {
	return s.Scheduler.SelectEligible(ctx)
}

// Contacts lists contacts matching filter, narrowed by a company substring when given.
func (s *OutreachService) Contacts(ctx context.Context, filter model.ContactFilter, company string) ([]*model.Contact, error) {
	contacts, err := s.Store.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return repository.FilterByCompany(contacts, company), nil
}

func (s *OutreachService) Contact(ctx context.Context, identity string) (*model.Contact, error) {
	c, err := s.Store.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, appErrors.NewContactNotFound(identity)
	}
	return c, nil
}

func (s *OutreachService) Analytics(ctx context.Context) (*model.Analytics, error) {
	return s.Store.Analytics(ctx)
}
