package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/metrics"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

const (
	DefaultMaxFollowupAttempts = 3
	DefaultFollowupDelay       = 24 * time.Hour
)

// FollowupGenerator produces follow-up message content for a contact.
type FollowupGenerator interface {
	GenerateFollowup(ctx context.Context, c *model.Contact) (string, error)
}

// FollowupScheduler picks contacts due a follow-up and records each attempt.
type FollowupScheduler struct {
	Store       repository.ContactStore
	Generator   FollowupGenerator
	MaxAttempts int
	Delay       time.Duration
	Now         func() time.Time
	Log         logrus.FieldLogger
	Metrics     *metrics.Collector
}

func NewFollowupScheduler(store repository.ContactStore, gen FollowupGenerator, maxAttempts int, delay time.Duration, log logrus.FieldLogger, m *metrics.Collector) *FollowupScheduler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFollowupAttempts
	}
	if delay < 0 {
		delay = DefaultFollowupDelay
	}
	return &FollowupScheduler{
		Store:       store,
		Generator:   gen,
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Now:         time.Now,
		Log:         log,
		Metrics:     m,
	}
}

func (s *FollowupScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IsEligible reports whether c is due a follow-up at now.
func (s *FollowupScheduler) IsEligible(c *model.Contact, now time.Time) bool {
	if !c.Status.AllowsFollowup() || c.RepliedConnection {
		return false
	}
	if c.FollowupAttempts >= s.MaxAttempts {
		return false
	}
	if c.LastFollowupSent != nil && now.Sub(*c.LastFollowupSent) < s.Delay {
		return false
	}
	return true
}

// SelectEligible returns the contacts due a follow-up right now, newest first.
func (s *FollowupScheduler) SelectEligible(ctx context.Context) ([]*model.Contact, error) {
	accepted := model.StatusInvitationAccepted
	candidates, err := s.Store.Find(ctx, model.ContactFilter{Status: &accepted})
	if err != nil {
		return nil, err
	}

	now := s.now()
	eligible := []*model.Contact{}
	for _, c := range candidates {
		if s.IsEligible(c, now) {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

// RecordAttempt stores message as the latest follow-up for c in one
// conditional write. c is only modified once the write succeeded. When c
// changed in the store since it was read (another pass recorded a follow-up,
// or a reply arrived) ErrContactChanged is returned and nothing is written.
func (s *FollowupScheduler) RecordAttempt(ctx context.Context, c *model.Contact, message string) error {
	if c.FollowupAttempts >= s.MaxAttempts {
		return fmt.Errorf("%s: %w", c.LinkedInURL, appErrors.ErrAttemptCapReached)
	}

	now := s.now()
	if err := s.Store.RecordFollowup(ctx, c.LinkedInURL, message, c.FollowupAttempts, now); err != nil {
		return err
	}

	recorded := c.Clone()
	recorded.FollowupMessage = &message
	recorded.FollowupAttempts++
	recorded.LastFollowupSent = &now
	recorded.UpdatedAt = now
	*c = *recorded
	return nil
}

// RunFollowups generates and records a follow-up for every eligible contact
// and returns how many were advanced.
func (s *FollowupScheduler) RunFollowups(ctx context.Context) (int, error) {
	contacts, err := s.SelectEligible(ctx)
	if err != nil {
		return 0, err
	}
	return s.Process(ctx, contacts)
}

// Process runs one follow-up attempt per contact, in order. A failure for one
// contact leaves it untouched and eligible for the next pass.
func (s *FollowupScheduler) Process(ctx context.Context, contacts []*model.Contact) (int, error) {
	processed := 0
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		entry := s.Log.WithFields(logrus.Fields{"linkedin_url": c.LinkedInURL, "attempt": c.FollowupAttempts + 1})

		message, err := s.Generator.GenerateFollowup(ctx, c)
		if err != nil {
			entry.WithError(err).Warn("⚠️ Follow-up generation failed, skipping")
			s.Metrics.Followup(metrics.ResultFailed)
			continue
		}

		if err := s.RecordAttempt(ctx, c, message); err != nil {
			if errors.Is(err, appErrors.ErrStoreUnavailable) {
				entry.WithError(err).Error("❌ Aborting follow-up pass")
				return processed, err
			}
			if errors.Is(err, appErrors.ErrContactChanged) {
				entry.Info("Contact changed since selection, skipping")
				s.Metrics.Followup(metrics.ResultSkipped)
				continue
			}
			entry.WithError(err).Warn("⚠️ Failed to record follow-up, skipping")
			s.Metrics.Followup(metrics.ResultFailed)
			continue
		}

		processed++
		s.Metrics.Followup(metrics.ResultSent)
		entry.Info("✅ Follow-up recorded")
	}

	s.Log.WithFields(logrus.Fields{"processed": processed, "eligible": len(contacts)}).Info("Follow-up pass finished")
	return processed, nil
}
