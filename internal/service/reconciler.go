package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/metrics"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// Reconciler folds agent outcome records into the contact store.
type Reconciler struct {
	Store   repository.ContactStore
	Log     logrus.FieldLogger
	Metrics *metrics.Collector
}

func NewReconciler(store repository.ContactStore, log logrus.FieldLogger, m *metrics.Collector) *Reconciler {
	return &Reconciler{Store: store, Log: log, Metrics: m}
}

// Reconcile applies outcomes in order and returns how many were applied.
//
// A record that cannot be applied is logged and skipped. Only an unreachable
// store or a cancelled ctx stops the batch; the count applied so far is
// returned with the error.
func (r *Reconciler) Reconcile(ctx context.Context, outcomes []model.OutcomeRecord) (int, error) {
	applied := 0
	for i, rec := range outcomes {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		entry := r.Log.WithFields(logrus.Fields{"index": i, "linkedin_url": rec.LinkedInURL})

		rec.LinkedInURL = strings.TrimSpace(rec.LinkedInURL)
		if rec.LinkedInURL == "" {
			entry.Warn("⚠️ Skipping outcome with empty identity")
			r.Metrics.Outcome(metrics.ResultSkipped)
			continue
		}
		if rec.Status == model.StatusUnknown {
			// same default the agent payload decoder applies
			rec.Status = model.StatusInvitationSent
		}
		if !rec.Status.Valid() {
			entry.Warn("⚠️ Skipping outcome with unknown status")
			r.Metrics.Outcome(metrics.ResultSkipped)
			continue
		}

		result, err := r.apply(ctx, rec, entry)
		if err != nil {
			if errors.Is(err, appErrors.ErrStoreUnavailable) || ctx.Err() != nil {
				entry.WithError(err).Error("❌ Aborting reconciliation")
				return applied, err
			}
			entry.WithError(err).Error("⚠️ Failed to apply outcome, skipping")
			r.Metrics.Outcome(metrics.ResultFailed)
			continue
		}

		applied++
		r.Metrics.Outcome(result)
	}

	r.Log.WithFields(logrus.Fields{"applied": applied, "total": len(outcomes)}).Info("Reconciled outcome batch")
	return applied, nil
}

// applyAttempts bounds how often apply re-reads a contact that a concurrent
// follow-up changed under it.
const applyAttempts = 3

func (r *Reconciler) apply(ctx context.Context, rec model.OutcomeRecord, entry logrus.FieldLogger) (string, error) {
	var err error
	for i := 0; i < applyAttempts; i++ {
		var result string
		result, err = r.applyOnce(ctx, rec, entry)
		if !errors.Is(err, appErrors.ErrContactChanged) {
			return result, err
		}
		entry.Debug("Contact changed during reconciliation, re-reading")
	}
	return "", err
}

func (r *Reconciler) applyOnce(ctx context.Context, rec model.OutcomeRecord, entry logrus.FieldLogger) (string, error) {
	existing, err := r.Store.GetByIdentity(ctx, rec.LinkedInURL)
	if err != nil {
		return "", err
	}

	if existing == nil {
		contact, created, err := r.Store.UpsertByIdentity(ctx, newContactFromOutcome(rec))
		if err != nil {
			return "", err
		}
		if created {
			entry.Debug("Created contact")
			return metrics.ResultCreated, nil
		}
		// lost a race with another writer; continue on the update path
		existing = contact
	}

	if rec.Status.IsRegressionFrom(existing.Status) {
		entry.WithFields(logrus.Fields{
			"from": existing.Status.String(),
			"to":   rec.Status.String(),
		}).Warn("⚠️ Outcome moves status backward")
	}

	updated := existing.Clone()
	updated.Status = rec.Status
	updated.RepliedConnection = rec.Replied
	updated.RepliedFollowup = rec.FollowupSent
	if err := r.Store.Update(ctx, updated); err != nil {
		return "", err
	}
	entry.Debug("Updated contact")
	return metrics.ResultUpdated, nil
}

func newContactFromOutcome(rec model.OutcomeRecord) *model.Contact {
	return &model.Contact{
		LinkedInURL:       rec.LinkedInURL,
		Name:              rec.DisplayName(),
		FirstName:         rec.FirstName,
		LastName:          rec.LastName,
		Company:           rec.Company,
		JobTitle:          rec.JobTitle,
		Status:            rec.Status,
		Variant:           model.NormalizeVariant(string(rec.Variant)),
		RepliedConnection: rec.Replied,
		RepliedFollowup:   rec.FollowupSent,
	}
}
