package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/queue"
)

// Job kinds understood by the worker.
const (
	JobSync     = "sync"
	JobFollowup = "followup"
	JobLaunch   = "launch"
)

// TopicFor maps a job kind onto its queue topic.
func TopicFor(kind string) (string, error) {
	switch kind {
	case JobSync:
		return queue.TopicSync, nil
	case JobFollowup:
		return queue.TopicFollowup, nil
	case JobLaunch:
		return queue.TopicLaunch, nil
	}
	return "", appErrors.Validation(fmt.Sprintf("unknown job kind %q", kind))
}

// Passes is what the worker drives. *OutreachService satisfies it.
type Passes interface {
	Sync(ctx context.Context) (BatchResult, error)
	RunFollowups(ctx context.Context) (BatchResult, error)
}

// CampaignLauncher launches a stored campaign. *CampaignService satisfies it.
type CampaignLauncher interface {
	LaunchCampaign(ctx context.Context, campaignID int) (*LaunchResult, error)
}

// Worker processes queued pass jobs
type Worker struct {
	Passes    Passes
	Campaigns CampaignLauncher
	Ctx       context.Context
	Log       logrus.FieldLogger
}

// Constructor
func NewWorker(ctx context.Context, passes Passes, campaigns CampaignLauncher, log logrus.FieldLogger) *Worker {
	return &Worker{Passes: passes, Campaigns: campaigns, Ctx: ctx, Log: log}
}

// Handle runs one job. Returning an error asks the queue to retry it; a pass
// skipped because another one is running is not retried. A launch that
// reached the agent and failed is not retried either, since repeating it may
// start a second run.
func (w *Worker) Handle(job queue.Job) error {
	entry := w.Log.WithFields(logrus.Fields{"job_id": job.ID, "kind": job.Kind})
	entry.Info("📩 Processing job")

	var (
		res BatchResult
		err error
	)
	switch job.Kind {
	case JobSync:
		res, err = w.Passes.Sync(w.Ctx)
	case JobFollowup:
		res, err = w.Passes.RunFollowups(w.Ctx)
	case JobLaunch:
		if w.Campaigns == nil {
			entry.Warn("⚠️ Launch job received but campaigns are not configured")
			return nil
		}
		_, err = w.Campaigns.LaunchCampaign(w.Ctx, job.CampaignID)
	default:
		entry.Warn("⚠️ Unknown job kind, dropping")
		return nil
	}

	switch {
	case job.Kind == JobLaunch && (errors.Is(err, appErrors.ErrTransport) || errors.Is(err, appErrors.ErrMalformedResponse)):
		entry.WithError(err).WithField("campaign_id", job.CampaignID).Error("❌ Campaign launch failed, not retrying")
		return nil
	case errors.Is(err, appErrors.ErrPassInProgress):
		entry.Info("Pass already running elsewhere, skipping job")
		return nil
	case errors.Is(err, appErrors.ErrValidation), errors.Is(err, appErrors.ErrNotFound):
		entry.WithError(err).Warn("⚠️ Job cannot succeed, dropping")
		return nil
	case err != nil:
		return err
	}

	entry.WithFields(logrus.Fields{"processed": res.Processed, "total": res.Total}).Info("✅ Job processed successfully")
	return nil
}

// Subscribe registers the worker for every job topic on q.
func (w *Worker) Subscribe(q queue.Queue) error {
	for _, topic := range []string{queue.TopicSync, queue.TopicFollowup, queue.TopicLaunch} {
		if err := q.Subscribe(topic, w.Handle); err != nil {
			return fmt.Errorf("failed to start subscriber for %s: %w", topic, err)
		}
	}
	return nil
}

// RunCycle is the periodic workflow: sync, then follow up.
func (w *Worker) RunCycle(ctx context.Context) {
	if res, err := w.Passes.Sync(ctx); err != nil {
		w.Log.WithError(err).Warn("⚠️ Scheduled sync failed")
	} else {
		w.Log.WithFields(logrus.Fields{"processed": res.Processed, "total": res.Total}).Info("Scheduled sync done")
	}

	if res, err := w.Passes.RunFollowups(ctx); err != nil {
		w.Log.WithError(err).Warn("⚠️ Scheduled follow-up pass failed")
	} else {
		w.Log.WithFields(logrus.Fields{"processed": res.Processed, "total": res.Total}).Info("Scheduled follow-up pass done")
	}
}
