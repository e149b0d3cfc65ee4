// internal/handler/outreach_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/controller"
	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/service"
)

const Version = "1.0.0"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// OutreachHandler exposes the pass operations of the engine over HTTP.
type OutreachHandler struct {
	Outreach *service.OutreachService
	Queue    queue.Queue
	DB       Pinger
	Log      logrus.FieldLogger
}

// Sync fetches the agent's results and reconciles them.
func (h *OutreachHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Outreach.Sync(r.Context())
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	controller.RespondJSON(w, http.StatusOK, res)
}

// ReportOutcomes reconciles a JSON array of outcome records pushed by a caller.
// Entries that do not decode are counted in total but never applied.
func (h *OutreachHandler) ReportOutcomes(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		controller.RespondError(w, h.Log, appErrors.Validation("body must be a JSON array of outcomes"))
		return
	}

	outcomes := make([]model.OutcomeRecord, 0, len(raw))
	for i, item := range raw {
		var rec model.OutcomeRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			h.Log.WithError(err).WithField("index", i).Warn("⚠️ Dropping undecodable outcome")
			continue
		}
		outcomes = append(outcomes, rec)
	}

	res, err := h.Outreach.Reconcile(r.Context(), outcomes)
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	res.Total = len(raw)
	controller.RespondJSON(w, http.StatusOK, res)
}

// EligibleFollowups lists the contacts a follow-up pass would pick right now.
func (h *OutreachHandler) EligibleFollowups(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Outreach.EligibleContacts(r.Context())
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	controller.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  contacts,
		"count": len(contacts),
	})
}

func (h *OutreachHandler) RunFollowups(w http.ResponseWriter, r *http.Request) {
	res, err := h.Outreach.RunFollowups(r.Context())
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	controller.RespondJSON(w, http.StatusOK, res)
}

func (h *OutreachHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.Outreach.Analytics(r.Context())
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	controller.RespondJSON(w, http.StatusOK, a)
}

// EnqueueJob publishes a sync or follow-up job for the worker.
func (h *OutreachHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind == service.JobLaunch {
		controller.RespondError(w, h.Log, appErrors.Validation("launch jobs are queued through /campaigns/{id}/launch"))
		return
	}
	topic, err := service.TopicFor(kind)
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}
	if h.Queue == nil {
		controller.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue not configured"})
		return
	}

	job := queue.NewJob(kind, 0)
	if err := h.Queue.Publish(topic, job); err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}

	h.Log.WithFields(logrus.Fields{"job_id": job.ID, "kind": kind}).Info("📤 Job queued")
	controller.RespondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"kind":   kind,
		"status": "queued",
	})
}

func (h *OutreachHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			h.Log.WithError(err).Warn("⚠️ Health check: database unreachable")
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
			controller.RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	controller.RespondJSON(w, http.StatusOK, body)
}

func (h *OutreachHandler) Root(w http.ResponseWriter, r *http.Request) {
	controller.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Outreach engine API",
		"version":   Version,
		"endpoints": endpoints,
	})
}
