// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	// Queue hands launches to the worker; without it they run inline.
	Queue queue.Queue
	Log   logrus.FieldLogger
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	var body struct {
		LinkedInURL      string  `json:"linkedin_url"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), campaignID, body.LinkedInURL, body.OverrideTemplate)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"linkedin_url":     body.LinkedInURL,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	variant := r.URL.Query().Get("variant")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, variant, status)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	var input service.UpdateCampaignInput
	if err := decodeBody(r, &input); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), id, input)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, campaign)
}

// SetCampaignStatus handles PUT /campaigns/{id}/status with {"status": "paused"}.
func (c *CampaignController) SetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.SetCampaignStatus(r.Context(), id, body.Status)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	if err := c.CampaignService.DeleteCampaign(r.Context(), id); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LaunchCampaign queues an agent launch, or runs it inline when no queue is wired.
func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	if c.Queue == nil {
		result, err := c.CampaignService.LaunchCampaign(r.Context(), id)
		if err != nil {
			RespondError(w, c.Log, err)
			return
		}
		RespondJSON(w, http.StatusOK, result)
		return
	}

	// fail fast on unknown campaigns instead of queueing a job that cannot succeed
	if _, err := c.CampaignService.GetCampaignDetails(r.Context(), id); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	job := queue.NewJob(service.JobLaunch, id)
	if err := c.Queue.Publish(queue.TopicLaunch, job); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"job_id":      job.ID,
		"status":      "queued",
	})
}
