package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/outreach-engine/internal/controller"
	"github.com/unclebandit/outreach-engine/internal/metrics"
)

// Routes groups everything the API serves.
type Routes struct {
	Outreach  *OutreachHandler
	Campaigns *controller.CampaignController
	Contacts  *controller.ContactController
	Templates *controller.TemplateController
	Metrics   *metrics.Collector
}

var endpoints = []string{
	"GET /health",
	"GET /metrics",
	"POST /sync",
	"POST /outcomes",
	"GET /followups",
	"POST /followups",
	"GET /analytics",
	"POST /jobs/{kind}",
	"GET /contacts",
	"GET /contacts/lookup",
	"GET /campaigns",
	"POST /campaigns",
	"GET /campaigns/{id}",
	"PATCH /campaigns/{id}",
	"DELETE /campaigns/{id}",
	"PUT /campaigns/{id}/status",
	"POST /campaigns/{id}/launch",
	"POST /campaigns/{id}/personalized-preview",
	"GET /templates",
	"POST /templates",
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rt.Metrics.Middleware)

	r.Get("/", rt.Outreach.Root)
	r.Get("/health", rt.Outreach.Health)
	r.Method(http.MethodGet, "/metrics", rt.Metrics.Handler())

	r.Post("/sync", rt.Outreach.Sync)
	r.Post("/outcomes", rt.Outreach.ReportOutcomes)
	r.Get("/followups", rt.Outreach.EligibleFollowups)
	r.Post("/followups", rt.Outreach.RunFollowups)
	r.Get("/analytics", rt.Outreach.Analytics)
	r.Post("/jobs/{kind}", rt.Outreach.EnqueueJob)

	if rt.Contacts != nil {
		r.Get("/contacts", rt.Contacts.ListContacts)
		r.Get("/contacts/lookup", rt.Contacts.GetContact)
	}

	if rt.Campaigns != nil {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", rt.Campaigns.CreateCampaign)
			r.Get("/", rt.Campaigns.ListCampaigns)
			r.Get("/{id}", rt.Campaigns.GetCampaignDetails)
			r.Patch("/{id}", rt.Campaigns.UpdateCampaign)
			r.Delete("/{id}", rt.Campaigns.DeleteCampaign)
			r.Put("/{id}/status", rt.Campaigns.SetCampaignStatus)
			r.Post("/{id}/launch", rt.Campaigns.LaunchCampaign)
			r.Post("/{id}/personalized-preview", rt.Campaigns.PersonalizedPreview)
		})
	}

	if rt.Templates != nil {
		r.Get("/templates", rt.Templates.ListTemplates)
		r.Post("/templates", rt.Templates.CreateTemplate)
	}

	return r
}
