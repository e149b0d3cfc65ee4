package controller

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

type TemplateController struct {
	Templates *service.TemplateService
	Log       logrus.FieldLogger
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.Templates.ListTemplates(r.Context(), r.URL.Query().Get("type"), r.URL.Query().Get("variant"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"data": templates})
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string        `json:"name"`
		Variant      model.Variant `json:"variant"`
		TemplateType string        `json:"template_type"`
		Content      string        `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	t, err := c.Templates.CreateTemplate(r.Context(), body.Name, body.Variant, body.TemplateType, body.Content)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, t)
}
