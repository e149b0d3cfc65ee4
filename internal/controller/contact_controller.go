package controller

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

type ContactController struct {
	Outreach *service.OutreachService
	Log      logrus.FieldLogger
}

// ListContacts supports ?status=, ?variant= and a case-insensitive ?company= substring.
func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter model.ContactFilter
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			RespondError(w, c.Log, appErrors.Validation("unknown status "+raw))
			return
		}
		filter.Status = &st
	}
	if raw := strings.TrimSpace(q.Get("variant")); raw != "" {
		v := model.Variant(raw)
		filter.Variant = &v
	}

	contacts, err := c.Outreach.Contacts(r.Context(), filter, q.Get("company"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  contacts,
		"count": len(contacts),
	})
}

// GetContact looks a contact up by ?linkedin_url=.
func (c *ContactController) GetContact(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("linkedin_url"))
	if identity == "" {
		RespondError(w, c.Log, appErrors.Validation("linkedin_url is required"))
		return
	}

	contact, err := c.Outreach.Contact(r.Context(), identity)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, contact)
}
