package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
)

// RespondJSON writes v with the given status.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError maps err onto a status code and writes {"error": "..."}.
// Server-side failures are logged; caller mistakes are not.
func RespondError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := appErrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.WithError(err).WithField("status", status).Error("❌ Request failed")
	}
	RespondJSON(w, status, map[string]string{"error": err.Error()})
}

func urlParamID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, appErrors.Validation("invalid id")
	}
	return id, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.Validation("invalid body: " + err.Error())
	}
	return nil
}
