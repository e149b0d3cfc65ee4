// internal/model/outcome.go
package model

import (
	"encoding/json"
	"strings"
)

// OutcomeRecord is one event reported by the automation agent. It is merged
// into the contact store and then discarded.
type OutcomeRecord struct {
	LinkedInURL  string  `json:"linkedinUrl"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Company      string  `json:"company"`
	JobTitle     string  `json:"jobTitle"`
	Status       Status  `json:"status"`
	Variant      Variant `json:"variant"`
	Replied      bool    `json:"replied"`
	FollowupSent bool    `json:"followUpSent"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// UnmarshalJSON applies the agent defaults: a missing status means the
// invitation was just sent, a missing variant means networking.
func (o *OutcomeRecord) UnmarshalJSON(data []byte) error {
	type alias OutcomeRecord
	var raw struct {
		alias
		Status  *string `json:"status"`
		Variant string  `json:"variant"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = OutcomeRecord(raw.alias)
	o.Status = StatusInvitationSent
	if raw.Status != nil && strings.TrimSpace(*raw.Status) != "" {
		st, err := ParseStatus(*raw.Status)
		if err != nil {
			return err
		}
		o.Status = st
	}
	o.Variant = NormalizeVariant(raw.Variant)
	return nil
}

// DisplayName joins the name parts the way contacts are named on creation.
func (o OutcomeRecord) DisplayName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}
