// internal/model/status.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
)

// Status is the outreach state of a contact. The zero value is never stored.
type Status int

const (
	StatusUnknown Status = iota
	StatusInvitationSent
	StatusInvitationAccepted
	StatusRepliedConnection
	StatusRepliedFollowup
	StatusConnectionDeclined
	StatusNoResponse
)

var statusWire = map[Status]string{
	StatusInvitationSent:     "Invitation sent",
	StatusInvitationAccepted: "Invitation accepted",
	StatusRepliedConnection:  "Replied (Connection request)",
	StatusRepliedFollowup:    "Replied (Follow-up)",
	StatusConnectionDeclined: "Connection declined",
	StatusNoResponse:         "No response",
}

var statusNames = map[string]Status{
	"invitationsent":     StatusInvitationSent,
	"invitationaccepted": StatusInvitationAccepted,
	"repliedconnection":  StatusRepliedConnection,
	"repliedfollowup":    StatusRepliedFollowup,
	"connectiondeclined": StatusConnectionDeclined,
	"noresponse":         StatusNoResponse,
}

// position in the lifecycle; declines and no-response sit beside each other
var statusRank = map[Status]int{
	StatusInvitationSent:     0,
	StatusInvitationAccepted: 1,
	StatusConnectionDeclined: 2,
	StatusNoResponse:         2,
	StatusRepliedConnection:  3,
	StatusRepliedFollowup:    3,
}

// AllStatuses lists every valid status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusInvitationSent,
		StatusInvitationAccepted,
		StatusConnectionDeclined,
		StatusNoResponse,
		StatusRepliedConnection,
		StatusRepliedFollowup,
	}
}

// ParseStatus converts a wire string ("Invitation accepted") or a constant
// name ("InvitationAccepted") into a Status.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for st, wire := range statusWire {
		if strings.EqualFold(wire, s) {
			return st, nil
		}
	}
	if st, ok := statusNames[strings.ToLower(s)]; ok {
		return st, nil
	}
	return StatusUnknown, appErrors.NewMalformedResponse("status", fmt.Sprintf("unknown status %q", s), nil)
}

func (s Status) String() string {
	if wire, ok := statusWire[s]; ok {
		return wire
	}
	return "Unknown"
}

func (s Status) Valid() bool {
	_, ok := statusWire[s]
	return ok
}

// IsTerminal reports whether no further outreach movement is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRepliedConnection, StatusRepliedFollowup, StatusConnectionDeclined, StatusNoResponse:
		return true
	}
	return false
}

// AllowsFollowup is true only for accepted invitations.
func (s Status) AllowsFollowup() bool {
	return s == StatusInvitationAccepted
}

// IsRegressionFrom reports whether moving from prev to s goes backward.
func (s Status) IsRegressionFrom(prev Status) bool {
	if !s.Valid() || !prev.Valid() {
		return false
	}
	return statusRank[s] < statusRank[prev]
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid status %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the wire string.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("refusing to store invalid status %d", int(s))
	}
	return s.String(), nil
}

func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = StatusInvitationSent
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
