package model

import (
	"encoding/json"
	"errors"
	"testing"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"Invitation sent", StatusInvitationSent},
		{"invitation accepted", StatusInvitationAccepted},
		{" Replied (Connection request) ", StatusRepliedConnection},
		{"Replied (Follow-up)", StatusRepliedFollowup},
		{"InvitationAccepted", StatusInvitationAccepted},
		{"noresponse", StatusNoResponse},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseStatus("Pending"); !errors.Is(err, appErrors.ErrMalformedResponse) {
		t.Errorf("expected malformed error for unknown status, got %v", err)
	}
}

func TestStatusLifecycle(t *testing.T) {
	for _, st := range AllStatuses() {
		if st.AllowsFollowup() != (st == StatusInvitationAccepted) {
			t.Errorf("%v: unexpected AllowsFollowup", st)
		}
		terminal := st != StatusInvitationSent && st != StatusInvitationAccepted
		if st.IsTerminal() != terminal {
			t.Errorf("%v: IsTerminal = %v", st, st.IsTerminal())
		}
	}

	if !StatusInvitationSent.IsRegressionFrom(StatusInvitationAccepted) {
		t.Error("accepted -> sent should be a regression")
	}
	if StatusRepliedFollowup.IsRegressionFrom(StatusInvitationAccepted) {
		t.Error("accepted -> replied is forward")
	}
	if StatusNoResponse.IsRegressionFrom(StatusConnectionDeclined) {
		t.Error("side branches share a rank")
	}
}

func TestStatusRejectsUnknownValue(t *testing.T) {
	if StatusUnknown.Valid() {
		t.Fatal("zero status must be invalid")
	}
	if _, err := StatusUnknown.Value(); err == nil {
		t.Error("expected error storing zero status")
	}
	if _, err := json.Marshal(StatusUnknown); err == nil {
		t.Error("expected error marshalling zero status")
	}
}

func TestStatusScan(t *testing.T) {
	var s Status
	if err := s.Scan([]byte("Connection declined")); err != nil || s != StatusConnectionDeclined {
		t.Fatalf("scan bytes: %v %v", s, err)
	}
	if err := s.Scan(nil); err != nil || s != StatusInvitationSent {
		t.Fatalf("scan nil: %v %v", s, err)
	}
	if err := s.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestOutcomeRecordDefaults(t *testing.T) {
	var o OutcomeRecord
	err := json.Unmarshal([]byte(`{"linkedinUrl":"https://linkedin.com/in/u1","firstName":"A","lastName":"B","replied":true}`), &o)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != StatusInvitationSent || o.Variant != VariantNetworking {
		t.Errorf("defaults not applied: %+v", o)
	}
	if !o.Replied || o.DisplayName() != "A B" {
		t.Errorf("unexpected record %+v", o)
	}

	err = json.Unmarshal([]byte(`{"linkedinUrl":"u2","status":"Invitation accepted","variant":"mentorship"}`), &o)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != StatusInvitationAccepted || o.Variant != VariantMentorship {
		t.Errorf("unexpected record %+v", o)
	}

	if err := json.Unmarshal([]byte(`{"linkedinUrl":"u3","status":"Lost"}`), &o); err == nil {
		t.Error("expected error for unknown status")
	}
}
