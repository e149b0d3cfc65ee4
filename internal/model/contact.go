// internal/model/contact.go
package model

import (
	"strings"
	"time"
)

// Variant selects the message-content family of a contact or campaign.
type Variant string

const (
	VariantNetworking          Variant = "networking"
	VariantBusinessOpportunity Variant = "business_opportunity"
	VariantIndustryInsights    Variant = "industry_insights"
	VariantCollaboration       Variant = "collaboration"
	VariantMentorship          Variant = "mentorship"
)

func KnownVariants() []Variant {
	return []Variant{
		VariantNetworking,
		VariantBusinessOpportunity,
		VariantIndustryInsights,
		VariantCollaboration,
		VariantMentorship,
	}
}

// NormalizeVariant trims v and falls back to networking when empty.
func NormalizeVariant(v string) Variant {
	v = strings.TrimSpace(v)
	if v == "" {
		return VariantNetworking
	}
	return Variant(v)
}

// Contact is one outreach target, keyed by LinkedInURL.
type Contact struct {
	ID                int        `db:"id" json:"id"`
	LinkedInURL       string     `db:"linkedin_url" json:"linkedin_url"`
	LinkedInID        string     `db:"linkedin_id" json:"linkedin_id,omitempty"`
	Name              string     `db:"name" json:"name"`
	FirstName         string     `db:"first_name" json:"first_name"`
	LastName          string     `db:"last_name" json:"last_name"`
	Company           string     `db:"company" json:"company"`
	JobTitle          string     `db:"job_title" json:"job_title"`
	Status            Status     `db:"status" json:"status"`
	Variant           Variant    `db:"variant" json:"variant"`
	RepliedConnection bool       `db:"replied_connection" json:"replied_connection"`
	RepliedFollowup   bool       `db:"replied_followup" json:"replied_followup"`
	FollowupAttempts  int        `db:"followup_attempts" json:"followup_attempts"`
	ConnectionMessage *string    `db:"connection_message" json:"connection_message,omitempty"`
	FollowupMessage   *string    `db:"followup_message" json:"followup_message,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	LastFollowupSent  *time.Time `db:"last_followup_sent" json:"last_followup_sent,omitempty"`
}

// Clone returns a deep copy so callers can stage changes before persisting.
func (c *Contact) Clone() *Contact {
	cp := *c
	if c.ConnectionMessage != nil {
		v := *c.ConnectionMessage
		cp.ConnectionMessage = &v
	}
	if c.FollowupMessage != nil {
		v := *c.FollowupMessage
		cp.FollowupMessage = &v
	}
	if c.LastFollowupSent != nil {
		v := *c.LastFollowupSent
		cp.LastFollowupSent = &v
	}
	return &cp
}

// ContactFilter narrows Find; nil fields match everything.
type ContactFilter struct {
	Status  *Status
	Variant *Variant
}
