// internal/model/campaign.go
package model

import "time"

const (
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// ValidCampaignStatus reports whether s is one of the campaign statuses.
func ValidCampaignStatus(s string) bool {
	switch s {
	case CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

type Campaign struct {
	ID                 int        `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	Description        string     `db:"description" json:"description"`
	Variant            Variant    `db:"variant" json:"variant"`
	ConnectionTemplate string     `db:"connection_template" json:"connection_template"`
	SpreadsheetURL     string     `db:"spreadsheet_url" json:"spreadsheet_url"`
	Status             string     `db:"status" json:"status"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
