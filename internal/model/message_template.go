// internal/model/message_template.go
package model

import "time"

const (
	TemplateConnection = "connection"
	TemplateFollowup   = "followup"
)

type MessageTemplate struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Variant      Variant   `db:"variant" json:"variant"`
	TemplateType string    `db:"template_type" json:"template_type"` // connection, followup
	Content      string    `db:"content" json:"content"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
