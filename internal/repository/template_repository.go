package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unclebandit/outreach-engine/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(ctx context.Context, t *model.MessageTemplate) error
	List(ctx context.Context, templateType, variant string) ([]*model.MessageTemplate, error)
	GetActive(ctx context.Context, templateType string, variant model.Variant) (*model.MessageTemplate, error)
	Exists(ctx context.Context, templateType string, variant model.Variant) (bool, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

const templateColumns = `id, name, variant, template_type, content, is_active, created_at, updated_at`

// Create inserts a new template and fills in its ID.
func (r *TemplateRepository) Create(ctx context.Context, t *model.MessageTemplate) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
        INSERT INTO message_templates (name, variant, template_type, content, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		t.Name, string(t.Variant), t.TemplateType, t.Content, t.IsActive, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return mapWriteError("create template", err)
	}
	return nil
}

// List returns active templates, optionally narrowed by type and variant.
func (r *TemplateRepository) List(ctx context.Context, templateType, variant string) ([]*model.MessageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates WHERE is_active`
	args := []interface{}{}
	argPos := 1
	if templateType != "" {
		query += fmt.Sprintf(" AND template_type=$%d", argPos)
		args = append(args, templateType)
		argPos++
	}
	if variant != "" {
		query += fmt.Sprintf(" AND variant=$%d", argPos)
		args = append(args, variant)
	}
	query += " ORDER BY id"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapReadError("list templates", err)
	}
	defer rows.Close()

	templates := []*model.MessageTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// GetActive returns the newest active template for the pair, or nil.
func (r *TemplateRepository) GetActive(ctx context.Context, templateType string, variant model.Variant) (*model.MessageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates
        WHERE is_active AND template_type=$1 AND variant=$2
        ORDER BY id DESC LIMIT 1`
	t, err := scanTemplate(r.DB.QueryRowContext(ctx, query, templateType, string(variant)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapReadError("get template", err)
	}
	return t, nil
}

// Exists checks if any template for the type and variant is stored
func (r *TemplateRepository) Exists(ctx context.Context, templateType string, variant model.Variant) (bool, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM message_templates
        WHERE template_type = $1 AND variant = $2`, templateType, string(variant)).Scan(&count)
	if err != nil {
		return false, mapReadError("template exists", err)
	}
	return count > 0, nil
}

func scanTemplate(row rowScanner) (*model.MessageTemplate, error) {
	var t model.MessageTemplate
	var variant string
	if err := row.Scan(&t.ID, &t.Name, &variant, &t.TemplateType, &t.Content, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Variant = model.Variant(variant)
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
