package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	ListCampaigns(ctx context.Context, offset, limit int, variant, status string) ([]*model.Campaign, int, error)
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, campaignID int, status string) error
	Update(ctx context.Context, c *model.Campaign) error
	Create(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, description, variant, connection_template, spreadsheet_url, status, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignActive
	}
	if c.Variant == "" {
		c.Variant = model.VariantNetworking
	}
	query := `
        INSERT INTO campaigns (name, description, variant, connection_template, spreadsheet_url, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.Name, c.Description, string(c.Variant), c.ConnectionTemplate, c.SpreadsheetURL, c.Status, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return mapWriteError("create campaign", err)
	}
	return nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, description=$2, variant=$3, connection_template=$4, spreadsheet_url=$5, status=$6, updated_at=NOW()
        WHERE id=$7
    `
	res, err := r.DB.ExecContext(ctx, query,
		c.Name, c.Description, string(c.Variant), c.ConnectionTemplate, c.SpreadsheetURL, c.Status, c.ID,
	)
	if err != nil {
		return mapWriteError("update campaign", err)
	}
	return requireRow(res, c.ID)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	res, err := r.DB.ExecContext(ctx, query, status, time.Now(), campaignID)
	if err != nil {
		return mapWriteError("update campaign status", err)
	}
	return requireRow(res, campaignID)
}

func (r *CampaignRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return mapWriteError("delete campaign", err)
	}
	return requireRow(res, id)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, mapReadError("get campaign", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, variant, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if variant != "" {
		where += fmt.Sprintf(" AND variant=$%d", argPos)
		args = append(args, variant)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapReadError("count campaigns", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapReadError("list campaigns", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapReadError("list campaigns", err)
	}

	return campaigns, total, nil
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var variant string
	var updatedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &variant, &c.ConnectionTemplate, &c.SpreadsheetURL, &c.Status, &c.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Variant = model.Variant(variant)
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}

func requireRow(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
