// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// Launcher starts an automation-agent run for a campaign.
type Launcher interface {
	Launch(ctx context.Context, spreadsheetURL string, variant model.Variant, connectionTemplate string) (map[string]any, error)
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactStore
	Templates    *TemplateService
	Agent        Launcher
	Log          logrus.FieldLogger
}

// LaunchResult is what LaunchCampaign reports back
type LaunchResult struct {
	CampaignID int            `json:"campaign_id"`
	Status     string         `json:"status"`
	Agent      map[string]any `json:"agent"`
}

type CreateCampaignInput struct {
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Variant            model.Variant `json:"variant"`
	ConnectionTemplate string        `json:"connection_template"`
	SpreadsheetURL     string        `json:"spreadsheet_url"`
}

// RenderPreview renders the campaign's connection message for a stored contact.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID int, identity string, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return "", err
	}

	contact, err := s.ContactRepo.GetByIdentity(ctx, identity)
	if err != nil {
		return "", err
	}
	if contact == nil {
		return "", appErrors.NewContactNotFound(identity)
	}

	template := campaign.ConnectionTemplate
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}

	return s.Templates.ConnectionMessage(contact, template), nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.Validation("campaign name is required")
	}

	c := &model.Campaign{
		Name:               strings.TrimSpace(in.Name),
		Description:        in.Description,
		Variant:            model.NormalizeVariant(string(in.Variant)),
		ConnectionTemplate: in.ConnectionTemplate,
		SpreadsheetURL:     in.SpreadsheetURL,
		Status:             model.CampaignActive,
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// UpdateCampaignInput carries a partial edit; nil fields are left as stored.
type UpdateCampaignInput struct {
	Name               *string        `json:"name"`
	Description        *string        `json:"description"`
	Variant            *model.Variant `json:"variant"`
	ConnectionTemplate *string        `json:"connection_template"`
	SpreadsheetURL     *string        `json:"spreadsheet_url"`
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, id int, in UpdateCampaignInput) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *campaign
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, appErrors.Validation("campaign name cannot be empty")
		}
		updated.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.Variant != nil {
		updated.Variant = model.NormalizeVariant(string(*in.Variant))
	}
	if in.ConnectionTemplate != nil {
		updated.ConnectionTemplate = *in.ConnectionTemplate
	}
	if in.SpreadsheetURL != nil {
		updated.SpreadsheetURL = strings.TrimSpace(*in.SpreadsheetURL)
	}

	if err := s.CampaignRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetCampaignStatus pauses, resumes or completes a campaign. Only active
// campaigns can be launched.
func (s *CampaignService) SetCampaignStatus(ctx context.Context, id int, status string) (*model.Campaign, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.ValidCampaignStatus(status) {
		return nil, appErrors.Validation("unknown campaign status: " + status)
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"campaign_id": id, "status": status}).Info("Campaign status changed")
	return s.CampaignRepo.GetByID(ctx, id)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, variant, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, variant, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, id int) error {
	return s.CampaignRepo.Delete(ctx, id)
}

// LaunchCampaign starts an agent run over the campaign's spreadsheet.
func (s *CampaignService) LaunchCampaign(ctx context.Context, campaignID int) (*LaunchResult, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.Status != model.CampaignActive {
		return nil, appErrors.Validation("campaign cannot be launched in status: " + campaign.Status)
	}
	if strings.TrimSpace(campaign.SpreadsheetURL) == "" {
		return nil, appErrors.Validation("campaign has no spreadsheet URL")
	}

	s.Log.WithFields(logrus.Fields{"campaign_id": campaign.ID, "variant": campaign.Variant}).Info("🚀 Launching campaign")

	agentResult, err := s.Agent.Launch(ctx, campaign.SpreadsheetURL, campaign.Variant, campaign.ConnectionTemplate)
	if err != nil {
		s.Log.WithError(err).WithField("campaign_id", campaign.ID).Error("❌ Campaign launch failed")
		return nil, err
	}

	return &LaunchResult{
		CampaignID: campaign.ID,
		Status:     "launched",
		Agent:      agentResult,
	}, nil
}
