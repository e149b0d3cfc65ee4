// internal/service/template_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// ContactPlaceholders exposes the fields a template may reference.
func ContactPlaceholders(c *model.Contact) map[string]string {
	return map[string]string{
		"first_name":   c.FirstName,
		"last_name":    c.LastName,
		"name":         c.Name,
		"company":      c.Company,
		"job_title":    c.JobTitle,
		"linkedin_url": c.LinkedInURL,
	}
}

// DefaultTemplates holds the stock connection and follow-up copy per variant.
var DefaultTemplates = map[model.Variant]map[string]string{
	model.VariantNetworking: {
		model.TemplateConnection: "Hi {first_name}, I noticed your work at {company}. Would love to connect and exchange ideas about the industry.",
		model.TemplateFollowup:   "Hi {first_name}, thanks for connecting! I'd love to learn more about your work at {company}. Would you be open to a quick chat about {job_title} trends?",
	},
	model.VariantBusinessOpportunity: {
		model.TemplateConnection: "Hi {first_name}, I came across your profile and was impressed by your work at {company}. I'd love to connect and explore potential collaboration opportunities.",
		model.TemplateFollowup:   "Hi {first_name}, thanks for connecting! I'd love to discuss potential business opportunities that could benefit both of us. Are you open to a brief call?",
	},
	model.VariantIndustryInsights: {
		model.TemplateConnection: "Hi {first_name}, I've been following the great work you're doing at {company}. Would love to connect and share insights about {job_title} developments.",
		model.TemplateFollowup:   "Hi {first_name}, thanks for connecting! I'd love to share some industry insights I've gathered and hear your perspective. Would you be interested in a quick discussion?",
	},
	model.VariantCollaboration: {
		model.TemplateConnection: "Hi {first_name}, I'm impressed by your {job_title} work at {company}. I'd love to connect and explore potential collaboration opportunities.",
		model.TemplateFollowup:   "Hi {first_name}, thanks for connecting! I'd love to discuss potential collaboration opportunities that could be mutually beneficial. Are you open to exploring this further?",
	},
	model.VariantMentorship: {
		model.TemplateConnection: "Hi {first_name}, I admire your career journey and work at {company}. I'd love to connect and potentially learn from your experience in {job_title}.",
		model.TemplateFollowup:   "Hi {first_name}, thanks for connecting! I'd love to learn from your experience in {job_title}. Would you be open to sharing some insights or advice?",
	},
}

type TemplateService struct {
	Repo                      repository.TemplateRepositoryInterface
	DefaultConnectionTemplate string
	Log                       logrus.FieldLogger
}

func validTemplateType(t string) bool {
	return t == model.TemplateConnection || t == model.TemplateFollowup
}

func (s *TemplateService) ListTemplates(ctx context.Context, templateType, variant string) ([]*model.MessageTemplate, error) {
	if templateType != "" && !validTemplateType(templateType) {
		return nil, appErrors.Validation(fmt.Sprintf("unknown template type %q", templateType))
	}
	return s.Repo.List(ctx, templateType, variant)
}

func (s *TemplateService) CreateTemplate(ctx context.Context, name string, variant model.Variant, templateType, content string) (*model.MessageTemplate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, appErrors.Validation("template name is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, appErrors.Validation("template content cannot be empty")
	}
	if !validTemplateType(templateType) {
		return nil, appErrors.Validation(fmt.Sprintf("unknown template type %q", templateType))
	}

	t := &model.MessageTemplate{
		Name:         name,
		Variant:      model.NormalizeVariant(string(variant)),
		TemplateType: templateType,
		Content:      content,
		IsActive:     true,
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SeedDefaults stores the default template for every variant and type that
// has none yet. Safe to run on every start.
func (s *TemplateService) SeedDefaults(ctx context.Context) (int, error) {
	seeded := 0
	for _, variant := range model.KnownVariants() {
		for _, templateType := range []string{model.TemplateConnection, model.TemplateFollowup} {
			exists, err := s.Repo.Exists(ctx, templateType, variant)
			if err != nil {
				return seeded, err
			}
			if exists {
				continue
			}
			name := fmt.Sprintf("Default %s - %s", titleCase(templateType), titleCase(string(variant)))
			if _, err := s.CreateTemplate(ctx, name, variant, templateType, DefaultTemplates[variant][templateType]); err != nil {
				return seeded, err
			}
			s.Log.WithField("template", name).Info("Initialized default template")
			seeded++
		}
	}
	return seeded, nil
}

// ConnectionMessage renders template (or the default connection template)
// for c.
func (s *TemplateService) ConnectionMessage(c *model.Contact, template string) string {
	if strings.TrimSpace(template) == "" {
		template = s.DefaultConnectionTemplate
	}
	return RenderTemplate(template, ContactPlaceholders(c))
}

// TemplateFollowupGenerator renders the active follow-up template for the
// contact's variant. Used when no generation service is configured.
type TemplateFollowupGenerator struct {
	Repo repository.TemplateRepositoryInterface
}

func (g *TemplateFollowupGenerator) GenerateFollowup(ctx context.Context, c *model.Contact) (string, error) {
	content := ""
	if g.Repo != nil {
		t, err := g.Repo.GetActive(ctx, model.TemplateFollowup, c.Variant)
		if err != nil {
			return "", err
		}
		if t != nil {
			content = t.Content
		}
	}
	if content == "" {
		defaults, ok := DefaultTemplates[c.Variant]
		if !ok {
			defaults = DefaultTemplates[model.VariantNetworking]
		}
		content = defaults[model.TemplateFollowup]
	}
	return RenderTemplate(content, ContactPlaceholders(c)), nil
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var _ FollowupGenerator = (*TemplateFollowupGenerator)(nil)
