// Package llm generates follow-up messages through an OpenAI-compatible
// chat-completions endpoint (DeepSeek by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/client"
	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

const serviceName = "message generation"

const systemPrompt = "You are a professional LinkedIn outreach assistant. Write concise, personalized follow-up messages that are professional, friendly, and include a specific call to action."

var variantContexts = map[model.Variant]string{
	model.VariantNetworking:          "networking and professional relationship building",
	model.VariantBusinessOpportunity: "potential business collaboration or partnership",
	model.VariantIndustryInsights:    "sharing industry insights and knowledge",
	model.VariantCollaboration:       "collaboration opportunities",
	model.VariantMentorship:          "mentorship or guidance",
}

type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       client.RetryConfig
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	log        logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   client.NewHTTPExecutor(cfg.Retry),
		log:        log.WithField("client", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

// Prompt builds the user prompt for a contact.
func Prompt(c *model.Contact) string {
	purpose, ok := variantContexts[c.Variant]
	if !ok {
		purpose = "professional networking"
	}
	return fmt.Sprintf(`Write a personalized, professional LinkedIn follow-up message to %s %s, a %s at %s.

Context: This is for %s. They accepted your connection request but haven't replied yet.

Requirements:
- Keep it under 150 words
- Be professional but friendly
- Reference their role and company naturally
- Include a specific question or call to action
- Don't be pushy or salesy
- Make it feel personal and genuine

Format the message as plain text without any markdown or formatting.`,
		c.FirstName, c.LastName, c.JobTitle, c.Company, purpose)
}

// GenerateFollowup asks the model for a follow-up message for c.
func (cl *Client) GenerateFollowup(ctx context.Context, c *model.Contact) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: cl.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(c)},
		},
		Stream:      false,
		MaxTokens:   cl.cfg.MaxTokens,
		Temperature: cl.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Do(ctx, cl.httpClient, cl.executor, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.cfg.APIURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+cl.cfg.APIKey)
		return req, nil
	})
	if err != nil {
		return "", appErrors.NewTransportError(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", appErrors.NewTransportError(serviceName, resp.StatusCode, fmt.Errorf("completion failed: %s", client.Snippet(resp.Body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", appErrors.NewMalformedResponse(serviceName, "completion body is not JSON", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", appErrors.NewMalformedResponse(serviceName, "missing choices[0].message", nil)
	}
	message := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if message == "" {
		return "", appErrors.NewMalformedResponse(serviceName, "empty message content", nil)
	}

	cl.log.WithFields(logrus.Fields{"contact": c.LinkedInURL, "company": c.Company}).Info("Generated follow-up message")
	return message, nil
}
