// Package agent talks to the LinkedIn automation agent (a PhantomBuster
// phantom): launching runs and fetching the outcome records they produce.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/outreach-engine/internal/client"
	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

const (
	serviceName  = "automation agent"
	apiKeyHeader = "X-Phantombuster-Key-1"
)

type Config struct {
	BaseURL                   string
	APIKey                    string
	AgentID                   string
	DefaultConnectionTemplate string
	Timeout                   time.Duration
	Retry                     client.RetryConfig
}

type Client struct {
	baseURL         string
	apiKey          string
	agentID         string
	defaultTemplate string
	httpClient      *http.Client
	executor        failsafe.Executor[*http.Response]
	launchExecutor  failsafe.Executor[*http.Response]
	log             logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		agentID:         cfg.AgentID,
		defaultTemplate: cfg.DefaultConnectionTemplate,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		executor:        client.NewHTTPExecutor(cfg.Retry),
		launchExecutor:  client.NewUnsentRetryExecutor(cfg.Retry),
		log:             log.WithField("client", "agent"),
	}
}

type fetchResponse struct {
	Data []json.RawMessage `json:"data"`
}

// FetchResults pulls the agent's current result set. Entries that cannot be
// decoded are logged and dropped.
func (c *Client) FetchResults(ctx context.Context) ([]model.OutcomeRecord, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var payload fetchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, appErrors.NewMalformedResponse(serviceName, "results body is not JSON", err)
	}

	records := make([]model.OutcomeRecord, 0, len(payload.Data))
	for i, raw := range payload.Data {
		var rec model.OutcomeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.log.WithError(err).WithField("index", i).Warn("⚠️ Dropping unparseable result entry")
			continue
		}
		records = append(records, rec)
	}

	c.log.WithField("count", len(records)).Info("Fetched results from automation agent")
	return records, nil
}

// Status returns the agent's raw status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var status map[string]any
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, appErrors.NewMalformedResponse(serviceName, "status body is not a JSON object", err)
	}
	return status, nil
}

type launchArgument struct {
	SpreadsheetURL     string `json:"spreadsheetUrl"`
	Variant            string `json:"variant"`
	ConnectionTemplate string `json:"connectionTemplate"`
}

type launchRequest struct {
	ID       string         `json:"id"`
	Argument launchArgument `json:"argument"`
}

// Launch starts an agent run over the spreadsheet. An empty template falls
// back to the configured default connection template. A delivered launch is
// never repeated: only connection failures are retried.
func (c *Client) Launch(ctx context.Context, spreadsheetURL string, variant model.Variant, connectionTemplate string) (map[string]any, error) {
	if strings.TrimSpace(connectionTemplate) == "" {
		connectionTemplate = c.defaultTemplate
	}
	payload, err := json.Marshal(launchRequest{
		ID: c.agentID,
		Argument: launchArgument{
			SpreadsheetURL:     spreadsheetURL,
			Variant:            string(variant),
			ConnectionTemplate: connectionTemplate,
		},
	})
	if err != nil {
		return nil, err
	}

	c.log.WithField("variant", variant).Info("Launching automation agent run")
	resp, err := client.Do(ctx, c.httpClient, c.launchExecutor, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/launch", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(apiKeyHeader, c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, appErrors.NewTransportError(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, appErrors.NewTransportError(serviceName, resp.StatusCode, fmt.Errorf("launch failed: %s", client.Snippet(resp.Body)))
	}

	var result map[string]any
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, appErrors.NewMalformedResponse(serviceName, "launch body is not a JSON object", err)
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	endpoint := c.baseURL + "/agents/fetch?" + url.Values{"id": {c.agentID}}.Encode()
	resp, err := client.Do(ctx, c.httpClient, c.executor, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, appErrors.NewTransportError(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, appErrors.NewTransportError(serviceName, resp.StatusCode, fmt.Errorf("fetch failed: %s", client.Snippet(resp.Body)))
	}
	return resp.Body, nil
}
