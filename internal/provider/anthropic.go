package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/tracing"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// Anthropic requires max_tokens on every request.
	anthropicDefaultMaxTokens = 1024
)

type AnthropicClient struct {
	name    string
	baseURL string
	creds   *CredentialSource
	http    *http.Client
}

func NewAnthropicClient(cfg config.VendorConfig, creds *CredentialSource) *AnthropicClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{
		name:    strings.ToLower(cfg.Name),
		baseURL: baseURL,
		creds:   creds,
		http:    tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func (c *AnthropicClient) Vendor() string { return c.name }

func (c *AnthropicClient) Models() []string {
	return []string{"claude-sonnet-4-20250514", "claude-opus-4-20250514", "claude-3-5-haiku-20241022"}
}

func (c *AnthropicClient) Do(ctx context.Context, req *Request) (*Response, error) {
	switch req.Operation {
	case OperationChat, OperationCompletions:
	default:
		return nil, newError(c.name, KindRejected, 0, errors.New("unsupported operation "+req.Operation))
	}

	key, err := c.creds.Key(ctx, c.name)
	if err != nil {
		return nil, newError(c.name, KindRejected, 0, err)
	}

	payload := make(map[string]any, len(req.Payload)+2)
	for k, v := range req.Payload {
		payload[k] = v
	}
	payload["model"] = req.Model
	if _, ok := payload["max_tokens"]; !ok {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = anthropicDefaultMaxTokens
		}
		payload["max_tokens"] = maxTokens
	}

	headers := map[string]string{"anthropic-version": anthropicVersion}
	status, body, err := postJSON(ctx, c.http, c.baseURL+"/v1/messages", "x-api-key", key, headers, payload)
	if err != nil {
		return nil, newError(c.name, KindTransient, 0, err)
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.name, status, body)
	}

	var parsed struct {
		Usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newError(c.name, KindMalformed, status, err)
	}

	return &Response{
		Vendor: c.name,
		Model:  req.Model,
		Body:   body,
		Usage: Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}
