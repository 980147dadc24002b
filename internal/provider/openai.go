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

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient speaks the OpenAI wire protocol. Any vendor exposing
// an OpenAI-compatible surface can be configured through it by
// pointing the base URL elsewhere.
type OpenAIClient struct {
	name    string
	baseURL string
	creds   *CredentialSource
	http    *http.Client
}

func NewOpenAIClient(cfg config.VendorConfig, creds *CredentialSource) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		name:    strings.ToLower(cfg.Name),
		baseURL: baseURL,
		creds:   creds,
		http:    tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func (c *OpenAIClient) Vendor() string { return c.name }

func (c *OpenAIClient) Models() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "o3-mini", "text-embedding-3-small", "text-embedding-3-large"}
}

func (c *OpenAIClient) Do(ctx context.Context, req *Request) (*Response, error) {
	var path string
	switch req.Operation {
	case OperationChat:
		path = "/v1/chat/completions"
	case OperationCompletions:
		path = "/v1/completions"
	case OperationEmbeddings:
		path = "/v1/embeddings"
	default:
		return nil, newError(c.name, KindRejected, 0, errors.New("unsupported operation "+req.Operation))
	}

	key, err := c.creds.Key(ctx, c.name)
	if err != nil {
		return nil, newError(c.name, KindRejected, 0, err)
	}

	payload := make(map[string]any, len(req.Payload)+1)
	for k, v := range req.Payload {
		payload[k] = v
	}
	payload["model"] = req.Model

	status, body, err := postJSON(ctx, c.http, c.baseURL+path, "Authorization", "Bearer "+key, nil, payload)
	if err != nil {
		return nil, newError(c.name, KindTransient, 0, err)
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.name, status, body)
	}

	var parsed struct {
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
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
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
