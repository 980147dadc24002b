package provider

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
)

// VendorInfo describes one configured vendor for discovery endpoints.
type VendorInfo struct {
	Name     string   `json:"name"`
	Models   []string `json:"models"`
	Fallback string   `json:"fallback,omitempty"`
}

type RouterParam struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Creds   *CredentialSource
	Metrics *metrics.PipelineMetrics
}

// Router dispatches a proxied request to the vendor named in the
// model field and fails over once on a transient error.
type Router struct {
	log       *zap.Logger
	metrics   *metrics.PipelineMetrics
	clients   map[string]Client
	fallbacks map[string]string
	order     []string
}

func NewRouter(p RouterParam) *Router {
	r := &Router{
		log:       p.Log.Named("provider.router"),
		metrics:   p.Metrics,
		clients:   make(map[string]Client),
		fallbacks: make(map[string]string),
	}
	for _, v := range p.Cfg.Vendors {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		r.clients[name] = buildClient(v, p.Creds)
		r.order = append(r.order, name)
		if fb := strings.ToLower(strings.TrimSpace(v.Fallback)); fb != "" {
			r.fallbacks[name] = fb
		}
	}
	return r
}

// buildClient picks the wire protocol for a vendor. Anything that is
// not Anthropic is assumed to expose an OpenAI-compatible surface.
func buildClient(v config.VendorConfig, creds *CredentialSource) Client {
	if strings.EqualFold(v.Name, "anthropic") {
		return NewAnthropicClient(v, creds)
	}
	return NewOpenAIClient(v, creds)
}

// ParseModel splits a vendor-prefixed model like "openai/gpt-4o".
func ParseModel(model string) (vendor, name string, err error) {
	parts := strings.SplitN(strings.TrimSpace(model), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedModel
	}
	return strings.ToLower(parts[0]), parts[1], nil
}

// Route sends the request to its vendor. On a transient failure it
// retries exactly once on the configured fallback vendor; every other
// failure is surfaced as is.
func (r *Router) Route(ctx context.Context, req *Request, model string) (*Response, error) {
	vendor, name, err := ParseModel(model)
	if err != nil {
		return nil, err
	}
	client, ok := r.clients[vendor]
	if !ok {
		return nil, ErrUnknownVendor
	}

	req.Model = name
	resp, err := r.call(ctx, client, req)
	if err == nil {
		return resp, nil
	}
	if !IsTransient(err) {
		return nil, err
	}

	fallback, ok := r.fallbacks[vendor]
	if !ok || fallback == vendor {
		return nil, err
	}
	fbClient, ok := r.clients[fallback]
	if !ok {
		return nil, err
	}

	r.log.Warn("failing over to fallback vendor",
		zap.String("vendor", vendor),
		zap.String("fallback", fallback),
		zap.String("model", name),
		zap.Error(err),
	)
	return r.call(ctx, fbClient, req)
}

func (r *Router) call(ctx context.Context, client Client, req *Request) (*Response, error) {
	resp, err := client.Do(ctx, req)
	if err != nil {
		result := "error"
		var perr *Error
		if errors.As(err, &perr) {
			result = perr.Kind.String()
		}
		r.metrics.IncProviderCall(client.Vendor(), result)
		return nil, err
	}
	r.metrics.IncProviderCall(client.Vendor(), "ok")
	return resp, nil
}

// Vendors lists the configured vendors in configuration order.
func (r *Router) Vendors() []VendorInfo {
	out := make([]VendorInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, VendorInfo{
			Name:     name,
			Models:   r.clients[name].Models(),
			Fallback: r.fallbacks[name],
		})
	}
	return out
}

// Models lists every routable vendor-prefixed model.
func (r *Router) Models() []string {
	var out []string
	for _, name := range r.order {
		for _, model := range r.clients[name].Models() {
			out = append(out, name+"/"+model)
		}
	}
	return out
}
