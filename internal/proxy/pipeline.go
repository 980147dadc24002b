// Package proxy orchestrates one proxied request end to end:
// rate check, quota reservation, provider call, commit or release,
// usage recording.
package proxy

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
	"github.com/autogenlabs-dev/tokengate/internal/ratelimit"
	usagedomain "github.com/autogenlabs-dev/tokengate/internal/usage/domain"
	usageservice "github.com/autogenlabs-dev/tokengate/internal/usage/service"
)

// Ports the pipeline drives. Narrow interfaces keep the orchestrator
// testable without a database or live vendors.

type RateChecker interface {
	Allow(ctx context.Context, accountID snowflake.ID, tier string) ratelimit.Decision
}

type QuotaLedger interface {
	Reserve(ctx context.Context, accountID snowflake.ID, estimate int64) (*quotadomain.Reservation, error)
	Commit(ctx context.Context, reservationID string, actual int64) (*quotadomain.CommitResult, error)
	Release(ctx context.Context, reservationID string) error
}

type ProviderRouter interface {
	Route(ctx context.Context, req *provider.Request, model string) (*provider.Response, error)
}

type UsageRecorder interface {
	Append(ctx context.Context, rec usageservice.Record) error
}

// Request is one authenticated proxied call.
type Request struct {
	Account   *accountdomain.Account
	Operation string
	// Model is the vendor-prefixed model from the client payload.
	Model   string
	Payload map[string]any
}

// Result is a fully committed proxied call. Units and Remaining feed
// the usage summary every successful response carries.
type Result struct {
	Body      []byte
	Vendor    string
	Model     string
	Units     int64
	Remaining int64
}

type PipelineParam struct {
	fx.In

	Log     *zap.Logger
	Limiter RateChecker
	Ledger  QuotaLedger
	Router  ProviderRouter
	Usage   UsageRecorder
	Metrics *metrics.PipelineMetrics
}

type Pipeline struct {
	log     *zap.Logger
	limiter RateChecker
	ledger  QuotaLedger
	router  ProviderRouter
	usage   UsageRecorder
	metrics *metrics.PipelineMetrics
}

func NewPipeline(p PipelineParam) *Pipeline {
	return &Pipeline{
		log:     p.Log.Named("proxy.pipeline"),
		limiter: p.Limiter,
		ledger:  p.Ledger,
		router:  p.Router,
		usage:   p.Usage,
		metrics: p.Metrics,
	}
}

// Execute runs the full pipeline. The ordering is deliberate: the
// cheap rate check runs before the ledger touches the database, and
// the reservation taken here is resolved on every exit path. A client
// disconnect does not leak the hold: resolution runs on a context
// detached from the request's cancellation.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Result, error) {
	account := req.Account

	decision := p.limiter.Allow(ctx, account.ID, account.PlanTier)
	if !decision.Allowed {
		p.metrics.IncRequest("rate_limited")
		return nil, &RateLimitedError{Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}

	maxTokens := maxTokensFrom(req.Payload)
	res, err := p.ledger.Reserve(ctx, account.ID, maxTokens)
	if err != nil {
		if errors.Is(err, quotadomain.ErrQuotaExceeded) {
			p.metrics.IncRequest("quota_exceeded")
		}
		return nil, err
	}

	resolveCtx := context.WithoutCancel(ctx)
	resolved := false
	defer func() {
		if resolved {
			return
		}
		// Reached on provider failure, commit failure, and panic.
		if relErr := p.ledger.Release(resolveCtx, res.ID); relErr != nil {
			p.log.Error("failed to release reservation, sweep will reclaim it",
				zap.String("account_id", account.ID.String()),
				zap.String("reservation_id", res.ID),
				zap.Error(relErr),
			)
		}
		p.metrics.IncRequest("released")
	}()

	resp, err := p.router.Route(ctx, &provider.Request{
		Operation: req.Operation,
		Payload:   req.Payload,
		MaxTokens: maxTokens,
	}, req.Model)
	if err != nil {
		p.log.Error("provider call failed",
			zap.String("account_id", account.ID.String()),
			zap.String("model", req.Model),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
		return nil, err
	}

	commit, err := p.ledger.Commit(resolveCtx, res.ID, resp.Usage.Total())
	if err != nil {
		p.log.Error("failed to commit reservation",
			zap.String("account_id", account.ID.String()),
			zap.String("vendor", resp.Vendor),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
		return nil, err
	}
	resolved = true
	p.metrics.IncRequest("committed")

	// The response is already earned; a usage-append failure is an
	// operator problem, not a user-facing one.
	if err := p.usage.Append(resolveCtx, usageservice.Record{
		AccountID:     account.ID,
		Provider:      resp.Vendor,
		Model:         resp.Model,
		Units:         commit.Units,
		Outcome:       outcomeFor(resp),
		ReservationID: res.ID,
		Metadata: map[string]any{
			"operation":     req.Operation,
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	}); err != nil {
		p.log.Error("usage append failed after commit",
			zap.String("account_id", account.ID.String()),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
	}

	return &Result{
		Body:      resp.Body,
		Vendor:    resp.Vendor,
		Model:     resp.Model,
		Units:     commit.Units,
		Remaining: commit.Remaining,
	}, nil
}

func outcomeFor(*provider.Response) string {
	// Vendors answering 200 with usage attached are successes; a
	// billable error would surface here if a vendor ever charges for
	// a failed call.
	return usagedomain.OutcomeSuccess
}

func maxTokensFrom(payload map[string]any) int64 {
	switch v := payload["max_tokens"].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
