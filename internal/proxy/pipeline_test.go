package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
	"github.com/autogenlabs-dev/tokengate/internal/ratelimit"
	usageservice "github.com/autogenlabs-dev/tokengate/internal/usage/service"
)

type fakeLimiter struct {
	decision ratelimit.Decision
	calls    int
}

func (f *fakeLimiter) Allow(context.Context, snowflake.ID, string) ratelimit.Decision {
	f.calls++
	return f.decision
}

type fakeLedger struct {
	reserveErr error
	commitErr  error
	reserves   []int64
	committed  []string
	released   []string
	commitCtx  context.Context
	remaining  int64
	nextResID  string
}

func (f *fakeLedger) Reserve(_ context.Context, accountID snowflake.ID, estimate int64) (*quotadomain.Reservation, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.reserves = append(f.reserves, estimate)
	id := f.nextResID
	if id == "" {
		id = "res-test"
	}
	return &quotadomain.Reservation{ID: id, AccountID: accountID, Units: estimate, Status: quotadomain.StatusPending}, nil
}

func (f *fakeLedger) Commit(ctx context.Context, reservationID string, actual int64) (*quotadomain.CommitResult, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.commitCtx = ctx
	f.committed = append(f.committed, reservationID)
	return &quotadomain.CommitResult{Units: actual, Remaining: f.remaining}, nil
}

func (f *fakeLedger) Release(_ context.Context, reservationID string) error {
	f.released = append(f.released, reservationID)
	return nil
}

type fakeRouter struct {
	resp  *provider.Response
	err   error
	panic bool
	calls int
}

func (f *fakeRouter) Route(context.Context, *provider.Request, string) (*provider.Response, error) {
	f.calls++
	if f.panic {
		panic("router blew up")
	}
	return f.resp, f.err
}

type fakeUsage struct {
	records []usageservice.Record
}

func (f *fakeUsage) Append(_ context.Context, rec usageservice.Record) error {
	f.records = append(f.records, rec)
	return nil
}

func allowAll() *fakeLimiter {
	return &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 60, Remaining: 59, RetryAfter: time.Minute}}
}

func testAccount() *accountdomain.Account {
	return &accountdomain.Account{ID: 42, PlanTier: accountdomain.TierFree, QuotaLimit: 10_000, IsActive: true}
}

func newTestPipeline(limiter *fakeLimiter, ledger *fakeLedger, router *fakeRouter, usage *fakeUsage) *Pipeline {
	return &Pipeline{
		log:     zap.NewNop(),
		limiter: limiter,
		ledger:  ledger,
		router:  router,
		usage:   usage,
		metrics: metrics.Pipeline(),
	}
}

func chatRequest(payload map[string]any) *Request {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Request{
		Account:   testAccount(),
		Operation: provider.OperationChat,
		Model:     "openai/gpt-4o",
		Payload:   payload,
	}
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	ledger := &fakeLedger{remaining: 9_500}
	usage := &fakeUsage{}
	router := &fakeRouter{resp: &provider.Response{
		Vendor: "openai",
		Model:  "gpt-4o",
		Body:   []byte(`{"ok":true}`),
		Usage:  provider.Usage{InputTokens: 300, OutputTokens: 200},
	}}
	pipeline := newTestPipeline(allowAll(), ledger, router, usage)

	result, err := pipeline.Execute(context.Background(), chatRequest(nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Units != 500 {
		t.Fatalf("expected 500 units charged, got %d", result.Units)
	}
	if result.Remaining != 9_500 {
		t.Fatalf("expected 9500 remaining, got %d", result.Remaining)
	}
	if len(ledger.committed) != 1 || len(ledger.released) != 0 {
		t.Fatalf("expected one commit and no release, got %v / %v", ledger.committed, ledger.released)
	}
	if len(usage.records) != 1 {
		t.Fatalf("expected one usage record, got %d", len(usage.records))
	}
	if usage.records[0].Units != 500 || usage.records[0].Provider != "openai" {
		t.Fatalf("unexpected usage record %+v", usage.records[0])
	}
}

func TestExecuteRateLimitedShortCircuits(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, Limit: 60, RetryAfter: time.Minute}}
	ledger := &fakeLedger{}
	router := &fakeRouter{}
	pipeline := newTestPipeline(limiter, ledger, router, &fakeUsage{})

	_, err := pipeline.Execute(context.Background(), chatRequest(nil))
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.RetryAfter != time.Minute {
		t.Fatalf("expected retry-after of the window, got %v", rl.RetryAfter)
	}
	if len(ledger.reserves) != 0 {
		t.Fatal("rate-limited request must not reserve quota")
	}
	if router.calls != 0 {
		t.Fatal("rate-limited request must not reach a provider")
	}
}

func TestExecuteQuotaExceededNeverCallsProvider(t *testing.T) {
	ledger := &fakeLedger{reserveErr: quotadomain.ErrQuotaExceeded}
	router := &fakeRouter{}
	pipeline := newTestPipeline(allowAll(), ledger, router, &fakeUsage{})

	_, err := pipeline.Execute(context.Background(), chatRequest(nil))
	if !errors.Is(err, quotadomain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if router.calls != 0 {
		t.Fatal("exceeded quota must not reach a provider")
	}
}

func TestExecuteReleasesOnProviderFailure(t *testing.T) {
	ledger := &fakeLedger{}
	router := &fakeRouter{err: provider.ErrUnknownVendor}
	usage := &fakeUsage{}
	pipeline := newTestPipeline(allowAll(), ledger, router, usage)

	if _, err := pipeline.Execute(context.Background(), chatRequest(nil)); err == nil {
		t.Fatal("expected provider error to surface")
	}
	if len(ledger.released) != 1 {
		t.Fatalf("expected the reservation released, got %v", ledger.released)
	}
	if len(ledger.committed) != 0 {
		t.Fatal("failed request must not commit")
	}
	if len(usage.records) != 0 {
		t.Fatal("failed request must not record usage")
	}
}

func TestExecuteReleasesOnPanic(t *testing.T) {
	ledger := &fakeLedger{}
	pipeline := newTestPipeline(allowAll(), ledger, &fakeRouter{panic: true}, &fakeUsage{})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		pipeline.Execute(context.Background(), chatRequest(nil))
	}()

	if len(ledger.released) != 1 {
		t.Fatalf("expected the reservation released on panic, got %v", ledger.released)
	}
}

func TestExecuteCommitsDespiteClientCancellation(t *testing.T) {
	ledger := &fakeLedger{remaining: 9_000}
	router := &fakeRouter{resp: &provider.Response{
		Vendor: "openai",
		Model:  "gpt-4o",
		Body:   []byte(`{}`),
		Usage:  provider.Usage{InputTokens: 10, OutputTokens: 10},
	}}
	pipeline := newTestPipeline(allowAll(), ledger, router, &fakeUsage{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // client gone before the response lands

	if _, err := pipeline.Execute(ctx, chatRequest(nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(ledger.committed) != 1 {
		t.Fatal("completed response must commit even after cancellation")
	}
	if ledger.commitCtx.Err() != nil {
		t.Fatal("commit must run on a context detached from the client's")
	}
}

func TestExecutePassesMaxTokensAsEstimate(t *testing.T) {
	ledger := &fakeLedger{}
	router := &fakeRouter{resp: &provider.Response{Vendor: "openai", Model: "gpt-4o", Body: []byte(`{}`)}}
	pipeline := newTestPipeline(allowAll(), ledger, router, &fakeUsage{})

	payload := map[string]any{"max_tokens": float64(512)}
	if _, err := pipeline.Execute(context.Background(), chatRequest(payload)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(ledger.reserves) != 1 || ledger.reserves[0] != 512 {
		t.Fatalf("expected estimate 512, got %v", ledger.reserves)
	}
}
