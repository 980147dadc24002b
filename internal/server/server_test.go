package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	apikeyservice "github.com/autogenlabs-dev/tokengate/internal/apikey/service"
	"github.com/autogenlabs-dev/tokengate/internal/auth"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	"github.com/autogenlabs-dev/tokengate/internal/proxy"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
	usagedomain "github.com/autogenlabs-dev/tokengate/internal/usage/domain"
)

type fakeVerifier struct {
	lastRaw string
	claims  *auth.Claims
	err     error
}

func (f *fakeVerifier) Classify(raw string) auth.Credential {
	f.lastRaw = raw
	if strings.HasPrefix(raw, "ak_") {
		return auth.Credential{Scheme: auth.SchemeAPIKey, Raw: raw}
	}
	return auth.Credential{Scheme: auth.SchemeOIDC, Raw: raw}
}

func (f *fakeVerifier) Verify(ctx context.Context, cred auth.Credential) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeAccounts struct {
	account *accountdomain.Account
	err     error
}

func (f *fakeAccounts) Resolve(ctx context.Context, provider, subject string) (*accountdomain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

type fakeKeys struct {
	created *apikeyservice.CreateResult
	revoked []snowflake.ID
}

func (f *fakeKeys) Create(ctx context.Context, accountID snowflake.ID, name string, expiresAt *time.Time) (*apikeyservice.CreateResult, error) {
	return f.created, nil
}

func (f *fakeKeys) List(ctx context.Context, accountID snowflake.ID) ([]apikeydomain.APIKey, error) {
	return nil, nil
}

func (f *fakeKeys) Revoke(ctx context.Context, accountID, id snowflake.ID) error {
	f.revoked = append(f.revoked, id)
	return nil
}

type fakeUsageReader struct{}

func (fakeUsageReader) List(ctx context.Context, accountID snowflake.ID, since time.Time, limit int) ([]usagedomain.UsageEvent, error) {
	return nil, nil
}

func (fakeUsageReader) Totals(ctx context.Context, accountID snowflake.ID, since time.Time) (map[string]int64, error) {
	return map[string]int64{usagedomain.OutcomeSuccess: 150}, nil
}

type fakeQuotaReader struct{ remaining int64 }

func (f fakeQuotaReader) Remaining(ctx context.Context, accountID snowflake.ID) (int64, error) {
	return f.remaining, nil
}

type fakePipeline struct {
	lastReq *proxy.Request
	result  *proxy.Result
	err     error
}

func (f *fakePipeline) Execute(ctx context.Context, req *proxy.Request) (*proxy.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Vendors() []provider.VendorInfo {
	return []provider.VendorInfo{{Name: "openai", Models: []string{"gpt-4o"}}}
}

func (fakeCatalog) Models() []string { return []string{"openai/gpt-4o"} }

type serverFixture struct {
	srv      *Server
	verifier *fakeVerifier
	accounts *fakeAccounts
	pipeline *fakePipeline
	keys     *fakeKeys
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	account := &accountdomain.Account{ID: snowflake.ID(42), PlanTier: "free", QuotaLimit: 10000, IsActive: true}
	verifier := &fakeVerifier{claims: &auth.Claims{Scheme: auth.SchemeAPIKey, Subject: "42"}}
	pipeline := &fakePipeline{result: &proxy.Result{
		Body:      []byte(`{"id":"resp-1"}`),
		Vendor:    "openai",
		Model:     "gpt-4o",
		Units:     500,
		Remaining: 9500,
	}}
	keys := &fakeKeys{created: &apikeyservice.CreateResult{
		Key:       apikeydomain.APIKey{ID: snowflake.ID(7), AccountID: account.ID, Name: "ci"},
		Cleartext: "ak_cleartext_once",
	}}

	accounts := &fakeAccounts{account: account}
	srv := &Server{
		log:       zap.NewNop(),
		engine:    gin.New(),
		verifier:  verifier,
		accounts:  accounts,
		keys:      keys,
		usage:     fakeUsageReader{},
		ledger:    fakeQuotaReader{remaining: 9500},
		pipeline:  pipeline,
		providers: fakeCatalog{},
	}
	srv.RegisterAPIRoutes()
	return &serverFixture{srv: srv, verifier: verifier, accounts: accounts, pipeline: pipeline, keys: keys}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAuthenticatedMissingCredential(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != "malformed_credential" {
		t.Fatalf("code = %q, want malformed_credential", code)
	}
}

func TestAuthenticatedAPIKeyHeaderWinsOverBearer(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/me", nil, map[string]string{
		"X-API-Key":     "ak_from_header",
		"Authorization": "Bearer some.oidc.token",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.verifier.lastRaw != "ak_from_header" {
		t.Fatalf("verified credential = %q, want the X-API-Key value", f.verifier.lastRaw)
	}
}

func TestAuthenticatedExpiredTokenHasDistinctCode(t *testing.T) {
	f := newTestServer(t)
	f.verifier.err = auth.ErrTokenExpired

	rec := f.do(t, http.MethodGet, "/v1/me", nil, map[string]string{
		"Authorization": "Bearer expired.token",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != "token_expired" {
		t.Fatalf("code = %q, want token_expired", code)
	}
}

func TestAuthenticatedDeactivatedAccountForbidden(t *testing.T) {
	f := newTestServer(t)
	f.accounts.err = accountdomain.ErrDeactivated

	rec := f.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"X-API-Key": "ak_test"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != "account_deactivated" {
		t.Fatalf("code = %q, want account_deactivated", code)
	}
}

func TestProxyChatReturnsBodyAndUsage(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/proxy/chat", map[string]any{
		"model":    "openai/gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Usage-Units"); got != "500" {
		t.Fatalf("X-Usage-Units = %q, want 500", got)
	}
	if got := rec.Header().Get("X-Usage-Remaining"); got != "9500" {
		t.Fatalf("X-Usage-Remaining = %q, want 9500", got)
	}

	var body struct {
		Data  json.RawMessage `json:"data"`
		Usage usageSummary    `json:"usage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Usage.Vendor != "openai" || body.Usage.Units != 500 {
		t.Fatalf("usage = %+v", body.Usage)
	}
	if f.pipeline.lastReq.Model != "openai/gpt-4o" {
		t.Fatalf("pipeline model = %q", f.pipeline.lastReq.Model)
	}
	if f.pipeline.lastReq.Operation != provider.OperationChat {
		t.Fatalf("pipeline operation = %q", f.pipeline.lastReq.Operation)
	}
}

func TestProxyChatRequiresModel(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/proxy/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if f.pipeline.lastReq != nil {
		t.Fatal("pipeline reached without a model")
	}
}

func TestProxyQuotaExceededMapsTo402(t *testing.T) {
	f := newTestServer(t)
	f.pipeline.err = quotadomain.ErrQuotaExceeded

	rec := f.do(t, http.MethodPost, "/proxy/chat", map[string]any{"model": "openai/gpt-4o"},
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if code := errorCode(t, rec); code != "quota_exceeded" {
		t.Fatalf("code = %q, want quota_exceeded", code)
	}
}

func TestProxyRateLimitedSetsRetryAfter(t *testing.T) {
	f := newTestServer(t)
	f.pipeline.err = &proxy.RateLimitedError{Limit: 60, RetryAfter: 30 * time.Second}

	rec := f.do(t, http.MethodPost, "/proxy/chat", map[string]any{"model": "openai/gpt-4o"},
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q, want 30", got)
	}
}

func TestProxyMalformedModelMapsTo400(t *testing.T) {
	f := newTestServer(t)
	f.pipeline.err = provider.ErrMalformedModel

	rec := f.do(t, http.MethodPost, "/proxy/chat", map[string]any{"model": "gpt-4o"},
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "malformed_model" {
		t.Fatalf("code = %q, want malformed_model", code)
	}
}

func TestCreateAPIKeyReturnsCleartext(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/v1/api_keys", map[string]any{"name": "ci"},
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ak_cleartext_once") {
		t.Fatal("response does not carry the cleartext secret")
	}
}

func TestRevokeAPIKeyRejectsBadID(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodDelete, "/v1/api_keys/not-an-id", nil,
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(f.keys.revoked) != 0 {
		t.Fatal("revoke reached the key manager with a bad id")
	}
}

func TestGetMeIncludesQuotaRemaining(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"X-API-Key": "ak_test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data struct {
			QuotaRemaining int64  `json:"quota_remaining"`
			AuthScheme     string `json:"auth_scheme"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.QuotaRemaining != 9500 {
		t.Fatalf("quota_remaining = %d, want 9500", body.Data.QuotaRemaining)
	}
	if body.Data.AuthScheme != "api_key" {
		t.Fatalf("auth_scheme = %q, want api_key", body.Data.AuthScheme)
	}
}

func TestListUsageRejectsBadSince(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/usage?since=yesterday", nil,
		map[string]string{"X-API-Key": "ak_test"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
