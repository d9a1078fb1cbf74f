package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
)

func TestMain(m *testing.M) {
	metrics.RegisterRetrievalMetrics()
	os.Exit(m.Run())
}

type mockAuth struct {
	caller     domain.Caller
	dataset    domain.Dataset
	authErr    error
	balanceErr error

	authCalls    int
	balanceCalls int
	tokens       []string
}

func (m *mockAuth) Authenticate(_ context.Context, token, _ string) (domain.Caller, domain.Dataset, error) {
	m.authCalls++
	m.tokens = append(m.tokens, token)
	return m.caller, m.dataset, m.authErr
}

func (m *mockAuth) CheckBalance(_ context.Context, _ string) error {
	m.balanceCalls++
	return m.balanceErr
}

type mockAdmitter struct {
	err        error
	calls      int
	identities []string
}

func (m *mockAdmitter) Admit(_ context.Context, identity string) error {
	m.calls++
	m.identities = append(m.identities, identity)
	return m.err
}

type mockStrategy struct {
	out   domain.Outcome
	err   error
	calls int
	req   *request.Request
}

func (m *mockStrategy) Execute(_ context.Context, req *request.Request, _ domain.Caller) (domain.Outcome, error) {
	m.calls++
	m.req = req
	return m.out, m.err
}

type mockRecorder struct {
	err   error
	calls int

	caller domain.Caller
	model  string
	out    domain.Outcome
}

func (m *mockRecorder) Record(
	_ context.Context, caller domain.Caller, model string, out domain.Outcome,
) (int64, error) {
	m.calls++
	m.caller = caller
	m.model = model
	m.out = out
	return 100, m.err
}

type okPinger struct{}

func (okPinger) Ping(_ context.Context) error { return nil }

type fixture struct {
	auth     *mockAuth
	limiter  *mockAdmitter
	single   *mockStrategy
	deep     *mockStrategy
	recorder *mockRecorder
	router   chirouter.Router
}

func newFixture() *fixture {
	f := &fixture{
		auth: &mockAuth{
			caller:  domain.Caller{AccountID: "acc-1", MemberID: "mem-1"},
			dataset: domain.Dataset{ID: "ds-1", AccountID: "acc-1", EmbeddingModel: "embed-model"},
		},
		limiter:  &mockAdmitter{},
		single:   &mockStrategy{},
		deep:     &mockStrategy{},
		recorder: &mockRecorder{},
	}

	server := NewServer(
		f.auth, f.limiter, f.single, f.deep, f.recorder,
		healthuc.New(okPinger{}, nil), zap.NewNop(),
	)
	f.router = chirouter.NewRouter()
	server.Routes(f.router)
	return f
}

func (f *fixture) post(t *testing.T, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/datasets/search-test", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer tok-1")
	req.RemoteAddr = "203.0.113.7:51234"
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func validBody() map[string]any {
	return map[string]any{
		"datasetId": "ds-1",
		"text":      "what is go",
	}
}

func TestSearchTest_Success(t *testing.T) {
	f := newFixture()
	f.single.out = domain.Outcome{
		Matches: []result.Match{
			result.New("doc-1", "ds-1", "go is a language", 0.91),
			result.New("doc-2", "ds-1", "go routines", 0.72),
		},
		EmbeddingTokens: 8,
	}

	rr := f.post(t, validBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp searchTestResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Total != 2 || len(resp.List) != 2 {
		t.Errorf("total=%d len=%d, expected 2", resp.Total, len(resp.List))
	}
	if resp.List[0].ID != "doc-1" || resp.List[0].Score != 0.91 {
		t.Errorf("unexpected first item: %+v", resp.List[0])
	}
	if resp.List[0].Text != "go is a language" {
		t.Errorf("Text = %q", resp.List[0].Text)
	}
	if !regexp.MustCompile(`^\d+\.\d{3}s$`).MatchString(resp.Duration) {
		t.Errorf("Duration = %q, expected decimal seconds with 3 digits", resp.Duration)
	}
	if resp.UsingReRank {
		t.Error("usingReRank should be false")
	}
	if resp.QueryExtensionModel != "" || resp.DeepSearchRounds != 0 {
		t.Errorf("unexpected optional fields: %+v", resp)
	}

	if f.recorder.calls != 1 {
		t.Fatalf("billing calls = %d, expected 1", f.recorder.calls)
	}
	if f.recorder.model != "embed-model" {
		t.Errorf("billing model = %q, expected dataset embedding model", f.recorder.model)
	}
	if f.recorder.caller.AccountID != "acc-1" {
		t.Errorf("billing caller = %+v", f.recorder.caller)
	}
}

func TestSearchTest_SummaryFlagsFromOutcome(t *testing.T) {
	f := newFixture()
	f.deep.out = domain.Outcome{
		Matches:     []result.Match{result.New("a", "ds-1", "x", 0.9)},
		UsingReRank: true,
		Extension:   &domain.ExtensionCost{Model: "ext-model"},
		Deep:        &domain.DeepCost{Model: "deep-model", Rounds: 3},
	}

	body := validBody()
	body["datasetDeepSearch"] = true
	rr := f.post(t, body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if f.deep.calls != 1 || f.single.calls != 0 {
		t.Errorf("deep toggle must select deep strategy, got single=%d deep=%d",
			f.single.calls, f.deep.calls)
	}

	var resp searchTestResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)

	if !resp.UsingReRank {
		t.Error("usingReRank should mirror the outcome")
	}
	if resp.QueryExtensionModel != "ext-model" {
		t.Errorf("QueryExtensionModel = %q", resp.QueryExtensionModel)
	}
	if resp.DeepSearchRounds != 3 {
		t.Errorf("DeepSearchRounds = %d, expected 3", resp.DeepSearchRounds)
	}
}

func TestSearchTest_DeepSearchWireFields(t *testing.T) {
	f := newFixture()
	f.deep.out = domain.Outcome{Deep: &domain.DeepCost{Model: "deep-model", Rounds: 1}}

	body := validBody()
	body["datasetDeepSearch"] = true
	body["datasetDeepSearchModel"] = "deep-model"
	body["datasetDeepSearchMaxTimes"] = 4
	rr := f.post(t, body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if f.deep.req == nil {
		t.Fatal("deep strategy was not called")
	}
	if f.deep.req.DeepModel() != "deep-model" {
		t.Errorf("DeepModel = %q", f.deep.req.DeepModel())
	}
	if f.deep.req.DeepMaxRounds() != 4 {
		t.Errorf("DeepMaxRounds = %d, expected 4", f.deep.req.DeepMaxRounds())
	}
}

func TestSearchTest_MissingParams(t *testing.T) {
	f := newFixture()

	rr := f.post(t, map[string]any{"text": "query without dataset"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rr.Code)
	}
	if f.limiter.calls != 0 || f.auth.authCalls != 0 || f.single.calls != 0 {
		t.Error("validation failure must short-circuit before any collaborator")
	}
}

func TestSearchTest_RateLimited(t *testing.T) {
	f := newFixture()
	f.limiter.err = domain.NewRateLimited(700 * time.Millisecond)

	rr := f.post(t, validBody())

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, expected 1", rr.Header().Get("Retry-After"))
	}
	if f.auth.authCalls != 0 {
		t.Error("rate limited request must not reach auth")
	}
	if len(f.limiter.identities) != 1 || f.limiter.identities[0] != "203.0.113.7" {
		t.Errorf("limiter identity = %v, expected client IP", f.limiter.identities)
	}
}

func TestSearchTest_AuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		authErr    error
		wantStatus int
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"dataset missing", domain.ErrDatasetNotFound, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.auth.authErr = tc.authErr

			rr := f.post(t, validBody())

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, expected %d", rr.Code, tc.wantStatus)
			}
			if f.single.calls != 0 {
				t.Error("failed auth must not reach the strategy")
			}
		})
	}
}

func TestSearchTest_InsufficientBalance(t *testing.T) {
	f := newFixture()
	f.auth.balanceErr = domain.ErrInsufficientBalance

	rr := f.post(t, validBody())

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, expected 402", rr.Code)
	}
	if f.single.calls != 0 {
		t.Error("zero balance must block before any retrieval")
	}
}

func TestSearchTest_ProviderFailure(t *testing.T) {
	f := newFixture()
	f.single.err = domain.ErrSearchProvider

	rr := f.post(t, validBody())

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, expected 502", rr.Code)
	}
	if f.recorder.calls != 0 {
		t.Error("failed retrieval must not be billed")
	}
}

func TestSearchTest_BillingFailureStillReturnsResults(t *testing.T) {
	f := newFixture()
	f.single.out = domain.Outcome{Matches: []result.Match{result.New("a", "ds-1", "x", 0.9)}}
	f.recorder.err = domain.ErrInsufficientBalance

	rr := f.post(t, validBody())

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200 despite billing failure", rr.Code)
	}
}

func TestSearchTest_ForwardedForIdentity(t *testing.T) {
	f := newFixture()
	f.single.out = domain.Outcome{}

	data, _ := json.Marshal(validBody())
	req := httptest.NewRequest("POST", "/v1/datasets/search-test", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer tok-1")
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if len(f.limiter.identities) != 1 || f.limiter.identities[0] != "198.51.100.4" {
		t.Errorf("identity = %v, expected first forwarded address", f.limiter.identities)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rr.Code)
	}
}
