// Package chi exposes the retrieval pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// searchRouteID names the search route in rate limit keys.
const searchRouteID = "search-test"

// Authenticator resolves callers and guards dataset access and balance.
type Authenticator interface {
	Authenticate(ctx context.Context, token, datasetID string) (domain.Caller, domain.Dataset, error)
	CheckBalance(ctx context.Context, accountID string) error
}

// Admitter decides whether a request passes the rate limit.
type Admitter interface {
	Admit(ctx context.Context, identity string) error
}

// UsageRecorder bills a completed search.
type UsageRecorder interface {
	Record(ctx context.Context, caller domain.Caller, embeddingModel string, out domain.Outcome) (int64, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	auth          Authenticator
	limiter       Admitter
	single        retrievaluc.Strategy
	deep          retrievaluc.Strategy
	billing       UsageRecorder
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	auth Authenticator,
	limiter Admitter,
	single retrievaluc.Strategy,
	deep retrievaluc.Strategy,
	billing UsageRecorder,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		auth:    auth,
		limiter: limiter,
		single:  single,
		deep:    deep,
		billing: billing,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		rateLimitedHandler,
		sentinelHandler(domain.ErrMissingParams, http.StatusBadRequest, "bad_request"),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, "forbidden"),
		sentinelHandler(domain.ErrDatasetNotFound, http.StatusNotFound, "dataset_not_found"),
		sentinelHandler(domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"),
		sentinelHandler(domain.ErrSearchProvider, http.StatusBadGateway, "search_provider_error"),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusBadGateway, "generation_provider_error"),
	}
	return s
}

// Routes mounts all handlers on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/datasets/search-test", s.SearchTest)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchTest handles POST /v1/datasets/search-test.
func (s *Server) SearchTest(w http.ResponseWriter, r *http.Request) {
	var dto searchTestRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	req, err := requestFromDTO(dto)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx := r.Context()

	if err := s.limiter.Admit(ctx, clientIP(r)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	caller, ds, err := s.auth.Authenticate(ctx, bearerToken(r), req.DatasetID())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := s.auth.CheckBalance(ctx, caller.AccountID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	strategy := s.single
	if req.UsingDeepSearch() {
		strategy = s.deep
	}

	start := time.Now()
	out, err := strategy.Execute(ctx, &req, caller)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	elapsed := time.Since(start)

	// Retrieval already succeeded; a billing failure must not take the
	// results away from the caller.
	if _, err := s.billing.Record(ctx, caller, ds.EmbeddingModel, out); err != nil {
		s.logger.Error("usage recording failed",
			zap.String("account_id", caller.AccountID),
			zap.String("dataset_id", ds.ID),
			zap.Error(err))
	}

	writeJSON(w, http.StatusOK, mergeResponse(&req, out, elapsed))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return auth
}

// clientIP returns the caller's address for rate limit identity. Proxies put
// the original client first in X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMissingParams,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrDatasetNotFound,
		domain.ErrInsufficientBalance,
		domain.ErrRateLimited,
		domain.ErrSearchProvider,
		domain.ErrGenerationProvider,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// rateLimitedHandler handles ErrRateLimited with a Retry-After hint.
func rateLimitedHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	metrics.RateLimitedTotal.Inc()

	var rle *domain.RateLimitedError
	if errors.As(err, &rle) {
		seconds := int(math.Ceil(rle.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
