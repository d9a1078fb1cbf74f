// Package rerank provides an HTTP client for OpenAI-style /rerank endpoints
// (Cohere-compatible wire format).
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Client calls a rerank provider over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// Config holds the rerank provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a rerank client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     cfg.Logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Meta struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Rerank satisfies the retrieval usecase's Reranker contract. Scores come
// back indexed into the input documents slice, highest relevance first.
func (c *Client) Rerank(ctx context.Context, query, model string, documents []string) (domain.RerankResult, error) {
	if len(documents) == 0 {
		return domain.RerankResult{}, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return domain.RerankResult{}, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return domain.RerankResult{}, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("rerank", model, "error").Inc()
		return domain.RerankResult{}, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequestsTotal.WithLabelValues("rerank", model, "error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.RerankResult{}, fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrRerankUnavailable)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("rerank", model, "error").Inc()
		return domain.RerankResult{}, fmt.Errorf("%w: decode response: %w", domain.ErrRerankUnavailable, err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues("rerank", model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues("rerank", model).Observe(duration.Seconds())

	scores := make([]domain.RerankScore, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		scores = append(scores, domain.RerankScore{Index: r.Index, Score: r.RelevanceScore})
	}

	// Cohere-style providers report usage under meta.billed_units,
	// OpenAI-style ones under usage.
	inputTokens := parsed.Usage.TotalTokens
	if inputTokens == 0 {
		inputTokens = parsed.Usage.PromptTokens
	}
	if inputTokens == 0 {
		inputTokens = parsed.Meta.BilledUnits.InputTokens
	}
	if inputTokens > 0 {
		metrics.TokensTotal.WithLabelValues("rerank", model).Add(float64(inputTokens))
	}

	return domain.RerankResult{
		Scores:      scores,
		InputTokens: inputTokens,
	}, nil
}
