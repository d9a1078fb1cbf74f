package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
)

// Strategy executes one retrieval plan against a dataset and returns the
// matches plus the cost facts billing needs.
type Strategy interface {
	Execute(ctx context.Context, req *request.Request, caller domain.Caller) (domain.Outcome, error)
}

// Searcher defines the recall contract against the index store.
type Searcher interface {
	SearchKNN(ctx context.Context, datasetID string, vector []float32, topK int) ([]result.Match, error)
	SearchBM25(ctx context.Context, datasetID, query string, topK int) ([]result.Match, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator runs auxiliary generation calls (query extension, deep search
// refinement).
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

// Reranker re-scores candidates against the query.
type Reranker interface {
	Rerank(ctx context.Context, query, model string, documents []string) (domain.RerankResult, error)
}

// ModelRegistry resolves caller-supplied rerank model names against the
// configured registry.
type ModelRegistry interface {
	ResolveRerank(name string) (domain.RerankModel, bool)
}
