package domain

import "context"

// Reranker re-scores a candidate set against a query with a cross-encoder
// model. Failures are soft from the pipeline's point of view: callers fall
// back to the original ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, model string, documents []string) (RerankResult, error)
}

// RerankModel is a resolved rerank model descriptor.
type RerankModel struct {
	Name string
}

// RerankScore is one re-scored candidate, addressed by its position in the
// submitted document list.
type RerankScore struct {
	Index int
	Score float64
}

// RerankResult carries the re-scored candidates and token usage.
type RerankResult struct {
	Scores      []RerankScore
	InputTokens int
}
