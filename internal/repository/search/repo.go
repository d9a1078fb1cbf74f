package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements vector and fulltext recall against per-dataset FT indexes.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func indexName(datasetID string) string {
	return fmt.Sprintf("%sdataset:%s:idx", domain.KeyPrefix, datasetID)
}

func docPrefix(datasetID string) string {
	return fmt.Sprintf("%sdataset:%s:doc:", domain.KeyPrefix, datasetID)
}

// SearchKNN performs a vector similarity search over a dataset.
func (r *Repo) SearchKNN(
	ctx context.Context, datasetID string, vector []float32, topK int,
) ([]result.Match, error) {
	q := &db.KNNQuery{
		IndexName:    indexName(datasetID),
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"__content", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", datasetID, err)
	}

	return parseResults(sr, datasetID), nil
}

// SearchBM25 performs a BM25 keyword search over a dataset.
func (r *Repo) SearchBM25(
	ctx context.Context, datasetID, query string, topK int,
) ([]result.Match, error) {
	q := &db.TextQuery{
		IndexName:    indexName(datasetID),
		Query:        query,
		TopK:         topK,
		ReturnFields: []string{"__content"},
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search bm25 %s: %w", datasetID, err)
	}

	return parseResults(sr, datasetID), nil
}

// parseResults converts db.SearchResult into ordered matches.
func parseResults(sr *db.SearchResult, datasetID string) []result.Match {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := docPrefix(datasetID)
	matches := make([]result.Match, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		docID := strings.TrimPrefix(entry.Key, prefix)
		matches = append(matches, result.New(docID, datasetID, entry.Fields["__content"], entry.Score))
	}

	return matches
}
