// Package retrieval implements the two interchangeable search strategies:
// a single recall pass with optional query extension, and an iterative deep
// search that refines the query across bounded rounds.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/mode"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// SinglePass embeds the query once, recalls by the requested mode, and
// optionally reranks.
type SinglePass struct {
	search Searcher
	embed  Embedder
	gen    Generator
	rerank Reranker
	models ModelRegistry
	logger *zap.Logger
}

// NewSinglePass creates the single-pass strategy.
func NewSinglePass(
	search Searcher, embed Embedder, gen Generator,
	rerank Reranker, models ModelRegistry, logger *zap.Logger,
) *SinglePass {
	return &SinglePass{
		search: search,
		embed:  embed,
		gen:    gen,
		rerank: rerank,
		models: models,
		logger: logger,
	}
}

// Execute implements Strategy.
func (s *SinglePass) Execute(
	ctx context.Context, req *request.Request, caller domain.Caller,
) (domain.Outcome, error) {
	out, err := s.execute(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues("single", string(req.Mode()), status).Inc()

	if err != nil {
		return domain.Outcome{}, err
	}
	return out, nil
}

func (s *SinglePass) execute(ctx context.Context, req *request.Request) (domain.Outcome, error) {
	var out domain.Outcome

	query := req.Query()
	if req.UsingExtension() {
		extended, cost := s.extendQuery(ctx, req)
		if cost != nil {
			query = extended
			out.Extension = cost
		}
	}

	matches, embTokens, err := s.recall(ctx, req, query)
	if err != nil {
		return domain.Outcome{}, err
	}
	out.EmbeddingTokens = embTokens

	// Similarity thresholds only make sense in a comparable score space:
	// vector similarity before rerank, blended score after.
	if req.Mode() == mode.Embedding {
		matches = filterBySimilarity(matches, req.Similarity())
	}
	if len(matches) > req.Limit() {
		matches = matches[:req.Limit()]
	}

	matches = s.maybeRerank(ctx, req, matches, &out)
	out.Matches = matches

	return out, nil
}

// recall runs one search pass for the given query text. Used by both
// strategies; reranking is layered on top separately.
func (s *SinglePass) recall(
	ctx context.Context, req *request.Request, query string,
) ([]result.Match, int, error) {
	switch req.Mode() {
	case mode.FullText:
		matches, err := s.search.SearchBM25(ctx, req.DatasetID(), query, req.Limit())
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrSearchProvider, err)
		}
		return matches, 0, nil

	case mode.Embedding:
		emb, err := s.embed.Embed(ctx, query)
		if err != nil {
			return nil, 0, fmt.Errorf("vectorize query: %w", err)
		}
		matches, err := s.search.SearchKNN(ctx, req.DatasetID(), emb.Embedding, req.Limit())
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrSearchProvider, err)
		}
		return matches, emb.TotalTokens, nil

	case mode.Hybrid:
		emb, err := s.embed.Embed(ctx, query)
		if err != nil {
			return nil, 0, fmt.Errorf("vectorize query: %w", err)
		}
		knn, err := s.search.SearchKNN(ctx, req.DatasetID(), emb.Embedding, req.Limit())
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrSearchProvider, err)
		}
		bm25, err := s.search.SearchBM25(ctx, req.DatasetID(), query, req.Limit())
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrSearchProvider, err)
		}
		fused := fuseWeightedRRF(knn, bm25, req.EmbeddingWeight(), req.Limit())
		return fused, emb.TotalTokens, nil

	default:
		return nil, 0, fmt.Errorf("%w: unsupported search mode %q", domain.ErrMissingParams, req.Mode())
	}
}

// maybeRerank re-scores the candidate set when the caller asked for it.
// An unresolvable model or a provider failure degrades to the original
// ordering with UsingReRank=false, never to an error.
func (s *SinglePass) maybeRerank(
	ctx context.Context, req *request.Request, matches []result.Match, out *domain.Outcome,
) []result.Match {
	if !req.UsingReRank() || len(matches) == 0 {
		return matches
	}

	model, ok := s.models.ResolveRerank(req.RerankModel())
	if !ok {
		s.logger.Warn("rerank model not configured, skipping rerank",
			zap.String("model", req.RerankModel()))
		metrics.RerankTotal.WithLabelValues("skipped").Inc()
		return matches
	}

	documents := make([]string, len(matches))
	for i := range matches {
		documents[i] = matches[i].Content()
	}

	rr, err := s.rerank.Rerank(ctx, req.Query(), model.Name, documents)
	if err != nil {
		s.logger.Warn("rerank failed, keeping original ordering",
			zap.String("model", model.Name), zap.Error(err))
		metrics.RerankTotal.WithLabelValues("skipped").Inc()
		return matches
	}

	metrics.RerankTotal.WithLabelValues("ran").Inc()
	out.UsingReRank = true
	out.RerankModel = model.Name
	out.RerankInputTokens = rr.InputTokens

	// Score blending needs both operands in the same space. Embedding-mode
	// recall scores and rerank relevance both live in [0,1]; BM25 and RRF
	// values do not, so those modes blend by rank instead.
	if req.Mode() == mode.Embedding {
		matches = blendRerank(matches, rr.Scores, req.RerankWeight())
		return filterBySimilarity(matches, req.Similarity())
	}
	return blendRerankByRank(matches, rr.Scores, req.RerankWeight())
}

// blendRerank combines rerank relevance with the recall score:
// blended = w*rerank + (1-w)*recall, sorted descending. Candidates the
// provider did not score keep their recall score scaled by the complement.
func blendRerank(matches []result.Match, scores []domain.RerankScore, rerankWeight float64) []result.Match {
	blended := make([]result.Match, len(matches))
	copy(blended, matches)

	for i := range blended {
		blended[i] = blended[i].WithScore((1 - rerankWeight) * blended[i].Score())
	}
	for _, sc := range scores {
		if sc.Index < 0 || sc.Index >= len(blended) {
			continue
		}
		m := &blended[sc.Index]
		*m = m.WithScore(m.Score() + rerankWeight*sc.Score)
	}

	sort.Slice(blended, func(i, j int) bool {
		return blended[i].Score() > blended[j].Score()
	})
	return blended
}

// blendRerankByRank fuses the rerank ordering with the recall ordering by
// reciprocal rank: score = w/(k + rank_rerank) + (1-w)/(k + rank_recall).
// Candidates the provider did not score keep only the recall term.
func blendRerankByRank(matches []result.Match, scores []domain.RerankScore, rerankWeight float64) []result.Match {
	ranked := make([]domain.RerankScore, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	blended := make([]result.Match, len(matches))
	for i := range matches {
		blended[i] = matches[i].WithScore((1 - rerankWeight) / float64(rrfK+i+1))
	}
	for rank, sc := range ranked {
		if sc.Index < 0 || sc.Index >= len(blended) {
			continue
		}
		m := &blended[sc.Index]
		*m = m.WithScore(m.Score() + rerankWeight/float64(rrfK+rank+1))
	}

	sort.Slice(blended, func(i, j int) bool {
		return blended[i].Score() > blended[j].Score()
	})
	return blended
}

// filterBySimilarity drops matches scoring below the threshold.
func filterBySimilarity(matches []result.Match, threshold float64) []result.Match {
	if threshold <= 0 {
		return matches
	}
	filtered := matches[:0]
	for _, m := range matches {
		if m.Score() >= threshold {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
