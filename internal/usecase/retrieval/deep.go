package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/mode"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// sufficiencySignal is the token the refinement model returns when the
// accumulated snippets already answer the query.
const sufficiencySignal = "DONE"

// deepContextSnippets caps how many accumulated snippets the refinement
// prompt carries.
const deepContextSnippets = 10

const deepSystemPrompt = `You refine search queries for an iterative retrieval system.
You are given the original question, optional background, and snippets found so far.
If the snippets already contain enough information to answer the question, reply
with exactly DONE. Otherwise reply with a single new search query that targets
the missing information, no explanation.`

// Deep runs bounded iterative retrieval: each round searches a query the
// refinement model derived from what previous rounds found.
type Deep struct {
	inner  *SinglePass
	logger *zap.Logger
}

// NewDeep creates the deep search strategy on top of a single-pass core.
func NewDeep(inner *SinglePass, logger *zap.Logger) *Deep {
	return &Deep{inner: inner, logger: logger}
}

// Execute implements Strategy.
func (d *Deep) Execute(
	ctx context.Context, req *request.Request, caller domain.Caller,
) (domain.Outcome, error) {
	out, err := d.execute(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues("deep", string(req.Mode()), status).Inc()

	if err != nil {
		return domain.Outcome{}, err
	}
	return out, nil
}

func (d *Deep) execute(ctx context.Context, req *request.Request) (domain.Outcome, error) {
	var out domain.Outcome
	deep := &domain.DeepCost{Model: req.DeepModel()}

	// Dedupe across rounds by document ID, keeping the best score.
	accumulated := make(map[string]result.Match)
	query := req.Query()

	for round := 1; round <= req.DeepMaxRounds(); round++ {
		if round > 1 {
			refined, done := d.refineQuery(ctx, req, accumulated, deep)
			if done {
				break
			}
			query = refined
		}

		matches, embTokens, err := d.inner.recall(ctx, req, query)
		if err != nil {
			return domain.Outcome{}, err
		}
		out.EmbeddingTokens += embTokens
		deep.Rounds++
		metrics.DeepRoundsTotal.Inc()

		for _, m := range matches {
			if prev, ok := accumulated[m.ID()]; !ok || m.Score() > prev.Score() {
				accumulated[m.ID()] = m
			}
		}
	}

	merged := make([]result.Match, 0, len(accumulated))
	for _, m := range accumulated {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})

	if req.Mode() == mode.Embedding {
		merged = filterBySimilarity(merged, req.Similarity())
	}
	if len(merged) > req.Limit() {
		merged = merged[:req.Limit()]
	}

	merged = d.inner.maybeRerank(ctx, req, merged, &out)
	out.Matches = merged
	out.Deep = deep

	return out, nil
}

// refineQuery asks the generation model for the next round's query. Returns
// done=true when the model signals sufficiency or fails; a failure stops the
// loop early keeping whatever previous rounds accumulated.
func (d *Deep) refineQuery(
	ctx context.Context, req *request.Request,
	accumulated map[string]result.Match, deep *domain.DeepCost,
) (string, bool) {
	gen, err := d.inner.gen.Generate(ctx, domain.GenerationRequest{
		Model:  req.DeepModel(),
		System: deepSystemPrompt,
		Prompt: buildDeepPrompt(req, accumulated),
	})
	if err != nil {
		d.logger.Warn("deep search refinement failed, stopping early",
			zap.String("model", req.DeepModel()),
			zap.Int("rounds", deep.Rounds),
			zap.Error(err))
		return "", true
	}

	deep.Model = gen.Model
	deep.InputTokens += gen.InputTokens
	deep.OutputTokens += gen.OutputTokens

	text := strings.TrimSpace(gen.Text)
	if text == "" || strings.EqualFold(text, sufficiencySignal) {
		return "", true
	}
	return text, false
}

// buildDeepPrompt assembles the refinement prompt from the original query,
// background, and the top accumulated snippets.
func buildDeepPrompt(req *request.Request, accumulated map[string]result.Match) string {
	top := make([]result.Match, 0, len(accumulated))
	for _, m := range accumulated {
		top = append(top, m)
	}
	sort.Slice(top, func(i, j int) bool {
		return top[i].Score() > top[j].Score()
	})
	if len(top) > deepContextSnippets {
		top = top[:deepContextSnippets]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", req.Query())
	if req.DeepBackground() != "" {
		fmt.Fprintf(&b, "Background: %s\n", req.DeepBackground())
	}
	b.WriteString("Snippets found so far:\n")
	for i := range top {
		fmt.Fprintf(&b, "- %s\n", top[i].Content())
	}
	return b.String()
}
