package domain

import "github.com/kailas-cloud/ragdex/internal/domain/search/result"

// ExtensionCost is the cost fact for a query extension call. Present on an
// Outcome only when the extension model actually ran.
type ExtensionCost struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// DeepCost sums generation usage across all deep search rounds. Present only
// when deep search ran. Rounds counts rounds actually executed, which may be
// fewer than the requested maximum.
type DeepCost struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Rounds       int
}

// Outcome is the common result contract both retrieval strategies produce:
// the ordered matches plus the cost facts billing needs. Optional facts are
// pointers, never zero-valued sentinels, so billing can tell "did not run"
// from "ran for free".
type Outcome struct {
	Matches []result.Match

	EmbeddingTokens   int
	RerankInputTokens int
	// RerankModel is the resolved model name, set only when reranking ran.
	RerankModel string
	// UsingReRank reports whether reranking actually ran, which can differ
	// from the request flag when the model is unresolvable.
	UsingReRank bool

	Extension *ExtensionCost
	Deep      *DeepCost
}
