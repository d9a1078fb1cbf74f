package usage

import (
	"math"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Kind identifies the billable operation behind a ledger entry.
type Kind string

// Ledger entry kinds. Extension and deep search usage fold into the
// embedding entry's auxiliary fields rather than getting kinds of their own;
// that mirrors billing granularity, not algorithmic separation.
const (
	KindEmbedding Kind = "embedding"
	KindRerank    Kind = "rerank"
)

// LedgerEntry is one billable record for a request. The sum of all entries
// created for a request is the amount debited from the account, exactly once.
type LedgerEntry struct {
	ID          string
	AccountID   string
	MemberID    string
	Source      domain.Source
	Kind        Kind
	Model       string
	InputTokens int
	Millipoints int64
	CreatedAt   time.Time

	// Auxiliary consumption attached to the embedding entry.
	ExtensionModel        string
	ExtensionInputTokens  int
	ExtensionOutputTokens int
	DeepModel             string
	DeepInputTokens       int
	DeepOutputTokens      int
	DeepRounds            int
}

// Points returns the entry cost in display units.
func (e LedgerEntry) Points() float64 {
	return float64(e.Millipoints) / 1000
}

// Millipoints converts a token count into the debit unit. Prices are points
// per 1000 tokens, so millipoints = pointsPer1K * tokens, rounded up — a
// nonzero consumption never bills zero.
func Millipoints(tokens int, pointsPer1K float64) int64 {
	if tokens <= 0 || pointsPer1K <= 0 {
		return 0
	}
	return int64(math.Ceil(pointsPer1K * float64(tokens)))
}

// Total sums the millipoints of a set of entries.
func Total(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Millipoints
	}
	return total
}
