package billing

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain/usage"
)

// Ledger persists debits and usage records.
type Ledger interface {
	Debit(ctx context.Context, accountID string, millipoints int64) error
	AppendLedger(ctx context.Context, entries []usage.LedgerEntry) error
	AddAPIKeyUsage(ctx context.Context, apiKey string, millipoints int64) error
}

// Pricer resolves a model's price in points per 1000 tokens.
type Pricer interface {
	PointsPer1K(model string) float64
}
