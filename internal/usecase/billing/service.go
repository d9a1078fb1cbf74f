// Package billing turns a retrieval outcome into ledger entries and debits
// the account, exactly once per request.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/usage"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Service records usage for completed searches.
type Service struct {
	ledger Ledger
	prices Pricer
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a billing service.
func New(ledger Ledger, prices Pricer, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		prices: prices,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Record builds the ledger entries for an outcome, debits their sum from the
// account, and bumps the API key usage counter for api-sourced calls.
// Runs only after retrieval success; the debit happens exactly once.
func (s *Service) Record(
	ctx context.Context, caller domain.Caller, embeddingModel string, out domain.Outcome,
) (int64, error) {
	entries := s.buildEntries(caller, embeddingModel, out)
	total := usage.Total(entries)

	if err := s.ledger.Debit(ctx, caller.AccountID, total); err != nil {
		return 0, fmt.Errorf("record usage: %w", err)
	}
	metrics.PointsDebitedTotal.Add(float64(total))

	// The account is already debited past this point. Ledger and counter
	// failures lose audit detail, not money, so they log instead of
	// triggering a second debit attempt on retry.
	if err := s.ledger.AppendLedger(ctx, entries); err != nil {
		s.logger.Error("ledger append failed after debit",
			zap.String("account_id", caller.AccountID),
			zap.Int64("millipoints", total),
			zap.Error(err))
	}

	if caller.BillingSource() == domain.SourceAPI {
		if err := s.ledger.AddAPIKeyUsage(ctx, caller.APIKey, total); err != nil {
			s.logger.Error("api key usage bump failed",
				zap.String("account_id", caller.AccountID),
				zap.Error(err))
		}
	}

	return total, nil
}

// buildEntries produces one embedding entry (always, with extension and deep
// consumption folded into its cost and auxiliary fields) and one rerank entry
// iff reranking actually ran.
func (s *Service) buildEntries(
	caller domain.Caller, embeddingModel string, out domain.Outcome,
) []usage.LedgerEntry {
	embedding := usage.LedgerEntry{
		ID:          s.newID(),
		AccountID:   caller.AccountID,
		MemberID:    caller.MemberID,
		Source:      caller.BillingSource(),
		Kind:        usage.KindEmbedding,
		Model:       embeddingModel,
		InputTokens: out.EmbeddingTokens,
		Millipoints: usage.Millipoints(out.EmbeddingTokens, s.prices.PointsPer1K(embeddingModel)),
		CreatedAt:   s.now(),
	}

	if ext := out.Extension; ext != nil {
		embedding.ExtensionModel = ext.Model
		embedding.ExtensionInputTokens = ext.InputTokens
		embedding.ExtensionOutputTokens = ext.OutputTokens
		embedding.Millipoints += usage.Millipoints(
			ext.InputTokens+ext.OutputTokens, s.prices.PointsPer1K(ext.Model))
	}

	if deep := out.Deep; deep != nil {
		embedding.DeepModel = deep.Model
		embedding.DeepInputTokens = deep.InputTokens
		embedding.DeepOutputTokens = deep.OutputTokens
		embedding.DeepRounds = deep.Rounds
		embedding.Millipoints += usage.Millipoints(
			deep.InputTokens+deep.OutputTokens, s.prices.PointsPer1K(deep.Model))
	}

	entries := []usage.LedgerEntry{embedding}

	if out.UsingReRank {
		entries = append(entries, usage.LedgerEntry{
			ID:          s.newID(),
			AccountID:   caller.AccountID,
			MemberID:    caller.MemberID,
			Source:      caller.BillingSource(),
			Kind:        usage.KindRerank,
			Model:       out.RerankModel,
			InputTokens: out.RerankInputTokens,
			Millipoints: usage.Millipoints(out.RerankInputTokens, s.prices.PointsPer1K(out.RerankModel)),
			CreatedAt:   s.now(),
		})
	}

	return entries
}
