// Package auth resolves caller identities and guards dataset access and
// account balance before a search is allowed to spend anything.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// apiKeyPrefix distinguishes API keys from session tokens in the
// Authorization header.
const apiKeyPrefix = "rk-"

// Service authenticates callers and authorizes dataset reads.
type Service struct {
	creds    CredentialResolver
	datasets DatasetReader
	balances BalanceReader
}

// New creates an auth service.
func New(creds CredentialResolver, datasets DatasetReader, balances BalanceReader) *Service {
	return &Service{creds: creds, datasets: datasets, balances: balances}
}

// Authenticate resolves the bearer token into a caller and checks that the
// caller may read the dataset. The dataset is returned so the pipeline does
// not load it twice.
func (s *Service) Authenticate(
	ctx context.Context, token, datasetID string,
) (domain.Caller, domain.Dataset, error) {
	if token == "" {
		return domain.Caller{}, domain.Dataset{}, domain.ErrUnauthorized
	}

	var (
		caller domain.Caller
		err    error
	)
	if strings.HasPrefix(token, apiKeyPrefix) {
		caller, err = s.creds.ResolveAPIKey(ctx, token)
	} else {
		caller, err = s.creds.ResolveSession(ctx, token)
	}
	if err != nil {
		return domain.Caller{}, domain.Dataset{}, fmt.Errorf("authenticate: %w", err)
	}

	ds, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return domain.Caller{}, domain.Dataset{}, fmt.Errorf("load dataset: %w", err)
	}

	if !ds.CanRead(caller.AccountID, caller.MemberID) {
		return domain.Caller{}, domain.Dataset{}, domain.ErrForbidden
	}

	return caller, ds, nil
}

// CheckBalance rejects callers whose account has no points left. The check is
// advisory: concurrent requests may still drive the balance negative, which
// the debit path tolerates.
func (s *Service) CheckBalance(ctx context.Context, accountID string) error {
	balance, err := s.balances.BalanceMillipoints(ctx, accountID)
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if balance <= 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}
