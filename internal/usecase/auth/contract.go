package auth

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// CredentialResolver maps raw credentials to caller identities.
type CredentialResolver interface {
	ResolveAPIKey(ctx context.Context, key string) (domain.Caller, error)
	ResolveSession(ctx context.Context, token string) (domain.Caller, error)
}

// DatasetReader reads datasets for access checks.
type DatasetReader interface {
	Get(ctx context.Context, id string) (domain.Dataset, error)
}

// BalanceReader reads account balances.
type BalanceReader interface {
	BalanceMillipoints(ctx context.Context, accountID string) (int64, error)
}
