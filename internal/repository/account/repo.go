package account

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/usage"
)

// ledgerTTL keeps usage entries queryable for three months before the store
// expires them.
const ledgerTTL = 92 * 24 * time.Hour

// store is the consumer interface for account persistence (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo persists accounts, credentials, and the usage ledger.
type Repo struct {
	store store
}

// New creates an account repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func accountKey(id string) string { return domain.KeyPrefix + "account:" + id }
func apiKeyKey(key string) string { return domain.KeyPrefix + "apikey:" + key }
func sessionKey(tok string) string {
	return domain.KeyPrefix + "session:" + tok
}
func ledgerKey(accountID, entryID string) string {
	return domain.KeyPrefix + "usage:" + accountID + ":" + entryID
}

// ResolveAPIKey maps an API key to its caller identity.
func (r *Repo) ResolveAPIKey(ctx context.Context, key string) (domain.Caller, error) {
	fields, err := r.store.HGetAll(ctx, apiKeyKey(key))
	if err != nil {
		return domain.Caller{}, fmt.Errorf("resolve api key: %w", err)
	}
	if len(fields) == 0 || fields[fieldKeyDisabled] == "1" {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return callerFromFields(fields, key), nil
}

// ResolveSession maps a session token to its caller identity.
func (r *Repo) ResolveSession(ctx context.Context, token string) (domain.Caller, error) {
	fields, err := r.store.HGetAll(ctx, sessionKey(token))
	if err != nil {
		return domain.Caller{}, fmt.Errorf("resolve session: %w", err)
	}
	if len(fields) == 0 {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return callerFromFields(fields, ""), nil
}

// BalanceMillipoints returns the account's prepaid balance. A missing account
// reads as zero balance, which downstream treats as insufficient.
func (r *Repo) BalanceMillipoints(ctx context.Context, accountID string) (int64, error) {
	fields, err := r.store.HGetAll(ctx, accountKey(accountID))
	if err != nil {
		return 0, fmt.Errorf("get account %s: %w", accountID, err)
	}
	raw, ok := fields[fieldBalance]
	if !ok {
		return 0, nil
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance for %s: %w", accountID, err)
	}
	return balance, nil
}

// Debit subtracts millipoints from the account balance and adds them to the
// usage counter. Both sides are single atomic increments; the balance is
// allowed to go negative under concurrent load.
func (r *Repo) Debit(ctx context.Context, accountID string, millipoints int64) error {
	if millipoints <= 0 {
		return nil
	}
	key := accountKey(accountID)
	if _, err := r.store.HIncrBy(ctx, key, fieldBalance, -millipoints); err != nil {
		return fmt.Errorf("debit account %s: %w", accountID, err)
	}
	if _, err := r.store.HIncrBy(ctx, key, fieldUsage, millipoints); err != nil {
		return fmt.Errorf("bump usage counter %s: %w", accountID, err)
	}
	return nil
}

// AppendLedger writes one record per billable sub-operation.
func (r *Repo) AppendLedger(ctx context.Context, entries []usage.LedgerEntry) error {
	for _, e := range entries {
		data, err := json.Marshal(entryToDTO(e))
		if err != nil {
			return fmt.Errorf("marshal ledger entry %s: %w", e.ID, err)
		}
		if err := r.store.SetWithTTL(ctx, ledgerKey(e.AccountID, e.ID), data, ledgerTTL); err != nil {
			return fmt.Errorf("append ledger entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// AddAPIKeyUsage records billed points against the key's own usage counter.
func (r *Repo) AddAPIKeyUsage(ctx context.Context, apiKey string, millipoints int64) error {
	if millipoints <= 0 {
		return nil
	}
	if _, err := r.store.HIncrBy(ctx, apiKeyKey(apiKey), fieldKeyUsage, millipoints); err != nil {
		return fmt.Errorf("bump api key usage: %w", err)
	}
	return nil
}

// SeedAccount provisions an account with credentials for local/dev use.
func (r *Repo) SeedAccount(
	ctx context.Context, accountID, memberID, name string,
	balanceMillipoints int64, apiKey, sessionToken string,
) error {
	if err := r.store.HSet(ctx, accountKey(accountID), map[string]string{
		fieldName:    name,
		fieldBalance: strconv.FormatInt(balanceMillipoints, 10),
		fieldUsage:   "0",
	}); err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	if apiKey != "" {
		if err := r.store.HSet(ctx, apiKeyKey(apiKey), map[string]string{
			fieldAccountID: accountID,
			fieldMemberID:  memberID,
			fieldKeyUsage:  "0",
		}); err != nil {
			return fmt.Errorf("seed api key: %w", err)
		}
	}
	if sessionToken != "" {
		if err := r.store.HSet(ctx, sessionKey(sessionToken), map[string]string{
			fieldAccountID: accountID,
			fieldMemberID:  memberID,
		}); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
	}
	return nil
}
