package account

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/usage"
)

// --- Mocks ---

type mockStore struct {
	hashes   map[string]map[string]string
	kv       map[string][]byte
	hgetErr  error
	hincrErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		hashes: make(map[string]map[string]string),
		kv:     make(map[string][]byte),
	}
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.hgetErr != nil {
		return nil, m.hgetErr
	}
	return m.hashes[key], nil
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HIncrBy(_ context.Context, key, field string, val int64) (int64, error) {
	if m.hincrErr != nil {
		return 0, m.hincrErr
	}
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	var cur int64
	if raw, ok := h[field]; ok {
		var err error
		if cur, err = parseInt(raw); err != nil {
			return 0, err
		}
	}
	cur += val
	h[field] = formatInt(cur)
	return cur, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.kv[key] = value
	return nil
}

func parseInt(s string) (int64, error) {
	var n int64
	err := json.Unmarshal([]byte(s), &n)
	return n, err
}

func formatInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// --- Tests ---

func TestResolveAPIKey(t *testing.T) {
	s := newMockStore()
	repo := New(s)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "acct1", "member1", "demo", 10000, "rk-key", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	caller, err := repo.ResolveAPIKey(ctx, "rk-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.AccountID != "acct1" || caller.MemberID != "member1" {
		t.Errorf("caller = %+v, want acct1/member1", caller)
	}
	if caller.BillingSource() != domain.SourceAPI {
		t.Errorf("source = %q, want api", caller.BillingSource())
	}
}

func TestResolveAPIKey_Unknown(t *testing.T) {
	repo := New(newMockStore())
	_, err := repo.ResolveAPIKey(context.Background(), "rk-nope")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestResolveSession(t *testing.T) {
	s := newMockStore()
	repo := New(s)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "acct1", "member1", "demo", 0, "", "sess-tok"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	caller, err := repo.ResolveSession(ctx, "sess-tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.BillingSource() != domain.SourceWeb {
		t.Errorf("source = %q, want web", caller.BillingSource())
	}
}

func TestBalance_MissingAccountIsZero(t *testing.T) {
	repo := New(newMockStore())
	balance, err := repo.BalanceMillipoints(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestDebit_MovesBalanceToUsage(t *testing.T) {
	s := newMockStore()
	repo := New(s)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "acct1", "m1", "demo", 5000, "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Debit(ctx, "acct1", 1200); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, _ := repo.BalanceMillipoints(ctx, "acct1")
	if balance != 3800 {
		t.Errorf("balance = %d, want 3800", balance)
	}
	if got := s.hashes[accountKey("acct1")][fieldUsage]; got != "1200" {
		t.Errorf("usage = %s, want 1200", got)
	}
}

func TestDebit_AllowsNegativeBalance(t *testing.T) {
	s := newMockStore()
	repo := New(s)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "acct1", "m1", "demo", 100, "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Debit(ctx, "acct1", 500); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, _ := repo.BalanceMillipoints(ctx, "acct1")
	if balance != -400 {
		t.Errorf("balance = %d, want -400", balance)
	}
}

func TestDebit_ZeroIsNoop(t *testing.T) {
	s := newMockStore()
	s.hincrErr = errors.New("should not be called")
	repo := New(s)

	if err := repo.Debit(context.Background(), "acct1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppendLedger(t *testing.T) {
	s := newMockStore()
	repo := New(s)

	entries := []usage.LedgerEntry{
		{ID: "e1", AccountID: "acct1", Kind: usage.KindEmbedding, Millipoints: 100},
		{ID: "e2", AccountID: "acct1", Kind: usage.KindRerank, Millipoints: 40},
	}
	if err := repo.AppendLedger(context.Background(), entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.kv) != 2 {
		t.Fatalf("expected 2 ledger records, got %d", len(s.kv))
	}
	for key := range s.kv {
		if !strings.HasPrefix(key, domain.KeyPrefix+"usage:acct1:") {
			t.Errorf("unexpected ledger key %q", key)
		}
	}
}

func TestAddAPIKeyUsage(t *testing.T) {
	s := newMockStore()
	repo := New(s)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "acct1", "m1", "demo", 0, "rk-key", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.AddAPIKeyUsage(ctx, "rk-key", 140); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.hashes[apiKeyKey("rk-key")][fieldKeyUsage]; got != "140" {
		t.Errorf("key usage = %s, want 140", got)
	}
}
