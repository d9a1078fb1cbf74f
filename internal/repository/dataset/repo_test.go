package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

type mockStore struct {
	hashes map[string]map[string]string
	err    error
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hashes[key], nil
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hashes == nil {
		m.hashes = make(map[string]map[string]string)
	}
	m.hashes[key] = fields
	return nil
}

func TestGet_RoundTrip(t *testing.T) {
	s := &mockStore{}
	repo := New(s)
	ctx := context.Background()

	want := domain.Dataset{
		ID:             "ds1",
		AccountID:      "acct1",
		Name:           "docs",
		EmbeddingModel: "text-embedding-3-small",
		Readers:        []string{"m1", "m2"},
	}
	if err := repo.Seed(ctx, want); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.Get(ctx, "ds1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccountID != want.AccountID || got.EmbeddingModel != want.EmbeddingModel {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Readers) != 2 {
		t.Errorf("readers = %v, want 2 entries", got.Readers)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(&mockStore{})
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Fatalf("err = %v, want ErrDatasetNotFound", err)
	}
}

func TestGet_EmptyReaders(t *testing.T) {
	s := &mockStore{}
	repo := New(s)
	ctx := context.Background()

	if err := repo.Seed(ctx, domain.Dataset{ID: "ds1", AccountID: "acct1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := repo.Get(ctx, "ds1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Readers) != 0 {
		t.Errorf("readers = %v, want empty", got.Readers)
	}
}

func TestCanRead(t *testing.T) {
	tests := []struct {
		name    string
		ds      domain.Dataset
		account string
		member  string
		want    bool
	}{
		{"wrong account", domain.Dataset{AccountID: "a1"}, "a2", "m1", false},
		{"open to all members", domain.Dataset{AccountID: "a1"}, "a1", "m1", true},
		{"listed reader", domain.Dataset{AccountID: "a1", Readers: []string{"m1"}}, "a1", "m1", true},
		{"unlisted reader", domain.Dataset{AccountID: "a1", Readers: []string{"m2"}}, "a1", "m1", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ds.CanRead(tc.account, tc.member); got != tc.want {
				t.Errorf("CanRead = %v, want %v", got, tc.want)
			}
		})
	}
}
