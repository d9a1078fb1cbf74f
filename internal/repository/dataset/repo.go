package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Hash field names for dataset records.
const (
	fieldAccountID      = "account_id"
	fieldName           = "name"
	fieldEmbeddingModel = "embedding_model"
	fieldReaders        = "readers"
)

// store is the consumer interface for dataset persistence (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// Repo reads dataset records. Document ingestion and index maintenance are
// owned by the indexer service, not by this one.
type Repo struct {
	store store
}

// New creates a dataset repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func datasetKey(id string) string { return domain.KeyPrefix + "dataset:" + id }

// Get loads a dataset record by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Dataset, error) {
	fields, err := r.store.HGetAll(ctx, datasetKey(id))
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("get dataset %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Dataset{}, domain.ErrDatasetNotFound
	}

	var readers []string
	if raw := fields[fieldReaders]; raw != "" {
		readers = strings.Split(raw, ",")
	}

	return domain.Dataset{
		ID:             id,
		AccountID:      fields[fieldAccountID],
		Name:           fields[fieldName],
		EmbeddingModel: fields[fieldEmbeddingModel],
		Readers:        readers,
	}, nil
}

// Seed provisions a dataset record for local/dev use.
func (r *Repo) Seed(ctx context.Context, d domain.Dataset) error {
	if err := r.store.HSet(ctx, datasetKey(d.ID), map[string]string{
		fieldAccountID:      d.AccountID,
		fieldName:           d.Name,
		fieldEmbeddingModel: d.EmbeddingModel,
		fieldReaders:        strings.Join(d.Readers, ","),
	}); err != nil {
		return fmt.Errorf("seed dataset %s: %w", d.ID, err)
	}
	return nil
}
