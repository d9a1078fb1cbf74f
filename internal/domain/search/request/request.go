package request

import (
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	// DefaultLimit is used when the caller does not ask for a limit.
	DefaultLimit = 5000
	// MaxLimit is the absolute result ceiling. Caller-supplied limits above
	// it are clamped silently, never rejected.
	MaxLimit = 20000
	// DefaultDeepMaxRounds bounds deep search when the caller does not.
	DefaultDeepMaxRounds = 3
	// MaxDeepRounds is the hard ceiling on deep search rounds.
	MaxDeepRounds = 10

	defaultWeight = 0.5
)

// Params carries raw, caller-supplied search parameters into New.
type Params struct {
	DatasetID       string
	Query           string
	Limit           int
	Similarity      float64
	Mode            mode.Mode
	EmbeddingWeight float64

	UsingReRank  bool
	RerankModel  string
	RerankWeight float64

	UsingExtension      bool
	ExtensionModel      string
	ExtensionBackground string

	UsingDeepSearch bool
	DeepModel       string
	DeepBackground  string
	DeepMaxRounds   int
}

// Request is a validated, normalized search request. Immutable once built.
type Request struct {
	datasetID       string
	query           string
	limit           int
	similarity      float64
	searchMode      mode.Mode
	embeddingWeight float64

	usingReRank  bool
	rerankModel  string
	rerankWeight float64

	usingExtension      bool
	extensionModel      string
	extensionBackground string

	usingDeepSearch bool
	deepModel       string
	deepBackground  string
	deepMaxRounds   int
}

// New validates and normalizes search parameters.
// Defaults: mode=embedding, limit=5000, weights=0.5, deep rounds=3.
// Limit and deep rounds are clamped to their ceilings.
func New(p Params) (Request, error) {
	if p.DatasetID == "" || p.Query == "" {
		return Request{}, fmt.Errorf("%w: datasetId and query are required", domain.ErrMissingParams)
	}
	if len(p.Query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrMissingParams, MaxQueryLength)
	}
	if p.Mode == "" {
		p.Mode = mode.Embedding
	}
	if !p.Mode.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrMissingParams, p.Mode)
	}
	if p.Similarity < 0 || p.Similarity > 1 {
		return Request{}, fmt.Errorf("%w: similarity must be between 0 and 1", domain.ErrMissingParams)
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.EmbeddingWeight <= 0 || p.EmbeddingWeight > 1 {
		p.EmbeddingWeight = defaultWeight
	}
	if p.RerankWeight <= 0 || p.RerankWeight > 1 {
		p.RerankWeight = defaultWeight
	}
	if p.DeepMaxRounds <= 0 {
		p.DeepMaxRounds = DefaultDeepMaxRounds
	}
	if p.DeepMaxRounds > MaxDeepRounds {
		p.DeepMaxRounds = MaxDeepRounds
	}

	return Request{
		datasetID:           p.DatasetID,
		query:               p.Query,
		limit:               p.Limit,
		similarity:          p.Similarity,
		searchMode:          p.Mode,
		embeddingWeight:     p.EmbeddingWeight,
		usingReRank:         p.UsingReRank,
		rerankModel:         p.RerankModel,
		rerankWeight:        p.RerankWeight,
		usingExtension:      p.UsingExtension,
		extensionModel:      p.ExtensionModel,
		extensionBackground: p.ExtensionBackground,
		usingDeepSearch:     p.UsingDeepSearch,
		deepModel:           p.DeepModel,
		deepBackground:      p.DeepBackground,
		deepMaxRounds:       p.DeepMaxRounds,
	}, nil
}

// DatasetID returns the target dataset identifier.
func (r *Request) DatasetID() string { return r.datasetID }

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// Limit returns the clamped result limit.
func (r *Request) Limit() int { return r.limit }

// Similarity returns the minimum similarity threshold.
func (r *Request) Similarity() float64 { return r.similarity }

// Mode returns the search mode.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// EmbeddingWeight returns the embedding share for hybrid fusion.
func (r *Request) EmbeddingWeight() float64 { return r.embeddingWeight }

// UsingReRank reports whether the caller asked for reranking.
func (r *Request) UsingReRank() bool { return r.usingReRank }

// RerankModel returns the requested rerank model name.
func (r *Request) RerankModel() string { return r.rerankModel }

// RerankWeight returns the rerank share when blending scores.
func (r *Request) RerankWeight() float64 { return r.rerankWeight }

// UsingExtension reports whether query extension was requested.
func (r *Request) UsingExtension() bool { return r.usingExtension }

// ExtensionModel returns the extension generation model name.
func (r *Request) ExtensionModel() string { return r.extensionModel }

// ExtensionBackground returns free-text context for the extension prompt.
func (r *Request) ExtensionBackground() string { return r.extensionBackground }

// UsingDeepSearch reports whether iterative deep search was requested.
func (r *Request) UsingDeepSearch() bool { return r.usingDeepSearch }

// DeepModel returns the deep search refinement model name.
func (r *Request) DeepModel() string { return r.deepModel }

// DeepBackground returns free-text context for refinement prompts.
func (r *Request) DeepBackground() string { return r.deepBackground }

// DeepMaxRounds returns the clamped round ceiling for deep search.
func (r *Request) DeepMaxRounds() int { return r.deepMaxRounds }
