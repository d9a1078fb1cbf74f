package mode

// Mode selects how candidates are recalled from the index.
type Mode string

// Search mode constants.
const (
	// Embedding recalls by vector similarity only.
	Embedding Mode = "embedding"
	// FullText recalls by BM25 keyword match only.
	FullText Mode = "fulltext"
	// Hybrid fuses embedding and fulltext recall, weighted by the
	// request's embedding weight.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Embedding || m == FullText || m == Hybrid
}
