package result

// Match is a single scored search hit.
type Match struct {
	id        string
	datasetID string
	content   string
	score     float64
}

// New creates a match.
func New(id, datasetID, content string, score float64) Match {
	return Match{id: id, datasetID: datasetID, content: content, score: score}
}

// ID returns the source document identifier.
func (m *Match) ID() string { return m.id }

// DatasetID returns the dataset the match came from.
func (m *Match) DatasetID() string { return m.datasetID }

// Content returns the matched text snippet.
func (m *Match) Content() string { return m.content }

// Score returns the relevance score.
func (m *Match) Score() float64 { return m.score }

// WithScore returns a copy of the match carrying a new score.
func (m Match) WithScore(score float64) Match {
	m.score = score
	return m
}
