package domain

// Dataset is a named partition of indexed documents searched as a unit.
type Dataset struct {
	ID             string
	AccountID      string
	Name           string
	EmbeddingModel string
	// Readers lists member IDs with read access. Empty means every member
	// of the owning account may read.
	Readers []string
}

// CanRead reports whether the given account member may search this dataset.
func (d Dataset) CanRead(accountID, memberID string) bool {
	if d.AccountID != accountID {
		return false
	}
	if len(d.Readers) == 0 {
		return true
	}
	for _, r := range d.Readers {
		if r == memberID {
			return true
		}
	}
	return false
}
