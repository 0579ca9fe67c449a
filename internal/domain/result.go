package domain

// Hit is a raw nearest-neighbor match from the vector store, ordered
// ascending by cosine distance.
type Hit struct {
	DocID    string
	Distance float64
	Meta     Metadata
}

// PK returns the primary key reported for this hit: the metadata pk when
// present, otherwise the document id itself.
func (h Hit) PK() any {
	if pk, ok := h.Meta.PK(); ok {
		return pk
	}
	return h.DocID
}

// RankedResult is one search answer after the adaptive cutoff. PK is
// either an int64 or a string, depending on what the owning application
// indexed.
type RankedResult struct {
	PK       any
	Distance float64
}
