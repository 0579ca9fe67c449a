package domain

import (
	"fmt"
	"math"

	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

// MetadataKeyPK is the conventional metadata key carrying the listing
// primary key in the owning application.
const MetadataKeyPK = "pk"

// Metadata is the flat key/value bag attached to a listing. Values must be
// scalars: strings, numbers, or booleans. The service never interprets
// metadata beyond equality filtering and pk extraction.
type Metadata map[string]any

// Canonical returns the metadata with every value in its canonical indexed
// form (see filter.Canon). A non-scalar value makes the whole bag invalid.
func (m Metadata) Canonical() (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k == "" {
			return nil, fmt.Errorf("%w: metadata key must not be empty", ErrInvalidListing)
		}
		cv, err := filter.Canon(v)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata key %q: %v", ErrInvalidListing, k, err)
		}
		out[k] = cv
	}
	return out, nil
}

// PK returns the primary key carried in the metadata. Numbers are reported
// as int64 when they hold an exact integer; JSON decoding yields float64
// for every number, so integral floats are folded back.
func (m Metadata) PK() (any, bool) {
	v, ok := m[MetadataKeyPK]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < float64(1<<53) {
			return int64(t), true
		}
		return t, true
	default:
		return nil, false
	}
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
