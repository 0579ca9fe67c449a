package domain

import "fmt"

// MaxIDLength bounds listing ids in bytes.
const MaxIDLength = 256

// MaxTextSize is the maximum listing text size in bytes.
const MaxTextSize = 65536 // 64KB

// Listing is the unit stored in the vector index (immutable value object).
// The text is re-embedded on every upsert; metadata is an opaque bag used
// only for filtering.
type Listing struct {
	id   string
	text string
	meta Metadata
}

// NewListing validates and creates a Listing.
// The id is opaque: any non-empty string up to MaxIDLength. Text may be
// empty, sparse metadata-only listings still embed to a usable vector.
func NewListing(id, text string, meta Metadata) (Listing, error) {
	if id == "" {
		return Listing{}, fmt.Errorf("%w: id is required", ErrInvalidListing)
	}
	if len(id) > MaxIDLength {
		return Listing{}, fmt.Errorf("%w: id too long (max %d bytes)", ErrInvalidListing, MaxIDLength)
	}
	if len(text) > MaxTextSize {
		return Listing{}, fmt.Errorf("%w: text too large (max %d bytes)", ErrInvalidListing, MaxTextSize)
	}
	if _, err := meta.Canonical(); err != nil {
		return Listing{}, err
	}
	return Listing{id: id, text: text, meta: meta.clone()}, nil
}

// ID returns the listing identifier.
func (l *Listing) ID() string { return l.id }

// Text returns the free-form description the embedding derives from.
func (l *Listing) Text() string { return l.text }

// Metadata returns the filterable key/value bag.
func (l *Listing) Metadata() Metadata { return l.meta }
