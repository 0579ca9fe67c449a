package domain

import "errors"

var (
	// ErrInvalidListing signals a malformed listing document.
	ErrInvalidListing = errors.New("invalid listing")
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEncoderUnavailable signals an embedding encoder failure.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	// ErrStoreUnavailable signals a vector store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)
