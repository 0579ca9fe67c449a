package health

import "context"

// StorePinger checks vector store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks encoding provider availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}

// ListingCounter reports how many listings the index holds.
type ListingCounter interface {
	Count(ctx context.Context) (int, error)
}
