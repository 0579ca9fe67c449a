package client

import "context"

// BestEffort wraps a Client with the degradation policy marketplace flows
// need: a dead sidecar must never break listing creation or browsing.
// Failures are observed through the client's logger and metrics and come
// back as explicit outcomes instead of errors.
type BestEffort struct {
	c *Client
}

// NewBestEffort wraps an existing Client.
func NewBestEffort(c *Client) *BestEffort {
	return &BestEffort{c: c}
}

// Outcome reports whether a best-effort call reached the service. Err
// holds the underlying failure for callers that want to inspect it.
type Outcome struct {
	OK  bool
	Err error
}

// Index upserts a listing, swallowing any failure into the Outcome.
func (b *BestEffort) Index(ctx context.Context, l Listing) Outcome {
	if err := b.c.Index(ctx, l); err != nil {
		return Outcome{Err: err}
	}
	return Outcome{OK: true}
}

// Remove deletes a listing, swallowing any failure into the Outcome.
func (b *BestEffort) Remove(ctx context.Context, id string) Outcome {
	if err := b.c.Remove(ctx, id); err != nil {
		return Outcome{Err: err}
	}
	return Outcome{OK: true}
}

// SearchOrEmpty ranks listings and degrades to an empty result set on any
// failure. The browse page renders, it just ranks nothing.
func (b *BestEffort) SearchOrEmpty(ctx context.Context, req SearchRequest, opts ...SearchOption) []Result {
	resp, err := b.c.Search(ctx, req, opts...)
	if err != nil {
		return []Result{}
	}
	return resp.Results
}
