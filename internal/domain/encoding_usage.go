package domain

import "context"

type encodingUsageKey struct{}

// EncodingUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the
// service; the service writes after encoding; the handler reads it for
// response headers.
type EncodingUsage struct {
	TotalTokens int
	Used        bool // true if the encoder ran, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EncodingUsage) {
	u := &EncodingUsage{}
	return context.WithValue(ctx, encodingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil
// if not set.
func UsageFromContext(ctx context.Context) *EncodingUsage {
	u, _ := ctx.Value(encodingUsageKey{}).(*EncodingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EncodingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
