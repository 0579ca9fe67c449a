// Package batch reports per-item outcomes of bulk index operations.
// A rebuild skips items that fail to embed or store instead of aborting,
// so callers need the outcome of every item to report honest counts.
package batch

// ItemStatus is the processing outcome of a single item.
type ItemStatus string

// Item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of processing one item in a bulk operation.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful item result.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewSkipped creates a skipped item result with its cause.
func NewSkipped(id string, err error) Result {
	return Result{id: id, status: StatusSkipped, err: err}
}

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the skip cause, if any.
func (r Result) Err() error { return r.err }
