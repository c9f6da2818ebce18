// Package batch holds per-item outcomes of multi-item graph operations.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusCreated   ItemStatus = "created"
	StatusDuplicate ItemStatus = "duplicate"
	StatusFiltered  ItemStatus = "filtered"
	StatusError     ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch operation.
// nodeID is the created node, or the already-present node for duplicates.
type Result struct {
	label  string
	nodeID string
	status ItemStatus
	err    error
}

// NewCreated creates a result for a newly created node.
func NewCreated(label, nodeID string) Result {
	return Result{label: label, nodeID: nodeID, status: StatusCreated}
}

// NewDuplicate creates a result for a label that is already represented.
func NewDuplicate(label, existingID string) Result {
	return Result{label: label, nodeID: existingID, status: StatusDuplicate}
}

// NewFiltered creates a result for a label rejected as noise.
func NewFiltered(label string) Result { return Result{label: label, status: StatusFiltered} }

// NewError creates a failed batch result.
func NewError(label string, err error) Result {
	return Result{label: label, status: StatusError, err: err}
}

// Label returns the requested label.
func (r Result) Label() string { return r.label }

// NodeID returns the created or existing node, if any.
func (r Result) NodeID() string { return r.nodeID }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
