package replication

import (
	"errors"
	"fmt"
)

// ErrIndeterminate is matched by an Error once anything reached the replica
// during the failed run. Batches sent before the failure stay committed in
// the analytical store, so the replica is in an unknown partial state until
// the next successful full resync.
var ErrIndeterminate = errors.New("replication state indeterminate, schedule a full resync")

// Op is the step of a run that failed.
type Op string

const (
	OpRead   Op = "read"   // paging the transactional store
	OpInsert Op = "insert" // sending a batch to the analytical store
)

// Error reports a failed replication run.
type Error struct {
	Op    Op
	Table string
	Batch int // zero-based batch index within the table
	Rows  int // rows in the failed batch, 0 for reads
	// Committed is the number of rows the run had already written, across
	// tables, when it failed.
	Committed int
	Err       error
}

func (e *Error) Error() string {
	if e.Op == OpRead {
		return fmt.Sprintf("replication of %s failed reading batch %d (%d rows already written): %v", e.Table, e.Batch, e.Committed, e.Err)
	}
	return fmt.Sprintf("replication of %s batch %d (%d rows) failed: %v", e.Table, e.Batch, e.Rows, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrIndeterminate when the replica may hold part of the run.
// A failed insert can be partially applied, so it always matches.
func (e *Error) Is(target error) bool {
	return target == ErrIndeterminate && (e.Op != OpRead || e.Committed > 0)
}
