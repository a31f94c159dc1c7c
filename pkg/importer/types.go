package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/replication"
)

// State is a step of the import pipeline.
type State string

const (
	StateFetching           State = "fetching"
	StateValidating         State = "validating"
	StateUpserting          State = "upserting"
	StateRecomputingMetrics State = "recomputing_metrics"
	StateReplicating        State = "replicating"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// ErrorKind classifies failures returned inside a Result.
type ErrorKind string

const (
	KindFetch      ErrorKind = "fetch"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
	// KindReplication only appears on failed events: the import itself
	// committed and its Result carries no Failure.
	KindReplication ErrorKind = "replication"
)

// Failure is a structured import failure. Fetch, parse and validation
// failures are reported through Result.Failure, never as the returned error.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	State   State     `json:"state"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s error while %s: %s", f.Kind, f.State, f.Message)
}

// ErrReplication wraps a replication failure after a committed import. The
// transactional store keeps the import; the analytical store is stale until
// the next successful resync.
var ErrReplication = errors.New("import committed but replication failed")

// Result is the outcome of one import.
type Result struct {
	Identifier  string               `json:"identifier"`
	Channel     *models.Channel      `json:"channel,omitempty"`
	Posts       int                  `json:"posts"`
	Failure     *Failure             `json:"failure,omitempty"`
	Replication *replication.Summary `json:"replication,omitempty"`
}

// OK reports whether phase one committed.
func (r *Result) OK() bool { return r != nil && r.Failure == nil }

// Event is a state transition published to observers.
type Event struct {
	Identifier string    `json:"identifier"`
	State      State     `json:"state"`
	ChannelID  int64     `json:"channel_id,omitempty"`
	Failure    *Failure  `json:"failure,omitempty"`
	At         time.Time `json:"at"`
}
