package types

import (
	"time"

	"github.com/canopy-network/chanalytics/pkg/replication"
)

// SyncKind names the job a SyncEvent belongs to.
type SyncKind string

const (
	KindReplication SyncKind = "replication"
	KindRefresh     SyncKind = "refresh"
)

// SyncState is the lifecycle of a sync job as seen by observers.
type SyncState string

const (
	SyncStarted   SyncState = "started"
	SyncCompleted SyncState = "completed"
	SyncFailed    SyncState = "failed"
)

// SyncEvent is published on the sync events channel.
type SyncEvent struct {
	Kind       SyncKind             `json:"kind"`
	State      SyncState            `json:"state"`
	Trigger    string               `json:"trigger,omitempty"`
	WorkflowID string               `json:"workflow_id"`
	RunID      string               `json:"run_id"`
	Summary    *replication.Summary `json:"summary,omitempty"`
	Imported   int                  `json:"imported,omitempty"`
	Failed     int                  `json:"failed,omitempty"`
	Error      string               `json:"error,omitempty"`
	At         time.Time            `json:"at"`
}

type SyncAllOutput struct {
	Summary replication.Summary `json:"summary"`
}

type ListIdentifiersOutput struct {
	Identifiers []string `json:"identifiers"`
}

type IngestChannelsInput struct {
	Identifiers []string `json:"identifiers"`
}

// ChannelFailure is one channel that could not be re-imported.
type ChannelFailure struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type IngestChannelsOutput struct {
	Imported int              `json:"imported"`
	Failures []ChannelFailure `json:"failures,omitempty"`
}

type ReplicationOutput struct {
	Summary replication.Summary `json:"summary"`
}

type RefreshOutput struct {
	Channels int                 `json:"channels"`
	Imported int                 `json:"imported"`
	Failures []ChannelFailure    `json:"failures,omitempty"`
	Summary  replication.Summary `json:"summary"`
}
