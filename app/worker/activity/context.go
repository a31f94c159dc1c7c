package activity

import (
	"context"

	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"go.uber.org/zap"
)

// Replicator runs a full resync.
type Replicator interface {
	SyncAll(ctx context.Context) (replication.Summary, error)
}

// ChannelLister lists the fetcher identifier of every known channel.
type ChannelLister interface {
	ListUsernames(ctx context.Context) ([]string, error)
}

// Ingester re-imports channels without replicating.
type Ingester interface {
	IngestMany(ctx context.Context, identifiers []string) ([]*importer.Result, error)
}

// Publisher delivers progress events.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any) error
}

// Context holds the dependencies shared by the sync activities.
type Context struct {
	Logger     *zap.Logger
	Replicator Replicator
	Channels   ChannelLister
	Ingester   Ingester
	Publisher  Publisher
	EventTopic string
}
