package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/db/transactional"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/query"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/canopy-network/chanalytics/pkg/temporal"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// QueryService answers analytics reads on either store.
type QueryService interface {
	EngagementTrend(ctx context.Context, path query.Path, days int) (query.OrderedSeries, error)
	PostingActivity(ctx context.Context, path query.Path, days int) (query.OrderedSeries, error)
	TopPosts(ctx context.Context, limit int) ([]models.TopPost, error)
	ChannelStats(ctx context.Context) (models.ChannelStats, error)
	Benchmark(ctx context.Context, id query.QueryID, args query.Args) (*query.BenchmarkResult, error)
	Queries() []query.QueryID
}

type ChannelStore interface {
	FilterChannels(ctx context.Context, filter transactional.ChannelFilter) ([]models.Channel, error)
}

type Importer interface {
	Import(ctx context.Context, identifier string) (*importer.Result, error)
}

type ReplicationStatus interface {
	Status(ctx context.Context) (replication.Status, error)
}

// SyncStarter starts the background sync workflows.
type SyncStarter interface {
	StartReplication(ctx context.Context) (client.WorkflowRun, error)
	StartRefresh(ctx context.Context, trigger string) (client.WorkflowRun, error)
	Health(ctx context.Context) (temporal.Health, error)
}

// EventSource subscribes to the Pub/Sub channels relayed to websocket clients.
type EventSource interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Health(ctx context.Context) error
}

type App struct {
	Query       QueryService
	Channels    ChannelStore
	Importer    Importer
	Replication ReplicationStatus
	Sync        SyncStarter
	// Events is nil when Redis is disabled.
	Events EventSource

	// Closers run on shutdown, in order.
	Closers []func()

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start serves HTTP until the context is canceled.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	for _, closer := range a.Closers {
		closer()
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
