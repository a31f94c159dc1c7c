// Package replication mirrors the transactional Channel and Post tables into
// the analytical store with a full resync: every run resends the complete
// current dataset in bounded batches.
//
// Runs are synchronous and strictly sequential (channels, then posts, one
// batch at a time). The first failing batch aborts the run; earlier batches
// are not rolled back. Replica tables are ReplacingMergeTree keyed by id, so
// resending unchanged rows does not create duplicates. Rows whose source was
// deleted are never removed from the replica.
package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"go.uber.org/zap"
)

const (
	DefaultChannelBatchSize = 1000
	DefaultPostBatchSize    = 5000
)

// Source pages through the transactional store in ascending id order.
type Source interface {
	ListChannels(ctx context.Context, afterID int64, limit int) ([]models.Channel, error)
	ListPosts(ctx context.Context, afterID int64, limit int) ([]models.Post, error)
	CountChannels(ctx context.Context) (int64, error)
	CountPosts(ctx context.Context) (int64, error)
}

// Sink receives batches on the analytical side.
type Sink interface {
	InsertBatch(ctx context.Context, batch *Batch) error
	TableRowCount(ctx context.Context, table string) (uint64, error)
}

type Config struct {
	ChannelBatchSize int
	PostBatchSize    int
}

// Engine runs full resyncs from Source into Sink.
type Engine struct {
	Source Source
	Sink   Sink
	Logger *zap.Logger
	Config Config
}

// Summary describes a completed run.
type Summary struct {
	Channels       int           `json:"channels"`
	ChannelBatches int           `json:"channel_batches"`
	Posts          int           `json:"posts"`
	PostBatches    int           `json:"post_batches"`
	Duration       time.Duration `json:"duration"`
}

// Status compares row counts between the two stores.
type Status struct {
	SourceChannels  int64  `json:"source_channels"`
	ReplicaChannels uint64 `json:"replica_channels"`
	SourcePosts     int64  `json:"source_posts"`
	ReplicaPosts    uint64 `json:"replica_posts"`
}

// InSync reports whether both tables have matching row counts.
func (s Status) InSync() bool {
	return s.SourceChannels == int64(s.ReplicaChannels) && s.SourcePosts == int64(s.ReplicaPosts)
}

func NewEngine(source Source, sink Sink, logger *zap.Logger, cfg Config) *Engine {
	if cfg.ChannelBatchSize <= 0 {
		cfg.ChannelBatchSize = DefaultChannelBatchSize
	}
	if cfg.PostBatchSize <= 0 {
		cfg.PostBatchSize = DefaultPostBatchSize
	}
	return &Engine{Source: source, Sink: sink, Logger: logger, Config: cfg}
}

// SyncAll replicates channels then posts. Any error is an *Error whose
// Committed counts the rows of both tables written before the failure.
func (e *Engine) SyncAll(ctx context.Context) (Summary, error) {
	start := time.Now()
	e.Logger.Info("Starting full resync")

	var summary Summary
	var err error

	summary.Channels, summary.ChannelBatches, err = e.SyncChannels(ctx)
	if err != nil {
		return summary, err
	}

	summary.Posts, summary.PostBatches, err = e.SyncPosts(ctx)
	if err != nil {
		var replErr *Error
		if errors.As(err, &replErr) {
			replErr.Committed += summary.Channels
		}
		return summary, err
	}

	summary.Duration = time.Since(start)
	e.Logger.Info("Full resync completed",
		zap.Int("channels", summary.Channels),
		zap.Int("posts", summary.Posts),
		zap.Int("channel_batches", summary.ChannelBatches),
		zap.Int("post_batches", summary.PostBatches),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// SyncChannels resends every channel, ChannelBatchSize rows per insert.
// It returns the number of rows and batches sent.
func (e *Engine) SyncChannels(ctx context.Context) (int, int, error) {
	columns := models.ColumnsToNameList(models.ChannelAnalyticsColumns)
	return e.syncTable(ctx, models.ChannelsAnalyticsTableName, e.Config.ChannelBatchSize,
		func(afterID int64, limit int) (*Batch, int64, error) {
			channels, err := e.Source.ListChannels(ctx, afterID, limit)
			if err != nil || len(channels) == 0 {
				return nil, afterID, err
			}
			batch := &Batch{Table: models.ChannelsAnalyticsTableName, Columns: columns, Rows: make([][]any, 0, len(channels))}
			for i := range channels {
				batch.Rows = append(batch.Rows, channels[i].AnalyticsValues())
			}
			return batch, channels[len(channels)-1].ID, nil
		})
}

// SyncPosts resends every post, PostBatchSize rows per insert.
func (e *Engine) SyncPosts(ctx context.Context) (int, int, error) {
	columns := models.ColumnsToNameList(models.PostAnalyticsColumns)
	return e.syncTable(ctx, models.PostsAnalyticsTableName, e.Config.PostBatchSize,
		func(afterID int64, limit int) (*Batch, int64, error) {
			posts, err := e.Source.ListPosts(ctx, afterID, limit)
			if err != nil || len(posts) == 0 {
				return nil, afterID, err
			}
			batch := &Batch{Table: models.PostsAnalyticsTableName, Columns: columns, Rows: make([][]any, 0, len(posts))}
			for i := range posts {
				batch.Rows = append(batch.Rows, posts[i].AnalyticsValues())
			}
			return batch, posts[len(posts)-1].ID, nil
		})
}

// nextBatch loads the page after afterID and returns it with the last id seen.
// A nil batch means the table is exhausted.
type nextBatch func(afterID int64, limit int) (*Batch, int64, error)

func (e *Engine) syncTable(ctx context.Context, table string, batchSize int, next nextBatch) (int, int, error) {
	logger := e.Logger.With(zap.String("table", table), zap.Int("batch_size", batchSize))
	logger.Info("Syncing table")

	var afterID int64
	rows, batches := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return rows, batches, &Error{Op: OpRead, Table: table, Batch: batches, Committed: rows, Err: err}
		}

		batch, lastID, err := next(afterID, batchSize)
		if err != nil {
			logger.Error("Reading source page failed, aborting resync",
				zap.Int64("after_id", afterID),
				zap.Int("rows_committed", rows),
				zap.Error(err))
			return rows, batches, &Error{
				Op: OpRead, Table: table, Batch: batches, Committed: rows,
				Err: fmt.Errorf("read page after id %d: %w", afterID, err),
			}
		}
		if batch == nil {
			break
		}

		if err := e.Sink.InsertBatch(ctx, batch); err != nil {
			logger.Error("Replication batch failed, aborting resync",
				zap.Int("batch", batches),
				zap.Int("rows", batch.Len()),
				zap.Int("rows_committed", rows),
				zap.Error(err))
			return rows, batches, &Error{Op: OpInsert, Table: table, Batch: batches, Rows: batch.Len(), Committed: rows, Err: err}
		}

		rows += batch.Len()
		batches++
		afterID = lastID
		logger.Debug("Batch replicated", zap.Int("batch", batches-1), zap.Int("rows", batch.Len()))

		if batch.Len() < batchSize {
			break
		}
	}

	logger.Info("Table synced", zap.Int("rows", rows), zap.Int("batches", batches))
	return rows, batches, nil
}

// Status reports row counts on both sides. Replica counts are read after
// deduplication, so a healthy replica matches the source unless rows were
// deleted from the transactional store.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error
	if st.SourceChannels, err = e.Source.CountChannels(ctx); err != nil {
		return st, fmt.Errorf("count source channels: %w", err)
	}
	if st.SourcePosts, err = e.Source.CountPosts(ctx); err != nil {
		return st, fmt.Errorf("count source posts: %w", err)
	}
	if st.ReplicaChannels, err = e.Sink.TableRowCount(ctx, models.ChannelsAnalyticsTableName); err != nil {
		return st, fmt.Errorf("count replica channels: %w", err)
	}
	if st.ReplicaPosts, err = e.Sink.TableRowCount(ctx, models.PostsAnalyticsTableName); err != nil {
		return st, fmt.Errorf("count replica posts: %w", err)
	}
	return st, nil
}
