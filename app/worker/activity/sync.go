package activity

import (
	"context"
	"errors"

	"github.com/canopy-network/chanalytics/app/worker/types"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// SyncAll runs one full resync. A failed batch leaves the replica
// indeterminate; the workflow retry policy schedules the next full run.
func (c *Context) SyncAll(ctx context.Context) (types.SyncAllOutput, error) {
	summary, err := c.Replicator.SyncAll(ctx)
	if err != nil {
		var replErr *replication.Error
		if !errors.As(err, &replErr) {
			return types.SyncAllOutput{}, temporal.NewApplicationErrorWithCause("replication aborted", "replication_error", err)
		}
		c.Logger.Error("Replication failed",
			zap.String("op", string(replErr.Op)),
			zap.String("table", replErr.Table),
			zap.Int("batch", replErr.Batch),
			zap.Int("rows_committed", replErr.Committed),
			zap.Bool("indeterminate", errors.Is(replErr, replication.ErrIndeterminate)),
			zap.Error(replErr.Err))
		if replErr.Op == replication.OpRead {
			return types.SyncAllOutput{}, temporal.NewApplicationErrorWithCause("unable to read transactional store", "source_error", err)
		}
		return types.SyncAllOutput{}, temporal.NewApplicationErrorWithCause("replication batch failed", "replication_error", err)
	}
	return types.SyncAllOutput{Summary: summary}, nil
}

// ListIdentifiers returns every known channel identifier.
func (c *Context) ListIdentifiers(ctx context.Context) (types.ListIdentifiersOutput, error) {
	ids, err := c.Channels.ListUsernames(ctx)
	if err != nil {
		return types.ListIdentifiersOutput{}, temporal.NewApplicationErrorWithCause("unable to list channels", "store_error", err)
	}
	return types.ListIdentifiersOutput{Identifiers: ids}, nil
}

// IngestChannels re-imports the given channels. Per-channel fetch, parse and
// validation failures are reported in the output and do not fail the activity.
func (c *Context) IngestChannels(ctx context.Context, in types.IngestChannelsInput) (types.IngestChannelsOutput, error) {
	results, err := c.Ingester.IngestMany(ctx, in.Identifiers)
	if err != nil {
		return types.IngestChannelsOutput{}, temporal.NewApplicationErrorWithCause("bulk import aborted", "import_error", err)
	}

	var out types.IngestChannelsOutput
	for i, res := range results {
		switch {
		case res == nil:
			out.Failures = append(out.Failures, types.ChannelFailure{Identifier: in.Identifiers[i], Kind: "skipped"})
		case res.OK():
			out.Imported++
		default:
			out.Failures = append(out.Failures, types.ChannelFailure{
				Identifier: res.Identifier,
				Kind:       string(res.Failure.Kind),
				Message:    res.Failure.Message,
			})
		}
	}

	c.Logger.Info("Channels re-imported",
		zap.Int("channels", len(in.Identifiers)),
		zap.Int("imported", out.Imported),
		zap.Int("failed", len(out.Failures)))
	return out, nil
}

// PublishSyncEvent is best-effort: delivery problems are logged, never returned.
func (c *Context) PublishSyncEvent(ctx context.Context, ev types.SyncEvent) error {
	if c.Publisher == nil {
		return nil
	}
	if err := c.Publisher.PublishJSON(ctx, c.EventTopic, ev); err != nil {
		c.Logger.Warn("Unable to publish sync event",
			zap.String("kind", string(ev.Kind)),
			zap.String("state", string(ev.State)),
			zap.Error(err))
	}
	return nil
}
