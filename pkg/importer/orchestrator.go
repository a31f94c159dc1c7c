// Package importer ingests channel snapshots from the fetcher into the
// transactional store and then replicates into the analytical store.
//
// An import runs in two phases. Phase one (Ingest) fetches, validates,
// upserts the channel and its posts and recomputes metrics inside a single
// transaction. Phase two (Replicate) runs a full resync after the commit.
// A phase two failure never undoes phase one: it is returned as an error
// wrapping ErrReplication while the committed channel is still reported.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/db/postgres"
	"github.com/canopy-network/chanalytics/pkg/fetcher"
	"github.com/canopy-network/chanalytics/pkg/keylock"
	"github.com/canopy-network/chanalytics/pkg/metrics"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"go.uber.org/zap"
)

const DefaultConcurrency = 4

// Store is the transactional store as seen by the importer.
type Store interface {
	metrics.Store
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetChannelByExternalID(ctx context.Context, externalID string) (*models.Channel, error)
	UpsertChannel(ctx context.Context, c *models.Channel) error
	UpsertPost(ctx context.Context, p *models.Post) error
}

// Replicator runs a full resync.
type Replicator interface {
	SyncAll(ctx context.Context) (replication.Summary, error)
}

// Notifier receives state transitions. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Orchestrator runs imports. Imports of the same identifier are serialized
// from fetch to commit, so the last snapshot fetched is the last one stored.
// Imports resolving to the same external id are serialized around the commit.
type Orchestrator struct {
	Fetcher     fetcher.Fetcher
	Store       Store
	Calculator  *metrics.Calculator
	Replicator  Replicator
	Notifier    Notifier
	Logger      *zap.Logger
	Concurrency int

	// IsValidationError classifies store errors raised by data invariants.
	IsValidationError func(error) bool
	// IsNotFound classifies lookups of a channel that is not stored yet.
	IsNotFound func(error) bool

	locks *keylock.Locker
}

func New(f fetcher.Fetcher, store Store, replicator Replicator, notifier Notifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Fetcher:           f,
		Store:             store,
		Calculator:        metrics.NewCalculator(store, logger.Named("metrics")),
		Replicator:        replicator,
		Notifier:          notifier,
		Logger:            logger,
		Concurrency:       DefaultConcurrency,
		IsValidationError: postgres.IsConstraintViolation,
		IsNotFound:        postgres.IsNoRows,
		locks:             keylock.New(),
	}
}

func (o *Orchestrator) transition(ctx context.Context, identifier string, state State, channelID int64, failure *Failure) {
	if o.Notifier == nil {
		return
	}
	o.Notifier.Notify(ctx, Event{
		Identifier: identifier,
		State:      state,
		ChannelID:  channelID,
		Failure:    failure,
		At:         time.Now().UTC(),
	})
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, state State, kind ErrorKind, err error) *Result {
	res.Failure = &Failure{Kind: kind, State: state, Message: err.Error()}
	o.Logger.Warn("Import failed",
		zap.String("identifier", res.Identifier),
		zap.String("state", string(state)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	o.transition(ctx, res.Identifier, StateFailed, 0, res.Failure)
	return res
}

// Import runs both phases. Fetch, parse and validation problems come back in
// Result.Failure with a nil error. A replication failure returns the
// committed Result together with an error wrapping ErrReplication.
func (o *Orchestrator) Import(ctx context.Context, identifier string) (*Result, error) {
	res, err := o.Ingest(ctx, identifier)
	if err != nil || !res.OK() {
		return res, err
	}

	o.transition(ctx, res.Identifier, StateReplicating, res.Channel.ID, nil)
	summary, err := o.Replicate(ctx)
	if err != nil {
		o.transition(ctx, res.Identifier, StateFailed, res.Channel.ID, &Failure{
			Kind:    KindReplication,
			State:   StateReplicating,
			Message: err.Error(),
		})
		return res, err
	}
	res.Replication = &summary

	o.transition(ctx, res.Identifier, StateDone, res.Channel.ID, nil)
	return res, nil
}

// Ingest is phase one. The returned error is reserved for infrastructure
// failures (store unavailable, cancelled context); nothing is committed when
// Result.Failure is set or an error is returned.
func (o *Orchestrator) Ingest(ctx context.Context, identifier string) (*Result, error) {
	res := &Result{Identifier: identifier}

	normalized, err := Normalize(identifier)
	if err != nil {
		return o.fail(ctx, res, StateFetching, KindValidation, err), nil
	}
	res.Identifier = normalized
	logger := o.Logger.With(zap.String("identifier", normalized))

	unlock := o.locks.Lock("identifier:" + normalized)
	defer unlock()

	o.transition(ctx, normalized, StateFetching, 0, nil)
	snap, err := o.Fetcher.Fetch(ctx, normalized)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		kind := KindFetch
		if errors.Is(err, fetcher.ErrParse) {
			kind = KindParse
		}
		return o.fail(ctx, res, StateFetching, kind, err), nil
	}

	o.transition(ctx, normalized, StateValidating, 0, nil)
	if err := validate(snap); err != nil {
		return o.fail(ctx, res, StateValidating, KindValidation, err), nil
	}

	channel := channelFromSnapshot(snap)
	unlockChannel := o.locks.Lock("external_id:" + channel.ExternalID)
	defer unlockChannel()

	state := StateUpserting
	err = o.Store.InTx(ctx, func(ctx context.Context) error {
		o.transition(ctx, normalized, StateUpserting, 0, nil)
		if err := o.deriveGrowth(ctx, channel); err != nil {
			return err
		}
		if err := o.Store.UpsertChannel(ctx, channel); err != nil {
			return err
		}
		for _, p := range snap.Posts {
			if err := o.Store.UpsertPost(ctx, postFromSnapshot(channel.ID, p)); err != nil {
				return err
			}
		}

		state = StateRecomputingMetrics
		o.transition(ctx, normalized, StateRecomputingMetrics, channel.ID, nil)
		_, err := o.Calculator.CalculateMetrics(ctx, channel)
		return err
	})
	if err != nil {
		if o.IsValidationError != nil && o.IsValidationError(err) {
			return o.fail(ctx, res, state, KindValidation, err), nil
		}
		logger.Error("Import transaction rolled back", zap.String("state", string(state)), zap.Error(err))
		return res, fmt.Errorf("import %s: %w", normalized, err)
	}

	res.Channel = channel
	res.Posts = len(snap.Posts)
	logger.Info("Channel imported",
		zap.Int64("channel_id", channel.ID),
		zap.String("external_id", channel.ExternalID),
		zap.Int("posts", res.Posts),
		zap.Float64("avg_engagement_rate", channel.AvgEngagementRate))
	return res, nil
}

// deriveGrowth sets the channel's growth rate against the stored channel.
// An unchanged subscriber count keeps the stored rate; a new channel has none.
func (o *Orchestrator) deriveGrowth(ctx context.Context, channel *models.Channel) error {
	stored, err := o.Store.GetChannelByExternalID(ctx, channel.ExternalID)
	if err != nil {
		if o.IsNotFound != nil && o.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load stored channel %s: %w", channel.ExternalID, err)
	}
	if stored.SubscriberCount == channel.SubscriberCount {
		channel.GrowthRate = stored.GrowthRate
		return nil
	}
	channel.GrowthRate = metrics.GrowthRate(stored.SubscriberCount, channel.SubscriberCount)
	return nil
}

// Replicate is phase two: a full resync outside any transaction.
func (o *Orchestrator) Replicate(ctx context.Context) (replication.Summary, error) {
	summary, err := o.Replicator.SyncAll(ctx)
	if err != nil {
		o.Logger.Error("Replication after import failed, analytical store is stale", zap.Error(err))
		return summary, fmt.Errorf("%w: %w", ErrReplication, err)
	}
	return summary, nil
}

// RefreshResult summarizes a bulk refresh.
type RefreshResult struct {
	Results     []*Result            `json:"results"`
	Imported    int                  `json:"imported"`
	Failed      int                  `json:"failed"`
	Replication *replication.Summary `json:"replication,omitempty"`
}

// IngestMany runs phase one for every identifier with bounded concurrency.
// Results keep the order of identifiers. The first infrastructure error
// cancels the remaining imports.
func (o *Orchestrator) IngestMany(ctx context.Context, identifiers []string) ([]*Result, error) {
	results := make([]*Result, len(identifiers))
	if len(identifiers) == 0 {
		return results, nil
	}

	workers := o.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	pool := pond.NewPool(workers, pond.WithQueueSize(len(identifiers)))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, identifier := range identifiers {
		i, identifier := i, identifier
		group.SubmitErr(func() error {
			res, err := o.Ingest(groupCtx, identifier)
			results[i] = res
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Refresh re-imports every identifier and then runs a single resync.
func (o *Orchestrator) Refresh(ctx context.Context, identifiers []string) (*RefreshResult, error) {
	start := time.Now()
	results, err := o.IngestMany(ctx, identifiers)

	out := &RefreshResult{Results: results}
	for _, r := range results {
		switch {
		case r == nil:
		case r.OK():
			out.Imported++
		default:
			out.Failed++
		}
	}
	if err != nil {
		return out, err
	}

	summary, err := o.Replicate(ctx)
	if err != nil {
		return out, err
	}
	out.Replication = &summary

	o.Logger.Info("Refresh completed",
		zap.Int("channels", len(identifiers)),
		zap.Int("imported", out.Imported),
		zap.Int("failed", out.Failed),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
