package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"go.uber.org/zap"
)

// Store is the slice of the transactional store the calculator needs.
type Store interface {
	ListChannelPosts(ctx context.Context, channelID int64) ([]models.Post, error)
	UpdateChannelMetrics(ctx context.Context, channelID int64, m models.ChannelMetrics) error
}

// Calculator recomputes and persists a channel's derived metrics.
type Calculator struct {
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewCalculator(store Store, logger *zap.Logger) *Calculator {
	return &Calculator{Store: store, Logger: logger, Now: time.Now}
}

// CalculateMetrics recomputes avg views, engagement rate and post frequency
// and writes them back, also updating channel in place. A channel with no
// posts keeps its stored metrics untouched and false is returned.
//
// Run it inside the same transaction as the post upserts (pass the tx ctx).
func (c *Calculator) CalculateMetrics(ctx context.Context, channel *models.Channel) (bool, error) {
	posts, err := c.Store.ListChannelPosts(ctx, channel.ID)
	if err != nil {
		return false, fmt.Errorf("list posts for channel %d: %w", channel.ID, err)
	}
	if len(posts) == 0 {
		c.Logger.Debug("Channel has no posts, keeping stored metrics",
			zap.Int64("channel_id", channel.ID),
			zap.String("external_id", channel.ExternalID))
		return false, nil
	}

	m := Compute(channel.SubscriberCount, posts, c.Now())
	if err := c.Store.UpdateChannelMetrics(ctx, channel.ID, m); err != nil {
		return false, fmt.Errorf("update metrics for channel %d: %w", channel.ID, err)
	}

	channel.AvgViews = m.AvgViews
	channel.AvgEngagementRate = m.AvgEngagementRate
	channel.PostFrequency = m.PostFrequency

	c.Logger.Debug("Channel metrics recomputed",
		zap.Int64("channel_id", channel.ID),
		zap.Int("posts", len(posts)),
		zap.Int64("avg_views", m.AvgViews),
		zap.Float64("avg_engagement_rate", m.AvgEngagementRate),
		zap.Float64("post_frequency", m.PostFrequency))

	return true, nil
}
