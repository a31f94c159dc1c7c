// Package metrics derives per-channel statistics from raw post data.
//
// The pure functions (EngagementRate, GrowthRate, GrowthTrend, PostFrequency)
// have no side effects. Calculator applies them to a channel and persists the result;
// it never triggers replication, that is the caller's job.
package metrics

import (
	"math"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
)

// Trend classifies a channel's growth rate.
type Trend string

const (
	TrendStable   Trend = "stable"
	TrendTrending Trend = "trending"
)

// TrendingThreshold is the growth rate a channel must exceed to be trending.
// The fast-growing channel filter uses the same strict comparison, so a rate
// of exactly 10 is stable everywhere.
const TrendingThreshold = 10.0

const day = 24 * time.Hour

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EngagementRate is avgViews as a percentage of subscriberCount, rounded to
// two decimals. A channel without subscribers has a rate of 0.
func EngagementRate(avgViews float64, subscriberCount int64) float64 {
	if subscriberCount == 0 {
		return 0
	}
	return Round2(avgViews / float64(subscriberCount) * 100)
}

// GrowthRate is the subscriber change between two observations as a
// percentage of the earlier count, rounded to two decimals. It is absent
// when there is no earlier count to compare against.
func GrowthRate(previous, current int64) *float64 {
	if previous <= 0 {
		return nil
	}
	rate := Round2(float64(current-previous) / float64(previous) * 100)
	return &rate
}

// GrowthTrend returns TrendTrending only for a rate strictly above
// TrendingThreshold. Absent and zero rates are stable.
func GrowthTrend(growthRate *float64) Trend {
	if growthRate == nil || *growthRate == 0 {
		return TrendStable
	}
	if *growthRate > TrendingThreshold {
		return TrendTrending
	}
	return TrendStable
}

// PostFrequency is posts per whole day since the earliest post. When every
// post is less than a day old the raw post count is returned.
func PostFrequency(posts []models.Post, now time.Time) float64 {
	if len(posts) == 0 {
		return 0
	}

	earliest := posts[0].PostedAt
	for _, p := range posts[1:] {
		if p.PostedAt.Before(earliest) {
			earliest = p.PostedAt
		}
	}

	days := int64(now.Sub(earliest) / day)
	if days <= 0 {
		return float64(len(posts))
	}
	return Round2(float64(len(posts)) / float64(days))
}

// AverageViews is the mean view count truncated to a whole number.
func AverageViews(posts []models.Post) int64 {
	if len(posts) == 0 {
		return 0
	}
	var total int64
	for _, p := range posts {
		total += p.Views
	}
	return total / int64(len(posts))
}

// Compute derives all persisted metrics of a channel from its posts.
// The engagement rate is computed from the freshly derived average views.
func Compute(subscriberCount int64, posts []models.Post, now time.Time) models.ChannelMetrics {
	avgViews := AverageViews(posts)
	return models.ChannelMetrics{
		AvgViews:          avgViews,
		AvgEngagementRate: EngagementRate(float64(avgViews), subscriberCount),
		PostFrequency:     PostFrequency(posts, now),
	}
}
