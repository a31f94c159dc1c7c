package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func postsAt(times ...time.Time) []models.Post {
	out := make([]models.Post, len(times))
	for i, ts := range times {
		out[i] = models.Post{ExternalMessageID: string(rune('a' + i)), PostedAt: ts}
	}
	return out
}

func TestEngagementRate(t *testing.T) {
	for _, views := range []float64{0, 1, 200, 1e9} {
		assert.Equal(t, 0.0, EngagementRate(views, 0))
	}
	assert.Equal(t, 20.00, EngagementRate(200, 1000))
	assert.Equal(t, 33.33, EngagementRate(1, 3))
	assert.Equal(t, 66.67, EngagementRate(2, 3))
}

func TestGrowthTrend(t *testing.T) {
	tests := []struct {
		name string
		rate *float64
		want Trend
	}{
		{"absent", nil, TrendStable},
		{"zero", ptr(0), TrendStable},
		{"moderate", ptr(5), TrendStable},
		{"threshold is not trending", ptr(10), TrendStable},
		{"above threshold", ptr(15), TrendTrending},
		{"negative", ptr(-20), TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrowthTrend(tt.rate))
		})
	}
}

func TestGrowthRate(t *testing.T) {
	assert.Nil(t, GrowthRate(0, 500))
	assert.Nil(t, GrowthRate(-1, 500))

	require.NotNil(t, GrowthRate(1000, 1150))
	assert.Equal(t, 15.0, *GrowthRate(1000, 1150))
	assert.Equal(t, -25.0, *GrowthRate(400, 300))
	assert.Equal(t, 33.33, *GrowthRate(3, 4))
	assert.Equal(t, 0.0, *GrowthRate(700, 700))

	assert.Equal(t, TrendTrending, GrowthTrend(GrowthRate(1000, 1101)))
	assert.Equal(t, TrendStable, GrowthTrend(GrowthRate(1000, 1100)))
}

func TestPostFrequency(t *testing.T) {
	assert.Equal(t, 0.0, PostFrequency(nil, now))

	today := postsAt(now.Add(-time.Hour), now.Add(-2*time.Hour), now.Add(-3*time.Hour))
	assert.Equal(t, 3.0, PostFrequency(today, now))

	// 3 posts over 9 whole days (earliest 9d 5h ago)
	spread := postsAt(now.Add(-9*day-5*time.Hour), now.Add(-2*day), now)
	assert.Equal(t, 0.33, PostFrequency(spread, now))

	weekly := postsAt(now.Add(-7*day), now.Add(-6*day), now.Add(-5*day), now.Add(-4*day),
		now.Add(-3*day), now.Add(-2*day), now.Add(-day))
	assert.Equal(t, 1.0, PostFrequency(weekly, now))
}

func TestAverageViewsTruncates(t *testing.T) {
	posts := []models.Post{{Views: 100}, {Views: 101}}
	assert.Equal(t, int64(100), AverageViews(posts))
	assert.Equal(t, int64(0), AverageViews(nil))
}

type fakeMetricsStore struct {
	posts   []models.Post
	updated map[int64]models.ChannelMetrics
	listErr error
}

func (f *fakeMetricsStore) ListChannelPosts(context.Context, int64) ([]models.Post, error) {
	return f.posts, f.listErr
}

func (f *fakeMetricsStore) UpdateChannelMetrics(_ context.Context, id int64, m models.ChannelMetrics) error {
	if f.updated == nil {
		f.updated = map[int64]models.ChannelMetrics{}
	}
	f.updated[id] = m
	return nil
}

func TestCalculateMetricsPersists(t *testing.T) {
	store := &fakeMetricsStore{posts: []models.Post{{Views: 200, PostedAt: now.Add(-time.Hour)}}}
	calc := NewCalculator(store, zaptest.NewLogger(t))
	calc.Now = func() time.Time { return now }

	channel := &models.Channel{ID: 1, ExternalID: "T1", SubscriberCount: 1000}
	updated, err := calc.CalculateMetrics(context.Background(), channel)
	require.NoError(t, err)
	require.True(t, updated)

	want := models.ChannelMetrics{AvgViews: 200, AvgEngagementRate: 20.00, PostFrequency: 1}
	assert.Equal(t, want, store.updated[1])
	assert.Equal(t, int64(200), channel.AvgViews)
	assert.Equal(t, 20.00, channel.AvgEngagementRate)
	assert.Equal(t, 1.0, channel.PostFrequency)
}

func TestCalculateMetricsWithoutPostsKeepsStoredValues(t *testing.T) {
	store := &fakeMetricsStore{}
	calc := NewCalculator(store, zaptest.NewLogger(t))

	channel := &models.Channel{ID: 1, AvgViews: 50, AvgEngagementRate: 5, PostFrequency: 2}
	updated, err := calc.CalculateMetrics(context.Background(), channel)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Empty(t, store.updated)
	assert.Equal(t, int64(50), channel.AvgViews)
	assert.Equal(t, 5.0, channel.AvgEngagementRate)
}

func TestCalculateMetricsPropagatesStoreError(t *testing.T) {
	store := &fakeMetricsStore{listErr: errors.New("connection reset")}
	calc := NewCalculator(store, zaptest.NewLogger(t))

	_, err := calc.CalculateMetrics(context.Background(), &models.Channel{ID: 9})
	require.ErrorContains(t, err, "connection reset")
}
