// Package query answers the same analytical questions against either the
// transactional or the analytical store and benchmarks the two paths.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/metrics"
	"go.uber.org/zap"
)

// Path selects the store a query runs against.
type Path string

const (
	Transactional Path = "transactional"
	Analytical    Path = "analytical"
)

// Source is implemented by both stores.
type Source interface {
	EngagementByDay(ctx context.Context, since time.Time) ([]models.DailyEngagement, error)
	PostsByWeekday(ctx context.Context, since time.Time) ([]models.WeekdayCount, error)
}

// AnalyticalSource adds the queries only the analytical store serves.
type AnalyticalSource interface {
	Source
	TopPosts(ctx context.Context, limit int) ([]models.TopPost, error)
	ChannelStats(ctx context.Context) (models.ChannelStats, error)
}

const (
	DefaultTrendDays    = 30
	DefaultActivityDays = 7
	DefaultTopPosts     = 10
)

// Service is the dual-path query layer.
type Service struct {
	transactional Source
	analytical    AnalyticalSource
	logger        *zap.Logger
	registry      map[QueryID]Pair

	// Now anchors the trailing windows.
	Now func() time.Time
	// Since measures benchmark timings.
	Since func(time.Time) time.Duration
}

func NewService(transactional Source, analytical AnalyticalSource, logger *zap.Logger) *Service {
	s := &Service{
		transactional: transactional,
		analytical:    analytical,
		logger:        logger,
		Now:           time.Now,
		Since:         time.Since,
	}
	s.registry = s.defaultRegistry()
	return s
}

func (s *Service) source(path Path) (Source, error) {
	switch path {
	case Transactional:
		return s.transactional, nil
	case Analytical:
		return s.analytical, nil
	default:
		return nil, fmt.Errorf("unknown query path %q", string(path))
	}
}

// windowStart is UTC midnight days days before now.
func windowStart(now time.Time, days int) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -days)
}

// EngagementTrend returns the per-day average engagement over the trailing
// window, ascending by date. Only days with qualifying posts appear.
func (s *Service) EngagementTrend(ctx context.Context, path Path, days int) (OrderedSeries, error) {
	src, err := s.source(path)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultTrendDays
	}

	points, err := src.EngagementByDay(ctx, windowStart(s.Now(), days))
	if err != nil {
		return nil, fmt.Errorf("%s engagement trend: %w", path, err)
	}

	series := make(OrderedSeries, 0, len(points))
	var last time.Time
	for i, p := range points {
		if i > 0 && !p.Day.After(last) {
			return nil, fmt.Errorf("%s engagement trend: days out of order at %s", path, p.Day.Format(DayLabel))
		}
		last = p.Day
		series = append(series, Point{Label: p.Day.Format(DayLabel), Value: metrics.Round2(p.AvgEngagement)})
	}
	return series, nil
}

// PostingActivity returns post counts per weekday over the trailing window.
// All seven buckets are present, Sun through Sat.
func (s *Service) PostingActivity(ctx context.Context, path Path, days int) (OrderedSeries, error) {
	src, err := s.source(path)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultActivityDays
	}

	counts, err := src.PostsByWeekday(ctx, windowStart(s.Now(), days))
	if err != nil {
		return nil, fmt.Errorf("%s posting activity: %w", path, err)
	}

	var buckets [7]int64
	for _, c := range counts {
		if c.Weekday < time.Sunday || c.Weekday > time.Saturday {
			return nil, fmt.Errorf("%s posting activity: weekday %d out of range", path, c.Weekday)
		}
		buckets[c.Weekday] += c.Count
	}

	series := make(OrderedSeries, len(Weekdays))
	for i, label := range Weekdays {
		series[i] = Point{Label: label, Value: float64(buckets[i])}
	}
	return series, nil
}

// TopPosts ranks replicated posts by views.
func (s *Service) TopPosts(ctx context.Context, limit int) ([]models.TopPost, error) {
	if limit <= 0 {
		limit = DefaultTopPosts
	}
	posts, err := s.analytical.TopPosts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top posts: %w", err)
	}
	return posts, nil
}

// ChannelStats returns the channel count and the mean engagement rate
// rounded to two decimals.
func (s *Service) ChannelStats(ctx context.Context) (models.ChannelStats, error) {
	stats, err := s.analytical.ChannelStats(ctx)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("channel stats: %w", err)
	}
	stats.AvgEngagement = metrics.Round2(stats.AvgEngagement)
	return stats, nil
}
