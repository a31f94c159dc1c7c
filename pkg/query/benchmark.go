package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/canopy-network/chanalytics/pkg/metrics"
	"go.uber.org/zap"
)

// ErrUnknownQuery is returned for a benchmark id with no registered pair.
var ErrUnknownQuery = errors.New("unknown benchmark query")

// QueryID names a benchmarkable query.
type QueryID string

const (
	EngagementTrendQuery QueryID = "engagement_trend"
	PostingActivityQuery QueryID = "posting_activity"
)

// Args are the benchmark query arguments.
type Args struct {
	Days int `json:"days"`
}

// QueryFunc runs one path of a query.
type QueryFunc func(ctx context.Context, args Args) (OrderedSeries, error)

// Pair holds the two implementations of the same query.
type Pair struct {
	Transactional QueryFunc
	Analytical    QueryFunc
}

func (s *Service) defaultRegistry() map[QueryID]Pair {
	pathFunc := func(path Path, fn func(context.Context, Path, int) (OrderedSeries, error)) QueryFunc {
		return func(ctx context.Context, args Args) (OrderedSeries, error) {
			return fn(ctx, path, args.Days)
		}
	}
	return map[QueryID]Pair{
		EngagementTrendQuery: {
			Transactional: pathFunc(Transactional, s.EngagementTrend),
			Analytical:    pathFunc(Analytical, s.EngagementTrend),
		},
		PostingActivityQuery: {
			Transactional: pathFunc(Transactional, s.PostingActivity),
			Analytical:    pathFunc(Analytical, s.PostingActivity),
		},
	}
}

// Register adds or replaces a benchmarkable query.
func (s *Service) Register(id QueryID, pair Pair) {
	s.registry[id] = pair
}

// Queries lists the registered ids in sorted order.
func (s *Service) Queries() []QueryID {
	ids := make([]QueryID, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Speedup is transactional time divided by analytical time.
// SpeedupNotComputable marks an analytical time that rounds to zero.
type Speedup float64

const SpeedupNotComputable Speedup = -1

func (s Speedup) Computable() bool { return s != SpeedupNotComputable }

func (s Speedup) MarshalJSON() ([]byte, error) {
	if !s.Computable() {
		return json.Marshal("not_computable")
	}
	return json.Marshal(float64(s))
}

// Timing is one measured path.
type Timing struct {
	TimeMs float64       `json:"time_ms"`
	Result OrderedSeries `json:"result"`
}

// BenchmarkResult compares both paths of one query.
type BenchmarkResult struct {
	Query         QueryID `json:"query"`
	Transactional Timing  `json:"transactional"`
	Analytical    Timing  `json:"analytical"`
	Speedup       Speedup `json:"speedup"`
}

func millis(d time.Duration) float64 {
	return metrics.Round2(float64(d) / float64(time.Millisecond))
}

// Benchmark runs the transactional then the analytical implementation of id,
// one after the other, and reports both results with their elapsed time.
func (s *Service) Benchmark(ctx context.Context, id QueryID, args Args) (*BenchmarkResult, error) {
	pair, ok := s.registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, string(id))
	}

	txStart := time.Now()
	txResult, err := pair.Transactional(ctx, args)
	txElapsed := s.Since(txStart)
	if err != nil {
		return nil, fmt.Errorf("benchmark %s transactional: %w", id, err)
	}

	anStart := time.Now()
	anResult, err := pair.Analytical(ctx, args)
	anElapsed := s.Since(anStart)
	if err != nil {
		return nil, fmt.Errorf("benchmark %s analytical: %w", id, err)
	}

	res := &BenchmarkResult{
		Query:         id,
		Transactional: Timing{TimeMs: millis(txElapsed), Result: txResult},
		Analytical:    Timing{TimeMs: millis(anElapsed), Result: anResult},
		Speedup:       SpeedupNotComputable,
	}
	if res.Analytical.TimeMs != 0 {
		res.Speedup = Speedup(metrics.Round2(float64(txElapsed) / float64(anElapsed)))
	}

	s.logger.Info("Benchmark completed",
		zap.String("query", string(id)),
		zap.Duration("transactional", txElapsed),
		zap.Duration("analytical", anElapsed),
		zap.Float64("speedup", float64(res.Speedup)))

	return res, nil
}
