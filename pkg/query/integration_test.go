//go:build integration

package query_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/analytical"
	"github.com/canopy-network/chanalytics/pkg/db/clickhouse"
	"github.com/canopy-network/chanalytics/pkg/db/dbtest"
	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/db/postgres"
	"github.com/canopy-network/chanalytics/pkg/db/transactional"
	"github.com/canopy-network/chanalytics/pkg/fetcher"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/query"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	txDB       *transactional.DB
	anDB       *analytical.DB
	testLogger *zap.Logger
)

// TestMain runs both query paths against real PostgreSQL and ClickHouse
// containers fed through the importer and the replication engine.
func TestMain(m *testing.M) {
	os.Exit(runIntegration(m))
}

func runIntegration(m *testing.M) int {
	ctx := context.Background()

	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}

	if !dbtest.DockerAvailable(ctx) {
		fmt.Println("Docker not available, skipping integration tests")
		return 0
	}

	pg, err := dbtest.StartPostgres(ctx, testLogger)
	if err != nil {
		testLogger.Error("Failed to start PostgreSQL container", zap.Error(err))
		return 1
	}
	defer dbtest.Terminate(ctx, testLogger, pg)

	ch, err := dbtest.StartClickHouse(ctx, testLogger)
	if err != nil {
		testLogger.Error("Failed to start ClickHouse container", zap.Error(err))
		return 1
	}
	defer dbtest.Terminate(ctx, testLogger, ch)

	txDB, err = transactional.New(ctx, testLogger, postgres.GetPoolConfigForComponent(""))
	if err != nil {
		testLogger.Error("Failed to initialize transactional database", zap.Error(err))
		return 1
	}
	defer txDB.Close()

	anDB, err = analytical.New(ctx, testLogger, "chanalytics_test", clickhouse.GetPoolConfigForComponent(""))
	if err != nil {
		testLogger.Error("Failed to initialize analytical database", zap.Error(err))
		return 1
	}
	defer func() { _ = anDB.Close() }()

	return m.Run()
}

// cleanStores empties both stores; ids restart so replica rows never collide
// with rows of an earlier test.
func cleanStores(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, txDB.Exec(ctx, `TRUNCATE TABLE posts, channels RESTART IDENTITY CASCADE`))
	for _, table := range []string{models.ChannelsAnalyticsTableName, models.PostsAnalyticsTableName} {
		require.NoError(t, anDB.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE "%s"."%s"`, anDB.Name, table)))
	}
}

type fixtureFetcher map[string]*fetcher.Snapshot

func (f fixtureFetcher) Fetch(_ context.Context, identifier string) (*fetcher.Snapshot, error) {
	snap, ok := f[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", fetcher.ErrFetch, identifier)
	}
	return snap, nil
}

func snapshot(externalID string, subscribers int64, posts ...fetcher.PostData) *fetcher.Snapshot {
	return &fetcher.Snapshot{
		Success: true,
		Channel: fetcher.ChannelData{
			ExternalID:      fetcher.ID(externalID),
			Username:        "@" + externalID,
			Title:           "Channel '" + externalID + "'",
			Description:     `quotes ' and backslashes \ survive replication`,
			SubscriberCount: subscribers,
		},
		Posts: posts,
	}
}

func post(id string, views int64, postedAt time.Time) fetcher.PostData {
	return fetcher.PostData{ExternalMessageID: fetcher.ID(id), Text: "post " + id, Views: views, PostedAt: postedAt}
}

// ingest imports every snapshot into the transactional store.
func ingest(t *testing.T, snaps ...*fetcher.Snapshot) {
	t.Helper()
	fetch := fixtureFetcher{}
	for _, s := range snaps {
		fetch[s.Channel.Username] = s
	}
	orch := importer.New(fetch, txDB, nil, nil, testLogger.Named("importer"))
	for _, s := range snaps {
		res, err := orch.Ingest(context.Background(), s.Channel.Username)
		require.NoError(t, err)
		require.True(t, res.OK(), "%+v", res.Failure)
	}
}

func newEngine(t *testing.T) *replication.Engine {
	return replication.NewEngine(txDB, replication.NewSQLSink(anDB, anDB.Name), testLogger.Named("replication"),
		replication.Config{ChannelBatchSize: 2, PostBatchSize: 3})
}

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fixture spreads posts of three channels over the last days. The channel
// without subscribers counts for activity but never for engagement.
func fixture(now time.Time) []*fetcher.Snapshot {
	today := utcMidnight(now)
	return []*fetcher.Snapshot{
		snapshot("1001", 1000,
			post("1", 200, today.AddDate(0, 0, -1).Add(time.Second)),
			post("2", 350, today.AddDate(0, 0, -1).Add(23*time.Hour+59*time.Minute)),
			post("3", 120, today.AddDate(0, 0, -3).Add(9*time.Hour)),
			post("4", 80, today.AddDate(0, 0, -5).Add(18*time.Hour)),
		),
		snapshot("1002", 500,
			post("1", 100, today.AddDate(0, 0, -1).Add(12*time.Hour)),
			post("2", 40, today.AddDate(0, 0, -4).Add(6*time.Hour)),
		),
		snapshot("1003", 0,
			post("1", 999, today.AddDate(0, 0, -2).Add(time.Hour)),
		),
	}
}

func TestSyncAllTwiceLeavesReplicaUnchanged(t *testing.T) {
	cleanStores(t)
	ctx := context.Background()
	now := time.Now()
	ingest(t, fixture(now)...)
	// importing the same snapshots again must not add rows
	ingest(t, fixture(now)...)

	engine := newEngine(t)
	first, err := engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Channels)
	assert.Equal(t, 7, first.Posts)
	assert.Equal(t, 2, first.ChannelBatches)
	assert.Equal(t, 3, first.PostBatches)

	before, err := engine.Status(ctx)
	require.NoError(t, err)
	require.True(t, before.InSync(), "%+v", before)

	second, err := engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Channels, second.Channels)
	assert.Equal(t, first.Posts, second.Posts)

	after, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(3), after.ReplicaChannels)
	assert.Equal(t, uint64(7), after.ReplicaPosts)

	stats, err := anDB.ChannelStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalChannels)
}

func TestPathsAgreeAfterReplication(t *testing.T) {
	cleanStores(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ingest(t, fixture(now)...)
	_, err := newEngine(t).SyncAll(ctx)
	require.NoError(t, err)

	svc := query.NewService(txDB, anDB, testLogger.Named("query"))
	svc.Now = func() time.Time { return now }

	txTrend, err := svc.EngagementTrend(ctx, query.Transactional, 30)
	require.NoError(t, err)
	anTrend, err := svc.EngagementTrend(ctx, query.Analytical, 30)
	require.NoError(t, err)
	assert.Equal(t, txTrend, anTrend)

	// (20 + 35 + 20) / 3 on the busiest day; the subscriber-less channel is ignored
	yesterday := utcMidnight(now).AddDate(0, 0, -1).Format(query.DayLabel)
	value, ok := anTrend.Get(yesterday)
	require.True(t, ok, anTrend)
	assert.Equal(t, 25.0, value)
	_, ok = anTrend.Get(utcMidnight(now).AddDate(0, 0, -2).Format(query.DayLabel))
	assert.False(t, ok)
	require.Len(t, anTrend, 4)

	txActivity, err := svc.PostingActivity(ctx, query.Transactional, 30)
	require.NoError(t, err)
	anActivity, err := svc.PostingActivity(ctx, query.Analytical, 30)
	require.NoError(t, err)
	assert.Equal(t, txActivity, anActivity)

	var total float64
	for _, p := range anActivity {
		total += p.Value
	}
	assert.Equal(t, 7.0, total)

	top, err := svc.TopPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(999), top[0].Views)
	assert.Equal(t, "Channel '1003'", top[0].ChannelTitle)
}

func TestPostingActivityWednesdayOnlyOnBothPaths(t *testing.T) {
	cleanStores(t)
	ctx := context.Background()
	now := time.Now().UTC()

	wednesday := utcMidnight(now)
	for wednesday.Weekday() != time.Wednesday {
		wednesday = wednesday.AddDate(0, 0, -1)
	}
	ingest(t, snapshot("7001", 100,
		post("1", 10, wednesday.Add(time.Second)),
		post("2", 10, wednesday.Add(12*time.Hour)),
		post("3", 10, wednesday.Add(23*time.Hour+59*time.Minute+59*time.Second)),
	))
	_, err := newEngine(t).SyncAll(ctx)
	require.NoError(t, err)

	svc := query.NewService(txDB, anDB, testLogger.Named("query"))
	svc.Now = func() time.Time { return now }

	for _, path := range []query.Path{query.Transactional, query.Analytical} {
		series, err := svc.PostingActivity(ctx, path, 14)
		require.NoError(t, err, path)
		require.Len(t, series, 7, path)
		for i, p := range series {
			assert.Equal(t, query.Weekdays[i], p.Label, path)
			if i == 3 {
				assert.Equal(t, 3.0, p.Value, path)
				continue
			}
			assert.Zero(t, p.Value, "%s %s", path, p.Label)
		}
	}
}
