package api

import (
	"context"

	"github.com/canopy-network/chanalytics/app/api/types"
	"github.com/canopy-network/chanalytics/pkg/db/analytical"
	"github.com/canopy-network/chanalytics/pkg/db/clickhouse"
	"github.com/canopy-network/chanalytics/pkg/db/postgres"
	"github.com/canopy-network/chanalytics/pkg/db/transactional"
	"github.com/canopy-network/chanalytics/pkg/fetcher"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/logging"
	"github.com/canopy-network/chanalytics/pkg/query"
	"github.com/canopy-network/chanalytics/pkg/redis"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/canopy-network/chanalytics/pkg/temporal"
	"github.com/canopy-network/chanalytics/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("api")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	txDb, err := transactional.New(ctx, logger, postgres.GetPoolConfigForComponent("api"))
	if err != nil {
		logger.Fatal("Unable to initialize transactional database", zap.Error(err))
	}

	anDb, err := analytical.New(ctx, logger, utils.Env("CLICKHOUSE_DB", "chanalytics"), clickhouse.GetPoolConfigForComponent("api"))
	if err != nil {
		logger.Fatal("Unable to initialize analytical database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	app := &types.App{
		Channels: txDb,
		Sync:     temporalClient,
		Logger:   logger,
		Closers: []func(){
			temporalClient.Close,
			func() { _ = anDb.Close() },
			txDb.Close,
		},
	}

	// Initialize Redis client for real-time WebSocket events (optional)
	var publisher importer.Publisher = redis.NopPublisher{}
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err := redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
		} else {
			publisher = redisClient
			app.Events = redisClient
			app.Closers = append(app.Closers, func() { _ = redisClient.Close() })
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	engine := replication.NewEngine(
		txDb,
		replication.NewSQLSink(anDb, anDb.Name),
		logger.Named("replication"),
		replication.Config{
			ChannelBatchSize: utils.EnvInt("SYNC_CHANNEL_BATCH", replication.DefaultChannelBatchSize),
			PostBatchSize:    utils.EnvInt("SYNC_POST_BATCH", replication.DefaultPostBatchSize),
		},
	)
	app.Replication = engine

	fetch := fetcher.NewExecFetcher(
		utils.Env("FETCHER_PATH", "fetch_channel"),
		utils.EnvDuration("FETCHER_TIMEOUT", fetcher.DefaultTimeout),
		logger.Named("fetcher"),
	)
	app.Importer = importer.New(fetch, txDb, engine, &importer.PublishNotifier{
		Publisher: publisher,
		Topic:     redis.ImportEventsChannel,
		Logger:    logger,
	}, logger.Named("importer"))

	app.Query = query.NewService(txDb, anDb, logger.Named("query"))

	return app
}
