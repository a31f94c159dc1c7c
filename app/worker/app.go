package worker

import (
	"context"
	"time"

	"github.com/canopy-network/chanalytics/app/worker/activity"
	"github.com/canopy-network/chanalytics/app/worker/workflow"
	"github.com/canopy-network/chanalytics/pkg/db/analytical"
	"github.com/canopy-network/chanalytics/pkg/db/clickhouse"
	"github.com/canopy-network/chanalytics/pkg/db/postgres"
	"github.com/canopy-network/chanalytics/pkg/db/transactional"
	"github.com/canopy-network/chanalytics/pkg/fetcher"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/logging"
	"github.com/canopy-network/chanalytics/pkg/redis"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/canopy-network/chanalytics/pkg/temporal"
	"github.com/canopy-network/chanalytics/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Transactional  *transactional.DB
	Analytical     *analytical.DB
	RedisClient    *redis.Client

	// Cron triggers the bulk refresh. Nil when REFRESH_CRON is "off".
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Refresh cron started", zap.String("cronSpec", a.CronSpec))
	}
	<-ctx.Done()
	a.Stop()
}

// Stop stops the cron, the worker and closes every connection.
func (a *App) Stop() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	a.Worker.Stop()
	a.TemporalClient.Close()
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	_ = a.Analytical.Close()
	a.Transactional.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// SetupScheduler registers the periodic refresh. Each tick only starts the
// refresh workflow; a refresh still running from the previous tick is reused.
func (a *App) SetupScheduler(ctx context.Context, cronSpec string) error {
	a.CronSpec = cronSpec
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		run, err := a.TemporalClient.StartRefresh(rctx, "cron")
		if err != nil {
			a.Logger.Error("Unable to start refresh workflow", zap.Error(err))
			return
		}
		a.Logger.Info("Refresh workflow triggered",
			zap.String("workflow_id", run.GetID()),
			zap.String("run_id", run.GetRunID()))
	})
	return err
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New("worker")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	txDb, err := transactional.New(ctx, logger, postgres.GetPoolConfigForComponent("worker"))
	if err != nil {
		logger.Fatal("Unable to initialize transactional database", zap.Error(err))
	}

	anDb, err := analytical.New(ctx, logger, utils.Env("CLICKHOUSE_DB", "chanalytics"), clickhouse.GetPoolConfigForComponent("worker"))
	if err != nil {
		logger.Fatal("Unable to initialize analytical database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	var (
		redisClient *redis.Client
		publisher   importer.Publisher = redis.NopPublisher{}
	)
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - sync events will not be published", zap.Error(err))
			redisClient = nil
		} else {
			publisher = redisClient
		}
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

	fetch := fetcher.NewExecFetcher(
		utils.Env("FETCHER_PATH", "fetch_channel"),
		utils.EnvDuration("FETCHER_TIMEOUT", fetcher.DefaultTimeout),
		logger.Named("fetcher"),
	)
	orchestrator := importer.New(fetch, txDb, engine, &importer.PublishNotifier{
		Publisher: publisher,
		Topic:     redis.ImportEventsChannel,
		Logger:    logger,
	}, logger.Named("importer"))
	orchestrator.Concurrency = utils.EnvInt("REFRESH_CONCURRENCY", importer.DefaultConcurrency)

	activityContext := &activity.Context{
		Logger:     logger,
		Replicator: engine,
		Channels:   txDb,
		Ingester:   orchestrator,
		Publisher:  publisher,
		EventTopic: redis.SyncEventsChannel,
	}
	workflowContext := workflow.Context{
		ActivityContext: activityContext,
	}

	// Replication is sequential; a handful of pollers is enough.
	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.SyncQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:   2,
			MaxConcurrentActivityTaskPollers:   2,
			MaxConcurrentActivityExecutionSize: 4,
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)

	wkr.RegisterWorkflowWithOptions(
		workflowContext.ReplicationWorkflow,
		temporalworkflow.RegisterOptions{Name: temporal.ReplicationWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.RefreshWorkflow,
		temporalworkflow.RegisterOptions{Name: temporal.RefreshWorkflowName},
	)
	wkr.RegisterActivity(activityContext.SyncAll)
	wkr.RegisterActivity(activityContext.ListIdentifiers)
	wkr.RegisterActivity(activityContext.IngestChannels)
	wkr.RegisterActivity(activityContext.PublishSyncEvent)

	app := &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Transactional:  txDb,
		Analytical:     anDb,
		RedisClient:    redisClient,
		Logger:         logger,
	}

	if spec := utils.Env("REFRESH_CRON", "0 0 */6 * * *"); spec != "off" {
		if err := app.SetupScheduler(ctx, spec); err != nil {
			logger.Fatal("Unable to schedule refresh", zap.String("cronSpec", spec), zap.Error(err))
		}
	}

	return app
}
