package temporal

import (
	"context"
	"time"

	"github.com/canopy-network/chanalytics/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

type Client struct {
	TClient   client.Client
	Namespace string
	SyncQueue string
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	SyncQueue    []*taskqueuepb.PollerInfo `json:"sync_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, NewZapAdapter(logger))
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		tClient.Close()
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		Namespace: ns,
		SyncQueue: SyncQueue,
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// StartReplication starts the replication workflow, or attaches to the one
// already running. The returned run resolves when that resync finishes.
func (c *Client) StartReplication(ctx context.Context) (client.WorkflowRun, error) {
	return c.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       WorkflowIDReplication,
		TaskQueue:                c.SyncQueue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: time.Hour,
	}, ReplicationWorkflowName)
}

// StartRefresh starts the bulk refresh workflow for a trigger source.
// A refresh still running for the same trigger is reused.
func (c *Client) StartRefresh(ctx context.Context, trigger string) (client.WorkflowRun, error) {
	return c.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       RefreshWorkflowID(trigger),
		TaskQueue:                c.SyncQueue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: 6 * time.Hour,
	}, RefreshWorkflowName, trigger)
}

// Health reports the pollers on the sync queue.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.SyncQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		})
		if err != nil {
			h.ConnectionOK = false
			return h, err
		}
		h.SyncQueue = rep.GetPollers()
	}
	return h, nil
}

// Close closes the Temporal connection.
func (c *Client) Close() {
	c.TClient.Close()
}
