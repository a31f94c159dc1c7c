package workflow

import (
	"time"

	"github.com/canopy-network/chanalytics/app/worker/types"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func syncActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})
}

func ingestActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 2,
		},
	})
}

func publishActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	})
}

// publish emits a sync event. Failures are ignored.
func (wc *Context) publish(ctx workflow.Context, ev types.SyncEvent) {
	info := workflow.GetInfo(ctx)
	ev.WorkflowID = info.WorkflowExecution.ID
	ev.RunID = info.WorkflowExecution.RunID
	ev.At = workflow.Now(ctx).UTC()
	_ = workflow.ExecuteActivity(publishActivityOptions(ctx), wc.ActivityContext.PublishSyncEvent, ev).Get(ctx, nil)
}

// ReplicationWorkflow runs a full resync and publishes its outcome once the
// resync has actually finished.
func (wc *Context) ReplicationWorkflow(ctx workflow.Context) (types.ReplicationOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting replication workflow")

	wc.publish(ctx, types.SyncEvent{Kind: types.KindReplication, State: types.SyncStarted})

	var out types.SyncAllOutput
	if err := workflow.ExecuteActivity(syncActivityOptions(ctx), wc.ActivityContext.SyncAll).Get(ctx, &out); err != nil {
		logger.Error("Replication failed", "error", err.Error())
		wc.publish(ctx, types.SyncEvent{Kind: types.KindReplication, State: types.SyncFailed, Error: err.Error()})
		return types.ReplicationOutput{}, err
	}

	summary := out.Summary
	wc.publish(ctx, types.SyncEvent{Kind: types.KindReplication, State: types.SyncCompleted, Summary: &summary})
	logger.Info("Replication workflow completed", "channels", summary.Channels, "posts", summary.Posts)
	return types.ReplicationOutput{Summary: summary}, nil
}

// RefreshWorkflow re-imports every known channel and then runs one resync.
func (wc *Context) RefreshWorkflow(ctx workflow.Context, trigger string) (types.RefreshOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting refresh workflow", "trigger", trigger)

	wc.publish(ctx, types.SyncEvent{Kind: types.KindRefresh, State: types.SyncStarted, Trigger: trigger})

	fail := func(err error) (types.RefreshOutput, error) {
		logger.Error("Refresh failed", "error", err.Error())
		wc.publish(ctx, types.SyncEvent{Kind: types.KindRefresh, State: types.SyncFailed, Trigger: trigger, Error: err.Error()})
		return types.RefreshOutput{}, err
	}

	var ids types.ListIdentifiersOutput
	if err := workflow.ExecuteActivity(syncActivityOptions(ctx), wc.ActivityContext.ListIdentifiers).Get(ctx, &ids); err != nil {
		return fail(err)
	}

	out := types.RefreshOutput{Channels: len(ids.Identifiers)}
	if len(ids.Identifiers) > 0 {
		var ingested types.IngestChannelsOutput
		in := types.IngestChannelsInput{Identifiers: ids.Identifiers}
		if err := workflow.ExecuteActivity(ingestActivityOptions(ctx), wc.ActivityContext.IngestChannels, in).Get(ctx, &ingested); err != nil {
			return fail(err)
		}
		out.Imported = ingested.Imported
		out.Failures = ingested.Failures
	}

	var synced types.SyncAllOutput
	if err := workflow.ExecuteActivity(syncActivityOptions(ctx), wc.ActivityContext.SyncAll).Get(ctx, &synced); err != nil {
		return fail(err)
	}
	out.Summary = synced.Summary

	summary := out.Summary
	wc.publish(ctx, types.SyncEvent{
		Kind:     types.KindRefresh,
		State:    types.SyncCompleted,
		Trigger:  trigger,
		Summary:  &summary,
		Imported: out.Imported,
		Failed:   len(out.Failures),
	})
	logger.Info("Refresh workflow completed",
		"channels", out.Channels, "imported", out.Imported, "failed", len(out.Failures))
	return out, nil
}
