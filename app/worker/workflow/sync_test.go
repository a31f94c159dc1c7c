package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/canopy-network/chanalytics/app/worker/activity"
	"github.com/canopy-network/chanalytics/app/worker/types"
	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"
)

type fakeReplicator struct {
	mu      sync.Mutex
	calls   int
	summary replication.Summary
	err     error
}

func (f *fakeReplicator) SyncAll(context.Context) (replication.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.summary, f.err
}

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) ListUsernames(context.Context) ([]string, error) { return f.ids, f.err }

type fakeIngester struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]importer.ErrorKind
}

func (f *fakeIngester) IngestMany(_ context.Context, ids []string) ([]*importer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)

	out := make([]*importer.Result, len(ids))
	for i, id := range ids {
		res := &importer.Result{Identifier: id}
		if kind, ok := f.fail[id]; ok {
			res.Failure = &importer.Failure{Kind: kind, State: importer.StateFetching, Message: "boom"}
		} else {
			res.Channel = &models.Channel{ExternalID: id, Username: id}
		}
		out[i] = res
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []types.SyncEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, v.(types.SyncEvent))
	return p.err
}

func (p *recordingPublisher) states() []types.SyncState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.SyncState, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.State
	}
	return out
}

type harness struct {
	env        *testsuite.TestWorkflowEnvironment
	wc         *Context
	replicator *fakeReplicator
	lister     *fakeLister
	ingester   *fakeIngester
	publisher  *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	suite := testsuite.WorkflowTestSuite{}
	h := &harness{
		env:        suite.NewTestWorkflowEnvironment(),
		replicator: &fakeReplicator{summary: replication.Summary{Channels: 2, ChannelBatches: 1, Posts: 40, PostBatches: 1, Duration: time.Second}},
		lister:     &fakeLister{},
		ingester:   &fakeIngester{fail: map[string]importer.ErrorKind{}},
		publisher:  &recordingPublisher{},
	}
	actCtx := &activity.Context{
		Logger:     zaptest.NewLogger(t),
		Replicator: h.replicator,
		Channels:   h.lister,
		Ingester:   h.ingester,
		Publisher:  h.publisher,
		EventTopic: "sync-events",
	}
	h.wc = &Context{ActivityContext: actCtx}

	h.env.RegisterWorkflow(h.wc.ReplicationWorkflow)
	h.env.RegisterWorkflow(h.wc.RefreshWorkflow)
	h.env.RegisterActivity(actCtx.SyncAll)
	h.env.RegisterActivity(actCtx.ListIdentifiers)
	h.env.RegisterActivity(actCtx.IngestChannels)
	h.env.RegisterActivity(actCtx.PublishSyncEvent)
	return h
}

func TestReplicationWorkflow_PublishesCompletionAfterSync(t *testing.T) {
	h := newHarness(t)

	h.env.ExecuteWorkflow(h.wc.ReplicationWorkflow)

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())

	var out types.ReplicationOutput
	require.NoError(t, h.env.GetWorkflowResult(&out))
	assert.Equal(t, 2, out.Summary.Channels)
	assert.Equal(t, 40, out.Summary.Posts)

	assert.Equal(t, []types.SyncState{types.SyncStarted, types.SyncCompleted}, h.publisher.states())
	assert.Equal(t, []string{"sync-events", "sync-events"}, h.publisher.topics)

	completed := h.publisher.events[1]
	assert.Equal(t, types.KindReplication, completed.Kind)
	require.NotNil(t, completed.Summary)
	assert.Equal(t, 40, completed.Summary.Posts)
	assert.NotEmpty(t, completed.WorkflowID)
	assert.Equal(t, 1, h.replicator.calls)
}

func TestReplicationWorkflow_FailureIsRetriedThenReported(t *testing.T) {
	h := newHarness(t)
	h.replicator.err = &replication.Error{Table: models.PostsAnalyticsTableName, Batch: 3, Rows: 5000, Err: errors.New("connection reset")}

	h.env.ExecuteWorkflow(h.wc.ReplicationWorkflow)

	require.True(t, h.env.IsWorkflowCompleted())
	require.Error(t, h.env.GetWorkflowError())
	assert.Contains(t, h.env.GetWorkflowError().Error(), "replication batch failed")

	assert.Equal(t, 3, h.replicator.calls)
	assert.Equal(t, []types.SyncState{types.SyncStarted, types.SyncFailed}, h.publisher.states())
	assert.NotEmpty(t, h.publisher.events[1].Error)
	assert.Nil(t, h.publisher.events[1].Summary)
}

func TestReplicationWorkflow_PublishFailureDoesNotFailSync(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("redis down")

	h.env.ExecuteWorkflow(h.wc.ReplicationWorkflow)

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())
	assert.Equal(t, 1, h.replicator.calls)
}

func TestRefreshWorkflow_IngestsThenReplicatesOnce(t *testing.T) {
	h := newHarness(t)
	h.lister.ids = []string{"@alpha", "@beta", "@gamma"}
	h.ingester.fail["@beta"] = importer.KindFetch

	h.env.ExecuteWorkflow(h.wc.RefreshWorkflow, "cron")

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())

	var out types.RefreshOutput
	require.NoError(t, h.env.GetWorkflowResult(&out))
	assert.Equal(t, 3, out.Channels)
	assert.Equal(t, 2, out.Imported)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, types.ChannelFailure{Identifier: "@beta", Kind: "fetch", Message: "boom"}, out.Failures[0])
	assert.Equal(t, 40, out.Summary.Posts)

	require.Len(t, h.ingester.calls, 1)
	assert.Equal(t, []string{"@alpha", "@beta", "@gamma"}, h.ingester.calls[0])
	assert.Equal(t, 1, h.replicator.calls)

	assert.Equal(t, []types.SyncState{types.SyncStarted, types.SyncCompleted}, h.publisher.states())
	completed := h.publisher.events[1]
	assert.Equal(t, types.KindRefresh, completed.Kind)
	assert.Equal(t, "cron", completed.Trigger)
	assert.Equal(t, 2, completed.Imported)
	assert.Equal(t, 1, completed.Failed)
}

func TestRefreshWorkflow_NoChannelsStillReplicates(t *testing.T) {
	h := newHarness(t)

	h.env.ExecuteWorkflow(h.wc.RefreshWorkflow, "api")

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())
	assert.Empty(t, h.ingester.calls)
	assert.Equal(t, 1, h.replicator.calls)
}

func TestRefreshWorkflow_ListFailure(t *testing.T) {
	h := newHarness(t)
	h.lister.err = errors.New("postgres unavailable")

	h.env.ExecuteWorkflow(h.wc.RefreshWorkflow, "api")

	require.True(t, h.env.IsWorkflowCompleted())
	require.Error(t, h.env.GetWorkflowError())
	assert.Equal(t, 0, h.replicator.calls)
	assert.Equal(t, []types.SyncState{types.SyncStarted, types.SyncFailed}, h.publisher.states())
}
