package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/canopy-network/chanalytics/app/worker/types"
	"github.com/canopy-network/chanalytics/pkg/importer"
	"github.com/canopy-network/chanalytics/pkg/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap/zaptest"
)

type stubReplicator struct {
	err error
}

func (s stubReplicator) SyncAll(context.Context) (replication.Summary, error) {
	return replication.Summary{Channels: 1}, s.err
}

type stubIngester struct {
	results []*importer.Result
	err     error
}

func (s stubIngester) IngestMany(context.Context, []string) ([]*importer.Result, error) {
	return s.results, s.err
}

func TestSyncAll_ClassifiesErrors(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	c := &Context{Logger: logger, Replicator: stubReplicator{}}
	out, err := c.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.Channels)

	c.Replicator = stubReplicator{err: &replication.Error{Table: "posts_analytics", Err: errors.New("timeout")}}
	_, err = c.SyncAll(ctx)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "replication_error", appErr.Type())
	assert.ErrorIs(t, err, replication.ErrIndeterminate)

	c.Replicator = stubReplicator{err: &replication.Error{Op: replication.OpRead, Table: "posts_analytics", Committed: 3, Err: errors.New("pg down")}}
	_, err = c.SyncAll(ctx)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "source_error", appErr.Type())
	assert.ErrorIs(t, err, replication.ErrIndeterminate)

	c.Replicator = stubReplicator{err: &replication.Error{Op: replication.OpRead, Table: "channels_analytics", Err: errors.New("pg down")}}
	_, err = c.SyncAll(ctx)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "source_error", appErr.Type())
	assert.NotErrorIs(t, err, replication.ErrIndeterminate)
}

func TestIngestChannels_SummarizesResults(t *testing.T) {
	c := &Context{
		Logger: zaptest.NewLogger(t),
		Ingester: stubIngester{results: []*importer.Result{
			{Identifier: "@a"},
			{Identifier: "@b", Failure: &importer.Failure{Kind: importer.KindValidation, Message: "title is required"}},
			nil,
		}},
	}

	out, err := c.IngestChannels(context.Background(), types.IngestChannelsInput{Identifiers: []string{"@a", "@b", "@c"}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, []types.ChannelFailure{
		{Identifier: "@b", Kind: "validation", Message: "title is required"},
		{Identifier: "@c", Kind: "skipped"},
	}, out.Failures)
}

func TestIngestChannels_Aborted(t *testing.T) {
	c := &Context{Logger: zaptest.NewLogger(t), Ingester: stubIngester{err: context.Canceled}}

	_, err := c.IngestChannels(context.Background(), types.IngestChannelsInput{Identifiers: []string{"@a"}})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "import_error", appErr.Type())
}

func TestPublishSyncEvent_NeverFails(t *testing.T) {
	c := &Context{Logger: zaptest.NewLogger(t)}
	assert.NoError(t, c.PublishSyncEvent(context.Background(), types.SyncEvent{Kind: types.KindReplication}))
}
