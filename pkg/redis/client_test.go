package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func unreachable(t *testing.T) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb, zaptest.NewLogger(t))
}

func TestPublishJSONReportsConnectionErrors(t *testing.T) {
	c := unreachable(t)
	err := c.PublishJSON(context.Background(), SyncEventsChannel, map[string]string{"state": "started"})
	require.Error(t, err)
}

func TestPublishJSONRejectsUnencodableValues(t *testing.T) {
	c := unreachable(t)
	err := c.PublishJSON(context.Background(), SyncEventsChannel, func() {})
	require.ErrorContains(t, err, "encode")
}

func TestNopPublisher(t *testing.T) {
	require.NoError(t, NopPublisher{}.PublishJSON(context.Background(), ImportEventsChannel, 1))
}
