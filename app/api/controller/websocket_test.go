package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canopy-network/chanalytics/app/api/types"
	"github.com/canopy-network/chanalytics/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClientSubscriptions(t *testing.T) {
	subs := newClientSubscriptions()
	assert.False(t, subs.IsSubscribed(TopicSync))

	subs.Subscribe(TopicSync)
	assert.True(t, subs.IsSubscribed(TopicSync))
	assert.False(t, subs.IsSubscribed(TopicImport))

	subs.Subscribe(TopicAll)
	assert.True(t, subs.IsSubscribed(TopicImport))

	subs.Unsubscribe(TopicAll)
	subs.Unsubscribe(TopicSync)
	assert.False(t, subs.IsSubscribed(TopicSync))
}

func TestHandleClientMessage(t *testing.T) {
	subs := newClientSubscriptions()

	msg := handleClientMessage(subs, ClientMessage{Action: "subscribe", Topic: "import"})
	assert.Equal(t, "subscribed", msg.Type)
	assert.True(t, subs.IsSubscribed(TopicImport))

	msg = handleClientMessage(subs, ClientMessage{Action: "unsubscribe", Topic: "import"})
	assert.Equal(t, "unsubscribed", msg.Type)
	assert.False(t, subs.IsSubscribed(TopicImport))

	msg = handleClientMessage(subs, ClientMessage{Action: "subscribe", Topic: "blocks"})
	assert.Equal(t, "error", msg.Type)

	msg = handleClientMessage(subs, ClientMessage{Action: "shout", Topic: "sync"})
	assert.Equal(t, "error", msg.Type)
}

func TestTopicForChannel(t *testing.T) {
	assert.Equal(t, TopicImport, topicForChannel(redis.ImportEventsChannel))
	assert.Equal(t, TopicSync, topicForChannel(redis.SyncEventsChannel))
	assert.Empty(t, topicForChannel("canopy:1:block.indexed"))
}

func TestForwardMessages_FiltersBySubscription(t *testing.T) {
	c := NewController(&types.App{Logger: zaptest.NewLogger(t)})
	subs := newClientSubscriptions()
	subs.Subscribe(TopicSync)

	in := make(chan *goredis.Message, 4)
	in <- &goredis.Message{Channel: redis.ImportEventsChannel, Payload: `{"state":"fetching"}`}
	in <- &goredis.Message{Channel: redis.SyncEventsChannel, Payload: `not json`}
	in <- &goredis.Message{Channel: redis.SyncEventsChannel, Payload: `{"state":"completed"}`}
	close(in)

	send := make(chan ServerMessage, 4)
	err := c.forwardMessages(context.Background(), in, send, subs)
	require.NoError(t, err)
	close(send)

	var got []ServerMessage
	for msg := range send {
		got = append(got, msg)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "sync.event", got[0].Type)
	assert.JSONEq(t, `{"state":"completed"}`, string(got[0].Payload.(json.RawMessage)))
}

func TestForwardMessages_StopsOnCancel(t *testing.T) {
	c := NewController(&types.App{Logger: zaptest.NewLogger(t)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.forwardMessages(ctx, make(chan *goredis.Message), make(chan ServerMessage), newClientSubscriptions())
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("forwardMessages did not return after cancel")
	}
}

func TestHandleWebSocket_RedisDisabled(t *testing.T) {
	c := NewController(&types.App{Logger: zaptest.NewLogger(t)})

	rec := httptest.NewRecorder()
	c.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
