package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/chanalytics/pkg/redis"
	"github.com/canopy-network/chanalytics/pkg/retry"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Topics a websocket client can subscribe to.
const (
	TopicImport = "import"
	TopicSync   = "sync"
	TopicAll    = "*"
)

// topicChannels maps client topics to Redis Pub/Sub channels.
var topicChannels = map[string]string{
	TopicImport: redis.ImportEventsChannel,
	TopicSync:   redis.SyncEventsChannel,
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`  // "import", "sync" or "*"
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string `json:"type"` // "import.event", "sync.event", "subscribed", "unsubscribed", "error", "info"
	Payload any    `json:"payload"`
}

type clientSubscriptions struct {
	mu     sync.RWMutex
	topics map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{topics: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.topics[topic] = true
}

func (cs *clientSubscriptions) Unsubscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.topics, topic)
}

// IsSubscribed checks a topic. Wildcard (*) matches all topics.
func (cs *clientSubscriptions) IsSubscribed(topic string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.topics[TopicAll] || cs.topics[topic]
}

// topicForChannel is the reverse of topicChannels.
func topicForChannel(channel string) string {
	for topic, ch := range topicChannels {
		if ch == channel {
			return topic
		}
	}
	return ""
}

func validTopic(topic string) bool {
	_, ok := topicChannels[topic]
	return ok || topic == TopicAll
}

// HandleWebSocket upgrades the connection and relays import and sync events.
//
// Client sends: {"action": "subscribe", "topic": "sync"}
// Server sends: {"type": "sync.event", "payload": {...}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.Events == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var producers, writer sync.WaitGroup
	spawn := func(wg *sync.WaitGroup, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in websocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())))
					cancel()
				}
			}()
			fn()
		}()
	}

	spawn(&producers, "redis", func() { c.subscribeToRedis(ctx, send, subs) })
	spawn(&producers, "ping", func() { c.sendPings(ctx, conn) })
	spawn(&writer, "writer", func() { c.writeMessages(conn, send) })

	c.readClientMessages(ctx, conn, cancel, subs, send)

	// send is closed only after every producer has returned
	cancel()
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToRedis keeps a subscription to every event channel alive,
// reconnecting with backoff until ctx is cancelled.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	channels := make([]string, 0, len(topicChannels))
	for _, ch := range topicChannels {
		channels = append(channels, ch)
	}

	cfg := retry.DefaultConfig()
	for attempt := 1; ; attempt++ {
		pubsub := c.App.Events.Subscribe(ctx, channels...)
		err := c.relay(ctx, pubsub, send, subs)
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return
		}

		delay := retry.Backoff(cfg, attempt)
		c.App.Logger.Warn("Redis subscription lost, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))

		if !trySend(ctx, send, ServerMessage{Type: "error", Payload: map[string]any{
			"message":     "event stream interrupted, reconnecting",
			"retryIn":     delay.Seconds(),
			"recoverable": true,
		}}) {
			return
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) relay(ctx context.Context, pubsub *goredis.PubSub, send chan<- ServerMessage, subs *clientSubscriptions) error {
	receiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return err
	}
	return c.forwardMessages(ctx, pubsub.Channel(), send, subs)
}

// forwardMessages relays Pub/Sub messages the client subscribed to until the
// channel closes (nil) or ctx is cancelled.
func (c *Controller) forwardMessages(ctx context.Context, ch <-chan *goredis.Message, send chan<- ServerMessage, subs *clientSubscriptions) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic := topicForChannel(msg.Channel)
			if topic == "" || !subs.IsSubscribed(topic) {
				continue
			}
			if !json.Valid([]byte(msg.Payload)) {
				c.App.Logger.Warn("Dropping malformed event", zap.String("channel", msg.Channel))
				continue
			}
			if !trySend(ctx, send, ServerMessage{Type: topic + ".event", Payload: json.RawMessage(msg.Payload)}) {
				return ctx.Err()
			}
		}
	}
}

func trySend(ctx context.Context, send chan<- ServerMessage, msg ServerMessage) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

// readClientMessages handles subscription requests until the connection closes.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	resetDeadline := func() error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) }
	if err := resetDeadline(); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error { return resetDeadline() })

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if err := resetDeadline(); err != nil {
			return
		}

		if !trySend(ctx, send, handleClientMessage(subs, msg)) {
			return
		}
	}
}

func handleClientMessage(subs *clientSubscriptions, msg ClientMessage) ServerMessage {
	switch msg.Action {
	case "subscribe", "unsubscribe":
		if !validTopic(msg.Topic) {
			return ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown topic: " + msg.Topic}}
		}
		if msg.Action == "subscribe" {
			subs.Subscribe(msg.Topic)
			return ServerMessage{Type: "subscribed", Payload: map[string]string{"topic": msg.Topic}}
		}
		subs.Unsubscribe(msg.Topic)
		return ServerMessage{Type: "unsubscribed", Payload: map[string]string{"topic": msg.Topic}}
	default:
		return ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
	}
}
