package importer

import (
	"context"

	"go.uber.org/zap"
)

// Publisher sends a JSON-encoded payload to a topic.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any) error
}

// PublishNotifier forwards events to a Publisher. Publish errors are logged
// and otherwise ignored.
type PublishNotifier struct {
	Publisher Publisher
	Topic     string
	Logger    *zap.Logger
}

func (n *PublishNotifier) Notify(ctx context.Context, ev Event) {
	if err := n.Publisher.PublishJSON(ctx, n.Topic, ev); err != nil {
		n.Logger.Debug("Failed to publish import event",
			zap.String("topic", n.Topic),
			zap.String("identifier", ev.Identifier),
			zap.String("state", string(ev.State)),
			zap.Error(err))
	}
}
