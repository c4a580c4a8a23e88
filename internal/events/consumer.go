package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// HandlerFunc processes one message. Returning an error nacks it for redelivery.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Consume subscribes to topic and runs handler for every message until ctx is cancelled.
// It returns once the subscription is established; processing continues in the background.
func Consume(ctx context.Context, sub message.Subscriber, topic string, handler HandlerFunc, logger *slog.Logger) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if err := handler(msg.Context(), msg); err != nil {
				logger.Error("Event handler failed", "topic", topic, "message_id", msg.UUID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
		logger.Info("Event consumer stopped", "topic", topic)
	}()

	logger.Info("Event consumer started", "topic", topic)
	return nil
}
