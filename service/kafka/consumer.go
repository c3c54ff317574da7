package kafka

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/logger"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// MessageHandler processes one record; a non-nil error asks for redelivery.
type MessageHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

type consumerGroupHandler struct {
	handler  MessageHandler
	maxRetry int
}

func (h *consumerGroupHandler) Setup(s sarama.ConsumerGroupSession) error {
	logger.Info("kafka consumer group setup", zap.Any("claims", s.Claims()))
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("kafka consumer group cleanup")
	return nil
}

// ConsumeClaim retries a failing record in place before marking it: a later
// mark would commit past it anyway.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var err error
		for i := 0; i <= h.maxRetry; i++ {
			if err = h.handler(session.Context(), msg); err == nil {
				break
			}
			select {
			case <-session.Context().Done():
				return nil
			case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
			}
		}
		if err != nil {
			logger.Warn("kafka record dropped after retries",
				zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// Consume joins the group and blocks until ctx is done.
func Consume(ctx context.Context, c *Config, handler MessageHandler) error {
	if err := c.Validate(); err != nil {
		return err
	}
	group, err := sarama.NewConsumerGroup(c.Brokers, c.GroupID, BuildSaramaConfig(c))
	if err != nil {
		return err
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Warn("kafka consumer group error", zap.Error(err))
		}
	}()

	h := &consumerGroupHandler{handler: handler, maxRetry: 3}
	for {
		if err := group.Consume(ctx, []string{c.Topic}, h); err != nil {
			logger.Warn("kafka consume error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
