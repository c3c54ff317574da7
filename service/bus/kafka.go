package bus

import (
	"context"

	"github.com/pwhiting/Translate/service/kafka"

	"github.com/Shopify/sarama"
)

const headerMsgID = "Msg-Id"

type kafkaBus struct {
	cfg      *kafka.Config
	producer *kafka.Producer
}

// NewKafkaBus keys records by meeting code so one meeting stays on one partition.
func NewKafkaBus(cfg *kafka.Config) (Bus, error) {
	p, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkaBus{cfg: cfg, producer: p}, nil
}

func (b *kafkaBus) Publish(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.producer.SendSync(b.cfg.Topic, []byte(m.Key), m.Data, map[string]string{headerMsgID: m.ID})
}

func (b *kafkaBus) Subscribe(ctx context.Context, h Handler) error {
	return kafka.Consume(ctx, b.cfg, func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		m := &Message{Key: string(msg.Key), Data: msg.Value}
		for _, hd := range msg.Headers {
			if hd != nil && string(hd.Key) == headerMsgID {
				m.ID = string(hd.Value)
			}
		}
		return h(ctx, m)
	})
}

func (b *kafkaBus) Close() error {
	return b.producer.Close()
}
