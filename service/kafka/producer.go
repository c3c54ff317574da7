package kafka

import (
	"github.com/pwhiting/Translate/logger"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

type Producer struct {
	client sarama.Client
	sync   sarama.SyncProducer
}

func NewProducer(c *Config) (*Producer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, BuildSaramaConfig(c))
	if err != nil {
		return nil, err
	}
	if c.AutoCreateTopic {
		if err := EnsureTopicFromClient(client, c); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Producer{client: client, sync: p}, nil
}

// SendSync blocks until the leader and in-sync replicas acknowledged.
func (p *Producer) SendSync(topic string, key, value []byte, headers map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		return err
	}
	logger.Debug("kafka sent", zap.String("topic", topic), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return err
	}
	return p.client.Close()
}
