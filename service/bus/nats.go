package bus

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/service/natsx"
)

const natsBiz = "fragments"

type NatsConfig struct {
	Subject string        `yaml:"subject" toml:"subject"`
	Stream  string        `yaml:"stream" toml:"stream"`
	Durable string        `yaml:"durable" toml:"durable"`
	Batch   int           `yaml:"batch" toml:"batch"`
	Wait    time.Duration `yaml:"wait" toml:"wait"`
	AckWait time.Duration `yaml:"ackWait" toml:"ack_wait"`
}

func (c *NatsConfig) defaults() {
	if c.Subject == "" {
		c.Subject = "translate.fragments"
	}
	if c.Stream == "" {
		c.Stream = "TRANSLATE_FRAGMENTS"
	}
	if c.Durable == "" {
		c.Durable = "translate-worker"
	}
}

type natsBus struct {
	client   *natsx.NatsxClient
	producer *natsx.NatsxProducer
	consumer *natsx.NatsxConsumer
	cfg      NatsConfig
}

// NewNatsBus publishes with Nats-Msg-Id and consumes through one durable pull
// consumer, so worker instances share the stream's messages.
func NewNatsBus(conn natsx.NatsxConfig, cfg NatsConfig) (Bus, error) {
	cfg.defaults()
	c, err := natsx.NewNatsxClient(conn)
	if err != nil {
		return nil, err
	}
	err = c.RegisterRoute(natsx.NatsxRoute{
		Biz:     natsBiz,
		Subject: cfg.Subject,
		Mode:    natsx.JetStreamPull,
		Stream:  cfg.Stream,
		Durable: cfg.Durable,
		AckWait: cfg.AckWait,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &natsBus{
		client:   c,
		producer: natsx.NewNatsxProducer(c),
		consumer: natsx.NewNatsxConsumer(c, natsx.RecoverMiddleware(), natsx.LogMiddleware()),
		cfg:      cfg,
	}, nil
}

func (b *natsBus) Publish(ctx context.Context, m *Message) error {
	return b.producer.PublishOnce(ctx, natsBiz, m.Data, map[string]string{"X-Key": m.Key}, m.ID)
}

func (b *natsBus) Subscribe(ctx context.Context, h Handler) error {
	return b.consumer.PullConsume(ctx, natsBiz, b.cfg.Batch, b.cfg.Wait, func(ctx context.Context, msg natsx.NatsxMessage) error {
		return h(ctx, &Message{ID: msg.MsgID(), Key: msg.Header["X-Key"], Data: msg.Data})
	})
}

func (b *natsBus) Close() error {
	return b.client.Close()
}
