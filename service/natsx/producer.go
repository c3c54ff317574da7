package natsx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const HeaderMsgID = "Nats-Msg-Id"

type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish sends data on the subject bound to biz.
func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	msg := nats.NewMsg(r.Subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}

	switch r.Mode {
	case Core:
		return p.c.nc.PublishMsg(msg)
	case JetStreamPull:
		ack, err := p.c.js.PublishMsg(msg, nats.Context(ctx))
		if err != nil {
			return err
		}
		if ack.Duplicate {
			logger.Debug("nats duplicate publish ignored", zap.String("msgId", hdr[HeaderMsgID]))
		}
		return nil
	default:
		return errs.ErrArgs.WrapMsg("unsupported mode", "biz", biz)
	}
}

// PublishOnce sets Nats-Msg-Id so the stream drops a retried publish.
// An empty msgID gets a random one.
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = genMsgID()
	}
	hdr[HeaderMsgID] = msgID
	return p.Publish(ctx, biz, data, hdr)
}

func genMsgID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
