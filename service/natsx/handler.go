package natsx

import (
	"context"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/errs"

	"go.uber.org/zap"
)

// NatsxMessage is what handlers see, whatever the route mode.
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// MsgID returns the publisher's id header, empty if there is none.
func (m NatsxMessage) MsgID() string {
	for _, k := range []string{HeaderMsgID, "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := m.Header[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware wraps a handler, e.g. RecoverMiddleware.
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain applies mws so the first one runs outermost.
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RecoverMiddleware turns a handler panic into an error, which naks the message.
func RecoverMiddleware() NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
					logger.Error("nats handler panic", zap.String("subject", msg.Subject), zap.Any("panic", r))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// LogMiddleware logs handler failures.
func LogMiddleware() NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) error {
			err := next(ctx, msg)
			if err != nil {
				logger.Warn("nats handler failed", zap.String("subject", msg.Subject),
					zap.String("msgId", msg.MsgID()), zap.Error(err))
			}
			return err
		}
	}
}
