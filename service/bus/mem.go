package bus

import (
	"context"
	"sync"
	"time"

	"github.com/pwhiting/Translate/logger"

	"go.uber.org/zap"
)

// memBus is an in-process queue for single-node runs and tests. A message
// whose handler fails is queued again after RetryDelay.
type memBus struct {
	ch         chan *Message
	retryDelay time.Duration
	closeOnce  sync.Once
	done       chan struct{}
}

func NewMemBus(capacity int) Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &memBus{
		ch:         make(chan *Message, capacity),
		retryDelay: 100 * time.Millisecond,
		done:       make(chan struct{}),
	}
}

func (b *memBus) Publish(ctx context.Context, m *Message) error {
	cp := &Message{ID: m.ID, Key: m.Key, Data: append([]byte(nil), m.Data...)}
	select {
	case b.ch <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return context.Canceled
	}
}

func (b *memBus) Subscribe(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case m := <-b.ch:
			if err := h(ctx, m); err != nil {
				logger.Warn("mem bus redelivery", zap.String("msgId", m.ID), zap.Error(err))
				go b.requeue(m)
			}
		}
	}
}

func (b *memBus) requeue(m *Message) {
	t := time.NewTimer(b.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		select {
		case b.ch <- m:
		case <-b.done:
		}
	case <-b.done:
	}
}

func (b *memBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
