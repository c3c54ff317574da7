package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemBusRedeliversOnError(t *testing.T) {
	b := NewMemBus(8).(*memBus)
	b.retryDelay = time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.Publish(ctx, &Message{ID: "m1", Key: "TEST01", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = b.Subscribe(ctx, func(ctx context.Context, m *Message) error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			if m.ID != "m1" || string(m.Data) != "x" {
				t.Errorf("got %+v", m)
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("message not redelivered")
	}
}
