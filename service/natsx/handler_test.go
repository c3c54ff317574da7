package natsx

import (
	"context"
	"errors"
	"testing"

	"github.com/pwhiting/Translate/tools/errs"
)

func TestChainOrderAndRecover(t *testing.T) {
	var order []string
	tag := func(name string) NatsxMiddleware {
		return func(next NatsxHandler) NatsxHandler {
			return func(ctx context.Context, m NatsxMessage) error {
				order = append(order, name)
				return next(ctx, m)
			}
		}
	}
	h := NatsxChain(func(ctx context.Context, m NatsxMessage) error {
		panic("boom")
	}, tag("a"), RecoverMiddleware(), tag("b"))

	err := h(context.Background(), NatsxMessage{Subject: "s"})
	if !errors.Is(err, errs.ErrInternal) {
		t.Fatalf("want panic mapped to internal error, got %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v", order)
	}
}

func TestMsgID(t *testing.T) {
	m := NatsxMessage{Header: map[string]string{"Nats-Msg-Id": "abc"}}
	if m.MsgID() != "abc" {
		t.Fatalf("MsgID = %q", m.MsgID())
	}
	if (NatsxMessage{}).MsgID() != "" {
		t.Fatal("expected empty id")
	}
}
