package seq

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/errs"

	"go.uber.org/zap"
)

// Store is one durable per-meeting counter. Implementations must make Incr a
// single atomic read-increment-write in the backing store: an in-process lock
// cannot serialize allocations made by other worker instances.
type Store interface {
	// Incr adds one to the counter (absent counts as 0) and returns the new value.
	Incr(ctx context.Context, meetingCode string) (int64, error)
	// Load returns the current value, 0 if the counter does not exist.
	Load(ctx context.Context, meetingCode string) (int64, error)
	// Ensure creates the counter at 0 when absent and leaves it untouched otherwise.
	Ensure(ctx context.Context, meetingCode string) error
}

type Allocator struct {
	Store    Store
	MaxRetry int
	Backoff  time.Duration
}

func NewAllocator(store Store, maxRetry int, backoff time.Duration) *Allocator {
	a := &Allocator{Store: store, MaxRetry: maxRetry, Backoff: backoff}
	a.ensure()
	return a
}

func (a *Allocator) ensure() {
	if a.MaxRetry <= 0 {
		a.MaxRetry = 5
	}
	if a.Backoff <= 0 {
		a.Backoff = 10 * time.Millisecond
	}
}

// Allocate hands out the next sequence for meetingCode. A failed attempt
// (write conflict, duplicate upsert, transport hiccup) is retried with doubling
// backoff; once MaxRetry attempts are spent the result is ErrAllocationFailed.
// Values are never returned to the pool, so a caller that drops the fragment
// afterwards leaves a gap, which readers tolerate.
func (a *Allocator) Allocate(ctx context.Context, meetingCode string) (int64, error) {
	a.ensure()
	if meetingCode == "" {
		return 0, errs.ErrArgs.WrapMsg("empty meeting code")
	}

	var lastErr error
	backoff := a.Backoff
	for i := 0; i < a.MaxRetry; i++ {
		v, err := a.Store.Incr(ctx, meetingCode)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Debug("seq allocation attempt failed",
			zap.String("meeting", meetingCode), zap.Int("attempt", i+1), zap.Error(err))

		if i == a.MaxRetry-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, errs.ErrAllocationFailed.WrapMsg(ctx.Err().Error(), "meetingCode", meetingCode)
		case <-timer.C:
		}
		backoff *= 2
	}
	return 0, errs.ErrAllocationFailed.WrapMsg("retry exceeded",
		"meetingCode", meetingCode, "attempts", a.MaxRetry, "lastErr", lastErr)
}

// Current is the registration baseline: the last sequence handed out.
func (a *Allocator) Current(ctx context.Context, meetingCode string) (int64, error) {
	v, err := a.Store.Load(ctx, meetingCode)
	if err != nil {
		return 0, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", meetingCode)
	}
	return v, nil
}

// Ensure initializes the meeting's counter at 0.
func (a *Allocator) Ensure(ctx context.Context, meetingCode string) error {
	if err := a.Store.Ensure(ctx, meetingCode); err != nil {
		return errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", meetingCode)
	}
	return nil
}
