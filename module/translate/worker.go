package translate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/idem"
	"github.com/pwhiting/Translate/service/metrics"
	"github.com/pwhiting/Translate/tools/errs"
	"github.com/pwhiting/Translate/tools/safe"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultDrainInterval = 100 * time.Millisecond

// Processor is what a released fragment is handed to; *Fanout in production.
type Processor interface {
	Process(ctx context.Context, meetingCode string, frag *Fragment) (*Result, error)
}

type WorkerConfig struct {
	DrainInterval time.Duration
	IdemTTL       time.Duration
}

// Worker consumes fragments from the bus into its own ReorderBuffer and feeds
// released fragments to the Processor. It owns no global state; several
// workers may run against the same bus and stores.
type Worker struct {
	bus    bus.Subscriber
	buffer *ReorderBuffer
	proc   Processor
	idem   idem.Store
	cfg    WorkerConfig
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewWorker(sub bus.Subscriber, buffer *ReorderBuffer, proc Processor, seen idem.Store, cfg WorkerConfig) *Worker {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	if seen == nil {
		seen = idem.NewMemIdem(cfg.IdemTTL)
	}
	return &Worker{bus: sub, buffer: buffer, proc: proc, idem: seen, cfg: cfg, now: time.Now}
}

// Start launches the bus consumer and the drain loop. They run until Stop or
// until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errs.New("worker already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer safe.Recover("worker-consume")
		if err := w.bus.Subscribe(ctx, w.Ingest); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fragment subscription ended", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		w.drainLoop(ctx)
	}()
	go func() {
		wg.Wait()
		close(w.done)
	}()

	logger.Info("worker started", zap.Duration("window", w.buffer.Window), zap.Duration("drainInterval", w.cfg.DrainInterval))
	return nil
}

// Stop cancels both loops and waits for them. Fragments still buffered are
// discarded.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	if n := w.buffer.Len(); n > 0 {
		logger.Warn("worker stopped with buffered fragments", zap.Int("count", n))
	}
	logger.Info("worker stopped")
}

// Ingest is the bus handler: decode, drop redeliveries, buffer.
func (w *Worker) Ingest(ctx context.Context, m *bus.Message) error {
	metrics.FragmentsReceived.Inc()
	frag, err := DecodeFragment(m.Data)
	if err != nil {
		// a malformed payload will not improve on redelivery
		logger.Warn("dropping malformed fragment", zap.String("msgId", m.ID), zap.Error(err))
		return nil
	}
	if frag.MessageID == "" {
		frag.MessageID = m.ID
	}
	if frag.MessageID != "" {
		seen, err := w.idem.SeenOnce(ctx, frag.MessageID, w.cfg.IdemTTL)
		if err != nil {
			return errs.ErrTransport.WrapMsg(err.Error(), "msgId", frag.MessageID)
		}
		if seen {
			metrics.FragmentsDuplicate.Inc()
			logger.Debug("duplicate fragment", zap.String("msgId", frag.MessageID))
			return nil
		}
	}
	if frag.Timestamp.IsZero() {
		frag.Timestamp = w.now()
	}
	w.buffer.Add(frag.MeetingCode, frag)
	metrics.BufferedFragments.Set(float64(w.buffer.Len()))
	return nil
}

func (w *Worker) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.safeDrain(ctx)
		}
	}
}

func (w *Worker) safeDrain(ctx context.Context) {
	defer safe.Recover("worker-drain")
	w.DrainOnce(ctx, w.now())
}

// DrainOnce releases what is ready at now and processes it. Meetings run in
// parallel; within a meeting fragments go one by one so sequence order follows
// capture order. It returns the number of fragments released.
func (w *Worker) DrainOnce(ctx context.Context, now time.Time) int {
	ready := w.buffer.Drain(now)
	metrics.BufferedFragments.Set(float64(w.buffer.Len()))
	if len(ready) == 0 {
		return 0
	}

	released := 0
	var g errgroup.Group
	for code, frags := range ready {
		released += len(frags)
		code, frags := code, frags
		g.Go(func() error {
			for _, f := range frags {
				w.processOne(ctx, code, f)
			}
			return nil
		})
	}
	_ = g.Wait()
	return released
}

func (w *Worker) processOne(ctx context.Context, code string, f *Fragment) {
	log := logger.Named("worker").With(zap.String("meeting", code), zap.String("msgId", f.MessageID))
	res, err := w.proc.Process(ctx, code, f)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, errs.ErrAllocationFailed):
			reason = "allocation"
		case errors.Is(err, errs.ErrNotFound):
			reason = "meeting"
		}
		metrics.FragmentsDropped.WithLabelValues(reason).Inc()
		log.Warn("fragment dropped", zap.String("reason", reason), zap.Error(err))
		return
	}
	if res.Sequence == 0 {
		log.Debug("fragment has no target languages")
		return
	}
	log.Info("fragment sequenced", zap.Int64("seq", res.Sequence),
		zap.Int("records", len(res.Records)), zap.Int("failed", len(res.Failed)))
}
