package translate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/idem"
)

func publish(t *testing.T, w *Worker, f *Fragment) {
	t.Helper()
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Ingest(context.Background(), &bus.Message{ID: f.MessageID, Key: f.MeetingCode, Data: b}); err != nil {
		t.Fatal(err)
	}
}

func newTestWorker(f *fixture) *Worker {
	return NewWorker(bus.NewMemBus(8), NewReorderBuffer(time.Second), f.fanout, idem.NewMemIdem(time.Minute), WorkerConfig{})
}

func TestWorkerHelloScenario(t *testing.T) {
	f := newFixture(t, "es", "fr")
	w := newTestWorker(f)
	ctx := context.Background()

	publish(t, w, &Fragment{MessageID: "m1", MeetingCode: "TEST01", SourceLanguage: "en-US", Text: "hello", Timestamp: at(10)})

	if n := w.DrainOnce(ctx, at(10.5)); n != 0 {
		t.Fatalf("released %d before the window elapsed", n)
	}
	if n := w.DrainOnce(ctx, at(11)); n != 1 {
		t.Fatalf("released %d, want 1", n)
	}

	es, err := f.proto.Fetch(ctx, "TEST01", "es", 0)
	if err != nil {
		t.Fatal(err)
	}
	if es.Text != "hola" || es.Sequence != 1 {
		t.Fatalf("es = %+v", es)
	}
	fr, err := f.proto.Fetch(ctx, "TEST01", "fr", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !fr.Empty || fr.Sequence != 0 {
		t.Fatalf("fr = %+v", fr)
	}
}

func TestWorkerConcatenatesInCaptureOrder(t *testing.T) {
	f := newFixture(t, "es")
	w := newTestWorker(f)
	ctx := context.Background()

	// the later fragment arrives first
	publish(t, w, &Fragment{MessageID: "m2", MeetingCode: "TEST01", SourceLanguage: "en", Text: "how are you", Timestamp: at(10.5)})
	publish(t, w, &Fragment{MessageID: "m1", MeetingCode: "TEST01", SourceLanguage: "en", Text: "hello", Timestamp: at(10)})

	if n := w.DrainOnce(ctx, at(12)); n != 2 {
		t.Fatalf("released %d", n)
	}

	b, err := f.proto.Fetch(ctx, "TEST01", "es", 0)
	if err != nil {
		t.Fatal(err)
	}
	if b.Text != "hola cómo estás" || b.Sequence != 2 {
		t.Fatalf("batch = %+v", b)
	}
	if b.Records[0].Sequence != 1 || b.Records[1].Sequence != 2 {
		t.Fatalf("sequences = %d, %d", b.Records[0].Sequence, b.Records[1].Sequence)
	}
}

func TestWorkerDropsRedelivery(t *testing.T) {
	f := newFixture(t, "es")
	w := newTestWorker(f)
	ctx := context.Background()

	frag := &Fragment{MessageID: "m1", MeetingCode: "TEST01", SourceLanguage: "en", Text: "hello", Timestamp: at(10)}
	publish(t, w, frag)
	publish(t, w, frag)

	if n := w.DrainOnce(ctx, at(20)); n != 1 {
		t.Fatalf("released %d, duplicate was buffered", n)
	}
	if cur, _ := f.alloc.Current(ctx, "TEST01"); cur != 1 {
		t.Fatalf("counter = %d", cur)
	}
}

func TestWorkerStartStop(t *testing.T) {
	f := newFixture(t, "es")
	b := bus.NewMemBus(8)
	defer b.Close()
	w := NewWorker(b, NewReorderBuffer(10*time.Millisecond), f.fanout, nil, WorkerConfig{DrainInterval: 5 * time.Millisecond})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	data, _ := json.Marshal(&Fragment{MessageID: "m1", MeetingCode: "TEST01", SourceLanguage: "en", Text: "hello", Timestamp: time.Now()})
	if err := b.Publish(ctx, &bus.Message{ID: "m1", Key: "TEST01", Data: data}); err != nil {
		t.Fatal(err)
	}

	f.proto.WaitTimeout = 2 * time.Second
	got, err := f.proto.Fetch(ctx, "TEST01", "es", 0)
	w.Stop()
	w.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "hola" {
		t.Fatalf("got %+v", got)
	}
}
