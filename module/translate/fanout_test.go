package translate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/module/meeting/seq"
	"github.com/pwhiting/Translate/module/meeting/store"
	"github.com/pwhiting/Translate/tools/errs"
)

// tableTranslator answers from a fixed table; missing entries fail.
type tableTranslator struct {
	table map[string]string // target|text -> translation
	delay map[string]time.Duration
	calls atomic.Int32
}

func (tt *tableTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	tt.calls.Add(1)
	if d := tt.delay[target]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if out, ok := tt.table[target+"|"+text]; ok {
		return out, nil
	}
	return "", errors.New("unsupported language pair")
}

type fixture struct {
	meetings store.Store
	alloc    *seq.Allocator
	log      delivery.Log
	proto    *delivery.Protocol
	fanout   *Fanout
	tr       *tableTranslator
}

func newFixture(t *testing.T, langs ...string) *fixture {
	t.Helper()
	f := &fixture{
		meetings: store.NewMemStore(),
		alloc:    seq.NewAllocator(seq.NewMemStore(), 3, time.Millisecond),
		log:      delivery.NewMemLog(),
		tr: &tableTranslator{table: map[string]string{
			"es|hello":       "hola",
			"es|how are you": "cómo estás",
			"de|hello":       "hallo",
		}},
	}
	ctx := context.Background()
	for _, l := range langs {
		res, err := f.meetings.Join(ctx, "TEST01", l, "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Created {
			_ = f.alloc.Ensure(ctx, "TEST01")
		}
	}
	f.proto = delivery.NewProtocol(f.log, f.alloc, 5*time.Millisecond, 30*time.Millisecond)
	f.fanout = &Fanout{
		Languages:   f.meetings,
		Seq:         f.alloc,
		Log:         f.log,
		Translator:  f.tr,
		CallTimeout: 200 * time.Millisecond,
	}
	return f
}

func TestFanoutEsSucceedsFrFails(t *testing.T) {
	f := newFixture(t, "es", "fr")
	ctx := context.Background()

	res, err := f.fanout.Process(ctx, "TEST01", &Fragment{SourceLanguage: "en-US", Text: "hello", Timestamp: at(10)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sequence != 1 || len(res.Records) != 1 || res.Failed["fr"] == nil {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Failed["fr"], errs.ErrTranslation) {
		t.Fatalf("fr failure = %v", res.Failed["fr"])
	}

	es, err := f.proto.Fetch(ctx, "TEST01", "es", 0)
	if err != nil {
		t.Fatal(err)
	}
	if es.Empty || es.Text != "hola" || es.Sequence != 1 {
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

func TestFanoutToleratesRecordedDuplicate(t *testing.T) {
	f := newFixture(t, "es")
	ctx := context.Background()
	earlier := &model.TranslationRecord{MeetingCode: "TEST01", Sequence: 1, TargetLanguage: "es", TranslatedText: "hola", IsComplete: true}
	if err := f.log.Append(ctx, earlier); err != nil {
		t.Fatal(err)
	}

	res, err := f.fanout.Process(ctx, "TEST01", &Fragment{SourceLanguage: "en", Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sequence != 1 || len(res.Records) != 1 || len(res.Failed) != 0 {
		t.Fatalf("result = %+v", res)
	}
	recs, _ := f.log.Query(ctx, "TEST01", "es", 0)
	if len(recs) != 1 {
		t.Fatalf("es records = %d, want 1", len(recs))
	}
}

func TestFanoutSourceLanguagePassthrough(t *testing.T) {
	f := newFixture(t, "en", "es")
	res, err := f.fanout.Process(context.Background(), "TEST01", &Fragment{SourceLanguage: "en-US", Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, failed = %v", len(res.Records), res.Failed)
	}
	if got := f.tr.calls.Load(); got != 1 {
		t.Fatalf("translator called %d times; the source language needs no call", got)
	}
	recs, _ := f.log.Query(context.Background(), "TEST01", "en", 0)
	if len(recs) != 1 || recs[0].TranslatedText != "hello" {
		t.Fatalf("en records = %+v", recs)
	}
}

func TestFanoutSharesSequenceAcrossLanguages(t *testing.T) {
	f := newFixture(t, "es", "de")
	res, err := f.fanout.Process(context.Background(), "TEST01", &Fragment{SourceLanguage: "en", Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Records {
		if r.Sequence != res.Sequence {
			t.Fatalf("record %s has seq %d, fragment has %d", r.TargetLanguage, r.Sequence, res.Sequence)
		}
	}
}

func TestFanoutStalledLanguageTimesOut(t *testing.T) {
	f := newFixture(t, "es", "de")
	f.tr.delay = map[string]time.Duration{"de": time.Second}
	f.fanout.CallTimeout = 20 * time.Millisecond

	start := time.Now()
	res, err := f.fanout.Process(context.Background(), "TEST01", &Fragment{SourceLanguage: "en", Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("stalled language held up the fanout")
	}
	if len(res.Records) != 1 || res.Records[0].TargetLanguage != "es" || res.Failed["de"] == nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestFanoutUnknownMeeting(t *testing.T) {
	f := newFixture(t)
	_, err := f.fanout.Process(context.Background(), "NOPE", &Fragment{Text: "hello"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if cur, _ := f.alloc.Current(context.Background(), "NOPE"); cur != 0 {
		t.Fatalf("sequence allocated for unknown meeting: %d", cur)
	}
}
