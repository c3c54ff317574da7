package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAPI struct {
	mu        sync.Mutex
	sequences []string // sequence query values seen, "" for registration
	fail5xx   int32    // remaining 500s to return on /translations
	batches   []Item   // served after registration, then empty
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["meetingCode"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"missing required parameters"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"clientId":"c-1"}`))
	})
	mux.HandleFunc("/translations", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.fail5xx, -1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		seq := r.URL.Query().Get("sequence")
		f.mu.Lock()
		f.sequences = append(f.sequences, seq)
		var item Item
		switch {
		case seq == "":
			item = Item{ID: "registration", Sequence: 2, Empty: true}
		case len(f.batches) > 0:
			item = f.batches[0]
			f.batches = f.batches[1:]
		default:
			item = Item{ID: "empty", Sequence: 0, Empty: true}
			item.Sequence, _ = parseInt(seq)
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(translationsResp{Success: true, Translations: []Item{item}})
	})
	return mux
}

func parseInt(s string) (int64, error) {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("nan")
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

func TestRunPrintsAndAdvancesCursor(t *testing.T) {
	api := &fakeAPI{batches: []Item{
		{ID: "concat_4", TranslatedText: "hola cómo estás", Sequence: 4},
		{ID: "concat_5", TranslatedText: "adiós", Sequence: 5},
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	var out bytes.Buffer
	l := New(Config{BaseURL: srv.URL, MeetingCode: "TEST01", Language: "es", Interval: time.Millisecond}, &out)
	l.now = func() time.Time { return time.Date(2024, 1, 1, 9, 30, 5, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := l.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v", err)
	}
	if l.ClientID() != "c-1" || l.Cursor() != 5 {
		t.Fatalf("client %q cursor %d", l.ClientID(), l.Cursor())
	}
	want := "[09:30:05] hola cómo estás\n[09:30:05] adiós\n"
	if out.String() != want {
		t.Fatalf("output = %q", out.String())
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sequences) < 3 || api.sequences[0] != "" || api.sequences[1] != "2" || api.sequences[2] != "4" {
		t.Fatalf("sequences = %v", api.sequences)
	}
}

func TestRunRetriesServerErrors(t *testing.T) {
	api := &fakeAPI{fail5xx: 2, batches: []Item{{TranslatedText: "bonjour", Sequence: 3}}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	var out bytes.Buffer
	l := New(Config{
		BaseURL: srv.URL, MeetingCode: "TEST01", Language: "fr",
		Interval: time.Millisecond, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond,
	}, &out)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx)
	if !strings.Contains(out.String(), "bonjour") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunStopsOnClientError(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	l := New(Config{BaseURL: srv.URL, Language: "es", Interval: time.Millisecond}, &bytes.Buffer{})
	start := time.Now()
	err := l.Run(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		t.Fatalf("Run = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("4xx was retried")
	}
}
