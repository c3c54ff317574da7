package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/module/meeting/seq"
	"github.com/pwhiting/Translate/module/meeting/store"
	"github.com/pwhiting/Translate/module/translate"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/speech"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*bus.Message
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, m *bus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

type fixture struct {
	srv    *Server
	router *gin.Engine
	alloc  *seq.Allocator
	log    delivery.Log
	pub    *recordingPublisher
}

func newFixture(t *testing.T, rec speech.Recognizer) *fixture {
	t.Helper()
	alloc := seq.NewAllocator(seq.NewMemStore(), 5, time.Millisecond)
	log := delivery.NewMemLog()
	proto := delivery.NewProtocol(log, alloc, 10*time.Millisecond, 80*time.Millisecond)
	pub := &recordingPublisher{}
	srv := NewServer(store.NewMemStore(), alloc, proto, pub, rec, 0, nil)
	return &fixture{srv: srv, router: srv.Router(), alloc: alloc, log: log, pub: pub}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (f *fixture) join(t *testing.T, code, lang string) string {
	t.Helper()
	w := f.do(http.MethodPost, "/join", gin.H{"meetingCode": code, "targetLanguage": lang})
	if w.Code != http.StatusOK {
		t.Fatalf("join %s/%s: %d %s", code, lang, w.Code, w.Body.String())
	}
	return decode[map[string]any](t, w)["clientId"].(string)
}

func TestJoin(t *testing.T) {
	f := newFixture(t, speech.Text{})

	id1 := f.join(t, "TEST01", "es")
	id2 := f.join(t, "TEST01", "fr")
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("client ids %q %q", id1, id2)
	}
	langs, err := f.srv.Meetings.TargetLanguages(context.Background(), "TEST01")
	if err != nil || len(langs) != 2 {
		t.Fatalf("languages = %v, %v", langs, err)
	}
	if cur, _ := f.alloc.Current(context.Background(), "TEST01"); cur != 0 {
		t.Fatalf("new meeting counter = %d", cur)
	}

	w := f.do(http.MethodPost, "/join", gin.H{"meetingCode": "TEST01", "targetLanguage": "de", "clientId": "fixed"})
	if got := decode[map[string]any](t, w)["clientId"]; got != "fixed" {
		t.Fatalf("supplied client id not kept: %v", got)
	}
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t, speech.Text{})

	w := f.do(http.MethodPost, "/join", gin.H{"meetingCode": "TEST01"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"error"`) {
		t.Fatalf("missing language: %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPost, "/join", gin.H{"meetingCode": "TEST01", "targetLanguage": "es", "clientId": "a.b"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("dotted clientId: %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodGet, "/join", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /join: %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/join", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
}

func audioBody(code, data string) gin.H {
	return gin.H{"meetingCode": code, "sourceLanguage": "en-US", "audioData": data, "clientId": "speaker"}
}

func TestProcessAudioPublishesFragments(t *testing.T) {
	rec := speech.Static{Results: []speech.Result{
		{Transcript: "how are you", Confidence: 0.8, Offset: 1500 * time.Millisecond},
		{Transcript: "hello", Confidence: 0.9, Offset: 200 * time.Millisecond},
	}}
	f := newFixture(t, rec)
	received := time.Unix(1000, 0)
	f.srv.now = func() time.Time { return received }
	f.join(t, "TEST01", "es")

	w := f.do(http.MethodPost, "/process-audio", audioBody("TEST01", base64.StdEncoding.EncodeToString([]byte{1, 2, 3})))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]any](t, w)
	if resp["transcription"] != "hello how are you" || resp["messageId"] == "" {
		t.Fatalf("resp = %v", resp)
	}
	if len(f.pub.msgs) != 2 {
		t.Fatalf("published %d", len(f.pub.msgs))
	}
	first, err := translate.DecodeFragment(f.pub.msgs[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := translate.DecodeFragment(f.pub.msgs[1].Data)
	if first.Text != "hello" || second.Text != "how are you" {
		t.Fatalf("order = %q, %q", first.Text, second.Text)
	}
	if d := first.Timestamp.Sub(received); d < 199*time.Millisecond || d > 201*time.Millisecond {
		t.Fatalf("first offset = %v", d)
	}
	if f.pub.msgs[0].Key != "TEST01" || f.pub.msgs[0].ID != first.MessageID {
		t.Fatalf("message envelope = %+v", f.pub.msgs[0])
	}
}

func TestProcessAudioErrors(t *testing.T) {
	f := newFixture(t, speech.Static{Err: errors.New("quota exceeded")})
	f.join(t, "TEST01", "es")
	good := base64.StdEncoding.EncodeToString([]byte("x"))

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing client", gin.H{"meetingCode": "TEST01", "sourceLanguage": "en", "audioData": good}, http.StatusBadRequest},
		{"bad base64", audioBody("TEST01", "!!not-base64!!"), http.StatusBadRequest},
		{"unknown meeting", audioBody("NOPE", good), http.StatusNotFound},
		{"recognizer down", audioBody("TEST01", good), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/process-audio", tc.body)
			if w.Code != tc.want {
				t.Fatalf("status %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Fatalf("body = %s", w.Body.String())
			}
		})
	}
	if len(f.pub.msgs) != 0 {
		t.Fatalf("published on failure: %d", len(f.pub.msgs))
	}
}

func (f *fixture) appendRec(t *testing.T, code, lang string, seq int64, text string) {
	t.Helper()
	err := f.log.Append(context.Background(), &model.TranslationRecord{
		MeetingCode: code, Sequence: seq, SourceLanguage: "en", TargetLanguage: lang,
		TranslatedText: text, IsComplete: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func fetch(t *testing.T, f *fixture, query string) TranslationItem {
	t.Helper()
	w := f.do(http.MethodGet, "/translations?"+query, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /translations?%s: %d %s", query, w.Code, w.Body.String())
	}
	resp := decode[translationsResp](t, w)
	if !resp.Success || len(resp.Translations) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	return resp.Translations[0]
}

func TestTranslationsProtocol(t *testing.T) {
	f := newFixture(t, speech.Text{})
	f.join(t, "TEST01", "es")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.alloc.Allocate(ctx, "TEST01"); err != nil {
			t.Fatal(err)
		}
	}
	f.appendRec(t, "TEST01", "es", 1, "viejo")

	reg := fetch(t, f, "meetingCode=TEST01&targetLanguage=es&clientId=c1")
	if reg.ID != registrationID || !reg.Empty || reg.Sequence != 3 || reg.TranslatedText != "" {
		t.Fatalf("registration = %+v", reg)
	}

	f.appendRec(t, "TEST01", "es", 5, "cómo estás")
	f.appendRec(t, "TEST01", "es", 4, "hola")
	got := fetch(t, f, "meetingCode=TEST01&targetLanguage=es&sequence=3")
	if got.Empty || got.Sequence != 5 || got.TranslatedText != "hola cómo estás" || got.ID != "concat_5" {
		t.Fatalf("fetch = %+v", got)
	}

	again := fetch(t, f, "meetingCode=TEST01&targetLanguage=es&sequence=3")
	if again.Sequence != 5 {
		t.Fatalf("re-fetch consumed records: %+v", again)
	}

	idle := fetch(t, f, "meetingCode=TEST01&targetLanguage=es&sequence=5")
	if !idle.Empty || idle.Sequence != 5 || idle.ID != "empty_5" {
		t.Fatalf("idle = %+v", idle)
	}
}

func TestTranslationsUnknownMeetingRegistersAtZero(t *testing.T) {
	f := newFixture(t, speech.Text{})
	reg := fetch(t, f, "meetingCode=GHOST&targetLanguage=es")
	if reg.Sequence != 0 || !reg.Empty {
		t.Fatalf("registration = %+v", reg)
	}
}

func TestTranslationsErrors(t *testing.T) {
	f := newFixture(t, speech.Text{})
	for _, q := range []string{"targetLanguage=es", "meetingCode=M&targetLanguage=es&sequence=abc", "meetingCode=M&targetLanguage=es&sequence=-1"} {
		w := f.do(http.MethodGet, "/translations?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: %d", q, w.Code)
		}
	}
	if w := f.do(http.MethodPost, "/translations", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /translations: %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, speech.Text{})
	w := f.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/metrics", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}

	r := NewHealthRouter(func(ctx context.Context) error { return errors.New("mongo down") })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy = %d", rec.Code)
	}
}

func TestTranslationsWebsocket(t *testing.T) {
	f := newFixture(t, speech.Text{})
	f.join(t, "TEST01", "fr")
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/translations/ws?meetingCode=TEST01&targetLanguage=fr&clientId=c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var reg TranslationItem
	if err := conn.ReadJSON(&reg); err != nil {
		t.Fatal(err)
	}
	if reg.ID != registrationID || reg.Sequence != 0 {
		t.Fatalf("registration = %+v", reg)
	}

	f.appendRec(t, "TEST01", "fr", 1, "bonjour")
	var got TranslationItem
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.TranslatedText != "bonjour" || got.Sequence != 1 {
		t.Fatalf("frame = %+v", got)
	}
}
