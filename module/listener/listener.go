package listener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL        string
	MeetingCode    string
	Language       string
	ClientID       string        // reused when set, otherwise assigned by /join
	Interval       time.Duration // minimum spacing between requests, default 1s
	RequestTimeout time.Duration // default 20s, above the server's long-poll wait
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *Config) defaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 20 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Item mirrors one element of the /translations response.
type Item struct {
	ID             string `json:"id"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Sequence       int64  `json:"sequence"`
	IsComplete     bool   `json:"isComplete"`
	Empty          bool   `json:"empty"`
}

type translationsResp struct {
	Success      bool   `json:"success"`
	Translations []Item `json:"translations"`
	Error        string `json:"error"`
}

// StatusError is a non-2xx answer. 4xx ones stop the listener.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Msg)
}

func (e *StatusError) Client() bool { return e.Status >= 400 && e.Status < 500 }

// Listener follows one meeting language: join, register, then fetch after
// its cursor until the context ends.
type Listener struct {
	cfg     Config
	http    *resty.Client
	out     io.Writer
	limiter *rate.Limiter
	now     func() time.Time

	clientID   string
	cursor     int64
	registered bool
}

func New(cfg Config, out io.Writer) *Listener {
	cfg.defaults()
	return &Listener{
		cfg:      cfg,
		http:     resty.New().SetTimeout(cfg.RequestTimeout).SetBaseURL(cfg.BaseURL),
		out:      out,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
		now:      time.Now,
		clientID: cfg.ClientID,
	}
}

func (l *Listener) ClientID() string { return l.clientID }
func (l *Listener) Cursor() int64    { return l.cursor }

func (l *Listener) Join(ctx context.Context) error {
	var resp struct {
		Success  bool   `json:"success"`
		ClientID string `json:"clientId"`
		Error    string `json:"error"`
	}
	rr, err := l.http.R().SetContext(ctx).
		ForceContentType("application/json").
		SetBody(map[string]string{
			"meetingCode":    l.cfg.MeetingCode,
			"targetLanguage": l.cfg.Language,
			"clientId":       l.clientID,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post("/join")
	if err != nil {
		return errs.ErrTransport.WrapMsg("join failed", "err", err)
	}
	if rr.IsError() || !resp.Success {
		return &StatusError{Status: rr.StatusCode(), Msg: resp.Error}
	}
	l.clientID = resp.ClientID
	return nil
}

// Step performs one register or fetch and advances the cursor.
func (l *Listener) Step(ctx context.Context) (*Item, error) {
	var resp translationsResp
	req := l.http.R().SetContext(ctx).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{
			"meetingCode":    l.cfg.MeetingCode,
			"targetLanguage": l.cfg.Language,
			"clientId":       l.clientID,
		}).
		SetResult(&resp).
		SetError(&resp)
	if l.registered {
		req.SetQueryParam("sequence", strconv.FormatInt(l.cursor, 10))
	}
	rr, err := req.Get("/translations")
	if err != nil {
		return nil, err
	}
	if rr.IsError() {
		return nil, &StatusError{Status: rr.StatusCode(), Msg: resp.Error}
	}
	if !resp.Success || len(resp.Translations) == 0 {
		return nil, &StatusError{Status: http.StatusBadGateway, Msg: "malformed translations response"}
	}
	item := resp.Translations[0]
	if item.Sequence > l.cursor || !l.registered {
		l.cursor = item.Sequence
	}
	l.registered = true
	return &item, nil
}

// Run joins and then loops until ctx is done. Transport failures and 5xx are
// retried with exponential backoff; a 4xx ends the loop with its error.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.retry(ctx, func() error { return l.Join(ctx) }); err != nil {
		return err
	}
	logger.Info("listening",
		zap.String("meeting", l.cfg.MeetingCode),
		zap.String("language", l.cfg.Language),
		zap.String("client", l.clientID))

	for {
		if err := l.limiter.Wait(ctx); err != nil {
			// Wait only fails when ctx ends before the next token
			<-ctx.Done()
			return ctx.Err()
		}
		var item *Item
		err := l.retry(ctx, func() error {
			var err error
			item, err = l.Step(ctx)
			return err
		})
		if err != nil {
			return err
		}
		l.print(item)
	}
}

func (l *Listener) print(item *Item) {
	text := strings.TrimSpace(item.TranslatedText)
	if item.Empty || text == "" {
		return
	}
	fmt.Fprintf(l.out, "[%s] %s\n", l.now().Format("15:04:05"), text)
}

func (l *Listener) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.InitialBackoff
	b.MaxInterval = l.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if se, ok := err.(*StatusError); ok && se.Client() {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(wrapped, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Warn("request failed, retrying", zap.Error(err), zap.Duration("in", d))
	})
}
