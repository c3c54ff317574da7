package natsx

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/nats-io/nats.go"
)

// NatsxMode selects how a route delivers.
type NatsxMode int

const (
	Core          NatsxMode = iota // plain subjects, no persistence
	JetStreamPull                  // durable pull consumer with acks
)

// NatsxRoute binds a business name to a subject and delivery mode.
type NatsxRoute struct {
	Biz           string
	Subject       string
	Mode          NatsxMode
	Stream        string // JetStream stream holding Subject
	Durable       string // pull consumer name shared by every worker
	AckWait       time.Duration
	MaxAckPending int
	DupWindow     time.Duration // Nats-Msg-Id dedupe window on the stream
}

type NatsxConfig struct {
	Servers         []string      `yaml:"servers" toml:"servers"`
	Name            string        `yaml:"name" toml:"name"`
	User            string        `yaml:"user" toml:"user"`
	Password        string        `yaml:"password" toml:"password"`
	ReconnectWait   time.Duration `yaml:"reconnectWait" toml:"reconnect_wait"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
	PublishAsyncMax int           `yaml:"publishAsyncMax" toml:"publish_async_max"`
}

type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn
	js  nats.JetStreamContext

	mu     sync.RWMutex
	routes map[string]NatsxRoute
	subs   map[string]*nats.Subscription
}

func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.PublishAsyncMax == 0 {
		cfg.PublishAsyncMax = 4096
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "servers", cfg.Servers)
	}
	return &NatsxClient{
		cfg:    cfg,
		nc:     nc,
		routes: make(map[string]NatsxRoute),
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

func (c *NatsxClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for biz, sub := range c.subs {
		_ = sub.Drain()
		delete(c.subs, biz)
	}
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func (c *NatsxClient) ensureJS() error {
	if c.js != nil {
		return nil
	}
	js, err := c.nc.JetStream(nats.PublishAsyncMaxPending(c.cfg.PublishAsyncMax))
	if err != nil {
		return err
	}
	c.js = js
	return nil
}

// ensureStream creates the route's stream when absent. Duplicates sets the
// window in which a repeated Nats-Msg-Id is dropped by the server.
func (c *NatsxClient) ensureStream(r NatsxRoute) error {
	_, err := c.js.StreamInfo(r.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:       r.Stream,
		Subjects:   []string{r.Subject},
		Storage:    nats.FileStorage,
		Retention:  nats.WorkQueuePolicy,
		Duplicates: r.DupWindow,
		MaxAge:     24 * time.Hour,
	})
	return err
}

// RegisterRoute records r and, for JetStreamPull, makes sure its stream exists.
func (c *NatsxClient) RegisterRoute(r NatsxRoute) error {
	if r.Biz == "" || r.Subject == "" {
		return errs.ErrArgs.WrapMsg("invalid route", "biz", r.Biz, "subject", r.Subject)
	}
	if r.AckWait == 0 {
		r.AckWait = 30 * time.Second
	}
	if r.MaxAckPending == 0 {
		r.MaxAckPending = 1024
	}
	if r.DupWindow == 0 {
		r.DupWindow = 2 * time.Minute
	}
	if r.Mode == JetStreamPull {
		if r.Stream == "" || r.Durable == "" {
			return errs.ErrArgs.WrapMsg("JetStreamPull requires Stream and Durable", "biz", r.Biz)
		}
		if err := c.ensureJS(); err != nil {
			return errs.WrapMsg(err, "init jetstream")
		}
		if err := c.ensureStream(r); err != nil {
			return errs.WrapMsg(err, "ensure stream", "stream", r.Stream)
		}
	}
	c.mu.Lock()
	c.routes[r.Biz] = r
	c.mu.Unlock()
	return nil
}

func (c *NatsxClient) route(biz string) (NatsxRoute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[biz]
	return r, ok
}
