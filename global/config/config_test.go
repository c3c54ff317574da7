package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Seq != BackendMemory || cfg.Store.Delivery != BackendMemory {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Buffer.Window != time.Second || cfg.Delivery.WaitTimeout != 15*time.Second {
		t.Errorf("timing defaults = %+v %+v", cfg.Buffer, cfg.Delivery)
	}
	if !cfg.RunsAPI() || !cfg.RunsWorker() {
		t.Error("default node should run both roles")
	}
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "app.yaml", `
node:
  type: all
  id: 7
http:
  addr: ":9000"
store:
  backend: memory
  seq: redis
redis:
  addr: "localhost:6380"
buffer:
  window: 1500ms
delivery:
  pollInterval: 500ms
  waitTimeout: 5s
translator:
  provider: echo
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.Node.ID != 7 {
		t.Errorf("http/node = %+v %+v", cfg.HTTP, cfg.Node)
	}
	if cfg.Store.Seq != BackendRedis || cfg.Store.Delivery != BackendMemory {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Redis.Addr != "localhost:6380" || cfg.Redis.Prefix != "translate" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Buffer.Window != 1500*time.Millisecond || cfg.Delivery.PollInterval != 500*time.Millisecond {
		t.Errorf("durations = %+v %+v", cfg.Buffer, cfg.Delivery)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "app.toml", `
[node]
type = "all"

[store]
backend = "postgres"

[postgres]
dsn = "postgres://localhost/translate"

[fanout]
call_timeout = "3s"
max_concurrency = 2
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Seq != BackendPostgres || cfg.Store.Delivery != BackendPostgres {
		t.Errorf("seq/delivery should follow backend: %+v", cfg.Store)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("postgres defaults not applied: %+v", cfg.Postgres)
	}
	if cfg.Fanout.CallTimeout != 3*time.Second || cfg.Fanout.MaxConcurrency != 2 {
		t.Errorf("fanout = %+v", cfg.Fanout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRANSLATE_HTTP_ADDR", ":7777")
	t.Setenv("TRANSLATE_BUFFER_WINDOW", "2s")
	t.Setenv("TRANSLATE_LOG_LEVEL", "debug")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":7777" || cfg.Buffer.Window != 2*time.Second || cfg.Log.Level != "debug" {
		t.Errorf("env not applied: %+v %+v %+v", cfg.HTTP, cfg.Buffer, cfg.Log)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"unknown store":       func(c *AppConfig) { c.Store.Backend = "cassandra" },
		"redis meeting store": func(c *AppConfig) { c.Store.Backend = BackendRedis },
		"unknown bus":         func(c *AppConfig) { c.Bus.Backend = "rabbit" },
		"memory bus split":    func(c *AppConfig) { c.Node.Type = NodeTypeWorker },
		"mongo without uri":   func(c *AppConfig) { c.Store.Seq = BackendMongo },
		"nats without server": func(c *AppConfig) { c.Bus.Backend = BackendNats },
		"bad node id":         func(c *AppConfig) { c.Node.ID = 5000 },
		"memory store on worker": func(c *AppConfig) {
			splitNode(c, NodeTypeWorker)
			c.Store.Backend = BackendMemory
		},
		"memory seq on worker": func(c *AppConfig) {
			splitNode(c, NodeTypeWorker)
			c.Store.Seq = BackendMemory
		},
		"memory delivery on api": func(c *AppConfig) {
			splitNode(c, NodeTypeAPI)
			c.Store.Delivery = BackendMemory
		},
		"memory idem on worker": func(c *AppConfig) {
			splitNode(c, NodeTypeWorker)
			c.Idem.Backend = BackendMemory
		},
		"wait below poll": func(c *AppConfig) { c.Delivery.WaitTimeout = time.Millisecond },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// splitNode turns c into a valid api or worker node backed by shared stores.
func splitNode(c *AppConfig, node string) {
	c.Node.Type = node
	c.Bus.Backend = BackendNats
	c.Nats.Servers = []string{"nats://127.0.0.1:4222"}
	c.Store.Backend = BackendPostgres
	c.Store.Seq = BackendRedis
	c.Store.Delivery = BackendPostgres
	c.Postgres.DSN = "postgres://localhost/translate"
	c.Idem.Backend = BackendRedis
}

func TestValidateSplitNodes(t *testing.T) {
	for _, node := range []string{NodeTypeAPI, NodeTypeWorker} {
		c := Default()
		splitNode(c, node)
		if err := c.Validate(); err != nil {
			t.Fatalf("%s node with shared stores: %v", node, err)
		}
	}

	// the api node never dedupes bus messages, so a local idem store is fine there
	c := Default()
	splitNode(c, NodeTypeAPI)
	c.Idem.Backend = BackendMemory
	if err := c.Validate(); err != nil {
		t.Fatalf("api node with memory idem: %v", err)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	p := writeFile(t, "app.json", `{}`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error")
	}
}

func TestBootMemory(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := Boot(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(context.Background())

	res, err := rt.Meetings.Join(ctx, "TEST01", "es", "")
	if err != nil || !res.Created {
		t.Fatalf("join = %+v, %v", res, err)
	}
	n, err := rt.Seq.Allocate(ctx, "TEST01")
	if err != nil || n != 1 {
		t.Fatalf("allocate = %d, %v", n, err)
	}
	b, err := rt.Protocol.Register(ctx, "TEST01", "es")
	if err != nil || b.Sequence != 1 || !b.Empty {
		t.Fatalf("register = %+v, %v", b, err)
	}
	if err := rt.Check(ctx); err != nil {
		t.Fatal(err)
	}
}
