package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pwhiting/Translate/data/database/mgo/mongoutil"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/kafka"
	"github.com/pwhiting/Translate/service/natsx"
	"github.com/pwhiting/Translate/service/speech"
	"github.com/pwhiting/Translate/service/storage/pg"
	"github.com/pwhiting/Translate/service/storage/redis"
	"github.com/pwhiting/Translate/service/translator"
	"github.com/pwhiting/Translate/tools"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	NodeTypeAPI    = "api"    // join / process-audio / translations
	NodeTypeWorker = "worker" // bus consumer, buffer, fanout
	NodeTypeAll    = "all"    // both in one process
)

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNats     = "nats"
	BackendKafka    = "kafka"
)

type AppConfig struct {
	Node       NodeConfig        `yaml:"node" toml:"node"`
	HTTP       HTTPConfig        `yaml:"http" toml:"http"`
	Store      StoreConfig       `yaml:"store" toml:"store"`
	Mongo      mongoutil.Config  `yaml:"mongo" toml:"mongo"`
	Redis      redis.Config      `yaml:"redis" toml:"redis"`
	Postgres   pg.Config         `yaml:"postgres" toml:"postgres"`
	Bus        BusConfig         `yaml:"bus" toml:"bus"`
	Nats       natsx.NatsxConfig `yaml:"nats" toml:"nats"`
	Kafka      kafka.Config      `yaml:"kafka" toml:"kafka"`
	Buffer     BufferConfig      `yaml:"buffer" toml:"buffer"`
	Seq        SeqConfig         `yaml:"seq" toml:"seq"`
	Fanout     FanoutConfig      `yaml:"fanout" toml:"fanout"`
	Delivery   DeliveryConfig    `yaml:"delivery" toml:"delivery"`
	Speech     speech.Config     `yaml:"speech" toml:"speech"`
	Translator translator.Config `yaml:"translator" toml:"translator"`
	Log        LogConfig         `yaml:"log" toml:"log"`
	Idem       IdemConfig        `yaml:"idem" toml:"idem"`
}

type NodeConfig struct {
	Type string `yaml:"type" toml:"type"`
	ID   int64  `yaml:"id" toml:"id"` // snowflake node id, 0..1023
}

type HTTPConfig struct {
	Addr       string `yaml:"addr" toml:"addr"`
	WorkerAddr string `yaml:"workerAddr" toml:"worker_addr"` // health + metrics of a worker node
}

// StoreConfig picks a backend per concern; Seq and Delivery default to Backend.
type StoreConfig struct {
	Backend  string `yaml:"backend" toml:"backend"`
	Seq      string `yaml:"seq" toml:"seq"`
	Delivery string `yaml:"delivery" toml:"delivery"`
}

type BusConfig struct {
	Backend  string         `yaml:"backend" toml:"backend"`
	Capacity int            `yaml:"capacity" toml:"capacity"` // in-process bus only
	Nats     bus.NatsConfig `yaml:"natsStream" toml:"nats_stream"`
}

type BufferConfig struct {
	Window        time.Duration `yaml:"window" toml:"window"`
	DrainInterval time.Duration `yaml:"drainInterval" toml:"drain_interval"`
}

type SeqConfig struct {
	MaxRetry int           `yaml:"maxRetry" toml:"max_retry"`
	Backoff  time.Duration `yaml:"backoff" toml:"backoff"`
}

type FanoutConfig struct {
	CallTimeout    time.Duration `yaml:"callTimeout" toml:"call_timeout"`
	MaxConcurrency int           `yaml:"maxConcurrency" toml:"max_concurrency"`
}

type DeliveryConfig struct {
	PollInterval time.Duration `yaml:"pollInterval" toml:"poll_interval"`
	WaitTimeout  time.Duration `yaml:"waitTimeout" toml:"wait_timeout"`
	RedisTTL     time.Duration `yaml:"redisTtl" toml:"redis_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

type IdemConfig struct {
	Backend string        `yaml:"backend" toml:"backend"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
}

// Default runs everything in memory on :8080, which is enough for a single
// process demo.
func Default() *AppConfig {
	return &AppConfig{
		Node:     NodeConfig{Type: NodeTypeAll, ID: 1},
		HTTP:     HTTPConfig{Addr: ":8080", WorkerAddr: ":8081"},
		Store:    StoreConfig{Backend: BackendMemory},
		Mongo:    mongoutil.Config{Database: "translate"},
		Redis:    redis.Config{Addr: "127.0.0.1:6379", Prefix: "translate"},
		Bus:      BusConfig{Backend: BackendMemory, Capacity: 1024},
		Buffer:   BufferConfig{Window: time.Second, DrainInterval: 100 * time.Millisecond},
		Seq:      SeqConfig{MaxRetry: 5, Backoff: 10 * time.Millisecond},
		Fanout:   FanoutConfig{CallTimeout: 10 * time.Second, MaxConcurrency: 8},
		Delivery: DeliveryConfig{PollInterval: time.Second, WaitTimeout: 15 * time.Second, RedisTTL: 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
		Idem:     IdemConfig{Backend: BackendMemory, TTL: 10 * time.Minute},
	}
}

// Load reads path (YAML or TOML by extension) over the defaults, applies
// TRANSLATE_* environment overrides and validates. An empty path skips the file.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *AppConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return errs.WrapMsg(err, "parse toml config", "path", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return errs.WrapMsg(err, "read config", "path", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errs.WrapMsg(err, "parse yaml config", "path", path)
		}
	default:
		return errs.ErrArgs.WrapMsg("config must be .yaml, .yml or .toml", "path", path)
	}
	return nil
}

func applyEnv(c *AppConfig) {
	c.Node.Type = tools.GetEnv("TRANSLATE_NODE_TYPE", c.Node.Type)
	c.Node.ID = int64(tools.GetEnvInt("TRANSLATE_NODE_ID", int(c.Node.ID)))
	c.HTTP.Addr = tools.GetEnv("TRANSLATE_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.WorkerAddr = tools.GetEnv("TRANSLATE_HTTP_WORKER_ADDR", c.HTTP.WorkerAddr)

	c.Store.Backend = tools.GetEnv("TRANSLATE_STORE_BACKEND", c.Store.Backend)
	c.Store.Seq = tools.GetEnv("TRANSLATE_STORE_SEQ", c.Store.Seq)
	c.Store.Delivery = tools.GetEnv("TRANSLATE_STORE_DELIVERY", c.Store.Delivery)

	c.Mongo.Uri = tools.GetEnv("TRANSLATE_MONGO_URI", c.Mongo.Uri)
	c.Mongo.Database = tools.GetEnv("TRANSLATE_MONGO_DATABASE", c.Mongo.Database)
	c.Mongo.Username = tools.GetEnv("TRANSLATE_MONGO_USERNAME", c.Mongo.Username)
	c.Mongo.Password = tools.GetEnv("TRANSLATE_MONGO_PASSWORD", c.Mongo.Password)

	c.Redis.Addr = tools.GetEnv("TRANSLATE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = tools.GetEnv("TRANSLATE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = tools.GetEnvInt("TRANSLATE_REDIS_DB", c.Redis.DB)

	c.Postgres.DSN = tools.GetEnv("TRANSLATE_POSTGRES_DSN", c.Postgres.DSN)

	c.Bus.Backend = tools.GetEnv("TRANSLATE_BUS_BACKEND", c.Bus.Backend)
	c.Nats.Servers = tools.GetEnvList("TRANSLATE_NATS_SERVERS", c.Nats.Servers)
	c.Nats.User = tools.GetEnv("TRANSLATE_NATS_USER", c.Nats.User)
	c.Nats.Password = tools.GetEnv("TRANSLATE_NATS_PASSWORD", c.Nats.Password)
	c.Kafka.Brokers = tools.GetEnvList("TRANSLATE_KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = tools.GetEnv("TRANSLATE_KAFKA_TOPIC", c.Kafka.Topic)

	c.Buffer.Window = tools.GetEnvDuration("TRANSLATE_BUFFER_WINDOW", c.Buffer.Window)
	c.Buffer.DrainInterval = tools.GetEnvDuration("TRANSLATE_BUFFER_DRAIN_INTERVAL", c.Buffer.DrainInterval)
	c.Fanout.CallTimeout = tools.GetEnvDuration("TRANSLATE_FANOUT_CALL_TIMEOUT", c.Fanout.CallTimeout)
	c.Delivery.PollInterval = tools.GetEnvDuration("TRANSLATE_DELIVERY_POLL_INTERVAL", c.Delivery.PollInterval)
	c.Delivery.WaitTimeout = tools.GetEnvDuration("TRANSLATE_DELIVERY_WAIT_TIMEOUT", c.Delivery.WaitTimeout)

	c.Speech.Provider = tools.GetEnv("TRANSLATE_SPEECH_PROVIDER", c.Speech.Provider)
	c.Speech.APIKey = tools.GetEnv("TRANSLATE_SPEECH_API_KEY", c.Speech.APIKey)
	c.Translator.Provider = tools.GetEnv("TRANSLATE_TRANSLATOR_PROVIDER", c.Translator.Provider)
	c.Translator.APIKey = tools.GetEnv("TRANSLATE_TRANSLATOR_API_KEY", c.Translator.APIKey)
	c.Translator.BaseURL = tools.GetEnv("TRANSLATE_TRANSLATOR_BASE_URL", c.Translator.BaseURL)
	c.Translator.Model = tools.GetEnv("TRANSLATE_TRANSLATOR_MODEL", c.Translator.Model)

	c.Log.Level = tools.GetEnv("TRANSLATE_LOG_LEVEL", c.Log.Level)
	c.Idem.Backend = tools.GetEnv("TRANSLATE_IDEM_BACKEND", c.Idem.Backend)
	c.Idem.TTL = tools.GetEnvDuration("TRANSLATE_IDEM_TTL", c.Idem.TTL)
}

// Validate normalizes backend names, fills in derived defaults and checks
// that every selected backend has what it needs to connect.
func (c *AppConfig) Validate() error {
	switch c.Node.Type {
	case NodeTypeAPI, NodeTypeWorker, NodeTypeAll:
	case "":
		c.Node.Type = NodeTypeAll
	default:
		return errs.ErrArgs.WrapMsg("unknown node type", "type", c.Node.Type)
	}
	if c.Node.ID < 0 || c.Node.ID > 1023 {
		return errs.ErrArgs.WrapMsg("node id out of range", "id", c.Node.ID)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}

	c.Store.Backend = lower(c.Store.Backend, BackendMemory)
	c.Store.Seq = lower(c.Store.Seq, c.Store.Backend)
	c.Store.Delivery = lower(c.Store.Delivery, c.Store.Backend)
	c.Bus.Backend = lower(c.Bus.Backend, BackendMemory)
	c.Idem.Backend = lower(c.Idem.Backend, BackendMemory)

	if err := oneOf("store.backend", c.Store.Backend, BackendMemory, BackendMongo, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("store.seq", c.Store.Seq, BackendMemory, BackendMongo, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("store.delivery", c.Store.Delivery, BackendMemory, BackendMongo, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("bus.backend", c.Bus.Backend, BackendMemory, BackendNats, BackendKafka); err != nil {
		return err
	}
	if err := oneOf("idem.backend", c.Idem.Backend, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if c.Node.Type != NodeTypeAll {
		// split nodes share meetings, counters and records only through external stores
		shared := map[string]string{
			"bus.backend":    c.Bus.Backend,
			"store.backend":  c.Store.Backend,
			"store.seq":      c.Store.Seq,
			"store.delivery": c.Store.Delivery,
		}
		if c.Node.Type == NodeTypeWorker {
			shared["idem.backend"] = c.Idem.Backend
		}
		for field, backend := range shared {
			if backend == BackendMemory {
				return errs.ErrArgs.WrapMsg("memory backend needs api and worker in one process",
					"field", field, "node", c.Node.Type)
			}
		}
	}

	if c.uses(BackendMongo) {
		if err := c.Mongo.ValidateAndSetDefaults(); err != nil {
			return errs.WrapMsg(err, "mongo config")
		}
	}
	if c.uses(BackendRedis) {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}
	if c.uses(BackendPostgres) {
		if err := c.Postgres.Validate(); err != nil {
			return err
		}
	}
	switch c.Bus.Backend {
	case BackendNats:
		if len(c.Nats.Servers) == 0 {
			return errs.ErrArgs.WrapMsg("nats servers missing")
		}
	case BackendKafka:
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	}

	if c.Buffer.Window <= 0 {
		c.Buffer.Window = time.Second
	}
	if c.Buffer.DrainInterval <= 0 {
		c.Buffer.DrainInterval = 100 * time.Millisecond
	}
	if c.Delivery.PollInterval <= 0 {
		c.Delivery.PollInterval = time.Second
	}
	if c.Delivery.WaitTimeout < c.Delivery.PollInterval {
		return errs.ErrArgs.WrapMsg("delivery waitTimeout shorter than pollInterval",
			"wait", c.Delivery.WaitTimeout, "poll", c.Delivery.PollInterval)
	}
	if err := c.Speech.Validate(); err != nil {
		return err
	}
	if err := c.Translator.Validate(); err != nil {
		return err
	}
	return nil
}

// uses reports whether any concern is configured on backend.
func (c *AppConfig) uses(backend string) bool {
	return c.Store.Backend == backend || c.Store.Seq == backend ||
		c.Store.Delivery == backend || c.Idem.Backend == backend
}

func (c *AppConfig) RunsAPI() bool    { return c.Node.Type == NodeTypeAPI || c.Node.Type == NodeTypeAll }
func (c *AppConfig) RunsWorker() bool { return c.Node.Type == NodeTypeWorker || c.Node.Type == NodeTypeAll }

func lower(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return errs.ErrArgs.WrapMsg("unsupported backend", "field", field, "value", v)
}
