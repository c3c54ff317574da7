package config

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/module/meeting/seq"
	"github.com/pwhiting/Translate/module/meeting/store"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/idem"
	"github.com/pwhiting/Translate/service/metrics"
	mgoSrv "github.com/pwhiting/Translate/service/mgo"
	"github.com/pwhiting/Translate/service/speech"
	"github.com/pwhiting/Translate/service/storage/pg"
	redisSrv "github.com/pwhiting/Translate/service/storage/redis"
	"github.com/pwhiting/Translate/service/translator"
	"github.com/pwhiting/Translate/tools/errs"
	"github.com/pwhiting/Translate/tools/ids"
	"github.com/pwhiting/Translate/tools/safe"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime holds every collaborator a node needs, built once from AppConfig.
type Runtime struct {
	Cfg *AppConfig

	Mongo *mgoSrv.MongoManager
	Redis *redis.Client
	PG    *pgxpool.Pool

	Meetings   store.Store
	Seq        *seq.Allocator
	Log        delivery.Log
	Protocol   *delivery.Protocol
	Bus        bus.Bus
	Idem       idem.Store
	Recognizer speech.Recognizer
	Translator translator.Translator

	closers []func(ctx context.Context) error
}

// Boot connects the configured backends and builds the components on top.
// ctx bounds the background health watchers as well as the connects.
func Boot(ctx context.Context, cfg *AppConfig) (*Runtime, error) {
	logger.SetLevel(cfg.Log.Level)
	ids.SetNodeID(cfg.Node.ID)

	rt := &Runtime{Cfg: cfg}
	if err := rt.connect(ctx); err != nil {
		rt.Close(context.Background())
		return nil, err
	}
	if err := rt.build(); err != nil {
		rt.Close(context.Background())
		return nil, err
	}
	logger.Info("runtime ready",
		zap.String("node", cfg.Node.Type),
		zap.String("store", cfg.Store.Backend),
		zap.String("seq", cfg.Store.Seq),
		zap.String("delivery", cfg.Store.Delivery),
		zap.String("bus", cfg.Bus.Backend))
	return rt, nil
}

func (rt *Runtime) connect(ctx context.Context) error {
	cfg := rt.Cfg
	if cfg.uses(BackendMongo) {
		m, err := mgoSrv.Connect(ctx, &cfg.Mongo)
		if err != nil {
			return err
		}
		rt.Mongo = m
		rt.closers = append(rt.closers, m.Close)
		if err := mgoSrv.EnsureIndexes(ctx, m.GetDB()); err != nil {
			return err
		}
		safe.Go("mongo-watch", func() { m.Watch(ctx, 10*time.Second) })
	}
	if cfg.uses(BackendRedis) {
		rdb, err := redisSrv.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		rt.Redis = rdb
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })
	}
	if cfg.uses(BackendPostgres) {
		pool, err := pg.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		rt.PG = pool
		rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) build() error {
	cfg := rt.Cfg

	switch cfg.Store.Backend {
	case BackendMongo:
		rt.Meetings = store.NewMongoStore(rt.Mongo.GetDB())
	case BackendPostgres:
		rt.Meetings = store.NewPgStore(rt.PG)
	default:
		rt.Meetings = store.NewMemStore()
	}

	var counters seq.Store
	switch cfg.Store.Seq {
	case BackendMongo:
		counters = seq.NewMongoStore(rt.Mongo.GetDB())
	case BackendRedis:
		counters = seq.NewRedisStore(rt.Redis, cfg.Redis.Prefix)
	case BackendPostgres:
		counters = seq.NewPgStore(rt.PG)
	default:
		counters = seq.NewMemStore()
	}
	rt.Seq = seq.NewAllocator(counters, cfg.Seq.MaxRetry, cfg.Seq.Backoff)

	switch cfg.Store.Delivery {
	case BackendMongo:
		rt.Log = delivery.NewMongoLog(rt.Mongo.GetDB())
	case BackendRedis:
		rt.Log = delivery.NewRedisLog(rt.Redis, cfg.Redis.Prefix, cfg.Delivery.RedisTTL)
	case BackendPostgres:
		rt.Log = delivery.NewPgLog(rt.PG)
	default:
		rt.Log = delivery.NewMemLog()
	}
	rt.Protocol = delivery.NewProtocol(rt.Log, rt.Seq, cfg.Delivery.PollInterval, cfg.Delivery.WaitTimeout)
	rt.Protocol.OnPoll = func(_ string, found int) { metrics.ObservePoll(found) }

	switch cfg.Idem.Backend {
	case BackendRedis:
		rt.Idem = idem.NewRedisIdem(rt.Redis, cfg.Redis.Prefix, cfg.Idem.TTL)
	default:
		rt.Idem = idem.NewMemIdem(cfg.Idem.TTL)
	}

	var err error
	switch cfg.Bus.Backend {
	case BackendNats:
		rt.Bus, err = bus.NewNatsBus(cfg.Nats, cfg.Bus.Nats)
	case BackendKafka:
		rt.Bus, err = bus.NewKafkaBus(&cfg.Kafka)
	default:
		rt.Bus = bus.NewMemBus(cfg.Bus.Capacity)
	}
	if err != nil {
		return errs.ErrTransport.WrapMsg("bus connect failed", "backend", cfg.Bus.Backend, "err", err)
	}
	b := rt.Bus
	rt.closers = append(rt.closers, func(context.Context) error { return b.Close() })

	if rt.Recognizer, err = speech.New(cfg.Speech); err != nil {
		return err
	}
	if rt.Translator, err = translator.New(cfg.Translator); err != nil {
		return err
	}
	return nil
}

// Check reports the first unhealthy backend, nil when all are fine.
func (rt *Runtime) Check(ctx context.Context) error {
	if rt.Mongo != nil && !rt.Mongo.Healthy() {
		return errs.ErrTransport.WrapMsg("mongo unhealthy", "err", rt.Mongo.Err())
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return errs.ErrTransport.WrapMsg("redis unhealthy", "err", err)
		}
	}
	if rt.PG != nil {
		if err := rt.PG.Ping(ctx); err != nil {
			return errs.ErrTransport.WrapMsg("postgres unhealthy", "err", err)
		}
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (rt *Runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
	logger.Sync()
}
