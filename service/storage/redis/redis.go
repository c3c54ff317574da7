package redis

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	PoolSize int    `yaml:"poolSize" toml:"pool_size"`
	Prefix   string `yaml:"prefix" toml:"prefix"` // key namespace, default "translate"
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errs.ErrArgs.WrapMsg("redis addr is required")
	}
	if c.PoolSize < 0 {
		return errs.ErrArgs.WrapMsg("redis poolSize must be >= 0", "poolSize", c.PoolSize)
	}
	if c.Prefix == "" {
		c.Prefix = "translate"
	}
	return nil
}

// NewClient builds a client and pings it once.
func NewClient(ctx context.Context, c Config) (*redis.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "redis ping failed", "addr", c.Addr)
	}
	return rdb, nil
}
