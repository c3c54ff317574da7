package pg

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN      string `yaml:"dsn" toml:"dsn"`
	MaxConns int32  `yaml:"maxConns" toml:"max_conns"`
}

func (c *Config) Validate() error {
	if c.DSN == "" {
		return errs.ErrArgs.WrapMsg("postgres dsn is required")
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	return nil
}

// NewPool opens a pgx pool and pings it.
func NewPool(ctx context.Context, c Config) (*pgxpool.Pool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse postgres dsn")
	}
	pcfg.MaxConns = c.MaxConns
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "open postgres pool")
	}

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping failed")
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	code             TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'active',
	target_languages TEXT[] NOT NULL DEFAULT '{}',
	participants     JSONB NOT NULL DEFAULT '{}'::jsonb,
	create_time      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_activity    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS seq_meeting (
	meeting_code TEXT PRIMARY KEY,
	value        BIGINT NOT NULL DEFAULT 0,
	create_time  TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS translations (
	meeting_code    TEXT NOT NULL,
	target_language TEXT NOT NULL,
	sequence        BIGINT NOT NULL,
	source_language TEXT NOT NULL,
	translated_text TEXT NOT NULL,
	is_complete     BOOLEAN NOT NULL DEFAULT true,
	capture_time    TIMESTAMPTZ NOT NULL,
	create_time     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (meeting_code, target_language, sequence)
);
`

// EnsureSchema creates the tables used by the Postgres backends.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errs.WrapMsg(err, "ensure postgres schema")
	}
	return nil
}
