package seq

import (
	"context"
	"errors"

	"github.com/pwhiting/Translate/module/meeting/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type pgStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgStore(pool *pgxpool.Pool) Store {
	sm := model.SeqMeeting{}
	return &pgStore{pool: pool, table: sm.GetTableName()}
}

// Incr runs the read-increment-write as one upsert inside a serializable
// transaction; serialization failures come back as errors and are retried by
// the Allocator.
func (s *pgStore) Incr(ctx context.Context, meetingCode string) (int64, error) {
	query, args, err := psql.Insert(s.table).
		Columns(model.SeqMeetingFieldMeetingCode, model.SeqMeetingFieldValue).
		Values(meetingCode, 1).
		Suffix("ON CONFLICT (" + model.SeqMeetingFieldMeetingCode + ") DO UPDATE SET " +
			model.SeqMeetingFieldValue + " = " + s.table + "." + model.SeqMeetingFieldValue + " + 1, " +
			model.SeqMeetingFieldUpdateTime + " = now() RETURNING " + model.SeqMeetingFieldValue).
		ToSql()
	if err != nil {
		return 0, err
	}

	var v int64
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&v)
	})
	return v, err
}

func (s *pgStore) Load(ctx context.Context, meetingCode string) (int64, error) {
	query, args, err := psql.Select(model.SeqMeetingFieldValue).
		From(s.table).
		Where(sq.Eq{model.SeqMeetingFieldMeetingCode: meetingCode}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var v int64
	err = s.pool.QueryRow(ctx, query, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *pgStore) Ensure(ctx context.Context, meetingCode string) error {
	query, args, err := psql.Insert(s.table).
		Columns(model.SeqMeetingFieldMeetingCode, model.SeqMeetingFieldValue).
		Values(meetingCode, 0).
		Suffix("ON CONFLICT (" + model.SeqMeetingFieldMeetingCode + ") DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}
