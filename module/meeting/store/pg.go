package store

import (
	"context"
	"errors"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var meetingColumns = []string{
	model.MeetingFieldCode,
	model.MeetingFieldStatus,
	model.MeetingFieldTargetLanguages,
	model.MeetingFieldParticipants,
	model.MeetingFieldCreateTime,
	model.MeetingFieldLastActivity,
}

type pgStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgStore(pool *pgxpool.Pool) Store {
	m := model.Meeting{}
	return &pgStore{pool: pool, table: m.GetTableName()}
}

// Join upserts in one statement. xmax = 0 only holds for a freshly inserted row.
func (s *pgStore) Join(ctx context.Context, code, language, clientID string) (*model.JoinResult, error) {
	code, language, clientID, err := prepareJoin(code, language, clientID)
	if err != nil {
		return nil, err
	}
	t := s.table
	query, args, err := psql.Insert(t).
		Columns(model.MeetingFieldCode, model.MeetingFieldStatus, model.MeetingFieldTargetLanguages, model.MeetingFieldParticipants).
		Values(code, model.MeetingStatusActive, []string{language}, map[string]string{clientID: language}).
		Suffix(`ON CONFLICT (code) DO UPDATE SET
			target_languages = CASE WHEN EXCLUDED.target_languages[1] = ANY(`+t+`.target_languages)
				THEN `+t+`.target_languages
				ELSE array_cat(`+t+`.target_languages, EXCLUDED.target_languages) END,
			participants = `+t+`.participants || EXCLUDED.participants,
			last_activity = now()
			RETURNING code, status, target_languages, participants, create_time, last_activity, (xmax = 0)`).
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err)
	}

	var (
		m       model.Meeting
		created bool
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&m.Code, &m.Status, &m.TargetLanguages, &m.Participants, &m.CreateTime, &m.LastActivity, &created)
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", code)
	}
	return &model.JoinResult{ClientID: clientID, Created: created, Meeting: &m}, nil
}

func (s *pgStore) Get(ctx context.Context, code string) (*model.Meeting, error) {
	query, args, err := psql.Select(meetingColumns...).
		From(s.table).
		Where(sq.Eq{model.MeetingFieldCode: code}).
		ToSql()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	var m model.Meeting
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&m.Code, &m.Status, &m.TargetLanguages, &m.Participants, &m.CreateTime, &m.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound.WrapMsg("meeting not found", "meetingCode", code)
	}
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", code)
	}
	return &m, nil
}

func (s *pgStore) TargetLanguages(ctx context.Context, code string) ([]string, error) {
	m, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.TargetLanguages, nil
}

