package delivery

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type pgLog struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgLog(pool *pgxpool.Pool) Log {
	tr := model.TranslationRecord{}
	return &pgLog{pool: pool, table: tr.GetTableName()}
}

func (l *pgLog) Append(ctx context.Context, rec *model.TranslationRecord) error {
	if rec.CreateTime.IsZero() {
		rec.CreateTime = time.Now()
	}
	query, args, err := psql.Insert(l.table).
		Columns(
			model.TranslationFieldMeetingCode,
			model.TranslationFieldTargetLanguage,
			model.TranslationFieldSequence,
			model.TranslationFieldSourceLanguage,
			model.TranslationFieldTranslatedText,
			model.TranslationFieldIsComplete,
			model.TranslationFieldCaptureTime,
			model.TranslationFieldCreateTime,
		).
		Values(rec.MeetingCode, rec.TargetLanguage, rec.Sequence, rec.SourceLanguage,
			rec.TranslatedText, rec.IsComplete, rec.CaptureTime, rec.CreateTime).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	tag, err := l.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (l *pgLog) Query(ctx context.Context, meetingCode, language string, after int64) ([]*model.TranslationRecord, error) {
	query, args, err := psql.Select(
		model.TranslationFieldMeetingCode,
		model.TranslationFieldTargetLanguage,
		model.TranslationFieldSequence,
		model.TranslationFieldSourceLanguage,
		model.TranslationFieldTranslatedText,
		model.TranslationFieldIsComplete,
		model.TranslationFieldCaptureTime,
		model.TranslationFieldCreateTime,
	).
		From(l.table).
		Where(sq.Eq{
			model.TranslationFieldMeetingCode:    meetingCode,
			model.TranslationFieldTargetLanguage: language,
		}).
		Where(sq.Gt{model.TranslationFieldSequence: after}).
		OrderBy(model.TranslationFieldSequence + " ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.TranslationRecord, 0)
	for rows.Next() {
		var r model.TranslationRecord
		if err := rows.Scan(&r.MeetingCode, &r.TargetLanguage, &r.Sequence, &r.SourceLanguage,
			&r.TranslatedText, &r.IsComplete, &r.CaptureTime, &r.CreateTime); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
