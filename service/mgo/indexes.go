package mgo

import (
	"context"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique keys every collection relies on:
// one meeting per code, one counter per meeting, one record per
// (meeting, language, sequence).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var (
		m  model.Meeting
		sm model.SeqMeeting
		tr model.TranslationRecord
	)

	if _, err := db.Collection(m.GetTableName()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: model.MeetingFieldCode, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_code"),
	}); err != nil {
		return errs.WrapMsg(err, "create index", "collection", m.GetTableName())
	}

	if _, err := db.Collection(sm.GetTableName()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: model.SeqMeetingFieldMeetingCode, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_meeting"),
	}); err != nil {
		return errs.WrapMsg(err, "create index", "collection", sm.GetTableName())
	}

	if _, err := db.Collection(tr.GetTableName()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: model.TranslationFieldMeetingCode, Value: 1},
			{Key: model.TranslationFieldTargetLanguage, Value: 1},
			{Key: model.TranslationFieldSequence, Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_meeting_lang_seq"),
	}); err != nil {
		return errs.WrapMsg(err, "create index", "collection", tr.GetTableName())
	}
	return nil
}
