package delivery

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoLog relies on the unique (meeting, language, sequence) index from
// mgo.EnsureIndexes to reject duplicates.
type mongoLog struct {
	coll *mongo.Collection
}

func NewMongoLog(db *mongo.Database) Log {
	tr := model.TranslationRecord{}
	return &mongoLog{coll: db.Collection(tr.GetTableName())}
}

func (l *mongoLog) Append(ctx context.Context, rec *model.TranslationRecord) error {
	if rec.CreateTime.IsZero() {
		rec.CreateTime = time.Now()
	}
	_, err := l.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (l *mongoLog) Query(ctx context.Context, meetingCode, language string, after int64) ([]*model.TranslationRecord, error) {
	filter := bson.M{
		model.TranslationFieldMeetingCode:    meetingCode,
		model.TranslationFieldTargetLanguage: language,
		model.TranslationFieldSequence:       bson.M{"$gt": after},
	}
	cur, err := l.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: model.TranslationFieldSequence, Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*model.TranslationRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
