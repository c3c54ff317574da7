package seq

import (
	"context"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) Store {
	sm := model.SeqMeeting{}
	return &mongoStore{coll: db.Collection(sm.GetTableName())}
}

// Incr is a single findAndModify with $inc, which Mongo applies atomically per
// document. Two racing upserts of a missing counter can surface a duplicate key
// error on the unique index; the Allocator retries that.
func (s *mongoStore) Incr(ctx context.Context, meetingCode string) (int64, error) {
	now := time.Now()
	filter := bson.M{model.SeqMeetingFieldMeetingCode: meetingCode}
	update := bson.M{
		"$inc":         bson.M{model.SeqMeetingFieldValue: int64(1)},
		"$setOnInsert": bson.M{model.SeqMeetingFieldCreateTime: now},
		"$set":         bson.M{model.SeqMeetingFieldUpdateTime: now},
	}
	var after model.SeqMeeting
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&after)
	if err != nil {
		return 0, err
	}
	return after.Value, nil
}

func (s *mongoStore) Load(ctx context.Context, meetingCode string) (int64, error) {
	var cur model.SeqMeeting
	err := s.coll.FindOne(ctx, bson.M{model.SeqMeetingFieldMeetingCode: meetingCode},
		options.FindOne().SetProjection(bson.M{model.SeqMeetingFieldValue: 1}),
	).Decode(&cur)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.Value, nil
}

func (s *mongoStore) Ensure(ctx context.Context, meetingCode string) error {
	now := time.Now()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{model.SeqMeetingFieldMeetingCode: meetingCode},
		bson.M{"$setOnInsert": bson.M{
			model.SeqMeetingFieldMeetingCode: meetingCode,
			model.SeqMeetingFieldValue:       int64(0),
			model.SeqMeetingFieldCreateTime:  now,
			model.SeqMeetingFieldUpdateTime:  now,
		}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
