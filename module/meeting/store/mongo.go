package store

import (
	"context"
	"errors"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) Store {
	m := model.Meeting{}
	return &mongoStore{coll: db.Collection(m.GetTableName())}
}

// Join is a single findAndModify: $setOnInsert creates the meeting, $addToSet
// unions the language in. The pre-image tells whether this call created it.
func (s *mongoStore) Join(ctx context.Context, code, language, clientID string) (*model.JoinResult, error) {
	code, language, clientID, err := prepareJoin(code, language, clientID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			model.MeetingFieldStatus:     model.MeetingStatusActive,
			model.MeetingFieldCreateTime: now,
		},
		"$addToSet": bson.M{model.MeetingFieldTargetLanguages: language},
		"$set": bson.M{
			model.MeetingFieldParticipants + "." + clientID: language,
			model.MeetingFieldLastActivity:                  now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var before model.Meeting
	for attempt := 0; ; attempt++ {
		err = s.coll.FindOneAndUpdate(ctx, bson.M{model.MeetingFieldCode: code}, update, opts).Decode(&before)
		// two racing upserts: the loser retries and lands on the existing document
		if mongo.IsDuplicateKeyError(err) && attempt == 0 {
			continue
		}
		break
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return &model.JoinResult{
			ClientID: clientID,
			Created:  true,
			Meeting: &model.Meeting{
				Code:            code,
				Status:          model.MeetingStatusActive,
				TargetLanguages: []string{language},
				Participants:    map[string]string{clientID: language},
				CreateTime:      now,
				LastActivity:    now,
			},
		}, nil
	case err != nil:
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", code)
	}

	if !before.HasLanguage(language) {
		before.TargetLanguages = append(before.TargetLanguages, language)
	}
	if before.Participants == nil {
		before.Participants = make(map[string]string)
	}
	before.Participants[clientID] = language
	before.LastActivity = now
	return &model.JoinResult{ClientID: clientID, Meeting: &before}, nil
}

func (s *mongoStore) Get(ctx context.Context, code string) (*model.Meeting, error) {
	var m model.Meeting
	err := s.coll.FindOne(ctx, bson.M{model.MeetingFieldCode: code}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("meeting not found", "meetingCode", code)
	}
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", code)
	}
	return &m, nil
}

func (s *mongoStore) TargetLanguages(ctx context.Context, code string) ([]string, error) {
	var m model.Meeting
	err := s.coll.FindOne(ctx, bson.M{model.MeetingFieldCode: code},
		options.FindOne().SetProjection(bson.M{model.MeetingFieldTargetLanguages: 1}),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("meeting not found", "meetingCode", code)
	}
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", code)
	}
	return m.TargetLanguages, nil
}
