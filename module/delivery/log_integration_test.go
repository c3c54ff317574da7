package delivery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pwhiting/Translate/data/database/mgo/mongoutil"
	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/service/mgo"
	"github.com/pwhiting/Translate/service/storage/pg"
	rds "github.com/pwhiting/Translate/service/storage/redis"
	"github.com/pwhiting/Translate/tools/ids"
)

// These run against real services and are skipped unless the matching
// TRANSLATE_TEST_* variable is set.

func exerciseLog(t *testing.T, log Log) {
	t.Helper()
	ctx := context.Background()
	code := "IT" + ids.MessageID()

	for _, s := range []int64{3, 1, 2} {
		err := log.Append(ctx, &model.TranslationRecord{
			MeetingCode:    code,
			Sequence:       s,
			SourceLanguage: "en",
			TargetLanguage: "es",
			TranslatedText: "t" + string(rune('0'+s)),
			IsComplete:     true,
			CaptureTime:    time.Now(),
		})
		if err != nil {
			t.Fatalf("append %d: %v", s, err)
		}
	}
	err := log.Append(ctx, &model.TranslationRecord{MeetingCode: code, Sequence: 2, TargetLanguage: "es", CaptureTime: time.Now()})
	if !IsDuplicate(err) {
		t.Fatalf("want duplicate, got %v", err)
	}

	recs, err := log.Query(ctx, code, "es", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Sequence != 2 || recs[1].Sequence != 3 {
		t.Fatalf("query = %+v", recs)
	}
	if recs, _ := log.Query(ctx, code, "fr", 0); len(recs) != 0 {
		t.Fatalf("fr should be empty, got %d", len(recs))
	}
}

func TestMongoLog(t *testing.T) {
	uri := os.Getenv("TRANSLATE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TRANSLATE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	m, err := mgo.Connect(ctx, &mongoutil.Config{Uri: uri, Database: "translate_test"})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close(ctx)
	if err := mgo.EnsureIndexes(ctx, m.GetDB()); err != nil {
		t.Fatal(err)
	}
	exerciseLog(t, NewMongoLog(m.GetDB()))
}

func TestRedisLog(t *testing.T) {
	addr := os.Getenv("TRANSLATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRANSLATE_TEST_REDIS_ADDR not set")
	}
	rdb, err := rds.NewClient(context.Background(), rds.Config{Addr: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer rdb.Close()
	exerciseLog(t, NewRedisLog(rdb, "translate-test", time.Minute))
}

func TestPgLog(t *testing.T) {
	dsn := os.Getenv("TRANSLATE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TRANSLATE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pg.NewPool(ctx, pg.Config{DSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		t.Fatal(err)
	}
	exerciseLog(t, NewPgLog(pool))
}
