package delivery

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"

	"github.com/redis/go-redis/v9"
)

// One sorted set per (meeting, language): score = sequence, member = JSON record.
// KEYS[1] = stream key
// ARGV[1] = sequence
// ARGV[2] = record json
// ARGV[3] = ttl seconds
// returns 1 appended, 0 sequence already present
const luaAppendRecord = `
local k   = KEYS[1]
local seq = ARGV[1]
if redis.call("ZCOUNT", k, seq, seq) > 0 then
  return 0
end
redis.call("ZADD", k, seq, ARGV[2])
redis.call("EXPIRE", k, tonumber(ARGV[3]))
return 1
`

var appendScript = redis.NewScript(luaAppendRecord)

type redisLog struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLog keeps each stream for ttl after its last append; the log does
// not outlive the session.
func NewRedisLog(rdb redis.UniversalClient, prefix string, ttl time.Duration) Log {
	if prefix == "" {
		prefix = "translate"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisLog{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *redisLog) key(code, lang string) string {
	// hash tag keeps a meeting's streams on one cluster slot
	return l.prefix + ":tr:{" + code + "}:" + lang
}

func (l *redisLog) Append(ctx context.Context, rec *model.TranslationRecord) error {
	if rec.CreateTime.IsZero() {
		rec.CreateTime = time.Now()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	n, err := appendScript.Run(ctx, l.rdb,
		[]string{l.key(rec.MeetingCode, rec.TargetLanguage)},
		rec.Sequence, string(b), int64(l.ttl/time.Second),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (l *redisLog) Query(ctx context.Context, meetingCode, language string, after int64) ([]*model.TranslationRecord, error) {
	vals, err := l.rdb.ZRangeByScore(ctx, l.key(meetingCode, language), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(after, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.TranslationRecord, 0, len(vals))
	for _, v := range vals {
		var r model.TranslationRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}
