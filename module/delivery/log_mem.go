package delivery

import (
	"context"
	"sort"
	"sync"

	"github.com/pwhiting/Translate/module/meeting/model"
)

type memLog struct {
	mu   sync.RWMutex
	recs map[string][]*model.TranslationRecord // meeting|lang -> sorted by Sequence
}

func NewMemLog() Log {
	return &memLog{recs: make(map[string][]*model.TranslationRecord)}
}

func keyStream(code, lang string) string { return code + "|" + lang }

func (l *memLog) Append(ctx context.Context, rec *model.TranslationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := keyStream(rec.MeetingCode, rec.TargetLanguage)
	list := l.recs[k]
	i := sort.Search(len(list), func(i int) bool { return list[i].Sequence >= rec.Sequence })
	if i < len(list) && list[i].Sequence == rec.Sequence {
		return ErrDuplicate
	}
	cp := *rec
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &cp
	l.recs[k] = list
	return nil
}

func (l *memLog) Query(ctx context.Context, meetingCode, language string, after int64) ([]*model.TranslationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.recs[keyStream(meetingCode, language)]
	i := sort.Search(len(list), func(i int) bool { return list[i].Sequence > after })
	out := make([]*model.TranslationRecord, 0, len(list)-i)
	for _, r := range list[i:] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}
