package store

import (
	"context"
	"sync"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"
)

type memStore struct {
	mu       sync.RWMutex
	meetings map[string]*model.Meeting
}

func NewMemStore() Store {
	return &memStore{meetings: make(map[string]*model.Meeting)}
}

func (s *memStore) Join(ctx context.Context, code, language, clientID string) (*model.JoinResult, error) {
	code, language, clientID, err := prepareJoin(code, language, clientID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[code]
	if !ok {
		m = &model.Meeting{
			Code:         code,
			Status:       model.MeetingStatusActive,
			Participants: make(map[string]string),
			CreateTime:   now,
		}
		s.meetings[code] = m
	}
	if !m.HasLanguage(language) {
		m.TargetLanguages = append(m.TargetLanguages, language)
	}
	m.Participants[clientID] = language
	m.LastActivity = now

	return &model.JoinResult{ClientID: clientID, Created: !ok, Meeting: copyMeeting(m)}, nil
}

func (s *memStore) Get(ctx context.Context, code string) (*model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[code]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("meeting not found", "meetingCode", code)
	}
	return copyMeeting(m), nil
}

func (s *memStore) TargetLanguages(ctx context.Context, code string) ([]string, error) {
	m, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.TargetLanguages, nil
}

func copyMeeting(m *model.Meeting) *model.Meeting {
	c := *m
	c.TargetLanguages = append([]string(nil), m.TargetLanguages...)
	c.Participants = make(map[string]string, len(m.Participants))
	for k, v := range m.Participants {
		c.Participants[k] = v
	}
	return &c
}
