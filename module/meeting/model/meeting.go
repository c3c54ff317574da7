package model

import "time"

const (
	MeetingStatusActive = "active"
	MeetingStatusEnded  = "ended"
)

const (
	MeetingFieldCode            = "code"
	MeetingFieldStatus          = "status"
	MeetingFieldTargetLanguages = "target_languages"
	MeetingFieldParticipants    = "participants"
	MeetingFieldCreateTime      = "create_time"
	MeetingFieldLastActivity    = "last_activity"
)

// Meeting is one translation session. Code never changes once created and the
// target language set only grows while the meeting is active.
type Meeting struct {
	Code            string            `bson:"code" json:"code"`
	Status          string            `bson:"status" json:"status"`
	TargetLanguages []string          `bson:"target_languages" json:"targetLanguages"`
	Participants    map[string]string `bson:"participants,omitempty" json:"participants,omitempty"` // clientId -> target language
	CreateTime      time.Time         `bson:"create_time" json:"createTime"`
	LastActivity    time.Time         `bson:"last_activity" json:"lastActivity"`
}

func (m *Meeting) GetTableName() string {
	return "meetings"
}

// HasLanguage reports whether lang (normalized) is already a target.
func (m *Meeting) HasLanguage(lang string) bool {
	lang = NormalizeLanguage(lang)
	for _, l := range m.TargetLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// JoinResult is what a join produced.
type JoinResult struct {
	ClientID string
	Created  bool // meeting (and its counter) did not exist before this join
	Meeting  *Meeting
}
