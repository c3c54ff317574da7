package model

import "time"

const (
	SeqMeetingFieldMeetingCode = "meeting_code"
	SeqMeetingFieldValue       = "value"
	SeqMeetingFieldCreateTime  = "create_time"
	SeqMeetingFieldUpdateTime  = "update_time"
)

// SeqMeeting is the per-meeting sequence counter. Value is the last sequence
// handed out (0 = none yet); it only moves forward, one step per allocation.
type SeqMeeting struct {
	MeetingCode string    `bson:"meeting_code"`
	Value       int64     `bson:"value"`
	CreateTime  time.Time `bson:"create_time"`
	UpdateTime  time.Time `bson:"update_time"`
}

func (s *SeqMeeting) GetTableName() string {
	return "seq_meeting"
}
