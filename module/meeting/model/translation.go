package model

import (
	"strconv"
	"time"
)

const (
	TranslationFieldMeetingCode    = "meeting_code"
	TranslationFieldSequence       = "sequence"
	TranslationFieldSourceLanguage = "source_language"
	TranslationFieldTargetLanguage = "target_language"
	TranslationFieldTranslatedText = "translated_text"
	TranslationFieldIsComplete     = "is_complete"
	TranslationFieldCaptureTime    = "capture_time"
	TranslationFieldCreateTime     = "create_time"
)

// TranslationRecord is one fragment rendered in one target language.
// All records produced from the same fragment share Sequence.
type TranslationRecord struct {
	MeetingCode    string    `bson:"meeting_code" json:"meetingCode"`
	Sequence       int64     `bson:"sequence" json:"sequence"`
	SourceLanguage string    `bson:"source_language" json:"sourceLanguage"`
	TargetLanguage string    `bson:"target_language" json:"targetLanguage"`
	TranslatedText string    `bson:"translated_text" json:"translatedText"`
	IsComplete     bool      `bson:"is_complete" json:"isComplete"`
	CaptureTime    time.Time `bson:"capture_time" json:"captureTime"`
	CreateTime     time.Time `bson:"create_time" json:"createTime"`
}

func (r *TranslationRecord) GetTableName() string {
	return "translations"
}

// Key is unique per (meeting, language, sequence).
func (r *TranslationRecord) Key() string {
	return r.MeetingCode + ":" + r.TargetLanguage + ":" + strconv.FormatInt(r.Sequence, 10)
}
