package translate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/pwhiting/Translate/tools/errs"
)

// Fragment is one timestamped piece of recognized source text.
type Fragment struct {
	MessageID      string
	MeetingCode    string
	SourceLanguage string
	Text           string
	Confidence     float64
	Timestamp      time.Time // capture time, drives release order
}

// wire format on the bus: timestamp is unix seconds with a fraction.
type fragmentWire struct {
	MessageID      string  `json:"messageId"`
	MeetingCode    string  `json:"meetingCode"`
	SourceLanguage string  `json:"sourceLanguage"`
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence,omitempty"`
	Timestamp      float64 `json:"timestamp"`
}

func (f *Fragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(fragmentWire{
		MessageID:      f.MessageID,
		MeetingCode:    f.MeetingCode,
		SourceLanguage: f.SourceLanguage,
		Text:           f.Text,
		Confidence:     f.Confidence,
		Timestamp:      UnixSeconds(f.Timestamp),
	})
}

func (f *Fragment) UnmarshalJSON(b []byte) error {
	var w fragmentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*f = Fragment{
		MessageID:      w.MessageID,
		MeetingCode:    w.MeetingCode,
		SourceLanguage: w.SourceLanguage,
		Text:           w.Text,
		Confidence:     w.Confidence,
		Timestamp:      FromUnixSeconds(w.Timestamp),
	}
	return nil
}

// DecodeFragment parses and validates a bus payload.
func DecodeFragment(b []byte) (*Fragment, error) {
	var f Fragment
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed fragment", "err", err)
	}
	if f.MeetingCode == "" {
		return nil, errs.ErrArgs.WrapMsg("fragment without meeting code", "messageId", f.MessageID)
	}
	return &f, nil
}

func UnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func FromUnixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
