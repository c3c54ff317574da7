package translate

import (
	"encoding/json"
	"testing"
)

func TestFragmentWireTimestamp(t *testing.T) {
	f := &Fragment{MessageID: "m1", MeetingCode: "TEST01", SourceLanguage: "en-US", Text: "hello", Timestamp: at(10.5)}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["timestamp"] != 10.5 {
		t.Fatalf("timestamp on the wire = %v", raw["timestamp"])
	}

	got, err := DecodeFragment(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Timestamp.Equal(f.Timestamp) || got.Text != "hello" || got.SourceLanguage != "en-US" {
		t.Fatalf("decoded %+v", got)
	}
}

func TestDecodeFragmentRejects(t *testing.T) {
	if _, err := DecodeFragment([]byte("{")); err == nil {
		t.Fatal("expected error on bad json")
	}
	if _, err := DecodeFragment([]byte(`{"text":"x"}`)); err == nil {
		t.Fatal("expected error without meeting code")
	}
}
