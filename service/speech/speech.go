package speech

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/go-resty/resty/v2"
)

const DefaultSampleRate = 16000

type Word struct {
	Word  string
	Start time.Duration
	End   time.Duration
}

// Result is one final recognition segment. Offset is where the segment
// starts inside the submitted audio.
type Result struct {
	Transcript string
	Confidence float64
	Offset     time.Duration
	Words      []Word
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, language string, sampleRate int) ([]Result, error)
}

type Config struct {
	Provider   string        `yaml:"provider" toml:"provider"` // google | text
	APIKey     string        `yaml:"apiKey" toml:"api_key"`
	BaseURL    string        `yaml:"baseUrl" toml:"base_url"`
	SampleRate int           `yaml:"sampleRate" toml:"sample_rate"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
}

func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "text"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	switch c.Provider {
	case "google":
		if c.APIKey == "" {
			return errs.ErrArgs.WrapMsg("google speech needs apiKey")
		}
	case "text":
	default:
		return errs.ErrArgs.WrapMsg("unknown speech provider", "provider", c.Provider)
	}
	return nil
}

func New(c Config) (Recognizer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Provider == "google" {
		return NewGoogle(resty.New().SetTimeout(c.Timeout), c.APIKey, c.BaseURL), nil
	}
	return Text{}, nil
}

// SortByOffset orders results by where they start in the audio.
func SortByOffset(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Offset < rs[j].Offset })
}

// Text treats the payload as UTF-8 text, one result per line. Lines are spaced
// one second apart. It stands in for a real recognizer in local runs and tests.
type Text struct{}

func (Text) Recognize(ctx context.Context, pcm []byte, language string, sampleRate int) ([]Result, error) {
	if !utf8.Valid(pcm) {
		return nil, errs.ErrArgs.WrapMsg("text recognizer needs utf-8 payload")
	}
	var out []Result
	for i, line := range strings.Split(string(pcm), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Result{Transcript: line, Confidence: 1, Offset: time.Duration(i) * time.Second})
	}
	return out, nil
}

// Static returns the same results for every call.
type Static struct {
	Results []Result
	Err     error
}

func (s Static) Recognize(ctx context.Context, pcm []byte, language string, sampleRate int) ([]Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Result, len(s.Results))
	copy(out, s.Results)
	return out, nil
}
