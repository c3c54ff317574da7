package delivery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"
)

const (
	DefaultPollInterval = time.Second
	DefaultWaitTimeout  = 15 * time.Second
)

// Baseline supplies the registration cursor, i.e. the meeting's current
// sequence counter (0 for a meeting that has none).
type Baseline interface {
	Current(ctx context.Context, meetingCode string) (int64, error)
}

// Batch is one fetch result. An empty batch carries the cursor unchanged;
// otherwise Text is the space-joined text of Records and Sequence their maximum.
type Batch struct {
	MeetingCode    string
	TargetLanguage string
	SourceLanguage string
	Text           string
	Sequence       int64
	Empty          bool
	Records        []*model.TranslationRecord
}

// Protocol implements cursor-based retrieval over a Log: Register once, then
// Fetch with the last cursor until the client goes away. Fetch only reads the
// log, so any number of clients may wait at once.
type Protocol struct {
	Log          Log
	Baseline     Baseline
	PollInterval time.Duration
	WaitTimeout  time.Duration

	// OnPoll, when set, observes every poll with the number of records found.
	OnPoll func(language string, found int)
}

func NewProtocol(log Log, baseline Baseline, pollInterval, waitTimeout time.Duration) *Protocol {
	p := &Protocol{Log: log, Baseline: baseline, PollInterval: pollInterval, WaitTimeout: waitTimeout}
	p.ensure()
	return p
}

func (p *Protocol) ensure() {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.WaitTimeout <= 0 {
		p.WaitTimeout = DefaultWaitTimeout
	}
}

// Register starts a client live from now: no history, cursor = current counter.
func (p *Protocol) Register(ctx context.Context, meetingCode, language string) (*Batch, error) {
	if meetingCode == "" || language == "" {
		return nil, errs.ErrArgs.WrapMsg("missing parameters", "meetingCode", meetingCode, "targetLanguage", language)
	}
	cur, err := p.Baseline.Current(ctx, meetingCode)
	if err != nil {
		return nil, err
	}
	return emptyBatch(meetingCode, model.NormalizeLanguage(language), cur), nil
}

// Fetch waits up to WaitTimeout for records after cursor, polling every
// PollInterval. It returns as soon as one poll finds something, an empty batch
// with the same cursor on timeout, and ctx's error if the caller goes away.
func (p *Protocol) Fetch(ctx context.Context, meetingCode, language string, cursor int64) (*Batch, error) {
	p.ensure()
	if meetingCode == "" || language == "" {
		return nil, errs.ErrArgs.WrapMsg("missing parameters", "meetingCode", meetingCode, "targetLanguage", language)
	}
	if cursor < 0 {
		return nil, errs.ErrArgs.WrapMsg("sequence must be >= 0", "sequence", cursor)
	}
	language = model.NormalizeLanguage(language)

	deadline := time.NewTimer(p.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		recs, err := p.Log.Query(ctx, meetingCode, language, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errs.ErrTransport.WrapMsg(err.Error(), "meetingCode", meetingCode, "language", language)
		}
		if p.OnPoll != nil {
			p.OnPoll(language, len(recs))
		}
		if len(recs) > 0 {
			return Concat(meetingCode, language, recs), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return emptyBatch(meetingCode, language, cursor), nil
		case <-ticker.C:
		}
	}
}

// Concat sorts records by sequence and joins their trimmed texts with one space.
func Concat(meetingCode, language string, recs []*model.TranslationRecord) *Batch {
	if len(recs) == 0 {
		return emptyBatch(meetingCode, language, 0)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Sequence < recs[j].Sequence })
	texts := make([]string, len(recs))
	for i, r := range recs {
		texts[i] = strings.TrimSpace(r.TranslatedText)
	}
	maxSeq := recs[len(recs)-1].Sequence
	return &Batch{
		MeetingCode:    meetingCode,
		TargetLanguage: language,
		SourceLanguage: recs[0].SourceLanguage,
		Text:           strings.Join(texts, " "),
		Sequence:       maxSeq,
		Records:        recs,
	}
}

func emptyBatch(meetingCode, language string, cursor int64) *Batch {
	return &Batch{MeetingCode: meetingCode, TargetLanguage: language, Sequence: cursor, Empty: true}
}
