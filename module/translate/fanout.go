package translate

import (
	"context"
	"sync"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/service/metrics"
	"github.com/pwhiting/Translate/tools/errs"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultCallTimeout = 10 * time.Second

type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

type LanguageSource interface {
	TargetLanguages(ctx context.Context, meetingCode string) ([]string, error)
}

type SequenceSource interface {
	Allocate(ctx context.Context, meetingCode string) (int64, error)
}

// Result reports what one fragment produced. Failed holds languages whose
// record was not written; every other target has a record at Sequence.
type Result struct {
	Sequence int64
	Records  []*model.TranslationRecord
	Failed   map[string]error
}

// Fanout turns a released fragment into one record per target language, all
// under the same freshly allocated sequence.
type Fanout struct {
	Languages      LanguageSource
	Seq            SequenceSource
	Log            delivery.Log
	Translator     Translator
	CallTimeout    time.Duration
	MaxConcurrency int
}

// Process allocates the fragment's sequence and writes its records. It fails
// only when the meeting or the sequence cannot be had; per-language failures
// end up in Result.Failed and never stop the other languages.
func (f *Fanout) Process(ctx context.Context, meetingCode string, frag *Fragment) (*Result, error) {
	langs, err := f.Languages.TargetLanguages(ctx, meetingCode)
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		return &Result{}, nil
	}

	seq, err := f.Seq.Allocate(ctx, meetingCode)
	if err != nil {
		return nil, err
	}
	metrics.SequencesAllocated.Inc()

	timeout := f.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	source := model.NormalizeLanguage(frag.SourceLanguage)

	var (
		mu  sync.Mutex
		res = &Result{Sequence: seq, Failed: make(map[string]error)}
	)
	g, gctx := errgroup.WithContext(ctx)
	if f.MaxConcurrency > 0 {
		g.SetLimit(f.MaxConcurrency)
	}
	for _, lang := range langs {
		lang := model.NormalizeLanguage(lang)
		g.Go(func() error {
			rec, err := f.one(gctx, meetingCode, frag, source, lang, seq, timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[lang] = err
				logger.Warn("translation skipped",
					zap.String("meeting", meetingCode), zap.String("language", lang),
					zap.Int64("seq", seq), zap.Error(err))
				return nil
			}
			res.Records = append(res.Records, rec)
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

func (f *Fanout) one(ctx context.Context, meetingCode string, frag *Fragment, source, lang string, seq int64, timeout time.Duration) (*model.TranslationRecord, error) {
	text := frag.Text
	if !model.SameLanguage(source, lang) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		out, err := f.Translator.Translate(cctx, frag.Text, model.BaseLanguage(source), lang)
		cancel()
		if err != nil {
			metrics.ObserveTranslation(lang, "error", time.Since(start))
			return nil, errs.ErrTranslation.WrapMsg(err.Error(), "language", lang)
		}
		metrics.ObserveTranslation(lang, "ok", time.Since(start))
		text = out
	}

	rec := &model.TranslationRecord{
		MeetingCode:    meetingCode,
		Sequence:       seq,
		SourceLanguage: frag.SourceLanguage,
		TargetLanguage: lang,
		TranslatedText: text,
		IsComplete:     true,
		CaptureTime:    frag.Timestamp,
		CreateTime:     time.Now(),
	}
	if err := f.Log.Append(ctx, rec); err != nil {
		if !delivery.IsDuplicate(err) {
			return nil, errs.ErrTransport.WrapMsg(err.Error(), "language", lang)
		}
		logger.Debug("translation already recorded", zap.String("record", rec.Key()))
	}
	return rec, nil
}
