package delivery

import (
	"context"
	"errors"

	"github.com/pwhiting/Translate/module/meeting/model"
)

// ErrDuplicate is returned by Append when (meeting, language, sequence) already exists.
var ErrDuplicate = errors.New("translation record already exists")

// Log is the durable record of finished translations. Records are immutable
// and nothing removes them while the meeting runs, so any read can be repeated.
type Log interface {
	Append(ctx context.Context, rec *model.TranslationRecord) error
	// Query returns records with Sequence > after, ascending by Sequence.
	Query(ctx context.Context, meetingCode, language string, after int64) ([]*model.TranslationRecord, error)
}

func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
