package store

import (
	"context"
	"strings"

	"github.com/pwhiting/Translate/module/meeting/model"
	"github.com/pwhiting/Translate/tools/errs"
	"github.com/pwhiting/Translate/tools/ids"
)

// Store persists meetings. Join is an upsert with array-union semantics on the
// target language set, so concurrent joins never drop a language.
type Store interface {
	Join(ctx context.Context, code, language, clientID string) (*model.JoinResult, error)
	// Get returns errs.ErrNotFound for an unknown code.
	Get(ctx context.Context, code string) (*model.Meeting, error)
	// TargetLanguages is the fanout's view of the meeting.
	TargetLanguages(ctx context.Context, code string) ([]string, error)
}

// prepareJoin normalizes the join arguments shared by every backend.
func prepareJoin(code, language, clientID string) (string, string, string, error) {
	if code == "" || language == "" {
		return "", "", "", errs.ErrArgs.WrapMsg("missing parameters", "meetingCode", code, "targetLanguage", language)
	}
	if clientID == "" {
		clientID = ids.ClientID()
	}
	// client ids become participant keys; Mongo treats "." and a leading "$" as path syntax
	if strings.Contains(clientID, ".") || strings.HasPrefix(clientID, "$") {
		return "", "", "", errs.ErrArgs.WrapMsg("invalid clientId", "clientId", clientID)
	}
	return code, model.NormalizeLanguage(language), clientID, nil
}
