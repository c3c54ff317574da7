package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TranslationItem is the single element of a /translations response.
type TranslationItem struct {
	ID             string `json:"id"`
	MessageID      string `json:"messageId"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Sequence       int64  `json:"sequence"`
	IsComplete     bool   `json:"isComplete"`
	Empty          bool   `json:"empty"`
}

type translationsResp struct {
	Success      bool              `json:"success"`
	Translations []TranslationItem `json:"translations"`
}

const registrationID = "registration"

func itemFromBatch(b *delivery.Batch, registration bool) TranslationItem {
	var id string
	switch {
	case registration:
		id = registrationID
	case b.Empty:
		id = "empty_" + strconv.FormatInt(b.Sequence, 10)
	default:
		id = "concat_" + strconv.FormatInt(b.Sequence, 10)
	}
	return TranslationItem{
		ID:             id,
		MessageID:      id,
		TranslatedText: b.Text,
		SourceLanguage: b.SourceLanguage,
		TargetLanguage: b.TargetLanguage,
		Sequence:       b.Sequence,
		IsComplete:     true,
		Empty:          b.Empty,
	}
}

type cursorQuery struct {
	meetingCode string
	language    string
	clientID    string
	cursor      int64
	registered  bool // a sequence was supplied
}

func parseCursorQuery(c *gin.Context) (*cursorQuery, error) {
	q := &cursorQuery{
		meetingCode: c.Query("meetingCode"),
		language:    c.Query("targetLanguage"),
		clientID:    c.Query("clientId"),
	}
	if q.meetingCode == "" || q.language == "" {
		return nil, errs.ErrArgs.WrapMsg("missing required parameters")
	}
	if raw, ok := c.GetQuery("sequence"); ok && raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return nil, errs.ErrArgs.WrapMsg("sequence must be a non-negative integer", "sequence", raw)
		}
		q.cursor = n
		q.registered = true
	}
	return q, nil
}

// next runs one protocol step: Register without a cursor, Fetch with one.
func (s *Server) next(ctx context.Context, q *cursorQuery) (TranslationItem, error) {
	if !q.registered {
		b, err := s.Protocol.Register(ctx, q.meetingCode, q.language)
		if err != nil {
			return TranslationItem{}, err
		}
		return itemFromBatch(b, true), nil
	}
	b, err := s.Protocol.Fetch(ctx, q.meetingCode, q.language, q.cursor)
	if err != nil {
		return TranslationItem{}, err
	}
	return itemFromBatch(b, false), nil
}

// Translations is the long-poll endpoint. Without a sequence it registers the
// client at the current counter; with one it waits for records after it.
func (s *Server) Translations(c *gin.Context) {
	q, err := parseCursorQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	item, err := s.next(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// client went away mid-wait
			logger.Debug("fetch cancelled", zap.String("meeting", q.meetingCode), zap.String("client", q.clientID))
			c.Abort()
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = errs.ErrTransport.WrapMsg("fetch timed out")
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, translationsResp{Success: true, Translations: []TranslationItem{item}})
}
