package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/translate"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/speech"
	"github.com/pwhiting/Translate/tools/errs"
	"github.com/pwhiting/Translate/tools/ids"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type audioReq struct {
	MeetingCode    string `json:"meetingCode"`
	SourceLanguage string `json:"sourceLanguage"`
	AudioData      string `json:"audioData"`
	ClientID       string `json:"clientId"`
	SampleRate     int    `json:"sampleRate"`
}

func (r *audioReq) missing() []string {
	var out []string
	if r.MeetingCode == "" {
		out = append(out, "meetingCode")
	}
	if r.SourceLanguage == "" {
		out = append(out, "sourceLanguage")
	}
	if r.AudioData == "" {
		out = append(out, "audioData")
	}
	if r.ClientID == "" {
		out = append(out, "clientId")
	}
	return out
}

// ProcessAudio recognizes one audio chunk and publishes a fragment per final
// result. A fragment's timestamp is the receive time plus the result's offset
// inside the chunk, which is what the worker orders by.
func (s *Server) ProcessAudio(c *gin.Context) {
	received := s.now()
	var req audioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("invalid json"))
		return
	}
	if m := req.missing(); len(m) > 0 {
		fail(c, errs.ErrArgs.WrapMsg("missing parameters: "+strings.Join(m, ", ")))
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		fail(c, errs.ErrArgs.WrapMsg("invalid audio data encoding"))
		return
	}

	ctx := c.Request.Context()
	if _, err := s.Meetings.Get(ctx, req.MeetingCode); err != nil {
		fail(c, err)
		return
	}

	rate := req.SampleRate
	if rate <= 0 {
		rate = s.SampleRate
	}
	results, err := s.Recognizer.Recognize(ctx, pcm, req.SourceLanguage, rate)
	if err != nil {
		fail(c, errs.ErrTransport.WrapMsg("speech recognition failed", "err", err))
		return
	}
	speech.SortByOffset(results)

	texts := make([]string, 0, len(results))
	msgIDs := make([]string, 0, len(results))
	for _, r := range results {
		frag := &translate.Fragment{
			MessageID:      ids.MessageID(),
			MeetingCode:    req.MeetingCode,
			SourceLanguage: req.SourceLanguage,
			Text:           r.Transcript,
			Confidence:     r.Confidence,
			Timestamp:      received.Add(r.Offset),
		}
		data, err := json.Marshal(frag)
		if err != nil {
			fail(c, errs.ErrInternal.WrapMsg("encode fragment", "err", err))
			return
		}
		if err := s.Publisher.Publish(ctx, &bus.Message{ID: frag.MessageID, Key: frag.MeetingCode, Data: data}); err != nil {
			fail(c, errs.ErrTransport.WrapMsg("publish fragment failed", "err", err))
			return
		}
		texts = append(texts, r.Transcript)
		msgIDs = append(msgIDs, frag.MessageID)
	}

	logger.Info("audio processed",
		zap.String("meeting", req.MeetingCode),
		zap.String("client", req.ClientID),
		zap.Int("bytes", len(pcm)),
		zap.Int("fragments", len(msgIDs)))

	resp := gin.H{
		"success":       true,
		"transcription": strings.Join(texts, " "),
		"messageIds":    msgIDs,
		"audioSize":     len(pcm),
		"timestamp":     translate.UnixSeconds(received),
	}
	if len(msgIDs) > 0 {
		resp["messageId"] = msgIDs[0]
	}
	c.JSON(http.StatusOK, resp)
}
