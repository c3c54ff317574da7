package api

import (
	"net/http"
	"strings"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type joinReq struct {
	MeetingCode    string `json:"meetingCode"`
	TargetLanguage string `json:"targetLanguage"`
	ClientID       string `json:"clientId"`
}

// Join creates the meeting with a zero counter on first use, otherwise adds
// the caller's language to the target set.
func (s *Server) Join(c *gin.Context) {
	var req joinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("invalid json"))
		return
	}
	req.MeetingCode = strings.TrimSpace(req.MeetingCode)
	req.TargetLanguage = strings.TrimSpace(req.TargetLanguage)
	if req.MeetingCode == "" || req.TargetLanguage == "" {
		fail(c, errs.ErrArgs.WrapMsg("missing required parameters"))
		return
	}

	ctx := c.Request.Context()
	res, err := s.Meetings.Join(ctx, req.MeetingCode, req.TargetLanguage, req.ClientID)
	if err != nil {
		fail(c, err)
		return
	}
	if res.Created {
		if err := s.Counters.Ensure(ctx, req.MeetingCode); err != nil {
			fail(c, err)
			return
		}
	}
	logger.Info("participant joined",
		zap.String("meeting", req.MeetingCode),
		zap.String("language", req.TargetLanguage),
		zap.String("client", res.ClientID),
		zap.Bool("created", res.Created))

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"clientId":        res.ClientID,
		"meetingCode":     res.Meeting.Code,
		"targetLanguages": res.Meeting.TargetLanguages,
	})
}
