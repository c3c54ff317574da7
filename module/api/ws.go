package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TranslationsWS runs the Register/Fetch loop server side and pushes one frame
// per non-empty batch. Empty waits become pings so idle proxies keep the
// connection open.
func (s *Server) TranslationsWS(c *gin.Context) {
	q, err := parseCursorQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// read loop: only watches for the peer going away
	safe.Go("ws-read", func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					logger.Debug("websocket read ended", zap.Error(err))
				}
				return
			}
		}
	})

	log := logger.With(zap.String("meeting", q.meetingCode), zap.String("language", q.language), zap.String("client", q.clientID))
	log.Info("websocket stream opened", zap.Int64("cursor", q.cursor), zap.Bool("resume", q.registered))

	for {
		item, err := s.next(ctx, q)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn("websocket stream failed", zap.Error(err))
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "fetch failed"),
					time.Now().Add(wsWriteWait))
			}
			return
		}
		if !q.registered || !item.Empty {
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(item); err != nil {
				log.Info("websocket write failed", zap.Error(err))
				return
			}
		} else if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
			return
		}
		q.cursor = item.Sequence
		q.registered = true
	}
}
