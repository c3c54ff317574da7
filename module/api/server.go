package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/middleware"
	"github.com/pwhiting/Translate/module/delivery"
	"github.com/pwhiting/Translate/module/meeting/store"
	"github.com/pwhiting/Translate/service/bus"
	"github.com/pwhiting/Translate/service/metrics"
	"github.com/pwhiting/Translate/service/speech"
	"github.com/pwhiting/Translate/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Counters creates a meeting's sequence counter on first join.
type Counters interface {
	Ensure(ctx context.Context, meetingCode string) error
}

// HealthCheck returns nil when every backend the node depends on is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	Meetings   store.Store
	Counters   Counters
	Protocol   *delivery.Protocol
	Publisher  bus.Publisher
	Recognizer speech.Recognizer
	SampleRate int
	Health     HealthCheck

	now func() time.Time
}

func NewServer(meetings store.Store, counters Counters, protocol *delivery.Protocol,
	pub bus.Publisher, rec speech.Recognizer, sampleRate int, health HealthCheck) *Server {
	if sampleRate <= 0 {
		sampleRate = speech.DefaultSampleRate
	}
	return &Server{
		Meetings:   meetings,
		Counters:   counters,
		Protocol:   protocol,
		Publisher:  pub,
		Recognizer: rec,
		SampleRate: sampleRate,
		Health:     health,
		now:        time.Now,
	}
}

// Router mounts every route on a fresh engine.
func (s *Server) Router() *gin.Engine {
	r := newEngine()
	longPoll := middleware.RouteOpt{Timeout: s.Protocol.WaitTimeout + 5*time.Second}

	middleware.POST(r, "/join", s.Join, middleware.RouteOpt{})
	middleware.POST(r, "/process-audio", s.ProcessAudio, middleware.RouteOpt{})
	middleware.GET(r, "/translations", s.Translations, longPoll)
	middleware.GET(r, "/translations/ws", s.TranslationsWS, middleware.RouteOpt{})
	mountHealth(r, s.Health)
	return r
}

// NewHealthRouter serves /health and /metrics only; worker nodes use it.
func NewHealthRouter(check HealthCheck) *gin.Engine {
	r := newEngine()
	mountHealth(r, check)
	return r
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(middleware.NoMethod)
	r.NoRoute(middleware.NoRoute)
	middleware.Default().Mount(r)
	return r
}

func mountHealth(r gin.IRoutes, check HealthCheck) {
	middleware.GET(r, "/health", func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}, middleware.RouteOpt{Timeout: 3 * time.Second})
	middleware.GET(r, "/metrics", gin.WrapH(metrics.Handler()), middleware.RouteOpt{})
}

// fail answers with {error} and the status that matches err's code.
func fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	msg := "internal server error"
	if ce, ok := errs.As(err); ok {
		msg = ce.Message()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
