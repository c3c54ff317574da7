package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	// Timeout bounds the request context; zero leaves it alone. Long-poll
	// routes set it a little above the delivery wait.
	Timeout time.Duration
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.Timeout > 0 {
		return []gin.HandlerFunc{Timeout(opt.Timeout), handler}
	}
	return []gin.HandlerFunc{handler}
}
