package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// MiddlewareManager collects the shared chain every engine of this service
// runs ahead of its routes, in registration order.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

func (m *MiddlewareManager) Add(h ...gin.HandlerFunc) *MiddlewareManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h...)
	return m
}

// Mount installs a snapshot of the chain on r. Middleware added afterwards
// only affects later mounts.
func (m *MiddlewareManager) Mount(r gin.IRoutes) {
	m.mu.RLock()
	handlers := append([]gin.HandlerFunc(nil), m.mids...)
	m.mu.RUnlock()
	if len(handlers) > 0 {
		r.Use(handlers...)
	}
}

// Default is AccessLog followed by Recovery; a recovered panic is logged as a 500.
func Default() *MiddlewareManager {
	return NewManager().Add(AccessLog(), Recovery())
}
