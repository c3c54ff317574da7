package safe

import (
	"fmt"
	"runtime/debug"

	"github.com/pwhiting/Translate/logger"

	"go.uber.org/zap"
)

// DefaultString returns the dereferenced value of a string pointer,
// or the fallback if the pointer is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// Go starts f in a goroutine that recovers and logs a panic instead of crashing the process.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			zap.String("task", name),
			zap.String("panic", fmt.Sprint(r)),
			zap.ByteString("stack", debug.Stack()))
	}
}
