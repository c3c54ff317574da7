package errs

import "net/http"

const (
	ValidationError     = 400
	NotFoundError       = 404
	MethodNotAllowed    = 405
	ServerInternalError = 500

	AllocationFailedError  = 1001 // sequence contention exhausted the retry budget
	TranslationFailedError = 1002 // one target language failed; others unaffected
	TransportFailedError   = 1003 // store / broker / external API unreachable
)

var (
	ErrArgs             = NewCodeError(ValidationError, "invalid request")
	ErrNotFound         = NewCodeError(NotFoundError, "not found")
	ErrMethodNotAllowed = NewCodeError(MethodNotAllowed, "method not allowed")
	ErrInternal         = NewCodeError(ServerInternalError, "internal server error")
	ErrAllocationFailed = NewCodeError(AllocationFailedError, "sequence allocation failed")
	ErrTranslation      = NewCodeError(TranslationFailedError, "translation failed")
	ErrTransport        = NewCodeError(TransportFailedError, "transport error")
)

// HTTPStatus maps err to the status a handler should answer with.
// Anything that is not a client error is reported as 500.
func HTTPStatus(err error) int {
	ce, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err is a 4xx condition that must not be retried unchanged.
func IsClientError(err error) bool {
	s := HTTPStatus(err)
	return s >= 400 && s < 500
}
