package errors

import (
	"errors"
	"math"
	"net/http"
	"time"
)

// InternalMessage is the only message ever returned for non-operational failures.
const InternalMessage = "Internal Server Error"

var kindStatus = map[Kind]int{
	KindNotFound:         http.StatusNotFound,
	KindUnauthorized:     http.StatusUnauthorized,
	KindTokenExpired:     http.StatusUnauthorized,
	KindTokenRevoked:     http.StatusUnauthorized,
	KindTooManyRequests:  http.StatusTooManyRequests,
	KindValidationFailed: http.StatusBadRequest,
}

// NormalizedError is the client-safe shape of any failure.
type NormalizedError struct {
	Code        int           `json:"code"`
	Message     string        `json:"message"`
	Kind        Kind          `json:"kind"`
	Operational bool          `json:"-"`
	RetryAfter  time.Duration `json:"-"`
	Cause       error         `json:"-"`
}

func (n *NormalizedError) Error() string {
	return n.Message
}

// RetryAfterSeconds rounds the back-off hint up to whole seconds.
func (n *NormalizedError) RetryAfterSeconds() int {
	if n.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(n.RetryAfter.Seconds()))
}

// Normalize converts any error into a NormalizedError. Known kinds keep
// their message; everything else collapses to a generic internal error
// with the original kept in Cause.
func Normalize(err error) *NormalizedError {
	if err == nil {
		return nil
	}
	var n *NormalizedError
	if errors.As(err, &n) {
		return n
	}

	var e *Error
	if errors.As(err, &e) {
		if status, ok := kindStatus[e.Kind]; ok {
			return &NormalizedError{
				Code:        status,
				Message:     e.Message,
				Kind:        e.Kind,
				Operational: true,
				RetryAfter:  e.RetryAfter,
				Cause:       err,
			}
		}
	}

	return &NormalizedError{
		Code:    http.StatusInternalServerError,
		Message: InternalMessage,
		Kind:    KindInternal,
		Cause:   err,
	}
}
