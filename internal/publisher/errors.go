package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/maheshrc27/publish-engine/internal/models"
)

// Error is a classified platform failure. Kind is ErrorKindTransient or
// ErrorKindPermanent.
type Error struct {
	Kind       models.ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Transient() bool {
	return e.Kind == models.ErrorKindTransient
}

// KindForStatus maps an HTTP status to an error kind: rate limiting and
// server errors are worth retrying, other client errors are not.
func KindForStatus(code int) models.ErrorKind {
	if code == http.StatusTooManyRequests || code >= 500 {
		return models.ErrorKindTransient
	}
	return models.ErrorKindPermanent
}

func statusError(code int, msg string) *Error {
	return &Error{Kind: KindForStatus(code), StatusCode: code, Message: msg}
}

func permanent(format string, args ...any) *Error {
	return &Error{Kind: models.ErrorKindPermanent, Message: fmt.Sprintf(format, args...)}
}

func transient(format string, args ...any) *Error {
	return &Error{Kind: models.ErrorKindTransient, Message: fmt.Sprintf(format, args...)}
}

// networkError classifies a transport failure. A done context is returned
// unwrapped so callers can tell a deadline from a platform failure.
func networkError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &Error{Kind: models.ErrorKindTransient, Message: err.Error(), Err: err}
}

// KindOf reports the error kind carried by err. Errors that are not *Error
// count as transient.
func KindOf(err error) models.ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return models.ErrorKindTransient
}

func isTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Transient()
}
