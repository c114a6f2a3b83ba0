package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/chatdesk/internal/repository"
)

// Error kinds.  Every business failure wraps exactly one of them, so callers
// match with errors.Is(err, service.ErrForbidden).
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a classified business failure with a user-facing message and
// optional structured details (plan usage, missing permissions).
type Error struct {
	Kind    error
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error { return newErr(ErrNotFound, "%s not found", what) }

func forbidden(format string, args ...any) *Error { return newErr(ErrForbidden, format, args...) }

func badRequest(format string, args ...any) *Error { return newErr(ErrBadRequest, format, args...) }

func conflict(format string, args ...any) *Error { return newErr(ErrConflict, format, args...) }

// translate maps repository sentinels onto the service taxonomy.  what
// names the entity in the message.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrForbidden):
		return forbidden("access to %s denied", what)
	case errors.Is(err, repository.ErrConflict):
		return conflict("%s already exists", what)
	}
	return err
}

// KindOf returns the taxonomy kind of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrBadRequest, ErrUnauthorized} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
