package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies reconciliation failures.
type Kind string

const (
	KindMissingIdentifier Kind = "MissingIdentifier"
	KindStoreUnavailable  Kind = "StoreUnavailable"
	KindLinkageCorruption Kind = "LinkageCorruption"
	KindContactNotFound   Kind = "ContactNotFound"
)

var (
	ErrMissingIdentifier = &Error{Kind: KindMissingIdentifier, Message: "at least one of email or phoneNumber must be provided"}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable, Message: "contact store unavailable"}
	ErrLinkageCorruption = &Error{Kind: KindLinkageCorruption, Message: "contact linkage is corrupted"}
	ErrContactNotFound   = &Error{Kind: KindContactNotFound, Message: "contact not found"}
)

// Error is returned by every Engine operation that fails. Errors of the same
// Kind match each other through errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindMissingIdentifier:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindContactNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError renders the error for the HTTP boundary. Store failures hide
// the underlying cause.
func (e *Error) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.StatusCode(), e.Message).AddMetaValue("kind", string(e.Kind))
}

func storeUnavailable(op string, err error) *Error {
	var identityErr *Error
	if errors.As(err, &identityErr) {
		return identityErr
	}
	return &Error{
		Kind:    KindStoreUnavailable,
		Message: fmt.Sprintf("contact store unavailable: %s", op),
		Err:     err,
	}
}

func linkageCorruption(format string, args ...any) *Error {
	return &Error{
		Kind:    KindLinkageCorruption,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var identityErr *Error
	if errors.As(err, &identityErr) {
		return identityErr.Kind
	}
	return ""
}
