package identity

import (
	"strings"
)

// Request is a normalized identify input. A nil field was not supplied.
type Request struct {
	Email       *string
	PhoneNumber *string
}

// NewRequest trims both values and treats blanks as absent. It fails with
// ErrMissingIdentifier when nothing usable remains.
func NewRequest(email, phoneNumber string) (Request, error) {
	req := Request{
		Email:       normalize(email),
		PhoneNumber: normalize(phoneNumber),
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate fails with ErrMissingIdentifier unless a non-blank value is set.
func (r Request) Validate() error {
	n := r.Normalized()
	if n.Email == nil && n.PhoneNumber == nil {
		return ErrMissingIdentifier
	}
	return nil
}

// Normalized trims both values and drops blanks, for requests built without
// NewRequest.
func (r Request) Normalized() Request {
	return Request{
		Email:       normalizePtr(r.Email),
		PhoneNumber: normalizePtr(r.PhoneNumber),
	}
}

func (r Request) EmailValue() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

func (r Request) PhoneValue() string {
	if r.PhoneNumber == nil {
		return ""
	}
	return *r.PhoneNumber
}

func normalizePtr(value *string) *string {
	if value == nil {
		return nil
	}
	return normalize(*value)
}

func normalize(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
