// Package apperr holds the error taxonomy shared by the server and the client
// cache: every failure that reaches a caller is one of these types.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindRateLimited     Kind = "rate_limited"
	KindNotFound        Kind = "not_found"
	KindUpstream        Kind = "upstream_unavailable"
	KindUnauthenticated Kind = "unauthenticated"
	KindInternal        Kind = "internal"
)

// Reason is the machine readable cause of a ValidationError.
type Reason string

const (
	ReasonEmpty   Reason = "empty"
	ReasonTooLong Reason = "too_long"
	ReasonInvalid Reason = "invalid"
)

// ValidationError is a user correctable, field scoped input error.
type ValidationError struct {
	Field  string
	Reason Reason
	Limit  int
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return fmt.Sprintf("%s must not be empty", e.Field)
	case ReasonTooLong:
		return fmt.Sprintf("%s must be at most %d characters", e.Field, e.Limit)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
	}
	return "rate limit exceeded"
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// UpstreamError reports that the identity service or the store could not be
// reached. It is never retried by business logic.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Service + " unavailable"
	}
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type UnauthenticatedError struct{}

func (e *UnauthenticatedError) Error() string { return "authentication required" }

func Upstream(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// KindOf classifies err; nil yields the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		re *RateLimitError
		ne *NotFoundError
		ue *UpstreamError
		ae *UnauthenticatedError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &re):
		return KindRateLimited
	case errors.As(err, &ne):
		return KindNotFound
	case errors.As(err, &ue):
		return KindUpstream
	case errors.As(err, &ae):
		return KindUnauthenticated
	default:
		return KindInternal
	}
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
