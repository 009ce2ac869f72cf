package model

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth matches missing or invalid credentials and caller identities.
	ErrAuth = errors.New("unauthorized")
	// ErrUpstream matches failures of the upstream calendar service.
	ErrUpstream = errors.New("upstream calendar failure")
	// ErrValidation matches malformed requests.
	ErrValidation = errors.New("invalid request")
)

// AuthError reports a missing or unusable credential for an owner.
type AuthError struct {
	Owner Owner
	Err   error
}

func (e *AuthError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("unauthorized: %v", e.Err)
	}
	return fmt.Sprintf("unauthorized for %s: %v", e.Owner, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// UpstreamError wraps a failed call to an owner's calendar provider.
type UpstreamError struct {
	Owner Owner
	Op    string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s for %s: %v", e.Op, e.Owner, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ValidationError reports a request field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
