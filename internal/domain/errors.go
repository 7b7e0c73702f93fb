package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrUnauthorized indicates the session token was rejected (or is missing).
	// The persisted token has already been cleared when this is returned.
	ErrUnauthorized = errors.New("session expired, please log in again")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrReadOnly indicates a mutation was attempted on a read-only resource
	ErrReadOnly = errors.New("resource is read-only")

	// ErrDuplicateID indicates a collection would contain the same identifier twice
	ErrDuplicateID = errors.New("duplicate identifier in collection")
)

// GenericFailureMessage is shown when the server gives no usable message
const GenericFailureMessage = "Request failed. Please check your connection and try again."

// RemoteError means the server was reached but rejected the request.
type RemoteError struct {
	Status  int    // HTTP status code
	Message string // Server-provided message, or GenericFailureMessage
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NetworkError means the server could not be reached (refused, reset, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "server unreachable: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a client-side field check failure. It never reaches
// the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failed field check for one submission
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Field returns the failure for a field, if any
func (v ValidationErrors) Field(name string) (ValidationError, bool) {
	for _, e := range v {
		if e.Field == name {
			return e, true
		}
	}
	return ValidationError{}, false
}

// ErrorKind classifies an error for presentation
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnauthorized
	KindRemote
	KindNetwork
	KindValidation
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthorized:
		return "unauthorized"
	case KindRemote:
		return "remote"
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	default:
		return "unexpected"
	}
}

// KindOf classifies err into one of the error kinds
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		remote  *RemoteError
		netErr  *NetworkError
		valErr  ValidationError
		valErrs ValidationErrors
	)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.As(err, &valErrs), errors.As(err, &valErr), errors.Is(err, ErrDuplicateID):
		return KindValidation
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &remote):
		return KindRemote
	default:
		return KindUnexpected
	}
}

// UserMessage returns the text shown to the user for err
func UserMessage(err error) string {
	var remote *RemoteError
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindUnauthorized:
		return ErrUnauthorized.Error()
	case KindNetwork:
		return GenericFailureMessage
	case KindRemote:
		if errors.As(err, &remote) && remote.Message != "" {
			return remote.Message
		}
		return GenericFailureMessage
	default:
		return err.Error()
	}
}
