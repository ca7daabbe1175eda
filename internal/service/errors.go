package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by task operations with no bound identity.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrTaskNotFound is returned when a task ID is unknown.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidPriority is returned for a priority outside Low/Medium/High.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidFilter is returned for an unknown filter criterion.
	ErrInvalidFilter = errors.New("invalid filter")
)

// AuthReason classifies an authentication failure.
type AuthReason int

const (
	ReasonUnknown AuthReason = iota
	ReasonInvalidCredentials
	ReasonUnknownAccount
	ReasonAccountExists
	ReasonWeakPassword
	ReasonMalformedInput
	ReasonNetwork
	ReasonTooManyAttempts
	ReasonUnsupported
)

func (r AuthReason) String() string {
	switch r {
	case ReasonInvalidCredentials:
		return "invalid credentials"
	case ReasonUnknownAccount:
		return "unknown account"
	case ReasonAccountExists:
		return "account already exists"
	case ReasonWeakPassword:
		return "weak password"
	case ReasonMalformedInput:
		return "malformed input"
	case ReasonNetwork:
		return "network failure"
	case ReasonTooManyAttempts:
		return "too many attempts"
	case ReasonUnsupported:
		return "unsupported"
	}
	return "authentication failed"
}

// AuthError is a failed login, registration or session refresh.
type AuthError struct {
	Reason AuthReason
	// Message is a human-readable detail; may be empty.
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Reason.String() + ": " + e.Message
	}
	if e.Err != nil {
		return e.Reason.String() + ": " + e.Err.Error()
	}
	return e.Reason.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError.
func NewAuthError(reason AuthReason, message string, err error) *AuthError {
	return &AuthError{Reason: reason, Message: message, Err: err}
}

// WriteOp names a store write.
type WriteOp string

const (
	OpCreate WriteOp = "create"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// StoreWriteError is a create, update or delete rejected by the store.
type StoreWriteError struct {
	Op     WriteOp
	TaskID string // empty for create
	Err    error
}

func (e *StoreWriteError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s task: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// SubscriptionError is a realtime feed that failed to start or dropped.
// There is no automatic reconnect.
type SubscriptionError struct {
	OwnerID string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("task feed for %s: %v", e.OwnerID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
