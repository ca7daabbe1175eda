package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"taskmate/internal/service"
)

func TestMapAuthError(t *testing.T) {
	tests := []struct {
		message string
		want    service.AuthReason
	}{
		{"EMAIL_NOT_FOUND", service.ReasonUnknownAccount},
		{"INVALID_PASSWORD", service.ReasonInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", service.ReasonInvalidCredentials},
		{"USER_DISABLED : The user account has been disabled by an administrator.", service.ReasonInvalidCredentials},
		{"EMAIL_EXISTS", service.ReasonAccountExists},
		{"WEAK_PASSWORD : Password should be at least 6 characters", service.ReasonWeakPassword},
		{"INVALID_EMAIL", service.ReasonMalformedInput},
		{"MISSING_PASSWORD", service.ReasonMalformedInput},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", service.ReasonTooManyAttempts},
		{"OPERATION_NOT_ALLOWED", service.ReasonUnsupported},
		{"PASSWORD_LOGIN_DISABLED", service.ReasonUnsupported},
		{"SOMETHING_NEW", service.ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			err := mapAuthError(&googleapi.Error{Code: 400, Message: tt.message})
			var aerr *service.AuthError
			if !errors.As(err, &aerr) {
				t.Fatalf("expected *service.AuthError, got %T", err)
			}
			if aerr.Reason != tt.want {
				t.Errorf("expected %s, got %s", tt.want, aerr.Reason)
			}
		})
	}
}

func TestMapAuthError_Transport(t *testing.T) {
	err := mapAuthError(fmt.Errorf("post: %w", context.DeadlineExceeded))
	if got := authReason(err); got != service.ReasonNetwork {
		t.Errorf("deadline: expected network, got %v", err)
	}

	err = mapAuthError(errors.New("boom"))
	if got := authReason(err); got != service.ReasonUnknown {
		t.Errorf("expected unknown, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("cause lost: %v", err)
	}

	if mapAuthError(nil) != nil {
		t.Error("nil should map to nil")
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), "request timed out"},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad token"), "session expired or revoked"},
		{"permission", status.Error(codes.PermissionDenied, "rules"), "permission denied"},
		{"unavailable", status.Error(codes.Unavailable, "down"), "firestore unavailable"},
		{"context deadline", fmt.Errorf("rpc: %w", context.DeadlineExceeded), "request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapError(tt.err)
			if !strings.HasPrefix(got.Error(), tt.want) {
				t.Errorf("expected prefix %q, got %q", tt.want, got)
			}
		})
	}

	if err := wrapError(status.Error(codes.NotFound, "no document")); !errors.Is(err, service.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	plain := errors.New("other")
	if wrapError(plain) != plain {
		t.Error("unclassified errors should pass through")
	}
	if wrapError(nil) != nil {
		t.Error("nil should map to nil")
	}
}
