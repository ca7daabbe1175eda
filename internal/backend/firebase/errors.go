package firebase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"taskmate/internal/service"
)

// mapAuthError converts an Identity Toolkit failure into a *service.AuthError.
// The API reports the cause as an upper-case code in the message, optionally
// followed by " : detail".
func mapAuthError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code, detail, _ := strings.Cut(gerr.Message, " : ")
		code = strings.TrimSpace(code)
		detail = strings.TrimSpace(detail)

		switch code {
		case "EMAIL_NOT_FOUND":
			return service.NewAuthError(service.ReasonUnknownAccount, "no account for this email", err)
		case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
			return service.NewAuthError(service.ReasonInvalidCredentials, "wrong email or password", err)
		case "USER_DISABLED":
			return service.NewAuthError(service.ReasonInvalidCredentials, "account disabled", err)
		case "EMAIL_EXISTS":
			return service.NewAuthError(service.ReasonAccountExists, "an account with this email already exists", err)
		case "WEAK_PASSWORD":
			if detail == "" {
				detail = "password should be at least 6 characters"
			}
			return service.NewAuthError(service.ReasonWeakPassword, detail, err)
		case "INVALID_EMAIL", "MISSING_EMAIL", "MISSING_PASSWORD":
			return service.NewAuthError(service.ReasonMalformedInput, strings.ToLower(strings.ReplaceAll(code, "_", " ")), err)
		case "TOO_MANY_ATTEMPTS_TRY_LATER":
			return service.NewAuthError(service.ReasonTooManyAttempts, "try again later", err)
		case "OPERATION_NOT_ALLOWED", "PASSWORD_LOGIN_DISABLED":
			return service.NewAuthError(service.ReasonUnsupported, "email/password sign-in is disabled for this project", err)
		}
		return service.NewAuthError(service.ReasonUnknown, gerr.Message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return service.NewAuthError(service.ReasonNetwork, "request timed out", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return service.NewAuthError(service.ReasonNetwork, "", err)
	}
	return service.NewAuthError(service.ReasonUnknown, "", err)
}

// wrapError wraps Firestore errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("request timed out: %w", err)
	case codes.Unauthenticated:
		return fmt.Errorf("session expired or revoked (run: taskmate login): %w", err)
	case codes.PermissionDenied:
		return fmt.Errorf("permission denied: %w", err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", service.ErrTaskNotFound, err)
	case codes.Unavailable:
		return fmt.Errorf("firestore unavailable: %w", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}
