package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Stable auth error codes.
const (
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeWrongPassword       = "auth/wrong-password"
	CodeEmailInUse          = "auth/email-already-in-use"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeWeakPassword        = "auth/weak-password"
	CodeUserDisabled        = "auth/user-disabled"
	CodeUserNotFound        = "auth/user-not-found"
	CodeTokenExpired        = "auth/user-token-expired"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeUserMismatch        = "auth/user-mismatch"
	CodeNetwork             = "auth/network-request-failed"
	CodeInternal            = "auth/internal-error"
)

var backendCodes = map[string]string{
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": CodeRequiresRecentLogin,
	"INVALID_PASSWORD":               CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      CodeWrongPassword,
	"EMAIL_EXISTS":                   CodeEmailInUse,
	"INVALID_EMAIL":                  CodeInvalidEmail,
	"WEAK_PASSWORD":                  CodeWeakPassword,
	"USER_DISABLED":                  CodeUserDisabled,
	"USER_NOT_FOUND":                 CodeUserNotFound,
	"EMAIL_NOT_FOUND":                CodeUserNotFound,
	"TOKEN_EXPIRED":                  CodeTokenExpired,
	"INVALID_ID_TOKEN":               CodeTokenExpired,
	"INVALID_REFRESH_TOKEN":          CodeTokenExpired,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    CodeTooManyRequests,
}

// Error is a failure reported by the identity backend or the transport.
type Error struct {
	code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Code() string { return e.code }

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.code, e.Err)
	}
	return e.code
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or "" if it has none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// fromBackend maps a backend message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to an Error.
func fromBackend(status int, message string) *Error {
	key := message
	if i := strings.IndexAny(key, " :"); i >= 0 {
		key = key[:i]
	}
	code, ok := backendCodes[key]
	if !ok {
		code = CodeInternal
	}
	return &Error{code: code, Message: message, Status: status}
}

func networkError(err error) *Error {
	return &Error{code: CodeNetwork, Err: err}
}

func internalError(err error) *Error {
	return &Error{code: CodeInternal, Err: err}
}
