package profile

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// Message codes raised by the coordinator itself.
const (
	CodeNameTooShort         = "profile/name-too-short"
	CodeInvalidCharsName     = "profile/invalid-chars-name"
	CodeInvalidEmail         = "profile/invalid-email"
	CodeSameUsername         = "profile/error-same-username"
	CodeUpdateProfile        = "profile/error-update-profile"
	CodeChangeEmail          = "profile/error-change-email"
	CodeSamePassword         = "profile/same-password"
	CodePasswordTooShort     = "profile/password-too-short"
	CodeInvalidCharsPassword = "profile/invalid-chars-password"
	CodePasswordsDoNotMatch  = "profile/passwords-do-not-match"
	CodeUnknown              = "profile/unknown-error"

	CodeUpdated         = "profile/updated"
	CodePasswordChanged = "profile/password-changed"
	CodeAccountDeleted  = "profile/account-deleted"

	// CodeRequiresRecentLogin is raised by the auth service; it always ends
	// the session.
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeNoCurrentUser       = "auth/no-current-user"
)

// ErrNotOpen is returned by operations started before Open succeeded.
var ErrNotOpen = errors.New("profile not open")

// Error tags a failure with the message code shown to the user.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// coded is implemented by adapter errors that carry their own code.
type coded interface {
	Code() string
}

// codeOf extracts the message code of err. Errors without one get a generic
// code so the user still sees something.
func codeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	var c coded
	if errors.As(err, &c) && c.Code() != "" {
		return c.Code()
	}
	switch {
	case errors.Is(err, common.ErrorNotSignedIn), errors.Is(err, ErrNotOpen):
		return CodeNoCurrentUser
	}
	return CodeUnknown
}
