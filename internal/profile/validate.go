package profile

import (
	"regexp"
	"unicode/utf8"
)

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z0-9 ]*$`)
	emailPattern    = regexp.MustCompile("(?i)^[a-z0-9!#$%&'*+/=?^_`{|}~.-]+@[a-z0-9]([a-z0-9-]*[a-z0-9])?(\\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$")
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]*$`)
)

// Rules holds the local validation thresholds.
type Rules struct {
	NameMinLength     int
	PasswordMinLength int
}

// DefaultRules are the thresholds used when none are configured.
var DefaultRules = Rules{NameMinLength: 5, PasswordMinLength: 5}

func (r Rules) validateName(name string) error {
	if utf8.RuneCountInString(name) < r.NameMinLength {
		return newError(CodeNameTooShort, nil)
	}
	if !namePattern.MatchString(name) {
		return newError(CodeInvalidCharsName, nil)
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return newError(CodeInvalidEmail, nil)
	}
	return nil
}

// validatePassword checks a new password in a fixed order so each violation
// reports its own code.
func (r Rules) validatePassword(a passwordAnswer) error {
	switch {
	case a.next == a.current:
		return newError(CodeSamePassword, nil)
	case utf8.RuneCountInString(a.next) < r.PasswordMinLength:
		return newError(CodePasswordTooShort, nil)
	case !passwordPattern.MatchString(a.next):
		return newError(CodeInvalidCharsPassword, nil)
	case a.confirm != a.next:
		return newError(CodePasswordsDoNotMatch, nil)
	}
	return nil
}
