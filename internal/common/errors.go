// Package common defines shared sentinel errors and small helpers used across
// profilekeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Session errors.
	ErrorNotSignedIn = errors.New("not signed in")

	// Service-level errors.
	ErrorUnavailable = errors.New("service unavailable")

	// The user backed out of a prompt.
	ErrorCancelled = errors.New("cancelled")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
)
