package models

import "time"

// Identity is the currently signed-in account as reported by the auth service.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	AuthTime      time.Time
}

// Credential is an email/password pair used to re-authenticate before
// sensitive changes.
type Credential struct {
	Email    string
	Password string
}

// Session holds the tokens of a signed-in user as persisted on the device.
type Session struct {
	UserID       string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the ID token expires within skew of now.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	return s.ExpiresAt.IsZero() || !now.Add(skew).Before(s.ExpiresAt)
}
