// Package models defines the profile data shared by the coordinator and the
// backend adapters.
package models

import "time"

// UserProfile is the mirrored view of a user: identity attributes owned by the
// auth service plus the fields kept only in the record store.
type UserProfile struct {
	UserID        string
	DisplayName   string
	PhotoURL      string
	Username      string
	Description   string
	Email         string
	EmailVerified bool
	PushToken     string
	UpdatedAt     time.Time
}

// ProfileUpdate is a partial record update. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
	Username    *string
	Description *string
	Email       *string
	PushToken   *string
}

// IsEmpty reports whether the update carries no fields.
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.PhotoURL == nil && u.Username == nil &&
		u.Description == nil && u.Email == nil && u.PushToken == nil
}

// Apply copies the non-nil fields of u onto p.
func (u ProfileUpdate) Apply(p *UserProfile) {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.PhotoURL != nil {
		p.PhotoURL = *u.PhotoURL
	}
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.PushToken != nil {
		p.PushToken = *u.PushToken
	}
}

// ProfileAttributes are the profile fields held by the auth service.
type ProfileAttributes struct {
	DisplayName string
	PhotoURL    string
}

// Ptr returns a pointer to s. Handy for building a ProfileUpdate.
func Ptr(s string) *string { return &s }
