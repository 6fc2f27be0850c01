package profile

import (
	"context"

	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// AuthService owns the identity and its credentials.
type AuthService interface {
	CurrentIdentity(ctx context.Context) (*models.Identity, error)
	Reauthenticate(ctx context.Context, cred models.Credential) error
	UpdateProfile(ctx context.Context, attrs models.ProfileAttributes) error
	UpdateEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error
	DeleteAccount(ctx context.Context) error
	EmailVerified(ctx context.Context) (bool, error)
}

// RecordStore mirrors profile fields per user id.
type RecordStore interface {
	Watch(ctx context.Context, userID string) (<-chan models.UserProfile, error)
	FindByUsername(ctx context.Context, username string) ([]models.UserProfile, error)
	Update(ctx context.Context, userID string, u models.ProfileUpdate) error
	Delete(ctx context.Context, userID string) error
}

type BlobStore interface {
	DeleteUserImage(ctx context.Context, p models.UserProfile) error
}

// ImageHandler acquires a photo from src and publishes it for p. It raises
// the busy indicator only after acquisition.
type ImageHandler interface {
	SetProfilePhoto(ctx context.Context, p models.UserProfile, src models.PhotoSource) error
}

type Session interface {
	Logout(ctx context.Context) error
}

type Navigator interface {
	RequireEmailVerification(ctx context.Context)
}

// Presenter renders dialogs and messages. Toast and Alert receive message
// codes; the presenter resolves them to text. Busy shows the indicator and
// returns the function that clears it.
type Presenter interface {
	Ask(ctx context.Context, d Dialog) (Reply, error)
	Toast(ctx context.Context, code string)
	Alert(ctx context.Context, code string)
	Busy(ctx context.Context) (stop func())
}
