// Package imaging acquires, processes and publishes profile photos.
package imaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

const (
	CodeCameraUnavailable = "image/camera-unavailable"
	CodeAcquireFailed     = "image/acquire-failed"
	CodeDecodeFailed      = "image/decode-failed"
	CodeUploadFailed      = "image/upload-failed"
	CodeUpdateProfile     = "profile/error-update-profile"
)

// Error tags a photo failure with a message code.
type Error struct {
	code string
	Err  error
}

func (e *Error) Code() string  { return e.code }
func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.code, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Uploader stores processed images.
type Uploader interface {
	PutUserImage(ctx context.Context, userID string, png []byte) (url, key string, err error)
	DeleteObject(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, attrs models.ProfileAttributes) error
}

type RecordUpdater interface {
	Update(ctx context.Context, userID string, u models.ProfileUpdate) error
}

type Handler struct {
	acquirer Acquirer
	uploader Uploader
	auth     ProfileUpdater
	records  RecordUpdater
	size     int
	busy     func(ctx context.Context) (stop func())
	log      logging.Logger
}

func NewHandler(acq Acquirer, up Uploader, auth ProfileUpdater, records RecordUpdater, size int, log logging.Logger) *Handler {
	if size <= 0 {
		size = 512
	}
	return &Handler{
		acquirer: acq,
		uploader: up,
		auth:     auth,
		records:  records,
		size:     size,
		busy:     func(context.Context) func() { return func() {} },
		log:      log.With("module", "imaging"),
	}
}

// WithBusy sets the indicator raised once the image is acquired. Acquisition
// itself may wait on the user and runs without it.
func (h *Handler) WithBusy(busy func(ctx context.Context) (stop func())) *Handler {
	if busy != nil {
		h.busy = busy
	}
	return h
}

// SetProfilePhoto replaces the photo of p with one taken from src. The new
// URL is written to the auth service first and then to the record store; the
// previous object is removed afterwards on a best-effort basis.
func (h *Handler) SetProfilePhoto(ctx context.Context, p models.UserProfile, src models.PhotoSource) error {
	raw, err := h.acquirer.Acquire(ctx, src)
	switch {
	case errors.Is(err, common.ErrorCancelled):
		return err
	case errors.Is(err, common.ErrorUnavailable):
		return &Error{code: CodeCameraUnavailable, Err: err}
	case err != nil:
		return &Error{code: CodeAcquireFailed, Err: err}
	}

	stop := h.busy(ctx)
	defer stop()

	png, err := Process(raw, h.size)
	if err != nil {
		return &Error{code: CodeDecodeFailed, Err: err}
	}

	url, key, err := h.uploader.PutUserImage(ctx, p.UserID, png)
	if err != nil {
		return &Error{code: CodeUploadFailed, Err: err}
	}

	if err := h.auth.UpdateProfile(ctx, models.ProfileAttributes{DisplayName: p.DisplayName, PhotoURL: url}); err != nil {
		h.discard(ctx, key)
		return err
	}

	if err := h.records.Update(ctx, p.UserID, models.ProfileUpdate{PhotoURL: models.Ptr(url)}); err != nil {
		return &Error{code: CodeUpdateProfile, Err: err}
	}

	if old, ok := h.uploader.KeyFromURL(p.PhotoURL); ok && old != key {
		h.discard(ctx, old)
	}

	h.log.Info(ctx, "profile photo updated", "user_id", p.UserID, "source", string(src), "key", key)
	return nil
}

func (h *Handler) discard(ctx context.Context, key string) {
	if err := h.uploader.DeleteObject(ctx, key); err != nil {
		h.log.Warn(ctx, "failed to delete image (ignored)", "key", key, "error", err)
	}
}
