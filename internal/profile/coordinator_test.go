package profile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendErr mimics an adapter error carrying its own code.
type backendErr string

func (e backendErr) Error() string { return "backend: " + string(e) }
func (e backendErr) Code() string  { return string(e) }

var errRecentLogin = backendErr(CodeRequiresRecentLogin)

func TestOpen_SnapshotFollowsRecord(t *testing.T) {
	h := newHarness(t, Options{PushToken: "push-1"})

	_, ok := h.c.Snapshot()
	assert.False(t, ok)

	require.NoError(t, h.c.Open(context.Background()))
	defer h.c.Close()

	p, ok := h.c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "alice", p.Username)
	assert.True(t, p.EmailVerified, "verification state comes from the identity")

	assert.Equal(t, []string{"auth.current", "records.watch", "records.update"}, h.log.all())
	require.Len(t, h.records.updates, 1)
	assert.Equal(t, "push-1", *h.records.updates[0].PushToken)
	assert.Zero(t, h.presenter.busy)
}

func TestOpen_PushTokenFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{PushToken: "push-1"})
	h.records.updateErr = errors.New("down")

	require.NoError(t, h.c.Open(context.Background()))
	h.c.Close()
}

func TestOpen_Errors(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.auth.identityErr = common.ErrorNotSignedIn
		err := h.c.Open(context.Background())
		assert.ErrorIs(t, err, common.ErrorNotSignedIn)
		assert.Zero(t, h.presenter.busy)
	})

	t.Run("watch fails", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.records.watchErr = errors.New("boom")
		assert.Error(t, h.c.Open(context.Background()))
		assert.Zero(t, h.presenter.busy)
	})
}

func TestClose_Idempotent(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.c.Open(context.Background()))
	h.c.Close()
	h.c.Close()

	_, ok := h.c.Snapshot()
	assert.False(t, ok)
}

func TestOperations_BeforeOpen(t *testing.T) {
	h := newHarness(t, Options{})

	out := h.c.EditName(context.Background())

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, CodeNoCurrentUser, out.Code)
	assert.ErrorIs(t, out.Err, ErrNotOpen)
	assert.Empty(t, h.presenter.asked)
}

func TestEditName(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantCode string
		commit   bool
	}{
		{name: "accepted", value: "Alice Smith", wantCode: CodeUpdated, commit: true},
		{name: "exactly the minimum", value: "Alice", wantCode: CodeUpdated, commit: true},
		{name: "too short", value: "Al", wantCode: CodeNameTooShort},
		{name: "bad characters", value: "Alice_Smith", wantCode: CodeInvalidCharsName},
		{name: "non ascii letters", value: "Zoë Smith", wantCode: CodeInvalidCharsName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.open(t)
			h.reply(save("name", tt.value))

			out := h.c.EditName(context.Background())

			assert.Equal(t, tt.wantCode, out.Code)
			if !tt.commit {
				assert.Equal(t, StatusFailed, out.Status)
				assert.Equal(t, StateValidating, out.State)
				assert.Equal(t, []string{"alert"}, h.log.all())
				assert.Equal(t, []string{tt.wantCode}, h.presenter.alerts)
				assert.Zero(t, h.presenter.maxBusy)
				return
			}

			assert.Equal(t, StatusSuccess, out.Status)
			assert.Equal(t, []string{"auth.updateProfile", "records.update", "toast"}, h.log.all())
			assert.Equal(t, models.ProfileAttributes{DisplayName: tt.value, PhotoURL: alice().PhotoURL}, h.auth.lastAttrs)
			require.Len(t, h.records.updates, 1)
			assert.Equal(t, models.ProfileUpdate{DisplayName: models.Ptr(tt.value)}, h.records.updates[0])
			assert.Equal(t, []string{CodeUpdated}, h.presenter.toasts)
		})
	}
}

func TestEditName_DialogDefaultsToCurrent(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)

	out := h.c.EditName(context.Background())

	assert.Equal(t, StatusNoOp, out.Status)
	require.Len(t, h.presenter.asked, 1)
	require.Len(t, h.presenter.asked[0].Inputs, 1)
	assert.Equal(t, "Alice Liddell", h.presenter.asked[0].Inputs[0].Default)
}

func TestEditName_RecordFailureKeepsAuthChange(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.records.updateErr = errors.New("write failed")
	h.reply(save("name", "Alice Smith"))

	out := h.c.EditName(context.Background())

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, CodeUpdateProfile, out.Code)
	assert.Equal(t, []string{"auth.updateProfile", "records.update", "alert"}, h.log.all())
	assert.Zero(t, h.presenter.busy)
}

func TestEditName_AuthFailureSkipsRecord(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.auth.updateErr = backendErr("auth/network-request-failed")
	h.reply(save("name", "Alice Smith"))

	out := h.c.EditName(context.Background())

	assert.Equal(t, "auth/network-request-failed", out.Code)
	assert.Equal(t, []string{"auth.updateProfile", "alert"}, h.log.all())
	assert.Equal(t, StateCommitting, out.State)
}

func TestEditUsername(t *testing.T) {
	t.Run("taken", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.records.byUsername = map[string][]models.UserProfile{"bob": {{UserID: "u2", Username: "bob"}}}
		h.reply(save("username", "bob"))

		out := h.c.EditUsername(context.Background())

		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, CodeSameUsername, out.Code)
		assert.Equal(t, []string{"records.find", "alert"}, h.log.all())
		assert.Empty(t, h.records.updates)
	})

	t.Run("free", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.records.byUsername = map[string][]models.UserProfile{"bob": {{UserID: "u2", Username: "bob"}}}
		h.reply(save("username", "carol"))

		out := h.c.EditUsername(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, []string{"records.find", "records.update", "toast"}, h.log.all())
		require.Len(t, h.records.updates, 1)
		assert.Equal(t, models.ProfileUpdate{Username: models.Ptr("carol")}, h.records.updates[0])
	})

	t.Run("lookup fails", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.records.findErr = errors.New("down")
		h.reply(save("username", "carol"))

		out := h.c.EditUsername(context.Background())

		assert.Equal(t, CodeUpdateProfile, out.Code)
		assert.Empty(t, h.records.updates)
	})
}

func TestUnchangedValueIsNoOp(t *testing.T) {
	p := alice()
	ops := map[string]struct {
		run   func(*Coordinator, context.Context) Outcome
		reply Reply
	}{
		"name":        {(*Coordinator).EditName, save("name", p.DisplayName)},
		"username":    {(*Coordinator).EditUsername, save("username", p.Username)},
		"description": {(*Coordinator).EditDescription, save("description", p.Description)},
		"email":       {(*Coordinator).EditEmail, save("email", p.Email)},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.open(t)
			h.reply(op.reply)

			out := op.run(h.c, context.Background())

			assert.Equal(t, StatusNoOp, out.Status)
			assert.NoError(t, out.Err)
			assert.Empty(t, h.log.all())
			assert.Empty(t, h.presenter.toasts)
			assert.Empty(t, h.presenter.alerts)
		})
	}
}

func TestCancelIsNoOp(t *testing.T) {
	ops := map[string]func(*Coordinator, context.Context) Outcome{
		"photo":       (*Coordinator).EditPhoto,
		"name":        (*Coordinator).EditName,
		"username":    (*Coordinator).EditUsername,
		"description": (*Coordinator).EditDescription,
		"email":       (*Coordinator).EditEmail,
		"password":    (*Coordinator).ChangePassword,
		"delete":      (*Coordinator).DeleteAccount,
		"logout":      (*Coordinator).Logout,
	}

	for name, run := range ops {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.open(t)
			h.reply(Reply{Action: ActionCancel, Values: map[string]string{"name": "ignored"}})

			out := run(h.c, context.Background())

			assert.Equal(t, StatusNoOp, out.Status)
			assert.Equal(t, StateEditing, out.State)
			assert.Empty(t, h.log.all())
		})
	}
}

func TestPresenterFailureIsNoOp(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.presenter.askErr = errors.New("stdin closed")

	out := h.c.EditDescription(context.Background())

	assert.Equal(t, StatusNoOp, out.Status)
	assert.Error(t, out.Err)
	assert.Empty(t, h.log.all())
}

func TestEditDescription(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.reply(save("description", ""))

	out := h.c.EditDescription(context.Background())

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"records.update", "toast"}, h.log.all())
	assert.Equal(t, models.ProfileUpdate{Description: models.Ptr("")}, h.records.updates[0])
}

func TestEditEmail(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		h := newHarness(t, Options{EmailVerification: true})
		h.open(t)
		h.reply(save("email", "not-an-email"))

		out := h.c.EditEmail(context.Background())

		assert.Equal(t, CodeInvalidEmail, out.Code)
		assert.Equal(t, []string{"alert"}, h.log.all())
	})

	t.Run("unverified redirects after record update", func(t *testing.T) {
		h := newHarness(t, Options{EmailVerification: true})
		h.open(t)
		h.reply(save("email", "new@example.com"))

		out := h.c.EditEmail(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Empty(t, out.Code)
		assert.Equal(t, []string{"auth.updateEmail", "records.update", "auth.emailVerified", "nav.verifyEmail"}, h.log.all())
		assert.Equal(t, "new@example.com", h.auth.lastEmail)
		assert.Empty(t, h.presenter.toasts)
	})

	t.Run("verified shows toast", func(t *testing.T) {
		h := newHarness(t, Options{EmailVerification: true})
		h.open(t)
		h.auth.verified = true
		h.reply(save("email", "new@example.com"))

		out := h.c.EditEmail(context.Background())

		assert.Equal(t, CodeUpdated, out.Code)
		assert.Equal(t, 0, h.log.count("nav.verifyEmail"))
	})

	t.Run("verification disabled", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.reply(save("email", "new@example.com"))

		out := h.c.EditEmail(context.Background())

		assert.Equal(t, CodeUpdated, out.Code)
		assert.Equal(t, []string{"auth.updateEmail", "records.update", "toast"}, h.log.all())
	})

	t.Run("record failure", func(t *testing.T) {
		h := newHarness(t, Options{EmailVerification: true})
		h.open(t)
		h.records.updateErr = errors.New("down")
		h.reply(save("email", "new@example.com"))

		out := h.c.EditEmail(context.Background())

		assert.Equal(t, CodeChangeEmail, out.Code)
		assert.Equal(t, 0, h.log.count("nav.verifyEmail"))
		assert.Equal(t, 0, h.log.count("auth.emailVerified"))
	})
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		code  string
	}{
		{name: "same as current", reply: passwords("secret1", "secret1", "secret1"), code: CodeSamePassword},
		{name: "too short", reply: passwords("secret1", "abc", "abc"), code: CodePasswordTooShort},
		{name: "bad characters", reply: passwords("secret1", "new pass", "new pass"), code: CodeInvalidCharsPassword},
		{name: "confirmation differs", reply: passwords("secret1", "newpass", "newpasz"), code: CodePasswordsDoNotMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.open(t)
			h.reply(tt.reply)

			out := h.c.ChangePassword(context.Background())

			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, tt.code, out.Code)
			assert.Equal(t, []string{"auth.reauthenticate", "alert"}, h.log.all())
			assert.Equal(t, 0, h.log.count("auth.updatePassword"))
		})
	}

	t.Run("success", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.reply(passwords("secret1", "newpass", "newpass"))

		out := h.c.ChangePassword(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, CodePasswordChanged, out.Code)
		assert.Equal(t, []string{"auth.reauthenticate", "auth.updatePassword", "toast"}, h.log.all())
		assert.Equal(t, models.Credential{Email: "alice@example.com", Password: "secret1"}, h.auth.lastCred)
		assert.Equal(t, "newpass", h.auth.lastPass)
		assert.Equal(t, []string{CodePasswordChanged}, h.presenter.toasts)
	})

	t.Run("wrong current password", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.auth.reauthErr = backendErr("auth/wrong-password")
		h.reply(passwords("nope", "newpass", "newpass"))

		out := h.c.ChangePassword(context.Background())

		assert.Equal(t, "auth/wrong-password", out.Code)
		assert.Equal(t, StateEditing, out.State, "re-authentication precedes validation")
		assert.Equal(t, []string{"auth.reauthenticate", "alert"}, h.log.all())
	})
}

func TestEditPhoto(t *testing.T) {
	t.Run("library", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.reply(Reply{Action: ActionLibrary})

		out := h.c.EditPhoto(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, models.PhotoFromLibrary, h.images.lastSrc)
		assert.Equal(t, []string{"images.set", "toast"}, h.log.all())
		assert.Zero(t, h.presenter.maxBusy, "the handler owns the indicator around its remote calls")
	})

	t.Run("picker cancelled", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.images.err = common.ErrorCancelled
		h.reply(Reply{Action: ActionCamera})

		out := h.c.EditPhoto(context.Background())

		assert.Equal(t, StatusNoOp, out.Status)
		assert.Equal(t, models.PhotoFromCamera, h.images.lastSrc)
		assert.Empty(t, h.presenter.alerts)
	})

	t.Run("upload fails", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.images.err = backendErr("image/upload-failed")
		h.reply(Reply{Action: ActionCamera})

		out := h.c.EditPhoto(context.Background())

		assert.Equal(t, "image/upload-failed", out.Code)
		assert.Equal(t, []string{"image/upload-failed"}, h.presenter.alerts)
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.reply(Reply{Action: ActionConfirm})

		out := h.c.DeleteAccount(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, CodeAccountDeleted, out.Code)
		assert.Equal(t, []string{"auth.delete", "blobs.delete", "records.delete", "toast", "session.logout"}, h.log.all())
	})

	t.Run("auth failure stops everything", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.auth.deleteErr = backendErr("auth/network-request-failed")
		h.reply(Reply{Action: ActionConfirm})

		out := h.c.DeleteAccount(context.Background())

		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, []string{"auth.delete", "alert"}, h.log.all())
	})

	t.Run("cleanup failures do not fail the deletion", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.open(t)
		h.blobs.err = errors.New("s3 down")
		h.records.deleteErr = errors.New("db down")
		h.reply(Reply{Action: ActionConfirm})

		out := h.c.DeleteAccount(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, 1, h.log.count("session.logout"))
	})

	t.Run("image cleanup is not awaited", func(t *testing.T) {
		h := newHarness(t, Options{BlobTimeout: time.Second})
		h.open(t)
		var pending func()
		h.c.goAsync = func(f func()) { pending = f }
		h.reply(Reply{Action: ActionConfirm})

		out := h.c.DeleteAccount(context.Background())

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, 0, h.log.count("blobs.delete"))
		require.NotNil(t, pending)

		pending()
		assert.Equal(t, 1, h.log.count("blobs.delete"))
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.reply(Reply{Action: ActionConfirm})

	out := h.c.Logout(context.Background())

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"session.logout"}, h.log.all())
}

func TestLogout_Failure(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)
	h.session.err = errors.New("disk full")
	h.reply(Reply{Action: ActionConfirm})

	out := h.c.Logout(context.Background())

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, CodeUnknown, out.Code)
}

func TestRequiresRecentLogin_LogsOutOnce(t *testing.T) {
	cases := map[string]func(h *harness) func(*Coordinator, context.Context) Outcome{
		"name": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.auth.updateErr = errRecentLogin
			h.reply(save("name", "Alice Smith"))
			return (*Coordinator).EditName
		},
		"email": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.auth.emailErr = errRecentLogin
			h.reply(save("email", "new@example.com"))
			return (*Coordinator).EditEmail
		},
		"password reauthentication": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.auth.reauthErr = errRecentLogin
			h.reply(passwords("secret1", "newpass", "newpass"))
			return (*Coordinator).ChangePassword
		},
		"password update": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.auth.passwordErr = errRecentLogin
			h.reply(passwords("secret1", "newpass", "newpass"))
			return (*Coordinator).ChangePassword
		},
		"photo": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.images.err = errRecentLogin
			h.reply(Reply{Action: ActionCamera})
			return (*Coordinator).EditPhoto
		},
		"delete": func(h *harness) func(*Coordinator, context.Context) Outcome {
			h.auth.deleteErr = errRecentLogin
			h.reply(Reply{Action: ActionConfirm})
			return (*Coordinator).DeleteAccount
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.open(t)
			run := setup(h)

			out := run(h.c, context.Background())

			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, CodeRequiresRecentLogin, out.Code)
			assert.Equal(t, 1, h.log.count("session.logout"))
			assert.Equal(t, []string{CodeRequiresRecentLogin}, h.presenter.alerts)
			assert.Equal(t, 0, h.log.count("records.update"))
		})
	}
}

func TestBusyClearedOnEveryPath(t *testing.T) {
	h := newHarness(t, Options{})
	h.open(t)

	h.reply(save("name", "Alice Smith"))
	h.c.EditName(context.Background())
	assert.Zero(t, h.presenter.busy)

	h.auth.updateErr = errors.New("down")
	h.reply(save("name", "Alice Jones"))
	h.c.EditName(context.Background())
	assert.Zero(t, h.presenter.busy)

	h.auth.reauthErr = errors.New("down")
	h.reply(passwords("a", "b", "c"))
	h.c.ChangePassword(context.Background())
	assert.Zero(t, h.presenter.busy)

	assert.Equal(t, 1, h.presenter.maxBusy)
}

// slowBlobs finishes DeleteUserImage after a delay, or when released if
// hold is set, ignoring the context.
type slowBlobs struct {
	delay    time.Duration
	hold     chan struct{}
	finished atomic.Bool
}

func (s *slowBlobs) DeleteUserImage(ctx context.Context, p models.UserProfile) error {
	if s.hold != nil {
		<-s.hold
	} else {
		time.Sleep(s.delay)
	}
	s.finished.Store(true)
	return nil
}

func TestClose_WaitsForImageCleanup(t *testing.T) {
	h := newHarness(t, Options{})
	h.c.goAsync = func(f func()) { go f() }
	blobs := &slowBlobs{delay: 50 * time.Millisecond}
	h.c.deps.Blobs = blobs
	h.open(t)
	h.reply(Reply{Action: ActionConfirm})

	out := h.c.DeleteAccount(context.Background())
	require.Equal(t, StatusSuccess, out.Status)

	h.c.Close()
	assert.True(t, blobs.finished.Load(), "cleanup done before Close returns")
}

func TestClose_StopsWaitingAfterBlobTimeout(t *testing.T) {
	h := newHarness(t, Options{BlobTimeout: 20 * time.Millisecond})
	h.c.goAsync = func(f func()) { go f() }
	blobs := &slowBlobs{hold: make(chan struct{})}
	defer close(blobs.hold)
	h.c.deps.Blobs = blobs
	h.open(t)
	h.reply(Reply{Action: ActionConfirm})

	h.c.DeleteAccount(context.Background())

	start := time.Now()
	h.c.Close()
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, blobs.finished.Load())
}
