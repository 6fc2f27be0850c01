// Package profile coordinates edits of the signed-in user's profile.
//
// Every edit runs the same protocol: collect a value through the presenter,
// skip if nothing changed, validate locally, commit to the auth service and
// then mirror the change to the record store, and finally report the result.
// Failures carry a message code; "auth/requires-recent-login" additionally
// ends the session.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

const defaultBlobTimeout = 30 * time.Second

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Auth      AuthService
	Records   RecordStore
	Blobs     BlobStore
	Images    ImageHandler
	Session   Session
	Navigator Navigator
	Presenter Presenter
}

// Options tune the coordinator.
type Options struct {
	Rules             Rules
	EmailVerification bool
	// PushToken is written to the record on Open when set.
	PushToken string
	// BlobTimeout bounds the background image cleanup after deletion.
	BlobTimeout time.Duration
}

type Coordinator struct {
	deps Deps
	opts Options
	log  logging.Logger

	live     *Live
	verified atomic.Bool

	// goAsync runs fire-and-forget work.
	goAsync func(func())
	// cleanup tracks background image deletions so Close can drain them.
	cleanup sync.WaitGroup
}

func New(deps Deps, opts Options, log logging.Logger) *Coordinator {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules
	}
	if opts.BlobTimeout <= 0 {
		opts.BlobTimeout = defaultBlobTimeout
	}
	return &Coordinator{
		deps:    deps,
		opts:    opts,
		log:     log.With("module", "profile"),
		goAsync: func(f func()) { go f() },
	}
}

// Open subscribes to the signed-in user's record and blocks until the first
// value arrives. It also records the device push token.
func (c *Coordinator) Open(ctx context.Context) error {
	if c.live != nil {
		return nil
	}

	stop := c.deps.Presenter.Busy(ctx)
	defer stop()

	id, err := c.deps.Auth.CurrentIdentity(ctx)
	if err != nil {
		return fmt.Errorf("current identity: %w", err)
	}
	c.verified.Store(id.EmailVerified)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	updates, err := c.deps.Records.Watch(watchCtx, id.UserID)
	if err != nil {
		cancel()
		return fmt.Errorf("watch record: %w", err)
	}

	live := newLive(updates, cancel, func(p *models.UserProfile) {
		p.EmailVerified = c.verified.Load()
	})

	select {
	case <-live.Ready():
	case <-live.Done():
		if _, ok := live.Snapshot(); !ok {
			live.Close()
			return fmt.Errorf("watch record: stream ended before first value")
		}
	case <-ctx.Done():
		live.Close()
		return ctx.Err()
	}
	c.live = live

	if c.opts.PushToken != "" {
		err := c.deps.Records.Update(ctx, id.UserID, models.ProfileUpdate{PushToken: models.Ptr(c.opts.PushToken)})
		if err != nil {
			c.log.Warn(ctx, "push token update failed", "user_id", id.UserID, "error", err)
		}
	}

	c.log.Info(ctx, "profile opened", "user_id", id.UserID)
	return nil
}

// Close tears down the record subscription and waits, at most BlobTimeout,
// for pending image cleanup.
func (c *Coordinator) Close() {
	if c.live != nil {
		c.live.Close()
		c.live = nil
	}

	drained := make(chan struct{})
	go func() {
		c.cleanup.Wait()
		close(drained)
	}()

	timer := time.NewTimer(c.opts.BlobTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		c.log.Warn(context.Background(), "image cleanup still running at close")
	}
}

// Snapshot returns the latest profile.
func (c *Coordinator) Snapshot() (models.UserProfile, bool) {
	if c.live == nil {
		return models.UserProfile{}, false
	}
	return c.live.Snapshot()
}

// op tracks one operation through the state machine.
type op struct {
	c     *Coordinator
	field Field
	state State
	log   logging.Logger
}

func (c *Coordinator) begin(ctx context.Context, field Field) *op {
	o := &op{c: c, field: field, state: StateIdle, log: c.log.With("field", string(field))}
	o.enter(ctx, StateEditing)
	return o
}

func (o *op) enter(ctx context.Context, s State) {
	o.log.Debug(ctx, "transition", "from", o.state.String(), "to", s.String())
	o.state = s
}

func (o *op) outcome(status Status, code string, err error) Outcome {
	return Outcome{Field: o.field, State: o.state, Status: status, Code: code, Err: err}
}

func (o *op) noop(ctx context.Context, err error) Outcome {
	o.log.Debug(ctx, "no change", "state", o.state.String())
	return o.outcome(StatusNoOp, "", err)
}

// succeed shows the toast for code, unless code is empty.
func (o *op) succeed(ctx context.Context, code string) Outcome {
	if code != "" {
		o.c.deps.Presenter.Toast(ctx, code)
	}
	o.log.Info(ctx, "operation succeeded", "state", o.state.String(), "code", code)
	return o.outcome(StatusSuccess, code, nil)
}

// fail reports err and ends the session when the auth service asked for a
// recent login.
func (o *op) fail(ctx context.Context, err error) Outcome {
	code := codeOf(err)
	o.log.Warn(ctx, "operation failed", "state", o.state.String(), "code", code, "error", err)
	o.c.deps.Presenter.Alert(ctx, code)
	if code == CodeRequiresRecentLogin {
		o.c.logout(ctx, "forced")
	}
	return o.outcome(StatusFailed, code, err)
}

// busy runs fn with the busy indicator shown.
func (c *Coordinator) busy(ctx context.Context, fn func() error) error {
	stop := c.deps.Presenter.Busy(ctx)
	defer stop()
	return fn()
}

func (c *Coordinator) logout(ctx context.Context, reason string) {
	if err := c.deps.Session.Logout(ctx); err != nil {
		c.log.Error(ctx, "logout failed", "reason", reason, "error", err)
		return
	}
	c.log.Info(ctx, "logged out", "reason", reason)
}

// ask shows d and returns the reply. A presenter failure counts as a cancel.
func (o *op) ask(ctx context.Context, d Dialog) (Reply, error) {
	r, err := o.c.deps.Presenter.Ask(ctx, d)
	if err != nil {
		o.log.Warn(ctx, "dialog failed", "error", err)
		return Reply{}, err
	}
	return r, nil
}

func (c *Coordinator) snapshot() (models.UserProfile, error) {
	p, ok := c.Snapshot()
	if !ok {
		return models.UserProfile{}, ErrNotOpen
	}
	return p, nil
}

// textEdit describes one of the single-value text fields.
type textEdit struct {
	field       Field
	title       string
	message     string
	input       string
	placeholder string
	current     func(models.UserProfile) string
	validate    func(string) error
	// commit returns the toast code to show, or "" for none.
	commit func(ctx context.Context, p models.UserProfile, value string) (string, error)
}

func (c *Coordinator) editText(ctx context.Context, e textEdit) Outcome {
	o := c.begin(ctx, e.field)

	p, err := c.snapshot()
	if err != nil {
		return o.fail(ctx, err)
	}
	current := e.current(p)

	reply, err := o.ask(ctx, textDialog(e.title, e.message, e.input, e.placeholder, current))
	if err != nil {
		return o.noop(ctx, err)
	}
	answer, ok := decodeText(reply, e.input)
	if !ok || answer.value == current {
		return o.noop(ctx, nil)
	}

	o.enter(ctx, StateValidating)
	if e.validate != nil {
		if err := e.validate(answer.value); err != nil {
			return o.fail(ctx, err)
		}
	}

	o.enter(ctx, StateCommitting)
	var toast string
	err = c.busy(ctx, func() error {
		var err error
		toast, err = e.commit(ctx, p, answer.value)
		return err
	})
	if err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateDone)
	return o.succeed(ctx, toast)
}

// EditName changes the display name on the auth service and the record.
func (c *Coordinator) EditName(ctx context.Context) Outcome {
	return c.editText(ctx, textEdit{
		field:       FieldName,
		title:       "Change profile name",
		message:     "Enter a new profile name.",
		input:       "name",
		placeholder: "Your name",
		current:     func(p models.UserProfile) string { return p.DisplayName },
		validate:    c.opts.Rules.validateName,
		commit: func(ctx context.Context, p models.UserProfile, name string) (string, error) {
			attrs := models.ProfileAttributes{DisplayName: name, PhotoURL: p.PhotoURL}
			if err := c.deps.Auth.UpdateProfile(ctx, attrs); err != nil {
				return "", err
			}
			if err := c.deps.Records.Update(ctx, p.UserID, models.ProfileUpdate{DisplayName: models.Ptr(name)}); err != nil {
				return "", newError(CodeUpdateProfile, err)
			}
			return CodeUpdated, nil
		},
	})
}

// EditUsername changes the username after checking nobody else uses it.
// The check and the write are not atomic.
func (c *Coordinator) EditUsername(ctx context.Context) Outcome {
	return c.editText(ctx, textEdit{
		field:       FieldUsername,
		title:       "Change username",
		message:     "Enter a new username.",
		input:       "username",
		placeholder: "Your username",
		current:     func(p models.UserProfile) string { return p.Username },
		commit: func(ctx context.Context, p models.UserProfile, username string) (string, error) {
			hits, err := c.deps.Records.FindByUsername(ctx, username)
			if err != nil {
				return "", newError(CodeUpdateProfile, err)
			}
			if len(hits) > 0 {
				return "", newError(CodeSameUsername, nil)
			}
			if err := c.deps.Records.Update(ctx, p.UserID, models.ProfileUpdate{Username: models.Ptr(username)}); err != nil {
				return "", newError(CodeUpdateProfile, err)
			}
			return CodeUpdated, nil
		},
	})
}

// EditDescription changes the free-text description.
func (c *Coordinator) EditDescription(ctx context.Context) Outcome {
	return c.editText(ctx, textEdit{
		field:       FieldDescription,
		title:       "Change description",
		message:     "Enter a new description.",
		input:       "description",
		placeholder: "Your description",
		current:     func(p models.UserProfile) string { return p.Description },
		commit: func(ctx context.Context, p models.UserProfile, description string) (string, error) {
			if err := c.deps.Records.Update(ctx, p.UserID, models.ProfileUpdate{Description: models.Ptr(description)}); err != nil {
				return "", newError(CodeUpdateProfile, err)
			}
			return CodeUpdated, nil
		},
	})
}

// EditEmail changes the sign-in email. With email verification enabled an
// unverified address sends the user to the verification screen once the
// record is updated.
func (c *Coordinator) EditEmail(ctx context.Context) Outcome {
	return c.editText(ctx, textEdit{
		field:       FieldEmail,
		title:       "Change email address",
		message:     "Enter a new email address.",
		input:       "email",
		placeholder: "Your email address",
		current:     func(p models.UserProfile) string { return p.Email },
		validate:    validateEmail,
		commit: func(ctx context.Context, p models.UserProfile, email string) (string, error) {
			if err := c.deps.Auth.UpdateEmail(ctx, email); err != nil {
				return "", err
			}
			if err := c.deps.Records.Update(ctx, p.UserID, models.ProfileUpdate{Email: models.Ptr(email)}); err != nil {
				return "", newError(CodeChangeEmail, err)
			}

			if !c.opts.EmailVerification {
				return CodeUpdated, nil
			}
			verified, err := c.deps.Auth.EmailVerified(ctx)
			if err != nil {
				c.log.Warn(ctx, "email verification state unknown", "field", string(FieldEmail), "error", err)
			}
			c.verified.Store(verified)
			if verified {
				return CodeUpdated, nil
			}
			c.deps.Navigator.RequireEmailVerification(ctx)
			return "", nil
		},
	})
}

// ChangePassword re-authenticates with the current password and then sets a
// new one.
func (c *Coordinator) ChangePassword(ctx context.Context) Outcome {
	o := c.begin(ctx, FieldPassword)

	p, err := c.snapshot()
	if err != nil {
		return o.fail(ctx, err)
	}

	reply, err := o.ask(ctx, passwordDialog())
	if err != nil {
		return o.noop(ctx, err)
	}
	answer, ok := decodePassword(reply)
	if !ok {
		return o.noop(ctx, nil)
	}

	cred := models.Credential{Email: p.Email, Password: answer.current}
	if err := c.busy(ctx, func() error { return c.deps.Auth.Reauthenticate(ctx, cred) }); err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateValidating)
	if err := c.opts.Rules.validatePassword(answer); err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateCommitting)
	if err := c.busy(ctx, func() error { return c.deps.Auth.UpdatePassword(ctx, answer.next) }); err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateDone)
	return o.succeed(ctx, CodePasswordChanged)
}

// EditPhoto asks for a photo source and hands it to the image handler.
func (c *Coordinator) EditPhoto(ctx context.Context) Outcome {
	o := c.begin(ctx, FieldPhoto)

	p, err := c.snapshot()
	if err != nil {
		return o.fail(ctx, err)
	}

	reply, err := o.ask(ctx, photoDialog())
	if err != nil {
		return o.noop(ctx, err)
	}
	answer, ok := decodePhoto(reply)
	if !ok {
		return o.noop(ctx, nil)
	}

	o.enter(ctx, StateCommitting)
	// The handler raises the busy indicator itself once the image is acquired.
	err = c.deps.Images.SetProfilePhoto(ctx, p, answer.source)
	if errors.Is(err, common.ErrorCancelled) {
		return o.noop(ctx, nil)
	}
	if err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateDone)
	return o.succeed(ctx, CodeUpdated)
}

// DeleteAccount removes the identity, then the stored image (in the
// background) and the record, and signs out. Nothing after the identity
// deletion runs when it fails.
func (c *Coordinator) DeleteAccount(ctx context.Context) Outcome {
	o := c.begin(ctx, FieldAccount)

	p, err := c.snapshot()
	if err != nil {
		return o.fail(ctx, err)
	}

	reply, err := o.ask(ctx, confirmDialog("Confirm deletion", "Are you sure you want to delete your account?", "Delete"))
	if err != nil || !decodeConfirm(reply) {
		return o.noop(ctx, err)
	}

	o.enter(ctx, StateCommitting)
	err = c.busy(ctx, func() error {
		if err := c.deps.Auth.DeleteAccount(ctx); err != nil {
			return err
		}

		c.deleteImageAsync(ctx, p)

		if err := c.deps.Records.Delete(ctx, p.UserID); err != nil {
			o.log.Error(ctx, "record delete failed after account deletion", "user_id", p.UserID, "error", err)
		}
		return nil
	})
	if err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateDone)
	out := o.succeed(ctx, CodeAccountDeleted)
	c.logout(ctx, "account deleted")
	return out
}

func (c *Coordinator) deleteImageAsync(ctx context.Context, p models.UserProfile) {
	bg := context.WithoutCancel(ctx)
	c.cleanup.Add(1)
	c.goAsync(func() {
		defer c.cleanup.Done()
		ctx, cancel := context.WithTimeout(bg, c.opts.BlobTimeout)
		defer cancel()
		if err := c.deps.Blobs.DeleteUserImage(ctx, p); err != nil {
			c.log.Warn(ctx, "image cleanup failed", "user_id", p.UserID, "error", err)
		}
	})
}

// Logout asks for confirmation and signs out.
func (c *Coordinator) Logout(ctx context.Context) Outcome {
	o := c.begin(ctx, FieldSession)

	reply, err := o.ask(ctx, confirmDialog("Confirm logout", "Are you sure you want to log out?", "Log out"))
	if err != nil || !decodeConfirm(reply) {
		return o.noop(ctx, err)
	}

	o.enter(ctx, StateCommitting)
	if err := c.deps.Session.Logout(ctx); err != nil {
		return o.fail(ctx, err)
	}

	o.enter(ctx, StateDone)
	o.log.Info(ctx, "logged out", "reason", "user")
	return o.outcome(StatusSuccess, "", nil)
}
