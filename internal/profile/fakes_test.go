package profile

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
	"github.com/stretchr/testify/require"
)

// callLog records the collaborator calls of one test in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.all() {
		if c == name {
			n++
		}
	}
	return n
}

type fakeAuth struct {
	log *callLog

	identity    *models.Identity
	identityErr error

	reauthErr   error
	updateErr   error
	emailErr    error
	passwordErr error
	deleteErr   error

	verified    bool
	verifiedErr error

	lastCred  models.Credential
	lastAttrs models.ProfileAttributes
	lastEmail string
	lastPass  string
}

func (f *fakeAuth) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	f.log.add("auth.current")
	return f.identity, f.identityErr
}

func (f *fakeAuth) Reauthenticate(ctx context.Context, cred models.Credential) error {
	f.log.add("auth.reauthenticate")
	f.lastCred = cred
	return f.reauthErr
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, attrs models.ProfileAttributes) error {
	f.log.add("auth.updateProfile")
	f.lastAttrs = attrs
	return f.updateErr
}

func (f *fakeAuth) UpdateEmail(ctx context.Context, email string) error {
	f.log.add("auth.updateEmail")
	f.lastEmail = email
	return f.emailErr
}

func (f *fakeAuth) UpdatePassword(ctx context.Context, password string) error {
	f.log.add("auth.updatePassword")
	f.lastPass = password
	return f.passwordErr
}

func (f *fakeAuth) DeleteAccount(ctx context.Context) error {
	f.log.add("auth.delete")
	return f.deleteErr
}

func (f *fakeAuth) EmailVerified(ctx context.Context) (bool, error) {
	f.log.add("auth.emailVerified")
	return f.verified, f.verifiedErr
}

type fakeRecords struct {
	log *callLog

	profile  models.UserProfile
	watchErr error

	byUsername map[string][]models.UserProfile
	findErr    error
	updateErr  error
	deleteErr  error

	updates []models.ProfileUpdate
}

func (f *fakeRecords) Watch(ctx context.Context, userID string) (<-chan models.UserProfile, error) {
	f.log.add("records.watch")
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	ch := make(chan models.UserProfile, 1)
	ch <- f.profile
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeRecords) FindByUsername(ctx context.Context, username string) ([]models.UserProfile, error) {
	f.log.add("records.find")
	return f.byUsername[username], f.findErr
}

func (f *fakeRecords) Update(ctx context.Context, userID string, u models.ProfileUpdate) error {
	f.log.add("records.update")
	f.updates = append(f.updates, u)
	return f.updateErr
}

func (f *fakeRecords) Delete(ctx context.Context, userID string) error {
	f.log.add("records.delete")
	return f.deleteErr
}

type fakeBlobs struct {
	log *callLog
	err error
}

func (f *fakeBlobs) DeleteUserImage(ctx context.Context, p models.UserProfile) error {
	f.log.add("blobs.delete")
	return f.err
}

type fakeImages struct {
	log     *callLog
	err     error
	lastSrc models.PhotoSource
}

func (f *fakeImages) SetProfilePhoto(ctx context.Context, p models.UserProfile, src models.PhotoSource) error {
	f.log.add("images.set")
	f.lastSrc = src
	return f.err
}

type fakeSession struct {
	log *callLog
	err error
}

func (f *fakeSession) Logout(ctx context.Context) error {
	f.log.add("session.logout")
	return f.err
}

type fakeNavigator struct{ log *callLog }

func (f *fakeNavigator) RequireEmailVerification(ctx context.Context) {
	f.log.add("nav.verifyEmail")
}

type fakePresenter struct {
	log *callLog

	replies []Reply
	askErr  error
	asked   []Dialog

	toasts []string
	alerts []string

	busy    int
	maxBusy int
}

func (f *fakePresenter) Ask(ctx context.Context, d Dialog) (Reply, error) {
	f.asked = append(f.asked, d)
	if f.askErr != nil {
		return Reply{}, f.askErr
	}
	if len(f.replies) == 0 {
		return Reply{}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakePresenter) Toast(ctx context.Context, code string) {
	f.log.add("toast")
	f.toasts = append(f.toasts, code)
}

func (f *fakePresenter) Alert(ctx context.Context, code string) {
	f.log.add("alert")
	f.alerts = append(f.alerts, code)
}

func (f *fakePresenter) Busy(ctx context.Context) func() {
	f.busy++
	if f.busy > f.maxBusy {
		f.maxBusy = f.busy
	}
	return func() { f.busy-- }
}

type harness struct {
	log       *callLog
	auth      *fakeAuth
	records   *fakeRecords
	blobs     *fakeBlobs
	images    *fakeImages
	session   *fakeSession
	nav       *fakeNavigator
	presenter *fakePresenter
	c         *Coordinator
}

func alice() models.UserProfile {
	return models.UserProfile{
		UserID:      "u1",
		DisplayName: "Alice Liddell",
		PhotoURL:    "http://blobs/users/u1/profile/a.png",
		Username:    "alice",
		Description: "curious",
		Email:       "alice@example.com",
	}
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	l := &callLog{}
	p := alice()
	h := &harness{
		log:       l,
		auth:      &fakeAuth{log: l, identity: &models.Identity{UserID: p.UserID, Email: p.Email, EmailVerified: true}},
		records:   &fakeRecords{log: l, profile: p},
		blobs:     &fakeBlobs{log: l},
		images:    &fakeImages{log: l},
		session:   &fakeSession{log: l},
		nav:       &fakeNavigator{log: l},
		presenter: &fakePresenter{log: l},
	}
	h.c = New(Deps{
		Auth:      h.auth,
		Records:   h.records,
		Blobs:     h.blobs,
		Images:    h.images,
		Session:   h.session,
		Navigator: h.nav,
		Presenter: h.presenter,
	}, opts, logging.Nop())
	h.c.goAsync = func(f func()) { f() }
	return h
}

// open opens the coordinator and forgets the calls it made.
func (h *harness) open(t *testing.T) {
	t.Helper()
	require.NoError(t, h.c.Open(context.Background()))
	t.Cleanup(h.c.Close)
	h.log.mu.Lock()
	h.log.calls = nil
	h.log.mu.Unlock()
	h.records.updates = nil
	h.presenter.maxBusy = 0
}

func (h *harness) reply(r ...Reply) { h.presenter.replies = append(h.presenter.replies, r...) }

func save(name, value string) Reply {
	return Reply{Action: ActionSave, Values: map[string]string{name: value}}
}

func passwords(current, next, confirm string) Reply {
	return Reply{Action: ActionSave, Values: map[string]string{
		inputCurrentPassword: current,
		inputPassword:        next,
		inputConfirmPassword: confirm,
	}}
}
