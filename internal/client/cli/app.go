package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/profilekeeper/internal/alerts"
	"github.com/dmitrijs2005/profilekeeper/internal/blobs"
	"github.com/dmitrijs2005/profilekeeper/internal/config"
	"github.com/dmitrijs2005/profilekeeper/internal/identity"
	"github.com/dmitrijs2005/profilekeeper/internal/imaging"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
	"github.com/dmitrijs2005/profilekeeper/internal/profile"
	"github.com/dmitrijs2005/profilekeeper/internal/records"
	"github.com/dmitrijs2005/profilekeeper/internal/session"
)

const (
	codeVerificationSent = "auth/verification-sent"
	codeSignedIn         = "auth/signed-in"
)

// authClient is the part of the identity client the app calls directly.
type authClient interface {
	profile.AuthService
	SignIn(ctx context.Context, cred models.Credential) (*models.Session, error)
	SendEmailVerification(ctx context.Context) error
}

type tokenStore interface {
	identity.TokenStore
	Logout(ctx context.Context) error
}

type App struct {
	config    *config.Config
	log       logging.Logger
	reader    *bufio.Reader
	presenter *Presenter

	tokens tokenStore
	auth   authClient

	records     records.Store
	coordinator *profile.Coordinator

	closers []func() error
	done    bool
}

// NewApp opens the local session and the identity client. Backends are
// connected by Run once a user is signed in.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	catalog := alerts.Default()
	if c.MessagesPath != "" {
		cat, err := alerts.Load(c.MessagesPath)
		if err != nil {
			return nil, err
		}
		catalog = cat
	}

	store, err := session.Open(ctx, c.SessionDBPath, c.SessionKeyPath, log)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	auth := identity.NewClient(identity.Options{
		APIKey:        c.IdentityAPIKey,
		Endpoint:      c.IdentityEndpoint,
		TokenEndpoint: c.TokenEndpoint,
		Timeout:       c.HTTPTimeout,
	}, store, log)

	reader := bufio.NewReader(in)
	return &App{
		config:    c,
		log:       log.With("module", "cli"),
		reader:    reader,
		presenter: NewPresenter(reader, out, catalog),
		tokens:    store,
		auth:      auth,
		closers:   []func() error{store.Close},
	}, nil
}

// Close releases everything the app opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

// Run signs the user in if needed, opens the profile and runs the REPL.
func (a *App) Run(ctx context.Context) error {
	if err := a.ensureSignedIn(ctx); err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.coordinator.Open(ctx); err != nil {
		return fmt.Errorf("open profile: %w", err)
	}
	defer a.coordinator.Close()

	a.presenter.Println("Welcome to profilekeeper (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) ensureSignedIn(ctx context.Context) error {
	s, err := a.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s != nil {
		return nil
	}
	return a.Login(ctx)
}

// Login asks for email and password and stores the new session.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.presenter.out)
	if err != nil {
		return err
	}
	password, err := a.presenter.secret("Password", a.presenter.out)
	if err != nil {
		return err
	}

	stop := a.presenter.Busy(ctx)
	_, err = a.auth.SignIn(ctx, models.Credential{Email: email, Password: password})
	stop()
	if err != nil {
		a.presenter.Alert(ctx, identity.CodeOf(err))
		return err
	}
	a.presenter.Toast(ctx, codeSignedIn)
	return nil
}

// connect builds the record store, blob store, image handler and
// coordinator for the signed-in user.
func (a *App) connect(ctx context.Context) error {
	id, err := a.auth.CurrentIdentity(ctx)
	if err != nil {
		return fmt.Errorf("current identity: %w", err)
	}

	store, err := a.openRecords(ctx)
	if err != nil {
		return err
	}
	a.records = store

	err = store.Ensure(ctx, models.UserProfile{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Email:       id.Email,
	})
	if err != nil {
		return fmt.Errorf("ensure record: %w", err)
	}

	bs, err := blobs.NewS3Store(ctx, blobs.Options{
		Region:        a.config.S3Region,
		AccessKey:     a.config.S3RootUser,
		SecretKey:     a.config.S3RootPassword,
		Bucket:        a.config.S3Bucket,
		BaseEndpoint:  a.config.S3BaseEndpoint,
		PublicBaseURL: a.config.S3PublicBaseURL,
	}, a.log)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	acq := &imaging.DeviceAcquirer{PickFile: a.presenter.PickFile, CaptureCommand: a.config.CaptureCommand}
	images := imaging.NewHandler(acq, bs, a.auth, store, a.config.ImageSize, a.log).WithBusy(a.presenter.Busy)

	a.coordinator = profile.New(profile.Deps{
		Auth:      a.auth,
		Records:   store,
		Blobs:     bs,
		Images:    images,
		Session:   sessionEnder{app: a},
		Navigator: a,
		Presenter: a.presenter,
	}, profile.Options{
		Rules: profile.Rules{
			NameMinLength:     a.config.NameMinLength,
			PasswordMinLength: a.config.PasswordMinLength,
		},
		EmailVerification: a.config.EmailVerification,
		PushToken:         a.config.PushToken,
	}, a.log)
	return nil
}

func (a *App) openRecords(ctx context.Context) (records.Store, error) {
	switch strings.ToLower(a.config.RecordDriver) {
	case "memory":
		return records.NewMemoryStore(), nil
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unknown record driver %q", a.config.RecordDriver)
	}

	db, err := records.OpenPostgres(ctx, a.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	var notifier records.Notifier
	if a.config.RedisAddr != "" {
		n, err := records.NewRedisNotifier(ctx, a.config.RedisAddr, a.log)
		if err != nil {
			a.log.Warn(ctx, "redis unavailable, falling back to polling", "addr", a.config.RedisAddr, "error", err)
		} else {
			notifier = n
			a.closers = append(a.closers, n.Close)
		}
	}
	return records.NewPostgresStore(db, a.config.WatchInterval, notifier, a.log), nil
}

func (a *App) status() string {
	p, ok := a.coordinator.Snapshot()
	if !ok {
		return ""
	}
	if p.Username != "" {
		return "(" + p.Username + ")"
	}
	return "(" + p.Email + ")"
}

func (a *App) ended() bool { return a.done }

// RequireEmailVerification sends a verification link for the new address.
func (a *App) RequireEmailVerification(ctx context.Context) {
	if err := a.SendVerification(ctx); err != nil {
		a.log.Warn(ctx, "verification email failed", "error", err)
	}
}

func (a *App) SendVerification(ctx context.Context) error {
	stop := a.presenter.Busy(ctx)
	err := a.auth.SendEmailVerification(ctx)
	stop()
	if err != nil {
		a.presenter.Alert(ctx, identity.CodeOf(err))
		return err
	}
	a.presenter.Toast(ctx, codeVerificationSent)
	return nil
}

// Show prints the current profile.
func (a *App) Show(ctx context.Context) error {
	p, ok := a.coordinator.Snapshot()
	if !ok {
		return profile.ErrNotOpen
	}
	verified := "no"
	if p.EmailVerified {
		verified = "yes"
	}
	a.presenter.Println("Name:       ", p.DisplayName)
	a.presenter.Println("Username:   ", p.Username)
	a.presenter.Println("Description:", p.Description)
	a.presenter.Println("Email:      ", p.Email, "(verified: "+verified+")")
	a.presenter.Println("Photo:      ", p.PhotoURL)
	return nil
}

func (a *App) EditPhoto(ctx context.Context) error { return a.report(ctx, a.coordinator.EditPhoto(ctx)) }
func (a *App) EditName(ctx context.Context) error  { return a.report(ctx, a.coordinator.EditName(ctx)) }
func (a *App) EditUsername(ctx context.Context) error {
	return a.report(ctx, a.coordinator.EditUsername(ctx))
}
func (a *App) EditDescription(ctx context.Context) error {
	return a.report(ctx, a.coordinator.EditDescription(ctx))
}
func (a *App) EditEmail(ctx context.Context) error { return a.report(ctx, a.coordinator.EditEmail(ctx)) }
func (a *App) ChangePassword(ctx context.Context) error {
	return a.report(ctx, a.coordinator.ChangePassword(ctx))
}
func (a *App) DeleteAccount(ctx context.Context) error {
	return a.report(ctx, a.coordinator.DeleteAccount(ctx))
}
func (a *App) Logout(ctx context.Context) error { return a.report(ctx, a.coordinator.Logout(ctx)) }

func (a *App) report(ctx context.Context, out profile.Outcome) error {
	a.log.Debug(ctx, "command finished",
		"field", string(out.Field), "status", out.Status.String(), "code", out.Code)
	if out.Status == profile.StatusFailed {
		if out.Err != nil {
			return out.Err
		}
		return errors.New(out.Code)
	}
	return nil
}

// sessionEnder clears the stored session and stops the REPL.
type sessionEnder struct{ app *App }

func (s sessionEnder) Logout(ctx context.Context) error {
	if err := s.app.tokens.Logout(ctx); err != nil {
		return err
	}
	s.app.done = true
	s.app.presenter.Println("Signed out.")
	return nil
}
