// Package identity is a client for an Identity Toolkit compatible
// authentication service. It signs users in, keeps their ID token fresh and
// performs the account mutations the profile screen needs.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// refreshSkew is how close to expiry an ID token gets refreshed.
const refreshSkew = time.Minute

// TokenStore persists the signed-in session.
type TokenStore interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s models.Session) error
}

// Options configures a Client.
type Options struct {
	APIKey        string
	Endpoint      string
	TokenEndpoint string
	Timeout       time.Duration
}

type Client struct {
	http          *http.Client
	apiKey        string
	endpoint      string
	tokenEndpoint string
	tokens        TokenStore
	now           func() time.Time
	log           logging.Logger
}

func NewClient(opts Options, tokens TokenStore, log logging.Logger) *Client {
	return &Client{
		http:          &http.Client{Timeout: opts.Timeout},
		apiKey:        opts.APIKey,
		endpoint:      strings.TrimRight(opts.Endpoint, "/"),
		tokenEndpoint: strings.TrimRight(opts.TokenEndpoint, "/"),
		tokens:        tokens,
		now:           time.Now,
		log:           log.With("module", "identity"),
	}
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		LastLoginAt   string `json:"lastLoginAt"`
	} `json:"users"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func (c *Client) withKey(u string) string {
	if c.apiKey == "" {
		return u
	}
	return u + "?key=" + url.QueryEscape(c.apiKey)
}

// do sends req and decodes a JSON response into out. Backend errors are
// mapped to *Error.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return req.Context().Err()
		}
		return networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode >= 300 {
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return fromBackend(resp.StatusCode, env.Error.Message)
		}
		return &Error{code: CodeInternal, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return internalError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return internalError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.withKey(c.endpoint+"/accounts:"+method), bytes.NewReader(body))
	if err != nil {
		return internalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, out); err != nil {
		c.log.Warn(ctx, "identity call failed", "method", method, "code", CodeOf(err), "error", err)
		return err
	}
	return nil
}

func (c *Client) sessionFrom(r tokenResponse, fallbackEmail string) (models.Session, error) {
	s := models.Session{
		UserID:       r.LocalID,
		Email:        r.Email,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}
	if s.Email == "" {
		s.Email = fallbackEmail
	}
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil {
		s.ExpiresAt = c.now().Add(time.Duration(secs) * time.Second)
	}
	if claims, err := ParseClaims(r.IDToken); err == nil {
		if s.UserID == "" {
			s.UserID = claims.UserID
		}
		if exp := claims.Expiry(); !exp.IsZero() {
			s.ExpiresAt = exp
		}
	}
	if s.UserID == "" || s.IDToken == "" {
		return models.Session{}, internalError(errors.New("token response without user or token"))
	}
	return s, nil
}

// SignIn authenticates with email and password and stores the new session.
func (c *Client) SignIn(ctx context.Context, cred models.Credential) (*models.Session, error) {
	var r tokenResponse
	err := c.call(ctx, "signInWithPassword", map[string]any{
		"email":             cred.Email,
		"password":          cred.Password,
		"returnSecureToken": true,
	}, &r)
	if err != nil {
		return nil, err
	}

	s, err := c.sessionFrom(r, cred.Email)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.log.Info(ctx, "signed in", "user_id", s.UserID)
	return &s, nil
}

// session returns the stored session with a fresh ID token.
func (c *Client) session(ctx context.Context) (*models.Session, error) {
	s, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, common.ErrorNotSignedIn
	}
	if !s.Expired(c.now(), refreshSkew) {
		return s, nil
	}
	return c.refresh(ctx, s)
}

func (c *Client) refresh(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s.RefreshToken == "" {
		return nil, &Error{code: CodeTokenExpired, Message: "no refresh token"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.withKey(c.tokenEndpoint+"/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, internalError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var r refreshResponse
	if err := c.do(req, &r); err != nil {
		c.log.Warn(ctx, "token refresh failed", "code", CodeOf(err), "error", err)
		return nil, err
	}

	next, err := c.sessionFrom(tokenResponse{
		LocalID:      r.UserID,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
	}, s.Email)
	if err != nil {
		return nil, err
	}
	if next.RefreshToken == "" {
		next.RefreshToken = s.RefreshToken
	}
	if err := c.tokens.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.log.Debug(ctx, "id token refreshed", "user_id", next.UserID)
	return &next, nil
}

// CurrentIdentity returns the signed-in account as the backend sees it.
func (c *Client) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	var r lookupResponse
	if err := c.call(ctx, "lookup", map[string]any{"idToken": s.IDToken}, &r); err != nil {
		return nil, err
	}
	if len(r.Users) == 0 {
		return nil, &Error{code: CodeUserNotFound, Message: "lookup returned no users"}
	}

	u := r.Users[0]
	id := &models.Identity{
		UserID:        u.LocalID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
	}
	if claims, err := ParseClaims(s.IDToken); err == nil {
		id.AuthTime = claims.AuthenticatedAt()
	}
	return id, nil
}

// EmailVerified reports the backend's verification flag for the account.
func (c *Client) EmailVerified(ctx context.Context) (bool, error) {
	id, err := c.CurrentIdentity(ctx)
	if err != nil {
		return false, err
	}
	return id.EmailVerified, nil
}

// Reauthenticate signs in again with cred, which must belong to the current
// user, and stores the fresh session.
func (c *Client) Reauthenticate(ctx context.Context, cred models.Credential) error {
	current, err := c.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return common.ErrorNotSignedIn
	}

	var r tokenResponse
	err = c.call(ctx, "signInWithPassword", map[string]any{
		"email":             cred.Email,
		"password":          cred.Password,
		"returnSecureToken": true,
	}, &r)
	if err != nil {
		return err
	}

	s, err := c.sessionFrom(r, cred.Email)
	if err != nil {
		return err
	}
	if s.UserID != current.UserID {
		return &Error{code: CodeUserMismatch, Message: "credential belongs to another account"}
	}
	if err := c.tokens.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// update posts an accounts:update with the current token and stores any
// tokens the backend reissues.
func (c *Client) update(ctx context.Context, fields map[string]any) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	fields["idToken"] = s.IDToken
	fields["returnSecureToken"] = true

	var r tokenResponse
	if err := c.call(ctx, "update", fields, &r); err != nil {
		return err
	}
	if r.IDToken == "" {
		return nil
	}

	if r.LocalID == "" {
		r.LocalID = s.UserID
	}
	if r.RefreshToken == "" {
		r.RefreshToken = s.RefreshToken
	}
	next, err := c.sessionFrom(r, s.Email)
	if err != nil {
		return err
	}
	if err := c.tokens.Save(ctx, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UpdateProfile sets the display name and photo URL.
func (c *Client) UpdateProfile(ctx context.Context, attrs models.ProfileAttributes) error {
	return c.update(ctx, map[string]any{
		"displayName": attrs.DisplayName,
		"photoUrl":    attrs.PhotoURL,
	})
}

func (c *Client) UpdateEmail(ctx context.Context, email string) error {
	return c.update(ctx, map[string]any{"email": email})
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	return c.update(ctx, map[string]any{"password": password})
}

// DeleteAccount removes the signed-in account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	if err := c.call(ctx, "delete", map[string]any{"idToken": s.IDToken}, nil); err != nil {
		return err
	}
	c.log.Info(ctx, "account deleted", "user_id", s.UserID)
	return nil
}

// SendEmailVerification asks the backend to mail a verification link.
func (c *Client) SendEmailVerification(ctx context.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, "sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     s.IDToken,
	}, nil)
}
