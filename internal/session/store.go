// Package session persists the signed-in session on the device.
//
// Tokens live in the metadata table of a local SQLite database. The refresh
// token, which outlives the ID token, is sealed with the device key before it
// is written.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/profilekeeper/internal/cryptox"
	"github.com/dmitrijs2005/profilekeeper/internal/dbx"
	"github.com/dmitrijs2005/profilekeeper/internal/filex"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
	"github.com/dmitrijs2005/profilekeeper/internal/session/migrations"
)

const (
	keyUserID       = "user_id"
	keyEmail        = "email"
	keyIDToken      = "id_token"
	keyExpiresAt    = "expires_at"
	keyRefreshToken = "refresh_token"
)

type Store struct {
	db  *sql.DB
	key []byte
	log logging.Logger
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB, key []byte, log logging.Logger) *Store {
	return &Store{db: db, key: key, log: log.With("module", "session")}
}

// Open opens the SQLite database at path, migrates it and loads (or
// creates) the device key at keyPath.
func Open(ctx context.Context, path, keyPath string, log logging.Logger) (*Store, error) {
	key, err := cryptox.LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	if err := filex.EnsureParentDir(path, 0o700); err != nil {
		return nil, err
	}
	db, err := dbx.Open(ctx, "sqlite", path, "sqlite3", migrations.Migrations)
	if err != nil {
		return nil, err
	}
	return NewStore(db, key, log), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored session, or nil when nobody is signed in.
func (s *Store) Load(ctx context.Context) (*models.Session, error) {
	md := metadata{db: s.db}

	uid, err := md.get(ctx, keyUserID)
	if err != nil {
		return nil, err
	}
	if len(uid) == 0 {
		return nil, nil
	}

	sess := &models.Session{UserID: string(uid)}

	email, err := md.get(ctx, keyEmail)
	if err != nil {
		return nil, err
	}
	sess.Email = string(email)

	idToken, err := md.get(ctx, keyIDToken)
	if err != nil {
		return nil, err
	}
	sess.IDToken = string(idToken)

	exp, err := md.get(ctx, keyExpiresAt)
	if err != nil {
		return nil, err
	}
	if len(exp) > 0 {
		t, err := time.Parse(time.RFC3339Nano, string(exp))
		if err != nil {
			return nil, fmt.Errorf("parse expiry: %w", err)
		}
		sess.ExpiresAt = t
	}

	sealed, err := md.get(ctx, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	if len(sealed) > 0 {
		plain, err := cryptox.Open(s.key, sealed, uid)
		if err != nil {
			// sealed under another device key; the ID token still works
			// until it expires
			s.log.Warn(ctx, "refresh token unreadable", "user_id", sess.UserID, "error", err)
		} else {
			sess.RefreshToken = string(plain)
		}
	}

	return sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess models.Session) error {
	sealed, err := cryptox.Seal(s.key, []byte(sess.RefreshToken), []byte(sess.UserID))
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		md := metadata{db: tx}
		if err := md.clear(ctx); err != nil {
			return err
		}

		values := map[string][]byte{
			keyUserID:       []byte(sess.UserID),
			keyEmail:        []byte(sess.Email),
			keyIDToken:      []byte(sess.IDToken),
			keyRefreshToken: sealed,
		}
		if !sess.ExpiresAt.IsZero() {
			values[keyExpiresAt] = []byte(sess.ExpiresAt.UTC().Format(time.RFC3339Nano))
		}
		for k, v := range values {
			if err := md.set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Logout forgets every stored token.
func (s *Store) Logout(ctx context.Context) error {
	if err := (metadata{db: s.db}).clear(ctx); err != nil {
		return err
	}
	s.log.Info(ctx, "signed out")
	return nil
}
