package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/dbx"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
	"github.com/dmitrijs2005/profilekeeper/internal/records/migrations"
)

const selectAccount = `SELECT user_id, name, username, description, email, photo_url, push_token, updated_at
		 FROM accounts`

type PostgresStore struct {
	db       dbx.DBTX
	interval time.Duration
	notifier Notifier
	log      logging.Logger
}

// NewPostgresStore wraps db. interval drives Watch polling; notifier may be
// nil.
func NewPostgresStore(db dbx.DBTX, interval time.Duration, notifier Notifier, log logging.Logger) *PostgresStore {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &PostgresStore{
		db:       db,
		interval: interval,
		notifier: notifier,
		log:      log.With("module", "records", "driver", "postgres"),
	}
}

// OpenPostgres connects with pgx and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	return dbx.Open(ctx, "pgx", dsn, "postgres", migrations.Migrations)
}

func scanAccount(row interface{ Scan(...any) error }) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Username, &p.Description, &p.Email, &p.PhotoURL, &p.PushToken, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := selectAccount + `
		 WHERE user_id = $1`

	p, err := scanAccount(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Ensure inserts p unless a record for p.UserID already exists.
func (s *PostgresStore) Ensure(ctx context.Context, p models.UserProfile) error {
	query :=
		`INSERT INTO accounts (user_id, name, email, photo_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.DisplayName, p.Email, p.PhotoURL); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) ([]models.UserProfile, error) {
	query := selectAccount + `
		 WHERE username = $1`

	rows, err := s.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.UserProfile
	for rows.Next() {
		p, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// buildUpdate renders the SET clause for the non-nil fields of u. The user id
// is always the last placeholder.
func buildUpdate(u models.ProfileUpdate) (string, []any) {
	var sets []string
	var args []any

	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("name", u.DisplayName)
	add("photo_url", u.PhotoURL)
	add("username", u.Username)
	add("description", u.Description)
	add("email", u.Email)
	add("push_token", u.PushToken)

	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE user_id = $%d", strings.Join(sets, ", "), len(args)+1)
	return query, args
}

func (s *PostgresStore) Update(ctx context.Context, userID string, u models.ProfileUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	query, args := buildUpdate(u)
	res, err := s.db.ExecContext(ctx, query, append(args, userID)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}

	s.notify(ctx, userID)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}

	s.notify(ctx, userID)
	return nil
}

func (s *PostgresStore) notify(ctx context.Context, userID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, userID); err != nil {
		s.log.Warn(ctx, "change notification failed", "user_id", userID, "error", err)
	}
}

// Watch emits the record for userID now and whenever its updated_at changes.
// The channel is closed when ctx is done.
func (s *PostgresStore) Watch(ctx context.Context, userID string) (<-chan models.UserProfile, error) {
	first, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var kick <-chan struct{}
	if s.notifier != nil {
		kick, err = s.notifier.Subscribe(ctx, userID)
		if err != nil {
			s.log.Warn(ctx, "change subscription failed, polling only", "user_id", userID, "error", err)
			kick = nil
		}
	}

	out := make(chan models.UserProfile, 1)
	out <- *first

	go s.poll(ctx, userID, first.UpdatedAt, kick, out)
	return out, nil
}

func (s *PostgresStore) poll(ctx context.Context, userID string, seen time.Time, kick <-chan struct{}, out chan models.UserProfile) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-kick:
			if !ok {
				kick = nil
				continue
			}
		}

		p, err := s.Get(ctx, userID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, common.ErrorNotFound) {
				s.log.Warn(ctx, "watch read failed", "user_id", userID, "error", err)
			}
			continue
		}
		if p.UpdatedAt.Equal(seen) {
			continue
		}
		seen = p.UpdatedAt
		offer(out, *p)
	}
}
