// Package records provides Record Store adapters: a PostgreSQL store, an
// in-memory store, and an optional Redis change notifier.
package records

import (
	"context"

	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// Store is the record-store contract shared by the adapters.
type Store interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Ensure(ctx context.Context, p models.UserProfile) error
	FindByUsername(ctx context.Context, username string) ([]models.UserProfile, error)
	Update(ctx context.Context, userID string, u models.ProfileUpdate) error
	Delete(ctx context.Context, userID string) error
	Watch(ctx context.Context, userID string) (<-chan models.UserProfile, error)
}

// Notifier signals record changes between processes.
type Notifier interface {
	Publish(ctx context.Context, userID string) error
	Subscribe(ctx context.Context, userID string) (<-chan struct{}, error)
}

// offer delivers p on a one-slot channel, replacing a value the reader has
// not consumed yet.
func offer(ch chan models.UserProfile, p models.UserProfile) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
