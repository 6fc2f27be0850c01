package records

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// MemoryStore keeps records in a map and pushes every change to watchers.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]models.UserProfile
	watchers map[string]map[chan models.UserProfile]struct{}
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: map[string]models.UserProfile{},
		watchers: map[string]map[chan models.UserProfile]struct{}{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.accounts[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Ensure(_ context.Context, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[p.UserID]; ok {
		return nil
	}
	p.UpdatedAt = s.now()
	s.accounts[p.UserID] = p
	s.broadcast(p)
	return nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) ([]models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.UserProfile
	for _, p := range s.accounts {
		if p.Username == username {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, u models.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.accounts[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Apply(&p)
	p.UpdatedAt = s.now()
	s.accounts[userID] = p
	s.broadcast(p)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(s.accounts, userID)
	return nil
}

// Watch emits the current record and then every change until ctx is done.
func (s *MemoryStore) Watch(ctx context.Context, userID string) (<-chan models.UserProfile, error) {
	s.mu.Lock()
	p, ok := s.accounts[userID]
	if !ok {
		s.mu.Unlock()
		return nil, common.ErrorNotFound
	}

	ch := make(chan models.UserProfile, 1)
	ch <- p
	if s.watchers[userID] == nil {
		s.watchers[userID] = map[chan models.UserProfile]struct{}{}
	}
	s.watchers[userID][ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[userID], ch)
		if len(s.watchers[userID]) == 0 {
			delete(s.watchers, userID)
		}
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// broadcast must be called with s.mu held.
func (s *MemoryStore) broadcast(p models.UserProfile) {
	for ch := range s.watchers[p.UserID] {
		offer(ch, p)
	}
}
