package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// MemoryStorage implements Storage with in-process maps. Used in
// development and tests; state is lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	users  map[string]User
	events []AuthEvent
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]User),
	}
}

// UpsertUser creates or refreshes a user record
func (s *MemoryStorage) UpsertUser(ctx context.Context, upsert UserUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	user, ok := s.users[upsert.ID]
	if !ok {
		user = User{ID: upsert.ID, FirstSeen: now}
	}
	user.Provider = upsert.Provider
	user.Email = upsert.Email
	user.Name = upsert.Name
	user.Picture = upsert.Picture
	user.Domain = upsert.Domain
	user.LastSeen = now
	user.LoginCount++

	s.users[upsert.ID] = user
	return nil
}

// GetUser returns a user by ID
func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// GetAllUsers returns all users sorted by first-seen time
func (s *MemoryStorage) GetAllUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].FirstSeen.Before(users[j].FirstSeen)
	})
	return users, nil
}

// DeleteUser removes a user. Deleting a missing user is not an error.
func (s *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	return nil
}

// RecordAuthEvent appends an audit event, assigning an ID if missing
func (s *MemoryStorage) RecordAuthEvent(ctx context.Context, event AuthEvent) error {
	if event.ID == "" {
		event.ID = ksuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// ListAuthEvents returns the most recent events, newest first
func (s *MemoryStorage) ListAuthEvents(ctx context.Context, limit int) ([]AuthEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]AuthEvent, len(s.events))
	copy(events, s.events)

	// KSUIDs are time-ordered, so ID order is chronological
	sort.Slice(events, func(i, j int) bool {
		return events[i].ID > events[j].ID
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Close is a no-op for memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
