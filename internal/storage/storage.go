package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// User represents a user who has signed in at least once.
// The document key is the provider subject, so re-login upserts.
type User struct {
	ID         string    `json:"id" firestore:"id"`
	Provider   string    `json:"provider" firestore:"provider"`
	Email      string    `json:"email" firestore:"email"`
	Name       string    `json:"name" firestore:"name"`
	Picture    string    `json:"picture,omitempty" firestore:"picture,omitempty"`
	Domain     string    `json:"domain,omitempty" firestore:"domain,omitempty"`
	FirstSeen  time.Time `json:"first_seen" firestore:"first_seen"`
	LastSeen   time.Time `json:"last_seen" firestore:"last_seen"`
	LoginCount int64     `json:"login_count" firestore:"login_count"`
}

// AuthEventKind classifies audit log entries for the login flow
type AuthEventKind string

const (
	EventLoginStarted   AuthEventKind = "login_started"
	EventLoginSucceeded AuthEventKind = "login_succeeded"
	EventStateMismatch  AuthEventKind = "state_mismatch"
	EventProviderDenied AuthEventKind = "provider_denied"
	EventExchangeFailed AuthEventKind = "exchange_failed"
	EventLogout         AuthEventKind = "logout"
)

// AuthEvent is an audit record for a security-relevant step of the login
// flow. IDs are KSUIDs so events sort chronologically by ID.
type AuthEvent struct {
	ID        string        `json:"id" firestore:"id"`
	Kind      AuthEventKind `json:"kind" firestore:"kind"`
	Email     string        `json:"email,omitempty" firestore:"email,omitempty"`
	IP        string        `json:"ip,omitempty" firestore:"ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty" firestore:"user_agent,omitempty"`
	Detail    string        `json:"detail,omitempty" firestore:"detail,omitempty"`
	Time      time.Time     `json:"time" firestore:"time"`
}

// UserUpsert carries the identity fields written on each successful login
type UserUpsert struct {
	ID       string
	Provider string
	Email    string
	Name     string
	Picture  string
	Domain   string
}

// Storage persists users and auth audit events
type Storage interface {
	// UpsertUser creates the user on first login and refreshes
	// last-seen state on subsequent logins.
	UpsertUser(ctx context.Context, user UserUpsert) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error

	// RecordAuthEvent appends an audit event. Implementations assign
	// the event ID when it is empty.
	RecordAuthEvent(ctx context.Context, event AuthEvent) error
	// ListAuthEvents returns the most recent events, newest first.
	// A limit <= 0 returns all events.
	ListAuthEvents(ctx context.Context, limit int) ([]AuthEvent, error)

	Close() error
}
