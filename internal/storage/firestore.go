package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/segmentio/ksuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage implements Storage using Google Cloud Firestore.
//
// Error handling strategy:
//   - Read operations return errors (callers need the data)
//   - Audit event writes log and continue (a Firestore blip must not
//     break a login that already succeeded)
type FirestoreStorage struct {
	client          *firestore.Client
	userCollection  string
	eventCollection string
}

var _ Storage = (*FirestoreStorage)(nil)

// NewFirestoreStorage creates a Firestore-backed storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = "sinoname_users"
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStorage{
		client:          client,
		userCollection:  collection,
		eventCollection: collection + "_auth_events",
	}, nil
}

// UpsertUser creates or refreshes a user document
func (s *FirestoreStorage) UpsertUser(ctx context.Context, upsert UserUpsert) error {
	now := time.Now()
	ref := s.client.Collection(s.userCollection).Doc(upsert.ID)

	doc, err := ref.Get(ctx)
	if err == nil {
		var existing User
		loginCount := int64(0)
		if err := doc.DataTo(&existing); err == nil {
			loginCount = existing.LoginCount
		}
		_, err = ref.Update(ctx, []firestore.Update{
			{Path: "email", Value: upsert.Email},
			{Path: "name", Value: upsert.Name},
			{Path: "picture", Value: upsert.Picture},
			{Path: "domain", Value: upsert.Domain},
			{Path: "last_seen", Value: now},
			{Path: "login_count", Value: loginCount + 1},
		})
		return err
	}

	if status.Code(err) == codes.NotFound {
		_, err = ref.Set(ctx, User{
			ID:         upsert.ID,
			Provider:   upsert.Provider,
			Email:      upsert.Email,
			Name:       upsert.Name,
			Picture:    upsert.Picture,
			Domain:     upsert.Domain,
			FirstSeen:  now,
			LastSeen:   now,
			LoginCount: 1,
		})
		return err
	}

	return err
}

// GetUser returns a user by ID
func (s *FirestoreStorage) GetUser(ctx context.Context, id string) (*User, error) {
	doc, err := s.client.Collection(s.userCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user from Firestore: %w", err)
	}

	var user User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// GetAllUsers returns all users
func (s *FirestoreStorage) GetAllUsers(ctx context.Context) ([]User, error) {
	iter := s.client.Collection(s.userCollection).Documents(ctx)
	defer iter.Stop()

	var users []User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var user User
		if err := doc.DataTo(&user); err != nil {
			log.LogError("Failed to unmarshal user %s: %v", doc.Ref.ID, err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user document. Deleting a missing user is not an error.
func (s *FirestoreStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.client.Collection(s.userCollection).Doc(id).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// RecordAuthEvent appends an audit event, assigning an ID if missing.
// Failures are logged rather than returned so audit writes never break
// the login flow.
func (s *FirestoreStorage) RecordAuthEvent(ctx context.Context, event AuthEvent) error {
	if event.ID == "" {
		event.ID = ksuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	_, err := s.client.Collection(s.eventCollection).Doc(event.ID).Set(ctx, event)
	if err != nil {
		log.LogError("Failed to record auth event %s (%s): %v", event.ID, event.Kind, err)
	}
	return nil
}

// ListAuthEvents returns the most recent events, newest first.
// KSUID document IDs sort chronologically, so ordering by ID descending
// gives newest-first without a composite index.
func (s *FirestoreStorage) ListAuthEvents(ctx context.Context, limit int) ([]AuthEvent, error) {
	query := s.client.Collection(s.eventCollection).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var events []AuthEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate auth events: %w", err)
		}

		var event AuthEvent
		if err := doc.DataTo(&event); err != nil {
			log.LogError("Failed to unmarshal auth event %s: %v", doc.Ref.ID, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
