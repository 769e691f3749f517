package db

import (
	"context"
	"errors"
	"path"
	"time"
)

// Collection names under users/{uid}.
const (
	UsersCollection         = "users"
	FilesCollection         = "files"
	FoldersCollection       = "folders"
	NotesCollection         = "notes"
	TeamMembersCollection   = "teamMembers"
	SubscriptionsCollection = "subscriptions"
	CustomersCollection     = "stripe_customers"
	PaymentsCollection      = "payments"
	InvoicesCollection      = "invoices"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrListenerStopped is returned by SnapshotIterator.Next once the
	// listener was stopped or its context ended.
	ErrListenerStopped = errors.New("listener stopped")
)

// UserCollection returns the path of a collection scoped to uid.
func UserCollection(uid, name string) string {
	return path.Join(UsersCollection, uid, name)
}

// Filter is an equality filter on a top-level field.
type Filter struct {
	Field string
	Value interface{}
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    []Order
}

// Document is a stored document with its id.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Snapshot is a full result delivery of a live query. It supersedes every
// earlier delivery of the same listener.
type Snapshot struct {
	Documents []Document
	ReadTime  time.Time
}

// Empty reports whether the snapshot has no documents.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Documents) == 0
}

// SnapshotIterator delivers snapshots in server order.
type SnapshotIterator interface {
	// Next blocks until the next snapshot. It returns ErrListenerStopped
	// after Stop or when the listen context ends.
	Next() (*Snapshot, error)
	Stop()
}

// Write is one document upsert inside an atomic commit.
type Write struct {
	Collection string
	ID         string
	Data       map[string]interface{}
}

// DocumentStore is the document database the application relies on.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	// Set upserts a document with an explicit id.
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, data map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	// Commit applies all writes atomically or none of them.
	Commit(ctx context.Context, writes []Write) error
	// List runs a one-shot query.
	List(ctx context.Context, q Query) ([]Document, error)
	// Listen opens a live query.
	Listen(ctx context.Context, q Query) SnapshotIterator
}
