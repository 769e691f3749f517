package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

var _ DocumentStore = (*FirestoreStore)(nil)

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if id == "" {
		return nil, errors.New("document id cannot be empty for Get operation")
	}
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, data map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(data))
	for field, value := range data {
		updates = append(updates, firestore.Update{Path: field, Value: value})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Commit runs the writes in a single transaction.
func (s *FirestoreStore) Commit(ctx context.Context, writes []Write) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			if err := tx.Set(s.client.Collection(w.Collection).Doc(w.ID), w.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %d writes: %w", len(writes), err)
	}
	return nil
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Where {
		query = query.Where(f.Field, "==", f.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(o.Field, dir)
	}
	return query
}

func (s *FirestoreStore) List(ctx context.Context, q Query) ([]Document, error) {
	iter := s.query(q).Documents(ctx)
	defer iter.Stop()
	return collect(iter, q.Collection)
}

// Listen opens a Firestore snapshot listener.
func (s *FirestoreStore) Listen(ctx context.Context, q Query) SnapshotIterator {
	return &firestoreSnapshots{ctx: ctx, it: s.query(q).Snapshots(ctx), collection: q.Collection}
}

type firestoreSnapshots struct {
	ctx        context.Context
	it         *firestore.QuerySnapshotIterator
	collection string
}

func (f *firestoreSnapshots) Next() (*Snapshot, error) {
	qs, err := f.it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || f.ctx.Err() != nil {
			return nil, ErrListenerStopped
		}
		return nil, fmt.Errorf("listen %s: %w", f.collection, err)
	}
	docs, err := collect(qs.Documents, f.collection)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Documents: docs, ReadTime: qs.ReadTime}, nil
}

func (f *firestoreSnapshots) Stop() {
	f.it.Stop()
}

func collect(iter *firestore.DocumentIterator, collection string) ([]Document, error) {
	docs := []Document{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}
