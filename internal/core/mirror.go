package core

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
)

// Decoder maps a stored document to a record.
type Decoder[T any] func(db.Document) (T, error)

// CollectionMirror keeps the latest snapshot of users/{uid}/{collection}.
type CollectionMirror[T any] struct {
	collection string
	decode     Decoder[T]
	logger     *zap.Logger
	onChange   func()

	mu      sync.RWMutex
	items   []T
	loading bool
}

// NewCollectionMirror returns an idle mirror of collection.
func NewCollectionMirror[T any](collection string, decode Decoder[T], logger *zap.Logger, onChange func()) *CollectionMirror[T] {
	if onChange == nil {
		onChange = func() {}
	}
	return &CollectionMirror[T]{collection: collection, decode: decode, logger: logger, onChange: onChange}
}

// MirrorQuery is the live query of a user collection, newest first.
func MirrorQuery(uid, collection string) db.Query {
	return db.Query{
		Collection: db.UserCollection(uid, collection),
		OrderBy:    []db.Order{{Field: "createdAt", Desc: true}},
	}
}

// Reset drops the items. An active mirror loads until its first snapshot.
func (m *CollectionMirror[T]) Reset(active bool) {
	m.mu.Lock()
	m.items = nil
	m.loading = active
	m.mu.Unlock()
}

// Run keeps the listener for uid open until ctx ends.
func (m *CollectionMirror[T]) Run(ctx context.Context, store db.DocumentStore, uid string) {
	listen(ctx, store, MirrorQuery(uid, m.collection), m.Apply, func(err error) {
		m.logger.Error("Collection listener failed, list frozen",
			zap.String("uid", uid), zap.String("collection", m.collection), zap.Error(err))
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		m.onChange()
	})
}

// Apply replaces the list with the snapshot, keeping its order.
func (m *CollectionMirror[T]) Apply(snap *db.Snapshot) {
	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		item, err := m.decode(doc)
		if err != nil {
			m.logger.Warn("Skipping undecodable document",
				zap.String("collection", m.collection), zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	m.mu.Lock()
	m.items = items
	m.loading = false
	m.mu.Unlock()
	m.onChange()
}

// Items returns a copy of the list.
func (m *CollectionMirror[T]) Items() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

func (m *CollectionMirror[T]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *CollectionMirror[T]) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func decodeFile(doc db.Document) (models.File, error) {
	var f models.File
	err := db.DecodeDocument(doc, &f)
	f.ID = doc.ID
	return f, err
}

func decodeFolder(doc db.Document) (models.Folder, error) {
	var f models.Folder
	err := db.DecodeDocument(doc, &f)
	f.ID = doc.ID
	return f, err
}

func decodeTeamMember(doc db.Document) (models.TeamMember, error) {
	var m models.TeamMember
	err := db.DecodeDocument(doc, &m)
	m.ID = doc.ID
	return m, err
}

// noteDecoder opens sealed note bodies. Content that does not open is kept
// as stored, so the note stays listed and editable.
func noteDecoder(sealer ContentSealer, logger *zap.Logger) Decoder[models.Note] {
	return func(doc db.Document) (models.Note, error) {
		var n models.Note
		if err := db.DecodeDocument(doc, &n); err != nil {
			return n, err
		}
		n.ID = doc.ID
		content, err := sealer.Open(n.Content)
		if err != nil {
			logger.Warn("Note content could not be opened, returning it as stored",
				zap.String("id", doc.ID), zap.Error(err))
			return n, nil
		}
		n.Content = content
		return n, nil
	}
}
