package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
)

func TestCollectionMirror_ReplacesListInServerOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := db.NewMemoryStore()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seed(t, store, "u1", db.FilesCollection, "old", models.File{Name: "old.txt", CreatedAt: base}.Fields())
	seed(t, store, "u1", db.FilesCollection, "new", models.File{Name: "new.txt", CreatedAt: base.Add(time.Hour)}.Fields())
	seed(t, store, "u2", db.FilesCollection, "other", models.File{Name: "other.txt", CreatedAt: base}.Fields())

	m := NewCollectionMirror(db.FilesCollection, decodeFile, zaptest.NewLogger(t), nil)
	m.Reset(true)
	assert.True(t, m.Loading())
	go m.Run(ctx, store, "u1")

	require.Eventually(t, func() bool { return !m.Loading() }, time.Second, 5*time.Millisecond)
	items := m.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "old", items[1].ID)

	seed(t, store, "u1", db.FilesCollection, "newest", models.File{Name: "c.txt", CreatedAt: base.Add(2 * time.Hour)}.Fields())
	require.Eventually(t, func() bool { return m.Count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "newest", m.Items()[0].ID)
}

func TestCollectionMirror_SkipsUndecodableDocuments(t *testing.T) {
	m := NewCollectionMirror(db.NotesCollection, noteDecoder(passthroughSealer{}, zaptest.NewLogger(t)), zaptest.NewLogger(t), nil)
	m.Reset(true)
	m.Apply(&db.Snapshot{Documents: []db.Document{
		{ID: "ok", Data: models.Note{Title: "a", CreatedAt: time.Now()}.Fields()},
		{ID: "bad", Data: map[string]interface{}{"title": "b", "createdAt": "yesterday"}},
	}})
	require.Equal(t, 1, m.Count())
	assert.Equal(t, "ok", m.Items()[0].ID)
	assert.False(t, m.Loading())
}

func TestCollectionMirror_ErrorEndsLoading(t *testing.T) {
	store := &scriptedStore{MemoryStore: db.NewMemoryStore(), steps: []scriptStep{
		{snap: &db.Snapshot{Documents: []db.Document{{ID: "m1", Data: models.TeamMember{Name: "Ann", Role: models.RoleAdmin}.Fields()}}}},
		{err: errBoom},
	}}
	changes := 0
	m := NewCollectionMirror(db.TeamMembersCollection, decodeTeamMember, zaptest.NewLogger(t), func() { changes++ })
	m.Reset(true)
	m.Run(context.Background(), store, "u1")

	assert.False(t, m.Loading())
	require.Equal(t, 1, m.Count())
	assert.Equal(t, "Ann", m.Items()[0].Name)
	assert.Equal(t, 2, changes)
}

func TestCollectionMirror_ItemsIsACopy(t *testing.T) {
	m := NewCollectionMirror(db.FoldersCollection, decodeFolder, zaptest.NewLogger(t), nil)
	m.Apply(&db.Snapshot{Documents: []db.Document{{ID: "f1", Data: models.Folder{Name: "Docs"}.Fields()}}})
	items := m.Items()
	items[0].Name = "changed"
	assert.Equal(t, "Docs", m.Items()[0].Name)
}
