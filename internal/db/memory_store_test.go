package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "users/u1/files", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AddGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	coll := UserCollection("u1", NotesCollection)

	id, err := s.Add(ctx, coll, map[string]interface{}{"title": "a"})
	require.NoError(t, err)
	assert.Len(t, id, 20)

	require.NoError(t, s.Update(ctx, coll, id, map[string]interface{}{"content": "b"}))
	doc, err := s.Get(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Data["title"])
	assert.Equal(t, "b", doc.Data["content"])

	doc.Data["title"] = "mutated"
	again, _ := s.Get(ctx, coll, id)
	assert.Equal(t, "a", again.Data["title"])

	require.NoError(t, s.Delete(ctx, coll, id))
	_, err = s.Get(ctx, coll, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Update(ctx, coll, id, map[string]interface{}{"x": 1}), ErrNotFound)
}

func TestMemoryStore_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Commit(ctx, []Write{
		{Collection: "subs", ID: "a", Data: map[string]interface{}{"status": "active", "plan": "pro_plan", "created_at": base}},
		{Collection: "subs", ID: "b", Data: map[string]interface{}{"status": "active", "plan": "free", "created_at": base.Add(time.Hour)}},
		{Collection: "subs", ID: "c", Data: map[string]interface{}{"status": "canceled", "plan": "pro_plan", "created_at": base.Add(2 * time.Hour)}},
		{Collection: "subs", ID: "d", Data: map[string]interface{}{"status": "active", "plan": "pro_plan", "created_at": base.Add(3 * time.Hour)}},
	}))

	docs, err := s.List(ctx, Query{
		Collection: "subs",
		Where:      []Filter{{Field: "status", Value: "active"}, {Field: "plan", Value: "pro_plan"}},
		OrderBy:    []Order{{Field: "created_at", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)

	all, err := s.List(ctx, Query{Collection: "subs"})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStore_ListenDeliversInitialAndChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()
	coll := UserCollection("u1", FilesCollection)

	it := s.Listen(ctx, Query{Collection: coll})
	defer it.Stop()

	snap, err := it.Next()
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	require.NoError(t, s.Set(ctx, coll, "f1", map[string]interface{}{"name": "a.txt"}))
	snap, err = it.Next()
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "f1", snap.Documents[0].ID)

	require.NoError(t, s.Delete(ctx, coll, "f1"))
	snap, err = it.Next()
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestMemoryStore_ListenIgnoresOtherCollections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()
	it := s.Listen(ctx, Query{Collection: "a"})
	_, err := it.Next()
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "b", "x", map[string]interface{}{}))

	done := make(chan error, 1)
	go func() {
		_, err := it.Next()
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("listener woke for an unrelated collection")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	assert.ErrorIs(t, <-done, ErrListenerStopped)
	assert.Equal(t, 0, s.ListenerCount())
}

func TestMemoryStore_StopEndsListener(t *testing.T) {
	s := NewMemoryStore()
	it := s.Listen(context.Background(), Query{Collection: "a"})
	_, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, s.ListenerCount())

	it.Stop()
	it.Stop()
	_, err = it.Next()
	assert.ErrorIs(t, err, ErrListenerStopped)
	assert.Equal(t, 0, s.ListenerCount())
}

func TestMemoryStore_CommitIsVisibleAtOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()
	it := s.Listen(ctx, Query{Collection: "p"})
	defer it.Stop()
	_, err := it.Next()
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx, []Write{
		{Collection: "p", ID: "1", Data: map[string]interface{}{"n": 1}},
		{Collection: "p", ID: "2", Data: map[string]interface{}{"n": 2}},
	}))
	snap, err := it.Next()
	require.NoError(t, err)
	assert.Len(t, snap.Documents, 2)
}

func TestCompareValues(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, compareValues("a", "a"))
	assert.Equal(t, -1, compareValues(int64(1), 2.5))
	assert.Equal(t, 1, compareValues(now.Add(time.Second), now))
	assert.Equal(t, -1, compareValues(nil, "a"))
	assert.Equal(t, 1, compareValues("a", nil))
	assert.Equal(t, -1, compareValues(false, true))
}
