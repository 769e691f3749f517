package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/internal/objectstore"
	"github.com/storahq/stora/pkg/mailer"
)

var errBoom = errors.New("boom")

// scriptedIterator delivers a fixed sequence of snapshots or errors and then
// blocks until its context ends.
type scriptedIterator struct {
	ctx   context.Context
	steps []scriptStep
	next  int
}

type scriptStep struct {
	snap *db.Snapshot
	err  error
}

func (it *scriptedIterator) Next() (*db.Snapshot, error) {
	if it.next < len(it.steps) {
		step := it.steps[it.next]
		it.next++
		return step.snap, step.err
	}
	<-it.ctx.Done()
	return nil, db.ErrListenerStopped
}

func (it *scriptedIterator) Stop() {}

// scriptedStore serves scripted listeners on top of a MemoryStore.
type scriptedStore struct {
	*db.MemoryStore
	steps []scriptStep
}

func (s *scriptedStore) Listen(ctx context.Context, _ db.Query) db.SnapshotIterator {
	return &scriptedIterator{ctx: ctx, steps: s.steps}
}

// commitHookStore lets tests intercept Commit.
type commitHookStore struct {
	*db.MemoryStore
	mu      sync.Mutex
	commits int
	hook    func(ctx context.Context) error
}

func (s *commitHookStore) Commit(ctx context.Context, writes []db.Write) error {
	s.mu.Lock()
	s.commits++
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return s.MemoryStore.Commit(ctx, writes)
}

func (s *commitHookStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// spyObjects records calls and can fail deletes.
type spyObjects struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	deleteErr error
}

func (s *spyObjects) Upload(_ context.Context, path string, r io.Reader, size int64, _ string, progress objectstore.ProgressFunc) error {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(n, size)
	}
	s.mu.Lock()
	s.uploads = append(s.uploads, path)
	s.mu.Unlock()
	return nil
}

func (s *spyObjects) URL(_ context.Context, path string) (string, error) {
	return "https://objects.test/" + path, nil
}

func (s *spyObjects) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, path)
	return s.deleteErr
}

func (s *spyObjects) calls() (uploads, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads), len(s.deletes)
}

type fixedEntitlement bool

func (f fixedEntitlement) IsPro(context.Context, string) (bool, error) { return bool(f), nil }

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// passthroughSealer leaves values unchanged.
type passthroughSealer struct{}

func (passthroughSealer) Seal(v string) (string, error) { return v, nil }
func (passthroughSealer) Open(v string) (string, error) { return v, nil }

func snapshotOf(ids ...string) *db.Snapshot {
	snap := &db.Snapshot{ReadTime: time.Now()}
	for _, id := range ids {
		snap.Documents = append(snap.Documents, db.Document{ID: id, Data: map[string]interface{}{}})
	}
	return snap
}

func seed(t *testing.T, store db.DocumentStore, uid, collection, id string, data map[string]interface{}) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), db.UserCollection(uid, collection), id, data))
}

func count(t *testing.T, store db.DocumentStore, uid, collection string) int {
	t.Helper()
	docs, err := store.List(context.Background(), db.Query{Collection: db.UserCollection(uid, collection)})
	require.NoError(t, err)
	return len(docs)
}

func testIdentity(uid string) *models.Identity {
	return &models.Identity{UID: uid, Email: uid + "@b.com", EmailVerified: true, Provider: models.ProviderPassword}
}

func newStoreWithProSubscription(t *testing.T, uid string) *db.MemoryStore {
	store := db.NewMemoryStore()
	seed(t, store, uid, db.SubscriptionsCollection, "sub_1",
		map[string]interface{}{"plan": models.PlanPro, "status": models.SubscriptionActive})
	return store
}
