package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore with live listeners. It backs
// BACKEND=memory and the tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	listeners   map[*memoryListener]struct{}
	now         func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		listeners:   make(map[*memoryListener]struct{}),
		now:         time.Now,
	}
}

var _ DocumentStore = (*MemoryStore)(nil)

func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func copyFields(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &Document{ID: id, Data: copyFields(data)}, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := newDocumentID()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return s.Commit(ctx, []Write{{Collection: collection, ID: id, Data: data}})
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range data {
		existing[k] = v
	}
	s.mu.Unlock()
	s.notify(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.collections[collection], id)
	s.mu.Unlock()
	s.notify(collection)
	return nil
}

// Commit applies the writes under one lock so no reader sees a partial set.
func (s *MemoryStore) Commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	touched := make(map[string]struct{}, len(writes))
	s.mu.Lock()
	for _, w := range writes {
		docs, ok := s.collections[w.Collection]
		if !ok {
			docs = make(map[string]map[string]interface{})
			s.collections[w.Collection] = docs
		}
		docs[w.ID] = copyFields(w.Data)
		touched[w.Collection] = struct{}{}
	}
	s.mu.Unlock()
	for collection := range touched {
		s.notify(collection)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run(q), nil
}

// run evaluates q. Callers hold s.mu.
func (s *MemoryStore) run(q Query) []Document {
	docs := []Document{}
	for id, data := range s.collections[q.Collection] {
		if matches(data, q.Where) {
			docs = append(docs, Document{ID: id, Data: copyFields(data)})
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range q.OrderBy {
			c := compareValues(docs[i].Data[o.Field], docs[j].Data[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

func matches(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || compareValues(v, f.Value) != 0 {
			return false
		}
	}
	return true
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if b == nil {
		return 1
	}
	// Mismatched types order by type name, which keeps sorting stable.
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (s *MemoryStore) notify(collection string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for l := range s.listeners {
		if l.query.Collection != collection {
			continue
		}
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
}

// Listen registers a listener. The first Next returns the current result
// set; later calls block until the collection changes.
func (s *MemoryStore) Listen(ctx context.Context, q Query) SnapshotIterator {
	l := &memoryListener{
		store:   s,
		ctx:     ctx,
		query:   q,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	s.mu.Lock()
	s.listeners[l] = struct{}{}
	s.mu.Unlock()
	return l
}

// ListenerCount returns the number of open listeners.
func (s *MemoryStore) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

type memoryListener struct {
	store     *MemoryStore
	ctx       context.Context
	query     Query
	signal    chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
	delivered bool
}

func (l *memoryListener) Next() (*Snapshot, error) {
	if l.delivered {
		select {
		case <-l.ctx.Done():
			l.Stop()
			return nil, ErrListenerStopped
		case <-l.stopped:
			return nil, ErrListenerStopped
		case <-l.signal:
		}
	}
	select {
	case <-l.stopped:
		return nil, ErrListenerStopped
	default:
	}
	if l.ctx.Err() != nil {
		l.Stop()
		return nil, ErrListenerStopped
	}
	l.delivered = true
	l.store.mu.RLock()
	docs := l.store.run(l.query)
	l.store.mu.RUnlock()
	return &Snapshot{Documents: docs, ReadTime: l.store.now()}, nil
}

func (l *memoryListener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		l.store.mu.Lock()
		delete(l.store.listeners, l)
		l.store.mu.Unlock()
	})
}
