package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
)

// Counts are the sizes of the mirrored lists.
type Counts struct {
	Files   int `json:"files"`
	Folders int `json:"folders"`
	Notes   int `json:"notes"`
	Team    int `json:"team"`
}

// DashboardState is the combined view of one session.
type DashboardState struct {
	Identity *models.Identity    `json:"identity"`
	Loading  bool                `json:"loading"`
	IsPro    bool                `json:"isPro"`
	Files    []models.File       `json:"files"`
	Folders  []models.Folder     `json:"folders"`
	Notes    []models.Note       `json:"notes"`
	Team     []models.TeamMember `json:"team"`
	Counts   Counts              `json:"counts"`
}

// Session owns every identity-scoped listener of one dashboard connection.
// An identity change stops all of them, waits for them to exit, resets the
// state and starts the new set while readers are held off.
type Session struct {
	store  db.DocumentStore
	logger *zap.Logger

	swap        sync.RWMutex
	tracker     *IdentityTracker
	entitlement *EntitlementDeriver
	files       *CollectionMirror[models.File]
	folders     *CollectionMirror[models.Folder]
	notes       *CollectionMirror[models.Note]
	team        *CollectionMirror[models.TeamMember]

	parent context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	updates chan struct{}
	sigMu   sync.Mutex
	changed chan struct{}
}

// NewSession creates a session bound to ctx. Listeners never outlive ctx.
func NewSession(ctx context.Context, store db.DocumentStore, sealer ContentSealer, logger *zap.Logger) *Session {
	s := &Session{
		store:   store,
		logger:  logger,
		tracker: NewIdentityTracker(),
		parent:  ctx,
		updates: make(chan struct{}, 1),
		changed: make(chan struct{}),
	}
	s.entitlement = NewEntitlementDeriver(logger, s.notify)
	s.files = NewCollectionMirror(db.FilesCollection, decodeFile, logger, s.notify)
	s.folders = NewCollectionMirror(db.FoldersCollection, decodeFolder, logger, s.notify)
	s.notes = NewCollectionMirror(db.NotesCollection, noteDecoder(sealer, logger), logger, s.notify)
	s.team = NewCollectionMirror(db.TeamMembersCollection, decodeTeamMember, logger, s.notify)
	return s
}

// SetIdentity feeds an identity callback. A new uid, or sign-out,
// resubscribes everything; the same uid only refreshes the identity fields.
func (s *Session) SetIdentity(identity *models.Identity) {
	s.swap.Lock()
	if prev := s.tracker.Current(); !s.tracker.Resolving() && identity != nil && prev != nil && prev.UID == identity.UID {
		s.tracker.Set(identity)
		s.swap.Unlock()
		if *prev != *identity {
			s.notify()
		}
		return
	}

	s.stopLocked()
	s.tracker.Set(identity)
	active := identity != nil
	s.entitlement.Reset(identity)
	s.files.Reset(active)
	s.folders.Reset(active)
	s.notes.Reset(active)
	s.team.Reset(active)
	if active && s.parent.Err() == nil {
		s.startLocked(identity.UID)
	}
	s.swap.Unlock()
	s.notify()
}

func (s *Session) startLocked(uid string) {
	ctx, cancel := context.WithCancel(s.parent)
	group, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group
	s.logger.Debug("Starting dashboard listeners", zap.String("uid", uid))

	group.Go(func() error { s.entitlement.Run(gctx, s.store, uid); return nil })
	group.Go(func() error { s.files.Run(gctx, s.store, uid); return nil })
	group.Go(func() error { s.folders.Run(gctx, s.store, uid); return nil })
	group.Go(func() error { s.notes.Run(gctx, s.store, uid); return nil })
	group.Go(func() error { s.team.Run(gctx, s.store, uid); return nil })
}

// stopLocked cancels the listener scope and waits until every listener has
// returned, so none can apply a snapshot after the reset.
func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	_ = s.group.Wait()
	s.cancel = nil
	s.group = nil
}

// Close stops the listeners.
func (s *Session) Close() {
	s.swap.Lock()
	s.stopLocked()
	s.swap.Unlock()
}

// State returns a consistent copy of the combined view.
func (s *Session) State() DashboardState {
	s.swap.RLock()
	defer s.swap.RUnlock()

	identity := s.tracker.Current()
	state := DashboardState{
		Identity: identity,
		IsPro:    s.entitlement.IsPro(),
		Files:    s.files.Items(),
		Folders:  s.folders.Items(),
		Notes:    s.notes.Items(),
		Team:     s.team.Items(),
	}
	state.Counts = Counts{
		Files:   len(state.Files),
		Folders: len(state.Folders),
		Notes:   len(state.Notes),
		Team:    len(state.Team),
	}
	state.Loading = s.tracker.Resolving() || (identity != nil && (!s.entitlement.Resolved() ||
		s.files.Loading() || s.folders.Loading() || s.notes.Loading() || s.team.Loading()))
	return state
}

// Updates signals state changes. Bursts coalesce into one signal.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// WaitReady blocks until nothing is loading or ctx ends.
func (s *Session) WaitReady(ctx context.Context) error {
	for {
		ch := s.changedChan()
		if !s.State().Loading {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) changedChan() chan struct{} {
	s.sigMu.Lock()
	defer s.sigMu.Unlock()
	return s.changed
}

func (s *Session) notify() {
	s.sigMu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.sigMu.Unlock()
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
