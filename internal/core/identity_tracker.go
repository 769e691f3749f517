package core

import (
	"sync"

	"github.com/storahq/stora/internal/models"
)

// IdentityTracker holds the current identity, or none.
type IdentityTracker struct {
	mu        sync.RWMutex
	identity  *models.Identity
	resolving bool
}

// NewIdentityTracker returns a tracker that is still resolving.
func NewIdentityTracker() *IdentityTracker {
	return &IdentityTracker{resolving: true}
}

// Set replaces the held identity wholesale and ends resolution. It reports
// whether the identity key (uid, or absence) changed.
func (t *IdentityTracker) Set(identity *models.Identity) (keyChanged bool) {
	var next *models.Identity
	if identity != nil {
		cp := *identity
		next = &cp
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	keyChanged = t.resolving || uidOf(t.identity) != uidOf(next)
	t.identity = next
	t.resolving = false
	return keyChanged
}

// Current returns a copy of the held identity.
func (t *IdentityTracker) Current() *models.Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.identity == nil {
		return nil
	}
	cp := *t.identity
	return &cp
}

// Resolving is true until the first identity callback.
func (t *IdentityTracker) Resolving() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolving
}

func uidOf(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.UID
}
