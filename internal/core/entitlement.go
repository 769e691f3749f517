package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
)

// ProSubscriptionsQuery selects the active pro subscriptions of uid.
func ProSubscriptionsQuery(uid string) db.Query {
	return db.Query{
		Collection: db.UserCollection(uid, db.SubscriptionsCollection),
		Where: []db.Filter{
			{Field: "status", Value: models.SubscriptionActive},
			{Field: "plan", Value: models.PlanPro},
		},
	}
}

// EntitlementDeriver reduces the live pro-subscription query of one identity
// to a boolean.
type EntitlementDeriver struct {
	logger   *zap.Logger
	onChange func()

	mu       sync.RWMutex
	isPro    bool
	resolved bool
}

// NewEntitlementDeriver returns a deriver with no identity.
func NewEntitlementDeriver(logger *zap.Logger, onChange func()) *EntitlementDeriver {
	if onChange == nil {
		onChange = func() {}
	}
	return &EntitlementDeriver{logger: logger, onChange: onChange, resolved: true}
}

// Reset clears the entitlement. Without an identity the result is final;
// with one it stays unresolved until the first snapshot or error.
func (d *EntitlementDeriver) Reset(identity *models.Identity) {
	d.mu.Lock()
	d.isPro = false
	d.resolved = identity == nil
	d.mu.Unlock()
}

// Run keeps the listener for uid open until ctx ends.
func (d *EntitlementDeriver) Run(ctx context.Context, store db.DocumentStore, uid string) {
	listen(ctx, store, ProSubscriptionsQuery(uid), d.Apply, func(err error) {
		d.logger.Error("Subscription listener failed, entitlement frozen",
			zap.String("uid", uid), zap.Bool("isPro", d.IsPro()), zap.Error(err))
		d.mu.Lock()
		d.resolved = true
		d.mu.Unlock()
		d.onChange()
	})
}

// Apply recomputes the entitlement from one snapshot.
func (d *EntitlementDeriver) Apply(snap *db.Snapshot) {
	d.mu.Lock()
	d.isPro = !snap.Empty()
	d.resolved = true
	d.mu.Unlock()
	d.onChange()
}

func (d *EntitlementDeriver) IsPro() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isPro
}

func (d *EntitlementDeriver) Resolved() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolved
}

// entitlementReader is the one-shot form of the same query.
type entitlementReader struct {
	store db.DocumentStore
}

// NewEntitlementChecker returns an EntitlementChecker reading store.
func NewEntitlementChecker(store db.DocumentStore) EntitlementChecker {
	return &entitlementReader{store: store}
}

func (r *entitlementReader) IsPro(ctx context.Context, uid string) (bool, error) {
	docs, err := r.store.List(ctx, ProSubscriptionsQuery(uid))
	if err != nil {
		return false, fmt.Errorf("failed to read subscriptions of %s: %w", uid, err)
	}
	return len(docs) > 0, nil
}
