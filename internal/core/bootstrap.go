package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/pkg/cache"
)

// BootstrapState is the state of one client's bootstrap.
type BootstrapState string

const (
	BootstrapNotRun  BootstrapState = "not-run"
	BootstrapRunning BootstrapState = "running"
	BootstrapDone    BootstrapState = "done"
	BootstrapFailed  BootstrapState = "failed"
)

const bootstrapMarkerValue = "done"

// BootstrapMarkerKey scopes the marker to a client and an identity.
func BootstrapMarkerKey(clientID, uid string) string {
	return "stora:bootstrap:" + clientID + ":" + uid
}

// InitialRecordID is the id of the placeholder payment, subscription and
// invoice of uid.
func InitialRecordID(uid string) string {
	return "init_" + uid
}

// BootstrapWriter writes the placeholder billing records once per client.
type BootstrapWriter struct {
	store   db.DocumentStore
	markers cache.Cache
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewBootstrapWriter creates a BootstrapWriter.
func NewBootstrapWriter(store db.DocumentStore, markers cache.Cache, logger *zap.Logger) *BootstrapWriter {
	return &BootstrapWriter{
		store:   store,
		markers: markers,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]struct{}),
	}
}

// BootstrapWrites are the four placeholder records of identity.
func BootstrapWrites(identity *models.Identity, now time.Time) []db.Write {
	uid := identity.UID
	initID := InitialRecordID(uid)
	customer := models.Customer{UserID: uid, Email: identity.Email, Name: identity.Label(), CreatedAt: now, UpdatedAt: now}
	payment := models.Payment{CustomerID: uid, UserID: uid, Amount: 0, Currency: models.CurrencyUSD,
		Status: models.PaymentInitialized, CreatedAt: now, UpdatedAt: now}
	subscription := models.Subscription{CustomerID: uid, UserID: uid, Plan: models.PlanFree,
		Status: models.SubscriptionActive, CreatedAt: now, UpdatedAt: now}
	invoice := models.Invoice{CustomerID: uid, UserID: uid, Amount: 0, Currency: models.CurrencyUSD,
		Status: models.InvoicePaid, CreatedAt: now, UpdatedAt: now}
	return []db.Write{
		{Collection: db.UserCollection(uid, db.CustomersCollection), ID: uid, Data: customer.Fields()},
		{Collection: db.UserCollection(uid, db.PaymentsCollection), ID: initID, Data: payment.Fields()},
		{Collection: db.UserCollection(uid, db.SubscriptionsCollection), ID: initID, Data: subscription.Fields()},
		{Collection: db.UserCollection(uid, db.InvoicesCollection), ID: initID, Data: invoice.Fields()},
	}
}

// Run provisions the records unless the client's marker is set. A run
// already in progress for the same key reports BootstrapRunning and writes
// nothing. Failures leave the marker unset so the next visit retries.
func (b *BootstrapWriter) Run(ctx context.Context, clientID string, identity *models.Identity) (BootstrapState, error) {
	if identity == nil {
		return BootstrapNotRun, nil
	}
	key := BootstrapMarkerKey(clientID, identity.UID)

	b.mu.Lock()
	if _, busy := b.running[key]; busy {
		b.mu.Unlock()
		return BootstrapRunning, nil
	}
	b.running[key] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.running, key)
		b.mu.Unlock()
	}()

	marker, err := b.markers.Get(ctx, key)
	if err != nil {
		b.logger.Warn("Bootstrap marker unreadable, running anyway", zap.String("uid", identity.UID), zap.Error(err))
	}
	if marker == bootstrapMarkerValue {
		return BootstrapDone, nil
	}

	if err := b.store.Commit(ctx, BootstrapWrites(identity, b.now().UTC())); err != nil {
		b.logger.Error("Bootstrap failed", zap.String("uid", identity.UID), zap.Error(err))
		return BootstrapFailed, fmt.Errorf("bootstrap records for %s: %w", identity.UID, err)
	}
	if err := b.markers.Set(ctx, key, bootstrapMarkerValue, 0); err != nil {
		b.logger.Warn("Bootstrap marker not stored, next visit rewrites the records",
			zap.String("uid", identity.UID), zap.Error(err))
	}
	b.logger.Info("Bootstrap records written", zap.String("uid", identity.UID), zap.String("client", clientID))
	return BootstrapDone, nil
}
