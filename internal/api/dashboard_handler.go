package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/middleware"
	"github.com/storahq/stora/internal/models"
)

const (
	// dashboardReadyTimeout bounds the wait for the first snapshots.
	dashboardReadyTimeout = 10 * time.Second
	streamKeepAlive       = 25 * time.Second
)

// DashboardHandler serves the combined dashboard view.
type DashboardHandler struct {
	store           db.DocumentStore
	sealer          core.ContentSealer
	bootstrap       core.Bootstrapper
	verifier        core.TokenVerifier
	recheckInterval time.Duration
	logger          *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(store db.DocumentStore, sealer core.ContentSealer, bootstrap core.Bootstrapper,
	verifier core.TokenVerifier, recheckInterval time.Duration, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:           store,
		sealer:          sealer,
		bootstrap:       bootstrap,
		verifier:        verifier,
		recheckInterval: recheckInterval,
		logger:          logger,
	}
}

// runBootstrap provisions the placeholder records. A failure is logged by
// the writer and retried on the next visit; the dashboard still loads.
func (h *DashboardHandler) runBootstrap(c *gin.Context, user *models.Identity) core.BootstrapState {
	state, err := h.bootstrap.Run(c.Request.Context(), clientID(c), user)
	if err != nil {
		_ = c.Error(err)
	}
	return state
}

// Get handles GET /dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	bootstrap := h.runBootstrap(c, user)

	session := core.NewSession(c.Request.Context(), h.store, h.sealer, h.logger)
	defer session.Close()
	session.SetIdentity(user)

	ctx, cancel := context.WithTimeout(c.Request.Context(), dashboardReadyTimeout)
	defer cancel()
	if err := session.WaitReady(ctx); err != nil {
		h.logger.Warn("Dashboard not ready in time, returning partial state", zap.String("uid", user.UID), zap.Error(err))
	}
	c.JSON(http.StatusOK, DashboardResponse{State: session.State(), Bootstrap: bootstrap})
}

// Stream handles GET /dashboard/stream. It emits a "state" event whenever
// the identity, the entitlement or a mirrored collection changes, and a
// final "signed-out" event when the token stops verifying.
func (h *DashboardHandler) Stream(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	idToken := c.GetString(middleware.ContextIDToken)
	bootstrap := h.runBootstrap(c, user)

	ctx, cancel := context.WithCancel(c.Request.Context())
	session := core.NewSession(ctx, h.store, h.sealer, h.logger)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := core.WatchIdentity(ctx, h.verifier, idToken, h.recheckInterval, h.logger, session.SetIdentity); err != nil {
			h.logger.Info("Dashboard stream identity rejected", zap.String("uid", user.UID), zap.Error(err))
		}
	}()
	defer func() {
		cancel()
		<-watchDone
		session.Close()
	}()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("bootstrap", gin.H{"state": bootstrap})
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-session.Updates():
		}
		state := session.State()
		if !state.Loading && state.Identity == nil {
			c.SSEvent("signed-out", gin.H{"redirect": core.AuthPath})
			return false
		}
		c.SSEvent("state", state)
		return true
	})
}
