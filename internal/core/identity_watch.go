package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/identity"
	"github.com/storahq/stora/internal/models"
)

// WatchIdentity verifies idToken, emits the identity, then re-verifies with
// revocation checks every interval until ctx ends. A rejected token emits
// nil, which is the sign-out transition, and ends the watch. Other
// verification failures keep the current identity.
func WatchIdentity(ctx context.Context, verifier TokenVerifier, idToken string, interval time.Duration, logger *zap.Logger, emit func(*models.Identity)) error {
	current, err := verifier.VerifyIDToken(ctx, idToken, true)
	if err != nil {
		emit(nil)
		return err
	}
	emit(current)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		next, err := verifier.VerifyIDToken(ctx, idToken, true)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				logger.Info("Session token no longer valid, signing out", zap.String("uid", current.UID))
				emit(nil)
				return nil
			}
			logger.Warn("Identity recheck failed, keeping current identity", zap.String("uid", current.UID), zap.Error(err))
			continue
		}
		current = next
		emit(current)
	}
}
