package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/models"
)

// Context keys set by VerifyToken.
const (
	ContextUserID   = "userID"
	ContextIdentity = "identity"
	ContextIDToken  = "idToken"
)

// ErrorResponse mirrors api.ErrorResponse to avoid an import cycle.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AuthMiddleware provides Gin middleware for Firebase token authentication.
type AuthMiddleware struct {
	verifier core.TokenVerifier
	revoker  SessionRevoker
	logger   *zap.Logger
}

// SessionRevoker signs an identity out of every session.
type SessionRevoker interface {
	Revoke(ctx context.Context, uid string) error
}

// NewAuthMiddleware creates a new AuthMiddleware instance. revoker may be nil.
func NewAuthMiddleware(verifier core.TokenVerifier, revoker SessionRevoker, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a token verifier")
	}
	return &AuthMiddleware{verifier: verifier, revoker: revoker, logger: logger}
}

// BearerToken extracts the token of an "Authorization: Bearer" header. The
// access_token query parameter is accepted for EventSource clients, which
// cannot set headers.
func BearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, ""
		}
		return "", "Authorization header is required"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", "Authorization header format must be 'Bearer {token}'"
	}
	return parts[1], ""
}

// VerifyToken verifies the Firebase ID token of the request and stores the
// identity in the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken, problem := BearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: problem})
			return
		}

		identity, err := m.verifier.VerifyIDToken(c.Request.Context(), idToken, false)
		if err != nil {
			m.logger.Info("Rejected ID token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set(ContextUserID, identity.UID)
		c.Set(ContextIdentity, identity)
		c.Set(ContextIDToken, idToken)
		c.Next()
	}
}

// RequireVerifiedEmail closes the route to password accounts that have not
// verified their email. Their sessions are revoked and the client is sent
// to the auth page.
func (m *AuthMiddleware) RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
			return
		}
		if !identity.RequiresVerification() {
			c.Next()
			return
		}
		if m.revoker != nil {
			if err := m.revoker.Revoke(c.Request.Context(), identity.UID); err != nil {
				m.logger.Warn("Failed to revoke unverified session", zap.String("uid", identity.UID), zap.Error(err))
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "Email address not verified",
			"redirect": core.UnverifiedRedirect(identity.Email),
		})
	}
}

// IdentityFrom returns the identity stored by VerifyToken, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}
