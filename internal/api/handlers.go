package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storahq/stora/internal/middleware"
	"github.com/storahq/stora/internal/models"
)

// Client id sources of the bootstrap marker.
const (
	clientIDHeader = "X-Client-ID"
	clientIDCookie = "stora_client"
)

// currentIdentity returns the identity set by the auth middleware, answering
// 401 when there is none.
func currentIdentity(c *gin.Context) (*models.Identity, bool) {
	identity := middleware.IdentityFrom(c)
	if identity == nil || identity.UID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return nil, false
	}
	return identity, true
}

// clientID identifies the browser for the bootstrap marker. A browser
// without one is issued a cookie.
func clientID(c *gin.Context) string {
	if id := c.GetHeader(clientIDHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(clientIDCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(clientIDCookie, id, 365*24*60*60, "/", "", gin.Mode() == gin.ReleaseMode, true)
	return id
}
