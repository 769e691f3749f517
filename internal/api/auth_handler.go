package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/identity"
	"github.com/storahq/stora/internal/models"
)

// AuthHandler handles authentication related API endpoints.
type AuthHandler struct {
	authService core.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as core.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: as, logger: logger}
}

// mapAuthErrorToStatus answers an auth flow error with its user-facing
// message.
func (h *AuthHandler) mapAuthErrorToStatus(c *gin.Context, flow core.AuthFlow, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrInvalidCredential), errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrInvalidToken):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		statusCode = http.StatusBadRequest
	case errors.Is(err, identity.ErrEmailExists):
		statusCode = http.StatusConflict
	}
	if flow == core.FlowSignIn && errors.Is(err, identity.ErrInvalidEmail) {
		statusCode = http.StatusUnauthorized
	}
	if statusCode == http.StatusInternalServerError {
		h.logger.Error("Auth flow failed", zap.Int("flow", int(flow)), zap.Error(err))
	}
	c.JSON(statusCode, ErrorResponse{Error: core.AuthErrorMessage(flow, err)})
}

// SignIn handles POST /auth/sign-in
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.authService.SignIn(c.Request.Context(), req)
	if err != nil {
		h.mapAuthErrorToStatus(c, core.FlowSignIn, err)
		return
	}
	if result.VerificationRequired {
		c.JSON(http.StatusForbidden, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// fieldFailed reports whether a binding error is field failing tag.
func fieldFailed(err error, field, tag string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Field() == field && fe.Tag() == tag {
			return true
		}
	}
	return false
}

// SignUp handles POST /auth/sign-up
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fieldFailed(err, "Email", "email") {
			h.mapAuthErrorToStatus(c, core.FlowSignUp, identity.ErrInvalidEmail)
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.authService.SignUp(c.Request.Context(), req)
	if err != nil {
		h.mapAuthErrorToStatus(c, core.FlowSignUp, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// FederatedSignIn handles POST /auth/federated
func (h *AuthHandler) FederatedSignIn(c *gin.Context) {
	var req models.FederatedSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.authService.FederatedSignIn(c.Request.Context(), req)
	if errors.Is(err, core.ErrSignInCanceled) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		h.mapAuthErrorToStatus(c, core.FlowFederated, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SignOut handles POST /auth/sign-out
func (h *AuthHandler) SignOut(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.authService.SignOut(c.Request.Context(), user.UID); err != nil {
		h.logger.Error("Sign out failed", zap.String("uid", user.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to sign out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// View handles GET /auth/view
func (h *AuthHandler) View(c *gin.Context) {
	c.JSON(http.StatusOK, h.authService.View(c.Request.URL.Query()))
}
