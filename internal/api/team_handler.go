package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/models"
)

// TeamHandler handles team list endpoints.
type TeamHandler struct {
	teamService core.TeamService
	logger      *zap.Logger
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(ts core.TeamService, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{teamService: ts, logger: logger}
}

// mapTeamErrorToStatus maps errors from core.TeamService to HTTP status codes and ErrorResponse.
func (h *TeamHandler) mapTeamErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Name cannot be empty"})
	case errors.Is(err, core.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Role must be one of Member, Admin, Editor, Viewer", Details: err.Error()})
	case errors.Is(err, core.ErrItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Team member not found"})
	default:
		h.logger.Error("Team request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
	}
}

// Create handles POST /team
func (h *TeamHandler) Create(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.TeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	member, err := h.teamService.Create(c.Request.Context(), user.UID, req)
	if err != nil {
		h.mapTeamErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// List handles GET /team
func (h *TeamHandler) List(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	members, err := h.teamService.List(c.Request.Context(), user.UID)
	if err != nil {
		h.mapTeamErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Update handles PUT /team/:memberId
func (h *TeamHandler) Update(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.TeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	member, err := h.teamService.Update(c.Request.Context(), user.UID, c.Param("memberId"), req)
	if err != nil {
		h.mapTeamErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// Delete handles DELETE /team/:memberId
func (h *TeamHandler) Delete(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.teamService.Delete(c.Request.Context(), user.UID, c.Param("memberId")); err != nil {
		h.mapTeamErrorToStatus(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
