package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/models"
)

// NoteHandler handles note endpoints.
type NoteHandler struct {
	noteService   core.NoteService
	freeTierNotes int
	logger        *zap.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(ns core.NoteService, freeTierNotes int, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{noteService: ns, freeTierNotes: freeTierNotes, logger: logger}
}

// mapNoteErrorToStatus maps errors from core.NoteService to HTTP status codes and ErrorResponse.
func (h *NoteHandler) mapNoteErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrFreeTierLimit):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Error: fmt.Sprintf("You've reached the free plan limit of %d notes. Please upgrade to Pro to create more.", h.freeTierNotes),
		})
	case errors.Is(err, core.ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Title cannot be empty"})
	case errors.Is(err, core.ErrItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Note not found"})
	default:
		h.logger.Error("Note request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
	}
}

// Create handles POST /notes
func (h *NoteHandler) Create(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	note, err := h.noteService.Create(c.Request.Context(), user.UID, req)
	if err != nil {
		h.mapNoteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// List handles GET /notes
func (h *NoteHandler) List(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	notes, err := h.noteService.List(c.Request.Context(), user.UID)
	if err != nil {
		h.mapNoteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// Update handles PUT /notes/:noteId
func (h *NoteHandler) Update(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	note, err := h.noteService.Update(c.Request.Context(), user.UID, c.Param("noteId"), req)
	if err != nil {
		h.mapNoteErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Delete handles DELETE /notes/:noteId
func (h *NoteHandler) Delete(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.noteService.Delete(c.Request.Context(), user.UID, c.Param("noteId")); err != nil {
		h.mapNoteErrorToStatus(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
