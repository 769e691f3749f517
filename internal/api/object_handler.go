package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ObjectSource exposes stored bytes by path. objectstore.MemoryStore
// implements it.
type ObjectSource interface {
	Object(path string) ([]byte, string, bool)
}

// ObjectHandler serves the download URLs handed out by the in-memory object
// store. Firebase Storage serves its own URLs, so this is only mounted on the
// memory backend.
type ObjectHandler struct {
	source ObjectSource
}

// NewObjectHandler creates a new ObjectHandler.
func NewObjectHandler(source ObjectSource) *ObjectHandler {
	return &ObjectHandler{source: source}
}

// Get handles GET /objects/*path
func (h *ObjectHandler) Get(c *gin.Context) {
	data, contentType, ok := h.source.Object(strings.TrimPrefix(c.Param("path"), "/"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Object not found"})
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}
