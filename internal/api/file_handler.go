package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/models"
)

// FileHandler handles file, folder and explorer endpoints.
type FileHandler struct {
	fileService core.FileService
	limits      core.FileLimits
	logger      *zap.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(fs core.FileService, limits core.FileLimits, logger *zap.Logger) *FileHandler {
	return &FileHandler{fileService: fs, limits: limits, logger: logger}
}

func (h *FileHandler) fileErrorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("File too large (max %dMB)", h.limits.MaxUploadBytes/(1024*1024)),
		}
	case errors.Is(err, core.ErrFreeTierLimit):
		return http.StatusPaymentRequired, ErrorResponse{
			Error: fmt.Sprintf("You've reached the free plan limit of %d files. Please upgrade to Pro for unlimited uploads.",
				h.limits.FreeTierFiles),
		}
	case errors.Is(err, core.ErrEmptyName):
		return http.StatusBadRequest, ErrorResponse{Error: "Name cannot be empty"}
	case errors.Is(err, core.ErrFolderNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Folder not found"}
	case errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Not found"}
	}
	h.logger.Error("File request failed", zap.Error(err))
	return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."}
}

// mapFileErrorToStatus maps errors from core.FileService to HTTP status codes and ErrorResponse.
func (h *FileHandler) mapFileErrorToStatus(c *gin.Context, err error) {
	c.JSON(h.fileErrorResponse(err))
}

// multipartOverhead is the room left in the request body cap for the form
// boundaries, headers and the folderId field.
const multipartOverhead = 1 << 20

type uploadResult struct {
	file *models.File
	err  error
}

// Upload handles POST /files (multipart field "file", optional "folderId").
// With ?progress=sse the response is an event stream of progress events
// ending in "done" or "error".
func (h *FileHandler) Upload(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.mapFileErrorToStatus(c, core.ErrFileTooLarge)
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "A file is required", Details: err.Error()})
		return
	}
	if header.Size > h.limits.MaxUploadBytes {
		h.mapFileErrorToStatus(c, core.ErrFileTooLarge)
		return
	}
	body, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read upload", Details: err.Error()})
		return
	}

	upload := core.FileUpload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		FolderID:    c.PostForm("folderId"),
		Body:        body,
	}

	if c.Query("progress") != "sse" {
		defer body.Close()
		file, err := h.fileService.Upload(c.Request.Context(), user.UID, upload, nil)
		if err != nil {
			h.mapFileErrorToStatus(c, err)
			return
		}
		c.JSON(http.StatusCreated, file)
		return
	}

	progress := make(chan UploadProgress, 16)
	done := make(chan uploadResult, 1)
	go func() {
		defer body.Close()
		file, err := h.fileService.Upload(c.Request.Context(), user.UID, upload, func(sent, total int64) {
			p := UploadProgress{Sent: sent, Total: total}
			if total > 0 {
				p.Percent = int(sent * 100 / total)
			}
			select {
			case progress <- p:
			default:
			}
		})
		done <- uploadResult{file: file, err: err}
	}()

	c.Stream(func(io.Writer) bool {
		select {
		case p := <-progress:
			c.SSEvent("progress", p)
			return true
		case r := <-done:
			if r.err != nil {
				_, resp := h.fileErrorResponse(r.err)
				c.SSEvent("error", resp)
			} else {
				c.SSEvent("done", r.file)
			}
			return false
		}
	})
}

// List handles GET /files
func (h *FileHandler) List(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	files, err := h.fileService.List(c.Request.Context(), user.UID)
	if err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// Delete handles DELETE /files/:fileId
func (h *FileHandler) Delete(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), user.UID, c.Param("fileId")); err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateFolder handles POST /folders
func (h *FileHandler) CreateFolder(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	folder, err := h.fileService.CreateFolder(c.Request.Context(), user.UID, req.Name)
	if err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

// ListFolders handles GET /folders
func (h *FileHandler) ListFolders(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	folders, err := h.fileService.ListFolders(c.Request.Context(), user.UID)
	if err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, folders)
}

// DeleteFolder handles DELETE /folders/:folderId
func (h *FileHandler) DeleteFolder(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.fileService.DeleteFolder(c.Request.Context(), user.UID, c.Param("folderId")); err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Explore handles GET /explorer?folderId=
func (h *FileHandler) Explore(c *gin.Context) {
	user, ok := currentIdentity(c)
	if !ok {
		return
	}
	view, err := h.fileService.Explore(c.Request.Context(), user.UID, c.Query("folderId"))
	if err != nil {
		h.mapFileErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
