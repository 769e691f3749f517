package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/internal/objectstore"
)

// File service errors.
var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrFolderNotFound = errors.New("folder not found")
)

// FileLimits bounds uploads on the free plan.
type FileLimits struct {
	MaxUploadBytes int64
	FreeTierFiles  int
}

// Explorer is the file browser view of one folder, or of the root.
type Explorer struct {
	Folder  *models.Folder  `json:"folder,omitempty"`
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

// BuildExplorer lays out files and folders. The root lists every folder and
// the files that are in no existing folder; a folder lists its own files.
func BuildExplorer(files []models.File, folders []models.Folder, folderID string) (*Explorer, error) {
	known := make(map[string]models.Folder, len(folders))
	for _, f := range folders {
		known[f.ID] = f
	}

	view := &Explorer{Folders: []models.Folder{}, Files: []models.File{}}
	if folderID != "" {
		folder, ok := known[folderID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
		}
		view.Folder = &folder
		for _, f := range files {
			if f.FolderID == folderID {
				view.Files = append(view.Files, f)
			}
		}
		return view, nil
	}

	view.Folders = append(view.Folders, folders...)
	for _, f := range files {
		if _, inFolder := known[f.FolderID]; f.FolderID == "" || !inFolder {
			view.Files = append(view.Files, f)
		}
	}
	return view, nil
}

// FileType is the upper-case extension of name, or FILE.
func FileType(name string) string {
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		return strings.ToUpper(ext)
	}
	return "FILE"
}

// StoragePath is where an upload of name by uid is stored.
func StoragePath(uid, name string, at time.Time) string {
	return fmt.Sprintf("user_uploads/%s/%d-%s", uid, at.UnixMilli(), name)
}

type fileService struct {
	store       db.DocumentStore
	objects     objectstore.ObjectStore
	entitlement EntitlementChecker
	limits      FileLimits
	logger      *zap.Logger
	now         func() time.Time
}

// NewFileService creates a FileService.
func NewFileService(store db.DocumentStore, objects objectstore.ObjectStore, entitlement EntitlementChecker, limits FileLimits, logger *zap.Logger) FileService {
	return &fileService{
		store:       store,
		objects:     objects,
		entitlement: entitlement,
		limits:      limits,
		logger:      logger,
		now:         time.Now,
	}
}

// Upload checks the size and the plan limit, stores the bytes, resolves a
// download URL and adds the record.
func (s *fileService) Upload(ctx context.Context, uid string, upload FileUpload, progress objectstore.ProgressFunc) (*models.File, error) {
	if upload.Size > s.limits.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, upload.Size, s.limits.MaxUploadBytes)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(upload.Name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, ErrEmptyName
	}
	if upload.FolderID != "" {
		if _, err := getExisting(ctx, s.store, uid, db.FoldersCollection, upload.FolderID); err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, upload.FolderID)
			}
			return nil, err
		}
	}
	if err := checkFreeTier(ctx, s.store, s.entitlement, uid, db.FilesCollection, s.limits.FreeTierFiles); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	storagePath := StoragePath(uid, name, now)
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.objects.Upload(ctx, storagePath, upload.Body, upload.Size, contentType, progress); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	downloadURL, err := s.objects.URL(ctx, storagePath)
	if err != nil {
		s.discardObject(storagePath)
		return nil, fmt.Errorf("failed to resolve download URL for %s: %w", name, err)
	}

	file := models.File{
		Name:        name,
		Size:        humanize.IBytes(uint64(upload.Size)),
		Type:        FileType(name),
		FolderID:    upload.FolderID,
		DownloadURL: downloadURL,
		StoragePath: storagePath,
		CreatedAt:   now,
	}
	id, err := s.store.Add(ctx, db.UserCollection(uid, db.FilesCollection), file.Fields())
	if err != nil {
		s.discardObject(storagePath)
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}
	file.ID = id
	return &file, nil
}

// discardObject removes an object whose record could not be written.
func (s *fileService) discardObject(storagePath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.objects.Delete(ctx, storagePath); err != nil {
		s.logger.Warn("Failed to discard orphaned object", zap.String("path", storagePath), zap.Error(err))
	}
}

// Delete removes the stored object, then the record. The record stays when
// the object delete fails.
func (s *fileService) Delete(ctx context.Context, uid, fileID string) error {
	doc, err := getExisting(ctx, s.store, uid, db.FilesCollection, fileID)
	if err != nil {
		return err
	}
	file, err := decodeFile(*doc)
	if err != nil {
		return err
	}
	if file.StoragePath != "" {
		if err := s.objects.Delete(ctx, file.StoragePath); err != nil {
			if !errors.Is(err, objectstore.ErrNotFound) {
				return fmt.Errorf("failed to delete object %s: %w", file.StoragePath, err)
			}
			s.logger.Info("Object already gone, deleting record", zap.String("path", file.StoragePath))
		}
	}
	if err := s.store.Delete(ctx, db.UserCollection(uid, db.FilesCollection), fileID); err != nil {
		return fmt.Errorf("failed to delete file record %s: %w", fileID, err)
	}
	return nil
}

func (s *fileService) List(ctx context.Context, uid string) ([]models.File, error) {
	return listDecoded(ctx, s.store, MirrorQuery(uid, db.FilesCollection), decodeFile, s.logger)
}

func (s *fileService) CreateFolder(ctx context.Context, uid, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	folder := models.Folder{Name: name, CreatedAt: s.now().UTC()}
	id, err := s.store.Add(ctx, db.UserCollection(uid, db.FoldersCollection), folder.Fields())
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	folder.ID = id
	return &folder, nil
}

// DeleteFolder removes only the folder. Its files keep their folderId and
// show at the root.
func (s *fileService) DeleteFolder(ctx context.Context, uid, folderID string) error {
	if _, err := getExisting(ctx, s.store, uid, db.FoldersCollection, folderID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, db.UserCollection(uid, db.FoldersCollection), folderID); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", folderID, err)
	}
	return nil
}

func (s *fileService) ListFolders(ctx context.Context, uid string) ([]models.Folder, error) {
	return listDecoded(ctx, s.store, MirrorQuery(uid, db.FoldersCollection), decodeFolder, s.logger)
}

func (s *fileService) Explore(ctx context.Context, uid, folderID string) (*Explorer, error) {
	files, err := s.List(ctx, uid)
	if err != nil {
		return nil, err
	}
	folders, err := s.ListFolders(ctx, uid)
	if err != nil {
		return nil, err
	}
	return BuildExplorer(files, folders, folderID)
}

// listDecoded runs q once and decodes the result, skipping bad documents.
func listDecoded[T any](ctx context.Context, store db.DocumentStore, q db.Query, decode Decoder[T], logger *zap.Logger) ([]T, error) {
	docs, err := store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			logger.Warn("Skipping undecodable document", zap.String("collection", q.Collection), zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
