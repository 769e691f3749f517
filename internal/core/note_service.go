package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
)

// ErrEmptyTitle is returned for a note without a title.
var ErrEmptyTitle = errors.New("note title cannot be empty")

type noteService struct {
	store         db.DocumentStore
	entitlement   EntitlementChecker
	sealer        ContentSealer
	freeTierNotes int
	logger        *zap.Logger
	now           func() time.Time
}

// NewNoteService creates a NoteService. Note bodies are sealed with sealer.
func NewNoteService(store db.DocumentStore, entitlement EntitlementChecker, sealer ContentSealer, freeTierNotes int, logger *zap.Logger) NoteService {
	return &noteService{
		store:         store,
		entitlement:   entitlement,
		sealer:        sealer,
		freeTierNotes: freeTierNotes,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *noteService) Create(ctx context.Context, uid string, req models.NoteRequest) (*models.Note, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if err := checkFreeTier(ctx, s.store, s.entitlement, uid, db.NotesCollection, s.freeTierNotes); err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to seal note content: %w", err)
	}

	now := s.now().UTC()
	note := models.Note{Title: title, Content: sealed, CreatedAt: now, UpdatedAt: now}
	id, err := s.store.Add(ctx, db.UserCollection(uid, db.NotesCollection), note.Fields())
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	note.ID = id
	note.Content = req.Content
	return &note, nil
}

// Update replaces title and content. Editing never counts against the limit.
func (s *noteService) Update(ctx context.Context, uid, noteID string, req models.NoteRequest) (*models.Note, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	doc, err := getExisting(ctx, s.store, uid, db.NotesCollection, noteID)
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := db.DecodeDocument(*doc, &note); err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to seal note content: %w", err)
	}

	now := s.now().UTC()
	err = s.store.Update(ctx, db.UserCollection(uid, db.NotesCollection), noteID, map[string]interface{}{
		"title":     title,
		"content":   sealed,
		"updatedAt": now,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: notes/%s", ErrItemNotFound, noteID)
		}
		return nil, fmt.Errorf("failed to update note %s: %w", noteID, err)
	}
	note.ID = noteID
	note.Title = title
	note.Content = req.Content
	note.UpdatedAt = now
	return &note, nil
}

func (s *noteService) Delete(ctx context.Context, uid, noteID string) error {
	if _, err := getExisting(ctx, s.store, uid, db.NotesCollection, noteID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, db.UserCollection(uid, db.NotesCollection), noteID); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", noteID, err)
	}
	return nil
}

func (s *noteService) List(ctx context.Context, uid string) ([]models.Note, error) {
	return listDecoded(ctx, s.store, MirrorQuery(uid, db.NotesCollection), noteDecoder(s.sealer, s.logger), s.logger)
}
