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

// ErrInvalidRole is returned for a role outside Member, Admin, Editor, Viewer.
var ErrInvalidRole = errors.New("invalid team role")

type teamService struct {
	store  db.DocumentStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTeamService creates a TeamService. Team lists have no plan limit.
func NewTeamService(store db.DocumentStore, logger *zap.Logger) TeamService {
	return &teamService{store: store, logger: logger, now: time.Now}
}

func normalizeMember(req models.TeamMemberRequest) (name, role string, err error) {
	name = strings.TrimSpace(req.Name)
	if name == "" {
		return "", "", ErrEmptyName
	}
	role = req.Role
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return name, role, nil
}

func (s *teamService) Create(ctx context.Context, uid string, req models.TeamMemberRequest) (*models.TeamMember, error) {
	name, role, err := normalizeMember(req)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	member := models.TeamMember{Name: name, Role: role, CreatedAt: now, UpdatedAt: now}
	id, err := s.store.Add(ctx, db.UserCollection(uid, db.TeamMembersCollection), member.Fields())
	if err != nil {
		return nil, fmt.Errorf("failed to add team member: %w", err)
	}
	member.ID = id
	return &member, nil
}

func (s *teamService) Update(ctx context.Context, uid, memberID string, req models.TeamMemberRequest) (*models.TeamMember, error) {
	name, role, err := normalizeMember(req)
	if err != nil {
		return nil, err
	}
	doc, err := getExisting(ctx, s.store, uid, db.TeamMembersCollection, memberID)
	if err != nil {
		return nil, err
	}
	member, err := decodeTeamMember(*doc)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	err = s.store.Update(ctx, db.UserCollection(uid, db.TeamMembersCollection), memberID, map[string]interface{}{
		"name":      name,
		"role":      role,
		"updatedAt": now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update team member %s: %w", memberID, err)
	}
	member.Name = name
	member.Role = role
	member.UpdatedAt = now
	return &member, nil
}

func (s *teamService) Delete(ctx context.Context, uid, memberID string) error {
	if _, err := getExisting(ctx, s.store, uid, db.TeamMembersCollection, memberID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, db.UserCollection(uid, db.TeamMembersCollection), memberID); err != nil {
		return fmt.Errorf("failed to delete team member %s: %w", memberID, err)
	}
	return nil
}

func (s *teamService) List(ctx context.Context, uid string) ([]models.TeamMember, error) {
	return listDecoded(ctx, s.store, MirrorQuery(uid, db.TeamMembersCollection), decodeTeamMember, s.logger)
}
