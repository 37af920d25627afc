package persona

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// Service provides business logic for persona group operations.
type Service struct {
	repo Repository
}

// NewService creates a new persona group service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateGroup creates an empty persona group for the owner.
func (s *Service) CreateGroup(ctx context.Context, ownerID, name string, description *string) (*Group, error) {
	if strings.TrimSpace(name) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "group name is required", nil, "persona-group-001")
	}

	group := &Group{
		PublicID:    uuid.NewString(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup retrieves a group owned by the given owner.
func (s *Service) GetGroup(ctx context.Context, ownerID, publicID string, includePersonas bool) (*Group, error) {
	group, err := s.repo.FindGroupByPublicID(ctx, publicID, includePersonas)
	if err != nil {
		return nil, err
	}
	if group == nil || group.OwnerID != ownerID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "persona group not found", nil, "persona-group-002")
	}
	return group, nil
}

// ListGroups lists the owner's groups.
func (s *Service) ListGroups(ctx context.Context, ownerID string, includePersonas bool) ([]*Group, error) {
	return s.repo.ListGroups(ctx, ownerID, includePersonas)
}

// UpdateGroup renames a group or changes its description.
func (s *Service) UpdateGroup(ctx context.Context, ownerID, publicID string, name *string, description *string) (*Group, error) {
	group, err := s.GetGroup(ctx, ownerID, publicID, false)
	if err != nil {
		return nil, err
	}

	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "group name cannot be empty", nil, "persona-group-003")
		}
		group.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		group.Description = description
	}

	if err := s.repo.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group, cascading to its personas. Historical run
// records survive with their persona reference nulled.
func (s *Service) DeleteGroup(ctx context.Context, ownerID, publicID string) error {
	if _, err := s.GetGroup(ctx, ownerID, publicID, false); err != nil {
		return err
	}
	return s.repo.DeleteGroup(ctx, publicID)
}

// AddPersona appends a persona to a group, enforcing the group size cap.
func (s *Service) AddPersona(ctx context.Context, ownerID, groupPublicID, name, rolePrompt string) (*Persona, error) {
	if strings.TrimSpace(name) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "persona name is required", nil, "persona-001")
	}
	if strings.TrimSpace(rolePrompt) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "persona role prompt is required", nil, "persona-002")
	}

	group, err := s.GetGroup(ctx, ownerID, groupPublicID, true)
	if err != nil {
		return nil, err
	}
	if len(group.Personas) >= MaxPersonasPerGroup {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "persona group is full", nil, "persona-003")
	}

	p := &Persona{
		PublicID:   uuid.NewString(),
		GroupID:    group.ID,
		Name:       strings.TrimSpace(name),
		RolePrompt: rolePrompt,
		SortOrder:  len(group.Personas),
	}
	if err := s.repo.AddPersona(ctx, group.ID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePersona changes a persona's name, role prompt, or position within
// an owner's group. Nil fields keep their current value.
func (s *Service) UpdatePersona(ctx context.Context, ownerID, groupPublicID, personaPublicID string, name, rolePrompt *string, sortOrder *int) (*Persona, error) {
	group, err := s.GetGroup(ctx, ownerID, groupPublicID, true)
	if err != nil {
		return nil, err
	}

	var target *Persona
	for i := range group.Personas {
		if group.Personas[i].PublicID == personaPublicID {
			target = &group.Personas[i]
			break
		}
	}
	if target == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "persona not found in group", nil, "persona-005")
	}

	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "persona name cannot be empty", nil, "persona-006")
		}
		target.Name = strings.TrimSpace(*name)
	}
	if rolePrompt != nil {
		if strings.TrimSpace(*rolePrompt) == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "persona role prompt cannot be empty", nil, "persona-007")
		}
		target.RolePrompt = *rolePrompt
	}
	if sortOrder != nil {
		target.SortOrder = *sortOrder
	}

	if err := s.repo.UpdatePersona(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// DeletePersona removes one persona from an owner's group.
func (s *Service) DeletePersona(ctx context.Context, ownerID, groupPublicID, personaPublicID string) error {
	group, err := s.GetGroup(ctx, ownerID, groupPublicID, true)
	if err != nil {
		return err
	}
	for _, p := range group.Personas {
		if p.PublicID == personaPublicID {
			return s.repo.DeletePersona(ctx, personaPublicID)
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "persona not found in group", nil, "persona-004")
}
