package personarepo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/persona"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

type PersonaGormRepository struct {
	db *gorm.DB
}

var _ persona.Repository = (*PersonaGormRepository)(nil)

func NewPersonaGormRepository(db *gorm.DB) persona.Repository {
	return &PersonaGormRepository{db: db}
}

func (repo *PersonaGormRepository) CreateGroup(ctx context.Context, g *persona.Group) error {
	entity := dbschema.NewSchemaPersonaGroup(g)
	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create persona group",
			err,
			"a1b2c3d4-5e6f-4071-8a9b-0c1d2e3f4a01",
		)
	}
	g.ID = entity.ID
	g.CreatedAt = entity.CreatedAt
	g.UpdatedAt = entity.UpdatedAt
	return nil
}

func (repo *PersonaGormRepository) UpdateGroup(ctx context.Context, g *persona.Group) error {
	if err := repo.db.WithContext(ctx).
		Model(&dbschema.PersonaGroup{}).
		Where("public_id = ?", g.PublicID).
		Updates(map[string]any{
			"name":        g.Name,
			"description": g.Description,
			"updated_at":  gorm.Expr("NOW()"),
		}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update persona group",
			err,
			"b2c3d4e5-6f70-4182-9a0b-1c2d3e4f5a12",
		)
	}
	return nil
}

func (repo *PersonaGormRepository) DeleteGroup(ctx context.Context, publicID string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity dbschema.PersonaGroup
		if err := tx.Where("public_id = ?", publicID).First(&entity).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to load persona group for deletion",
				err,
				"c3d4e5f6-7081-4293-8a1b-2c3d4e5f6a23",
			)
		}

		// Run history keeps the snapshot name; only the live reference nulls.
		if err := tx.Model(&dbschema.ThoughtPersonaRun{}).
			Where("group_public_id = ?", publicID).
			Update("persona_public_id", nil).Error; err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to detach persona runs",
				err,
				"d4e5f607-8192-43a4-9b2c-3d4e5f6a7b34",
			)
		}
		if err := tx.Where("group_id = ?", entity.ID).Delete(&dbschema.Persona{}).Error; err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to delete group personas",
				err,
				"e5f60718-92a3-44b5-8c3d-4e5f6a7b8c45",
			)
		}
		if err := tx.Delete(&entity).Error; err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to delete persona group",
				err,
				"f6071829-a3b4-45c6-9d4e-5f6a7b8c9d56",
			)
		}
		return nil
	})
}

func (repo *PersonaGormRepository) FindGroupByPublicID(ctx context.Context, publicID string, includePersonas bool) (*persona.Group, error) {
	query := repo.db.WithContext(ctx).Where("public_id = ?", publicID)
	if includePersonas {
		query = query.Preload("Personas", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		})
	}

	var entity dbschema.PersonaGroup
	err := query.First(&entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find persona group",
			err,
			"0718293a-b4c5-46d7-8e5f-6a7b8c9d0e67",
		)
	}
	return entity.EtoD(), nil
}

func (repo *PersonaGormRepository) ListGroups(ctx context.Context, ownerID string, includePersonas bool) ([]*persona.Group, error) {
	query := repo.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC")
	if includePersonas {
		query = query.Preload("Personas", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		})
	}

	var entities []dbschema.PersonaGroup
	if err := query.Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list persona groups",
			err,
			"18293a4b-c5d6-47e8-9f60-7a8b9c0d1e78",
		)
	}

	groups := make([]*persona.Group, 0, len(entities))
	for i := range entities {
		groups = append(groups, entities[i].EtoD())
	}
	return groups, nil
}

func (repo *PersonaGormRepository) AddPersona(ctx context.Context, groupID uint, p *persona.Persona) error {
	p.GroupID = groupID
	entity := dbschema.NewSchemaPersona(p)
	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to add persona",
			err,
			"293a4b5c-d6e7-48f9-8061-8b9c0d1e2f89",
		)
	}
	p.ID = entity.ID
	p.CreatedAt = entity.CreatedAt
	p.UpdatedAt = entity.UpdatedAt
	return nil
}

func (repo *PersonaGormRepository) UpdatePersona(ctx context.Context, p *persona.Persona) error {
	if err := repo.db.WithContext(ctx).
		Model(&dbschema.Persona{}).
		Where("public_id = ?", p.PublicID).
		Updates(map[string]any{
			"name":        p.Name,
			"role_prompt": p.RolePrompt,
			"sort_order":  p.SortOrder,
			"updated_at":  gorm.Expr("NOW()"),
		}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update persona",
			err,
			"3a4b5c6d-e7f8-4901-9a72-9c0d1e2f3a90",
		)
	}
	return nil
}

func (repo *PersonaGormRepository) DeletePersona(ctx context.Context, publicID string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&dbschema.ThoughtPersonaRun{}).
			Where("persona_public_id = ?", publicID).
			Update("persona_public_id", nil).Error; err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to detach persona runs",
				err,
				"4b5c6d7e-f809-4a12-8b83-0d1e2f3a4ba1",
			)
		}
		if err := tx.Where("public_id = ?", publicID).Delete(&dbschema.Persona{}).Error; err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to delete persona",
				err,
				"5c6d7e8f-091a-4b23-9c94-1e2f3a4b5cb2",
			)
		}
		return nil
	})
}

func (repo *PersonaGormRepository) CreateRun(ctx context.Context, r *persona.Run) error {
	entity := dbschema.NewSchemaThoughtPersonaRun(r)
	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to record persona run",
			err,
			"6d7e8f90-1a2b-4c34-8da5-2f3a4b5c6dc3",
		)
	}
	r.ID = entity.ID
	r.CreatedAt = entity.CreatedAt
	return nil
}

func (repo *PersonaGormRepository) FindRunsByThought(ctx context.Context, thoughtPublicID string) ([]*persona.Run, error) {
	var entities []dbschema.ThoughtPersonaRun
	if err := repo.db.WithContext(ctx).
		Where("thought_public_id = ?", thoughtPublicID).
		Order("created_at ASC").
		Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list persona runs",
			err,
			"7e8f901a-2b3c-4d45-9eb6-3a4b5c6d7ed4",
		)
	}

	runs := make([]*persona.Run, 0, len(entities))
	for i := range entities {
		runs = append(runs, entities[i].EtoD())
	}
	return runs, nil
}
