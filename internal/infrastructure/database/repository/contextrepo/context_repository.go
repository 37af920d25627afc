package contextrepo

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

type ContextGormRepository struct {
	db *gorm.DB
}

var _ thought.ContextRepository = (*ContextGormRepository)(nil)

func NewContextGormRepository(db *gorm.DB) thought.ContextRepository {
	return &ContextGormRepository{db: db}
}

// GetOwnerContext returns the owner's profile document. Owners without a
// stored profile get an empty context; analysis still runs, just without
// personalization.
func (repo *ContextGormRepository) GetOwnerContext(ctx context.Context, ownerID string) (thought.OwnerContext, error) {
	var entity dbschema.OwnerContext
	err := repo.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&entity).
		Error
	if err == gorm.ErrRecordNotFound {
		return thought.OwnerContext{}, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to load owner context",
			err,
			"8f901a2b-3c4d-4e56-8fc7-4b5c6d7e8fe5",
		)
	}
	var doc map[string]any
	if len(entity.Context) > 0 {
		if err := json.Unmarshal(entity.Context, &doc); err != nil {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeInternal,
				"owner context document is not valid JSON",
				err,
				"9012ab3c-4d5e-4f67-90d8-5c6d7e8f9006",
			)
		}
	}
	return thought.OwnerContext(doc), nil
}
