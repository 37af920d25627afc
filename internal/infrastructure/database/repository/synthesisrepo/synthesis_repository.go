package synthesisrepo

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/processing"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

type SynthesisGormRepository struct {
	db *gorm.DB
}

var _ processing.SynthesisRepository = (*SynthesisGormRepository)(nil)

func NewSynthesisGormRepository(db *gorm.DB) processing.SynthesisRepository {
	return &SynthesisGormRepository{db: db}
}

func (repo *SynthesisGormRepository) Save(ctx context.Context, s *processing.WeeklySynthesis) error {
	content, err := json.Marshal(s.Content)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encode synthesis content",
			err,
			"b3c4d5e6-7f80-4191-a2fa-7e8f90a1b218",
		)
	}
	entity := &dbschema.WeeklySynthesis{
		OwnerID:      s.OwnerID,
		WeekStart:    s.WeekStart,
		ThoughtCount: s.ThoughtCount,
		Content:      datatypes.JSON(content),
	}
	if err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "week_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"thought_count", "content", "updated_at"}),
		}).
		Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to save weekly synthesis",
			err,
			"901a2b3c-4d5e-4f67-80d8-5c6d7e8f90f6",
		)
	}
	s.ID = entity.ID
	s.CreatedAt = entity.CreatedAt
	return nil
}

func (repo *SynthesisGormRepository) FindLatest(ctx context.Context, ownerID string) (*processing.WeeklySynthesis, error) {
	var entity dbschema.WeeklySynthesis
	err := repo.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("week_start DESC").
		First(&entity).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to load latest synthesis",
			err,
			"a2b3c4d5-6e7f-4089-91e9-6d7e8f90a107",
		)
	}
	var content map[string]any
	if len(entity.Content) > 0 {
		if err := json.Unmarshal(entity.Content, &content); err != nil {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeInternal,
				"stored synthesis content is not valid JSON",
				err,
				"c4d5e6f7-8091-42a2-b30b-8f90a1b2c329",
			)
		}
	}
	return &processing.WeeklySynthesis{
		ID:           entity.ID,
		OwnerID:      entity.OwnerID,
		WeekStart:    entity.WeekStart,
		ThoughtCount: entity.ThoughtCount,
		Content:      content,
		CreatedAt:    entity.CreatedAt,
	}, nil
}
