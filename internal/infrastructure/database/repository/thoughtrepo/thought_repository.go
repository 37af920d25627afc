package thoughtrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/crypto"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// encPrefix marks ciphertext rows so plaintext rows written before
// encryption was enabled still read back correctly.
const encPrefix = "enc:v1:"

type ThoughtGormRepository struct {
	db *gorm.DB
	// encryptionSecret encrypts the text column at rest when non-empty.
	encryptionSecret string
}

var _ thought.Repository = (*ThoughtGormRepository)(nil)

func NewThoughtGormRepository(db *gorm.DB, encryptionSecret string) thought.Repository {
	return &ThoughtGormRepository{db: db, encryptionSecret: encryptionSecret}
}

func (repo *ThoughtGormRepository) Create(ctx context.Context, t *thought.Thought) error {
	entity := dbschema.NewSchemaThought(t)

	text, err := repo.sealText(ctx, entity.Text)
	if err != nil {
		return err
	}
	entity.Text = text

	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create thought",
			err,
			"4e1f7a92-8c3d-4b6e-a5f0-2d9c8b7e6a14",
		)
	}
	t.ID = entity.ID
	t.CreatedAt = entity.CreatedAt
	t.UpdatedAt = entity.UpdatedAt
	return nil
}

func (repo *ThoughtGormRepository) FindByPublicID(ctx context.Context, publicID string) (*thought.Thought, error) {
	var entity dbschema.Thought
	err := repo.db.WithContext(ctx).
		Where("public_id = ?", publicID).
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
			"failed to find thought by public ID",
			err,
			"9a5b3c21-7d4e-4f8a-b6c9-1e0d2f3a4b58",
		)
	}
	return repo.toDomain(ctx, &entity)
}

func (repo *ThoughtGormRepository) FindPending(ctx context.Context) ([]*thought.Thought, error) {
	var entities []dbschema.Thought
	err := repo.db.WithContext(ctx).
		Where("status = ?", string(thought.StatusPending)).
		Order("created_at ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list pending thoughts",
			err,
			"6c8d1e43-2b5f-4a7c-9d0e-3f1a2b4c5d67",
		)
	}
	return repo.toDomainSlice(ctx, entities)
}

func (repo *ThoughtGormRepository) FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*thought.Thought, error) {
	var entities []dbschema.Thought
	err := repo.db.WithContext(ctx).
		Where("owner_id = ? AND status = ? AND created_at >= ?", ownerID, string(thought.StatusCompleted), since).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list completed thoughts",
			err,
			"1f2e3d4c-5b6a-4978-8c9d-0e1f2a3b4c50",
		)
	}
	return repo.toDomainSlice(ctx, entities)
}

func (repo *ThoughtGormRepository) MarkProcessing(ctx context.Context, publicID string, attempts int) error {
	result := repo.db.WithContext(ctx).
		Model(&dbschema.Thought{}).
		Where("public_id = ?", publicID).
		Updates(map[string]any{
			"status":              string(thought.StatusProcessing),
			"processing_attempts": attempts,
			"updated_at":          gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to mark thought processing",
			result.Error,
			"7a9b1c3d-4e5f-4a6b-8c7d-9e0f1a2b3c42",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"thought not found",
			nil,
			"5d6e7f80-1a2b-4c3d-9e8f-0a1b2c3d4e59",
		)
	}
	return nil
}

func (repo *ThoughtGormRepository) SaveResult(ctx context.Context, t *thought.Thought, embedding []float32) error {
	updates := map[string]any{
		"status":              string(thought.StatusCompleted),
		"classification":      dbschema.JSONDoc(t.Classification),
		"analysis":            dbschema.JSONDoc(t.Analysis),
		"value_impact":        dbschema.JSONDoc(t.ValueImpact),
		"action_plan":         dbschema.JSONDoc(t.ActionPlan),
		"priority":            dbschema.JSONDoc(t.Priority),
		"consolidated_output": dbschema.JSONDoc(t.ConsolidatedOutput),
		"error_message":       nil,
		"processed_at":        gorm.Expr("NOW()"),
		"updated_at":          gorm.Expr("NOW()"),
	}
	if embedding != nil {
		updates["embedding"] = gorm.Expr("?::vector", embeddingToString(embedding))
	}

	if e := repo.db.WithContext(ctx).
		Model(&dbschema.Thought{}).
		Where("public_id = ?", t.PublicID).
		Updates(updates).Error; e != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to save thought result",
			e,
			"2b3c4d5e-6f70-4a1b-8c9d-0e1f2a3b4c61",
		)
	}
	t.Status = thought.StatusCompleted
	return nil
}

func (repo *ThoughtGormRepository) MarkFailed(ctx context.Context, publicID string, errorMessage string) error {
	if e := repo.db.WithContext(ctx).
		Model(&dbschema.Thought{}).
		Where("public_id = ?", publicID).
		Updates(map[string]any{
			"status":        string(thought.StatusFailed),
			"error_message": errorMessage,
			"updated_at":    gorm.Expr("NOW()"),
		}).Error; e != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to mark thought failed",
			e,
			"8c9d0e1f-2a3b-4c5d-9e6f-7a8b9c0d1e72",
		)
	}
	return nil
}

func (repo *ThoughtGormRepository) toDomainSlice(ctx context.Context, entities []dbschema.Thought) ([]*thought.Thought, error) {
	thoughts := make([]*thought.Thought, 0, len(entities))
	for i := range entities {
		t, err := repo.toDomain(ctx, &entities[i])
		if err != nil {
			return nil, err
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, nil
}

func (repo *ThoughtGormRepository) toDomain(ctx context.Context, entity *dbschema.Thought) (*thought.Thought, error) {
	t := entity.EtoD()
	text, err := repo.openText(ctx, t.Text)
	if err != nil {
		return nil, err
	}
	t.Text = text
	return t, nil
}

func (repo *ThoughtGormRepository) sealText(ctx context.Context, plaintext string) (string, error) {
	if repo.encryptionSecret == "" {
		return plaintext, nil
	}
	ciphertext, e := crypto.EncryptString(repo.encryptionSecret, plaintext)
	if e != nil {
		return "", platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encrypt thought text",
			e,
			"3d4e5f60-7a8b-4c9d-8e0f-1a2b3c4d5e83",
		)
	}
	return encPrefix + ciphertext, nil
}

func (repo *ThoughtGormRepository) openText(ctx context.Context, stored string) (string, error) {
	if !strings.HasPrefix(stored, encPrefix) {
		return stored, nil
	}
	if repo.encryptionSecret == "" {
		return "", platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"encrypted thought text but no encryption secret configured",
			nil,
			"0e1f2a3b-4c5d-4e6f-9a7b-8c9d0e1f2a94",
		)
	}
	plaintext, e := crypto.DecryptString(repo.encryptionSecret, strings.TrimPrefix(stored, encPrefix))
	if e != nil {
		return "", platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to decrypt thought text",
			e,
			"b1c2d3e4-f506-4a7b-8c9d-0e1f2a3b4ca5",
		)
	}
	return plaintext, nil
}

// helper converts embeddings to pgvector literal.
func embeddingToString(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}

	parts := make([]string, len(embedding))
	for i, val := range embedding {
		parts[i] = fmt.Sprintf("%f", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
