package cacherepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

type CacheGormRepository struct {
	db *gorm.DB
}

var _ semanticcache.Repository = (*CacheGormRepository)(nil)

func NewCacheGormRepository(db *gorm.DB) semanticcache.Repository {
	return &CacheGormRepository{db: db}
}

func (repo *CacheGormRepository) FindSimilar(ctx context.Context, ownerID string, embedding []float32, threshold float64, maxAge time.Duration, limit int) ([]*semanticcache.Entry, error) {
	var rows []struct {
		dbschema.CacheEntry
		Similarity float64 `db:"similarity"`
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	vec := embeddingToString(embedding)
	err := repo.db.WithContext(ctx).
		Table("thought_engine.cache_entries").
		Select("id, owner_id, thought_text, result, created_at, updated_at, 1 - (embedding <=> ?::vector) AS similarity", vec).
		Where("owner_id = ? AND created_at >= ? AND 1 - (embedding <=> ?::vector) >= ?", ownerID, cutoff, vec, threshold).
		Order(clause.Expr{SQL: "embedding <=> ?::vector", Vars: []any{vec}}).
		Limit(limit).
		Scan(&rows).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to search cache entries",
			err,
			"c4d5e6f7-0a1b-4c2d-8e3f-4a5b6c7d8eb6",
		)
	}

	entries := make([]*semanticcache.Entry, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		entries = append(entries, &semanticcache.Entry{
			ID:          row.ID,
			OwnerID:     row.OwnerID,
			ThoughtText: row.ThoughtText,
			Result:      map[string]any(row.Result),
			Similarity:  row.Similarity,
			CreatedAt:   row.CreatedAt,
		})
	}
	return entries, nil
}

func (repo *CacheGormRepository) Save(ctx context.Context, e *semanticcache.Entry) error {
	result, err := dbschema.JSONDoc(e.Result).Value()
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encode cache entry result",
			err,
			"d5e6f708-1a2b-4c3d-9e4f-5a6b7c8d9ec7",
		)
	}

	now := time.Now().UTC()
	if err := repo.db.WithContext(ctx).
		Table("thought_engine.cache_entries").
		Create(map[string]any{
			"owner_id":     e.OwnerID,
			"thought_text": e.ThoughtText,
			"result":       result,
			"embedding":    gorm.Expr("?::vector", embeddingToString(e.Embedding)),
			"created_at":   now,
			"updated_at":   now,
		}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to save cache entry",
			err,
			"e6f70819-2a3b-4c4d-8e5f-6a7b8c9d0ed8",
		)
	}
	e.CreatedAt = now
	return nil
}

func (repo *CacheGormRepository) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result := repo.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&dbschema.CacheEntry{})
	if result.Error != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete expired cache entries",
			result.Error,
			"f7081920-3a4b-4c5d-9e6f-7a8b9c0d1ee9",
		)
	}
	return result.RowsAffected, nil
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
