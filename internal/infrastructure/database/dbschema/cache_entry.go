package dbschema

import (
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(CacheEntry{})
}

// CacheEntry represents one semantic cache row. The embedding vector column
// is created by the vector migration and written through raw SQL, so it is
// deliberately absent here.
type CacheEntry struct {
	BaseModel
	OwnerID     string  `gorm:"type:varchar(100);index:idx_cache_entries_owner_created;not null"`
	ThoughtText string  `gorm:"type:text;not null"`
	Result      JSONDoc `gorm:"type:jsonb;not null"`
}
