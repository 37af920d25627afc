package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Thought{})
	database.RegisterSchemaForAutoMigrate(OwnerContext{})
	database.RegisterSchemaForAutoMigrate(WeeklySynthesis{})
}

// Thought represents the database schema for thoughts. The text column holds
// ciphertext when field encryption is enabled; the embedding column is added
// by the vector migration and written through raw SQL.
type Thought struct {
	BaseModel
	PublicID           string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	OwnerID            string  `gorm:"type:varchar(100);index:idx_thoughts_owner_status;not null"`
	Text               string  `gorm:"type:text;not null"`
	Status             string  `gorm:"type:varchar(20);index:idx_thoughts_owner_status;index:idx_thoughts_status_created;not null;default:'pending'"`
	ProcessingMode     string  `gorm:"type:varchar(10);not null;default:'single'"`
	GroupPublicID      *string `gorm:"type:varchar(50);index"`
	Classification     JSONDoc `gorm:"type:jsonb"`
	Analysis           JSONDoc `gorm:"type:jsonb"`
	ValueImpact        JSONDoc `gorm:"type:jsonb"`
	ActionPlan         JSONDoc `gorm:"type:jsonb"`
	Priority           JSONDoc `gorm:"type:jsonb"`
	ConsolidatedOutput JSONDoc `gorm:"type:jsonb"`
	ProcessingAttempts int     `gorm:"not null;default:0"`
	ErrorMessage       *string `gorm:"type:varchar(500)"`
	ProcessedAt        *time.Time
}

// NewSchemaThought creates a database schema from a domain thought.
func NewSchemaThought(t *thought.Thought) *Thought {
	return &Thought{
		BaseModel: BaseModel{
			ID:        t.ID,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
		PublicID:           t.PublicID,
		OwnerID:            t.OwnerID,
		Text:               t.Text,
		Status:             string(t.Status),
		ProcessingMode:     string(t.ProcessingMode),
		GroupPublicID:      t.GroupPublicID,
		Classification:     JSONDoc(t.Classification),
		Analysis:           JSONDoc(t.Analysis),
		ValueImpact:        JSONDoc(t.ValueImpact),
		ActionPlan:         JSONDoc(t.ActionPlan),
		Priority:           JSONDoc(t.Priority),
		ConsolidatedOutput: JSONDoc(t.ConsolidatedOutput),
		ProcessingAttempts: t.ProcessingAttempts,
		ErrorMessage:       t.ErrorMessage,
		ProcessedAt:        t.ProcessedAt,
	}
}

// EtoD converts database schema to domain thought (Entity to Domain)
func (t *Thought) EtoD() *thought.Thought {
	return &thought.Thought{
		ID:                 t.ID,
		PublicID:           t.PublicID,
		OwnerID:            t.OwnerID,
		Text:               t.Text,
		Status:             thought.Status(t.Status),
		ProcessingMode:     thought.ProcessingMode(t.ProcessingMode),
		GroupPublicID:      t.GroupPublicID,
		Classification:     map[string]any(t.Classification),
		Analysis:           map[string]any(t.Analysis),
		ValueImpact:        map[string]any(t.ValueImpact),
		ActionPlan:         map[string]any(t.ActionPlan),
		Priority:           map[string]any(t.Priority),
		ConsolidatedOutput: thought.ConsolidatedOutput(t.ConsolidatedOutput),
		ProcessingAttempts: t.ProcessingAttempts,
		ErrorMessage:       t.ErrorMessage,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		ProcessedAt:        t.ProcessedAt,
	}
}

// OwnerContext stores one owner's structured profile document. The document
// is opaque to this service, so it stays raw JSON rather than a typed map.
type OwnerContext struct {
	BaseModel
	OwnerID string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	Context datatypes.JSON `gorm:"type:jsonb;not null"`
	Version int            `gorm:"not null;default:1"`
}

// WeeklySynthesis stores one generated weekly review per owner per week.
type WeeklySynthesis struct {
	BaseModel
	OwnerID      string         `gorm:"type:varchar(100);uniqueIndex:ux_synthesis_owner_week;not null"`
	WeekStart    time.Time      `gorm:"uniqueIndex:ux_synthesis_owner_week;not null"`
	ThoughtCount int            `gorm:"not null"`
	Content      datatypes.JSON `gorm:"type:jsonb;not null"`
}
