package dbschema

import (
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/persona"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(PersonaGroup{})
	database.RegisterSchemaForAutoMigrate(Persona{})
	database.RegisterSchemaForAutoMigrate(ThoughtPersonaRun{})
}

// PersonaGroup represents the database schema for persona groups
type PersonaGroup struct {
	BaseModel
	PublicID    string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	OwnerID     string    `gorm:"type:varchar(100);index;not null"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description *string   `gorm:"type:text"`
	Personas    []Persona `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// Persona represents one advisory role within a group
type Persona struct {
	BaseModel
	PublicID   string `gorm:"type:varchar(50);uniqueIndex;not null"`
	GroupID    uint   `gorm:"index;not null"`
	Name       string `gorm:"type:varchar(100);not null"`
	RolePrompt string `gorm:"type:text;not null"`
	SortOrder  int    `gorm:"not null;default:0"`
}

// ThoughtPersonaRun is the append-only record of one persona execution.
// PersonaPublicID is nullable so history survives persona deletion; the
// name is denormalized for the same reason.
type ThoughtPersonaRun struct {
	BaseModel
	ThoughtPublicID  string  `gorm:"type:varchar(50);index;not null"`
	PersonaPublicID  *string `gorm:"type:varchar(50);index"`
	GroupPublicID    string  `gorm:"type:varchar(50);index;not null"`
	PersonaName      string  `gorm:"type:varchar(100);not null"`
	Output           JSONDoc `gorm:"type:jsonb"`
	ErrorMessage     *string `gorm:"type:varchar(500)"`
	ProcessingTimeMs int64   `gorm:"not null;default:0"`
}

// NewSchemaPersonaGroup creates a database schema from a domain group.
func NewSchemaPersonaGroup(g *persona.Group) *PersonaGroup {
	schema := &PersonaGroup{
		BaseModel: BaseModel{
			ID:        g.ID,
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		},
		PublicID:    g.PublicID,
		OwnerID:     g.OwnerID,
		Name:        g.Name,
		Description: g.Description,
	}
	for i := range g.Personas {
		schema.Personas = append(schema.Personas, *NewSchemaPersona(&g.Personas[i]))
	}
	return schema
}

// EtoD converts database schema to domain group (Entity to Domain)
func (g *PersonaGroup) EtoD() *persona.Group {
	group := &persona.Group{
		ID:          g.ID,
		PublicID:    g.PublicID,
		OwnerID:     g.OwnerID,
		Name:        g.Name,
		Description: g.Description,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	for i := range g.Personas {
		group.Personas = append(group.Personas, *g.Personas[i].EtoD())
	}
	return group
}

// NewSchemaPersona creates a database schema from a domain persona.
func NewSchemaPersona(p *persona.Persona) *Persona {
	return &Persona{
		BaseModel: BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		PublicID:   p.PublicID,
		GroupID:    p.GroupID,
		Name:       p.Name,
		RolePrompt: p.RolePrompt,
		SortOrder:  p.SortOrder,
	}
}

// EtoD converts database schema to domain persona (Entity to Domain)
func (p *Persona) EtoD() *persona.Persona {
	return &persona.Persona{
		ID:         p.ID,
		PublicID:   p.PublicID,
		GroupID:    p.GroupID,
		Name:       p.Name,
		RolePrompt: p.RolePrompt,
		SortOrder:  p.SortOrder,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// NewSchemaThoughtPersonaRun creates a database schema from a domain run.
func NewSchemaThoughtPersonaRun(r *persona.Run) *ThoughtPersonaRun {
	return &ThoughtPersonaRun{
		BaseModel: BaseModel{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
		},
		ThoughtPublicID:  r.ThoughtPublicID,
		PersonaPublicID:  r.PersonaPublicID,
		GroupPublicID:    r.GroupPublicID,
		PersonaName:      r.PersonaName,
		Output:           JSONDoc(r.Output),
		ErrorMessage:     r.ErrorMessage,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

// EtoD converts database schema to domain run (Entity to Domain)
func (r *ThoughtPersonaRun) EtoD() *persona.Run {
	return &persona.Run{
		ID:               r.ID,
		ThoughtPublicID:  r.ThoughtPublicID,
		PersonaPublicID:  r.PersonaPublicID,
		GroupPublicID:    r.GroupPublicID,
		PersonaName:      r.PersonaName,
		Output:           map[string]any(r.Output),
		ErrorMessage:     r.ErrorMessage,
		ProcessingTimeMs: r.ProcessingTimeMs,
		CreatedAt:        r.CreatedAt,
	}
}
