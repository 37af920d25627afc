package persona

import (
	"context"
	"time"
)

// MaxPersonasPerGroup caps how many perspectives one group may hold.
const MaxPersonasPerGroup = 10

// Group is an ordered collection of personas belonging to one owner.
type Group struct {
	ID          uint
	PublicID    string
	OwnerID     string
	Name        string
	Description *string
	Personas    []Persona
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Persona is a named role with its own prompt, used to get a distinct
// viewpoint on the same thought.
type Persona struct {
	ID         uint
	PublicID   string
	GroupID    uint
	Name       string
	RolePrompt string
	SortOrder  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Run records one persona's execution against one group-mode thought.
// Rows are append-only; the persona name is denormalized so the record
// survives persona deletion. A failed run has a nil Output and a non-nil
// ErrorMessage, so the history always covers the whole fan-out.
type Run struct {
	ID               uint
	ThoughtPublicID  string
	PersonaPublicID  *string
	GroupPublicID    string
	PersonaName      string
	Output           map[string]any
	ErrorMessage     *string
	ProcessingTimeMs int64
	CreatedAt        time.Time
}

// Repository stores persona groups and run history.
type Repository interface {
	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	// DeleteGroup removes the group, its personas, and nulls persona
	// references on historical runs.
	DeleteGroup(ctx context.Context, publicID string) error
	FindGroupByPublicID(ctx context.Context, publicID string, includePersonas bool) (*Group, error)
	ListGroups(ctx context.Context, ownerID string, includePersonas bool) ([]*Group, error)

	AddPersona(ctx context.Context, groupID uint, p *Persona) error
	UpdatePersona(ctx context.Context, p *Persona) error
	DeletePersona(ctx context.Context, publicID string) error

	CreateRun(ctx context.Context, r *Run) error
	FindRunsByThought(ctx context.Context, thoughtPublicID string) ([]*Run, error)
}
