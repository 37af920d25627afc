package persona

import (
	"context"
	"testing"
)

// memRepo is an in-memory Repository good enough for service-level rules.
type memRepo struct {
	groups   map[string]*Group
	nextID   uint
	deleted  []string
	runsByID map[string][]*Run
}

func newMemRepo() *memRepo {
	return &memRepo{groups: map[string]*Group{}, runsByID: map[string][]*Run{}}
}

func (m *memRepo) CreateGroup(ctx context.Context, g *Group) error {
	m.nextID++
	g.ID = m.nextID
	m.groups[g.PublicID] = g
	return nil
}

func (m *memRepo) UpdateGroup(ctx context.Context, g *Group) error {
	m.groups[g.PublicID] = g
	return nil
}

func (m *memRepo) DeleteGroup(ctx context.Context, publicID string) error {
	delete(m.groups, publicID)
	m.deleted = append(m.deleted, publicID)
	return nil
}

func (m *memRepo) FindGroupByPublicID(ctx context.Context, publicID string, includePersonas bool) (*Group, error) {
	return m.groups[publicID], nil
}

func (m *memRepo) ListGroups(ctx context.Context, ownerID string, includePersonas bool) ([]*Group, error) {
	var out []*Group
	for _, g := range m.groups {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memRepo) AddPersona(ctx context.Context, groupID uint, p *Persona) error {
	for _, g := range m.groups {
		if g.ID == groupID {
			g.Personas = append(g.Personas, *p)
			return nil
		}
	}
	return nil
}

func (m *memRepo) UpdatePersona(ctx context.Context, p *Persona) error {
	for _, g := range m.groups {
		for i := range g.Personas {
			if g.Personas[i].PublicID == p.PublicID {
				g.Personas[i] = *p
			}
		}
	}
	return nil
}

func (m *memRepo) DeletePersona(ctx context.Context, publicID string) error {
	for _, g := range m.groups {
		for i, p := range g.Personas {
			if p.PublicID == publicID {
				g.Personas = append(g.Personas[:i], g.Personas[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *memRepo) CreateRun(ctx context.Context, r *Run) error {
	m.runsByID[r.ThoughtPublicID] = append(m.runsByID[r.ThoughtPublicID], r)
	return nil
}

func (m *memRepo) FindRunsByThought(ctx context.Context, thoughtPublicID string) ([]*Run, error) {
	return m.runsByID[thoughtPublicID], nil
}

func TestCreateGroupValidation(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	if _, err := svc.CreateGroup(ctx, "alice", "   ", nil); err == nil {
		t.Error("blank name must be rejected")
	}

	g, err := svc.CreateGroup(ctx, "alice", "  Advisors  ", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g.Name != "Advisors" {
		t.Errorf("name = %q, want trimmed", g.Name)
	}
	if g.PublicID == "" {
		t.Error("public ID must be assigned")
	}
}

func TestGetGroupOwnership(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)

	if _, err := svc.GetGroup(ctx, "mallory", g.PublicID, false); err == nil {
		t.Error("another owner's group must read as not found")
	}
	if _, err := svc.GetGroup(ctx, "alice", g.PublicID, false); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestAddPersonaCapAndOrder(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)

	for i := 0; i < MaxPersonasPerGroup; i++ {
		p, err := svc.AddPersona(ctx, "alice", g.PublicID, "Advisor", "Advise.")
		if err != nil {
			t.Fatalf("AddPersona %d failed: %v", i, err)
		}
		if p.SortOrder != i {
			t.Errorf("persona %d sort order = %d", i, p.SortOrder)
		}
	}

	if _, err := svc.AddPersona(ctx, "alice", g.PublicID, "One Too Many", "Advise."); err == nil {
		t.Errorf("cap of %d must be enforced", MaxPersonasPerGroup)
	}
}

func TestAddPersonaValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)

	if _, err := svc.AddPersona(ctx, "alice", g.PublicID, "", "Advise."); err == nil {
		t.Error("blank persona name must be rejected")
	}
	if _, err := svc.AddPersona(ctx, "alice", g.PublicID, "Advisor", "  "); err == nil {
		t.Error("blank role prompt must be rejected")
	}
	if _, err := svc.AddPersona(ctx, "mallory", g.PublicID, "Advisor", "Advise."); err == nil {
		t.Error("cross-owner persona add must fail")
	}
}

func TestDeleteGroupRequiresOwnership(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)

	if err := svc.DeleteGroup(ctx, "mallory", g.PublicID); err == nil {
		t.Error("cross-owner delete must fail")
	}
	if err := svc.DeleteGroup(ctx, "alice", g.PublicID); err != nil {
		t.Errorf("owner delete failed: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Error("delete was not delegated to the repository")
	}
}

func TestUpdatePersona(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)
	p, _ := svc.AddPersona(ctx, "alice", g.PublicID, "Optimist", "See the upside.")

	name := " Realist "
	order := 2
	updated, err := svc.UpdatePersona(ctx, "alice", g.PublicID, p.PublicID, &name, nil, &order)
	if err != nil {
		t.Fatalf("UpdatePersona failed: %v", err)
	}
	if updated.Name != "Realist" || updated.SortOrder != 2 {
		t.Errorf("updated persona = %+v, want trimmed name Realist at position 2", updated)
	}
	if updated.RolePrompt != "See the upside." {
		t.Error("nil role prompt must keep the current value")
	}

	blank := "  "
	if _, err := svc.UpdatePersona(ctx, "alice", g.PublicID, p.PublicID, &blank, nil, nil); err == nil {
		t.Error("blank name must be rejected")
	}
	if _, err := svc.UpdatePersona(ctx, "alice", g.PublicID, "not-there", &name, nil, nil); err == nil {
		t.Error("foreign persona ID must read as not found")
	}
	if _, err := svc.UpdatePersona(ctx, "mallory", g.PublicID, p.PublicID, &name, nil, nil); err == nil {
		t.Error("another owner must not update the persona")
	}
}

func TestDeletePersonaMustBelongToGroup(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	g, _ := svc.CreateGroup(ctx, "alice", "Advisors", nil)
	p, _ := svc.AddPersona(ctx, "alice", g.PublicID, "Advisor", "Advise.")

	if err := svc.DeletePersona(ctx, "alice", g.PublicID, "not-there"); err == nil {
		t.Error("foreign persona ID must read as not found")
	}
	if err := svc.DeletePersona(ctx, "alice", g.PublicID, p.PublicID); err != nil {
		t.Errorf("DeletePersona failed: %v", err)
	}
}
