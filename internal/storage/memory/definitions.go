package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// Projects -------------------------------------------------------------------

func (s *Store) CreateProject(_ context.Context, p *defdomain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertProjectLocked(p)
	return nil
}

func (s *Store) insertProjectLocked(p *defdomain.Project) {
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.projects[p.ID] = cloneProject(*p)
}

func (s *Store) GetProject(_ context.Context, id string) (*defdomain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	out := cloneProject(p)
	return &out, nil
}

func (s *Store) ListProjects(_ context.Context, ownerID string) ([]defdomain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]defdomain.Project, 0)
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p *defdomain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return apperr.NotFound("project", p.ID)
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Role = p.Role
	cur.SystemPrompt = p.SystemPrompt
	cur.Tier = p.Tier
	cur.RequiredPackage = p.RequiredPackage
	cur.Enabled = p.Enabled
	cur.UpdatedAt = time.Now().UTC()
	s.projects[p.ID] = cur
	*p = cloneProject(cur)
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return apperr.NotFound("project", id)
	}
	for sid, st := range s.steps {
		if st.ProjectID == id {
			s.deleteStepTreeLocked(sid)
		}
	}
	delete(s.projects, id)
	delete(s.deployments, id)
	return nil
}

func (s *Store) SetSubdomain(_ context.Context, id string, subdomain *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return apperr.NotFound("project", id)
	}
	p.Subdomain = cloneString(subdomain)
	p.UpdatedAt = time.Now().UTC()
	s.projects[id] = p
	return nil
}

func (s *Store) GetTree(_ context.Context, projectID string) (*defdomain.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, apperr.NotFound("project", projectID)
	}
	tree := &defdomain.Tree{Project: cloneProject(p)}
	for _, st := range s.stepsOfLocked(projectID) {
		node := defdomain.StepNode{Step: st}
		for _, f := range s.fieldsOfLocked(st.ID) {
			node.Fields = append(node.Fields, defdomain.FieldNode{Field: f, Choices: s.choicesOfLocked(f.ID)})
		}
		tree.Steps = append(tree.Steps, node)
	}
	return tree, nil
}

func (s *Store) CreateTree(_ context.Context, tree *defdomain.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := map[string]struct{}{}
	for _, st := range tree.Steps {
		for _, f := range st.Fields {
			if _, dup := names[f.Name]; dup {
				return apperr.Validation("name", "duplicate field name "+f.Name)
			}
			names[f.Name] = struct{}{}
		}
	}

	tree.Project.ID = ""
	s.insertProjectLocked(&tree.Project)
	now := time.Now().UTC()
	for i := range tree.Steps {
		st := &tree.Steps[i]
		st.ID, st.ProjectID, st.Position = newID(), tree.Project.ID, i+1
		st.CreatedAt, st.UpdatedAt = now, now
		s.steps[st.ID] = st.Step
		for j := range st.Fields {
			f := &st.Fields[j]
			f.ID, f.StepID, f.Position = newID(), st.ID, j+1
			f.CreatedAt, f.UpdatedAt = now, now
			s.fields[f.ID] = cloneField(f.Field)
			for k := range f.Choices {
				c := &f.Choices[k]
				c.ID, c.FieldID, c.Position = newID(), f.ID, k+1
				s.choices[c.ID] = *c
			}
		}
	}
	return nil
}

// Steps ----------------------------------------------------------------------

func (s *Store) stepsOfLocked(projectID string) []defdomain.Step {
	out := make([]defdomain.Step, 0)
	for _, st := range s.steps {
		if st.ProjectID == projectID {
			out = append(out, st)
		}
	}
	defdomain.SortByPosition(out, defdomain.StepPos)
	return out
}

func (s *Store) CreateStep(_ context.Context, st *defdomain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[st.ProjectID]; !ok {
		return apperr.NotFound("project", st.ProjectID)
	}
	st.ID = newID()
	st.Position = len(s.stepsOfLocked(st.ProjectID)) + 1
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now
	s.steps[st.ID] = *st
	return nil
}

func (s *Store) GetStep(_ context.Context, id string) (*defdomain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.steps[id]
	if !ok {
		return nil, apperr.NotFound("step", id)
	}
	return &st, nil
}

func (s *Store) ListSteps(_ context.Context, projectID string) ([]defdomain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepsOfLocked(projectID), nil
}

func (s *Store) UpdateStep(_ context.Context, st *defdomain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.steps[st.ID]
	if !ok {
		return apperr.NotFound("step", st.ID)
	}
	cur.Name, cur.Title, cur.Subtitle = st.Name, st.Title, st.Subtitle
	cur.UpdatedAt = time.Now().UTC()
	s.steps[st.ID] = cur
	*st = cur
	return nil
}

func (s *Store) DeleteStep(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.steps[id]
	if !ok {
		return apperr.NotFound("step", id)
	}
	s.deleteStepTreeLocked(id)
	siblings := s.stepsOfLocked(st.ProjectID)
	defdomain.Compact(siblings, defdomain.StepPos)
	for _, sib := range siblings {
		s.steps[sib.ID] = sib
	}
	return nil
}

func (s *Store) deleteStepTreeLocked(stepID string) {
	for fid, f := range s.fields {
		if f.StepID == stepID {
			s.deleteFieldTreeLocked(fid)
		}
	}
	delete(s.steps, stepID)
}

func (s *Store) ReorderSteps(_ context.Context, projectID string, ordered []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	siblings := s.stepsOfLocked(projectID)
	ids := make([]string, len(siblings))
	for i, st := range siblings {
		ids[i] = st.ID
	}
	pos, err := defdomain.Reorder(ids, ordered)
	if err != nil {
		return apperr.Validation("ordered_ids", err.Error())
	}
	for _, st := range siblings {
		st.Position = pos[st.ID]
		s.steps[st.ID] = st
	}
	return nil
}

// Fields ---------------------------------------------------------------------

func (s *Store) fieldsOfLocked(stepID string) []defdomain.Field {
	out := make([]defdomain.Field, 0)
	for _, f := range s.fields {
		if f.StepID == stepID {
			out = append(out, cloneField(f))
		}
	}
	defdomain.SortByPosition(out, defdomain.FieldPos)
	return out
}

func (s *Store) fieldNamesLocked(projectID string) map[string]string {
	out := map[string]string{}
	for _, f := range s.fields {
		if st, ok := s.steps[f.StepID]; ok && st.ProjectID == projectID {
			out[f.Name] = f.ID
		}
	}
	return out
}

func (s *Store) CreateField(_ context.Context, f *defdomain.Field, choices []defdomain.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.steps[f.StepID]
	if !ok {
		return apperr.NotFound("step", f.StepID)
	}
	if _, taken := s.fieldNamesLocked(st.ProjectID)[f.Name]; taken {
		return apperr.Validation("name", "field name already used in this project: "+f.Name)
	}
	f.ID = newID()
	f.Position = len(s.fieldsOfLocked(f.StepID)) + 1
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	s.fields[f.ID] = cloneField(*f)
	s.putChoicesLocked(f.ID, choices)
	return nil
}

func (s *Store) putChoicesLocked(fieldID string, choices []defdomain.Choice) {
	for i := range choices {
		c := choices[i]
		c.ID, c.FieldID, c.Position = newID(), fieldID, i+1
		s.choices[c.ID] = c
	}
}

func (s *Store) GetField(_ context.Context, id string) (*defdomain.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok {
		return nil, apperr.NotFound("field", id)
	}
	out := cloneField(f)
	return &out, nil
}

func (s *Store) ListFields(_ context.Context, stepID string) ([]defdomain.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fieldsOfLocked(stepID), nil
}

func (s *Store) FieldNames(_ context.Context, projectID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fieldNamesLocked(projectID), nil
}

func (s *Store) UpdateField(_ context.Context, f *defdomain.Field, choices []defdomain.Choice, replaceChoices bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.fields[f.ID]
	if !ok {
		return apperr.NotFound("field", f.ID)
	}
	st := s.steps[cur.StepID]
	if id, taken := s.fieldNamesLocked(st.ProjectID)[f.Name]; taken && id != f.ID {
		return apperr.Validation("name", "field name already used in this project: "+f.Name)
	}
	f.StepID, f.Position, f.CreatedAt = cur.StepID, cur.Position, cur.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	s.fields[f.ID] = cloneField(*f)
	if replaceChoices {
		for cid, c := range s.choices {
			if c.FieldID == f.ID {
				delete(s.choices, cid)
			}
		}
		s.putChoicesLocked(f.ID, choices)
	}
	return nil
}

func (s *Store) DeleteField(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[id]
	if !ok {
		return apperr.NotFound("field", id)
	}
	s.deleteFieldTreeLocked(id)
	siblings := s.fieldsOfLocked(f.StepID)
	defdomain.Compact(siblings, defdomain.FieldPos)
	for _, sib := range siblings {
		s.fields[sib.ID] = sib
	}
	return nil
}

func (s *Store) deleteFieldTreeLocked(fieldID string) {
	for cid, c := range s.choices {
		if c.FieldID == fieldID {
			delete(s.choices, cid)
		}
	}
	delete(s.fields, fieldID)
}

func (s *Store) ReorderFields(_ context.Context, stepID string, ordered []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	siblings := s.fieldsOfLocked(stepID)
	ids := make([]string, len(siblings))
	for i, f := range siblings {
		ids[i] = f.ID
	}
	pos, err := defdomain.Reorder(ids, ordered)
	if err != nil {
		return apperr.Validation("ordered_ids", err.Error())
	}
	for _, f := range siblings {
		f.Position = pos[f.ID]
		s.fields[f.ID] = f
	}
	return nil
}

// Choices --------------------------------------------------------------------

func (s *Store) choicesOfLocked(fieldID string) []defdomain.Choice {
	var out []defdomain.Choice
	for _, c := range s.choices {
		if c.FieldID == fieldID {
			out = append(out, c)
		}
	}
	defdomain.SortByPosition(out, defdomain.ChoicePos)
	return out
}

func (s *Store) CreateChoice(_ context.Context, c *defdomain.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[c.FieldID]
	if !ok {
		return apperr.NotFound("field", c.FieldID)
	}
	if !f.Type.HasChoices() {
		return apperr.Validation("field_id", "field type "+string(f.Type)+" does not take choices")
	}
	c.ID = newID()
	c.Position = len(s.choicesOfLocked(c.FieldID)) + 1
	s.choices[c.ID] = *c
	return nil
}

func (s *Store) GetChoice(_ context.Context, id string) (*defdomain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.choices[id]
	if !ok {
		return nil, apperr.NotFound("choice", id)
	}
	return &c, nil
}

func (s *Store) ListChoices(_ context.Context, fieldID string) ([]defdomain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.choicesOfLocked(fieldID)
	if out == nil {
		out = []defdomain.Choice{}
	}
	return out, nil
}

func (s *Store) UpdateChoice(_ context.Context, c *defdomain.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.choices[c.ID]
	if !ok {
		return apperr.NotFound("choice", c.ID)
	}
	cur.Label, cur.Value, cur.IsDefault = c.Label, c.Value, c.IsDefault
	s.choices[c.ID] = cur
	*c = cur
	return nil
}

func (s *Store) DeleteChoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.choices[id]
	if !ok {
		return apperr.NotFound("choice", id)
	}
	siblings := s.choicesOfLocked(c.FieldID)
	if f, ok := s.fields[c.FieldID]; ok && f.Type.HasChoices() && len(siblings) <= 1 {
		return apperr.Validation("choice", "cannot delete the last choice of a "+string(f.Type)+" field")
	}
	delete(s.choices, id)
	remaining := siblings[:0]
	for _, sib := range siblings {
		if sib.ID != id {
			remaining = append(remaining, sib)
		}
	}
	defdomain.Compact(remaining, defdomain.ChoicePos)
	for _, sib := range remaining {
		s.choices[sib.ID] = sib
	}
	return nil
}

func (s *Store) ReorderChoices(_ context.Context, fieldID string, ordered []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	siblings := s.choicesOfLocked(fieldID)
	ids := make([]string, len(siblings))
	for i, c := range siblings {
		ids[i] = c.ID
	}
	pos, err := defdomain.Reorder(ids, ordered)
	if err != nil {
		return apperr.Validation("ordered_ids", err.Error())
	}
	for _, c := range siblings {
		c.Position = pos[c.ID]
		s.choices[c.ID] = c
	}
	return nil
}

func normalizedSlug(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
