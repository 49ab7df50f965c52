package service

import (
	"context"
	"strings"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// Steps ----------------------------------------------------------------------

func (s *Service) CreateStep(ctx context.Context, ownerID, projectID string, in StepInput) (*defdomain.Step, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	st := &defdomain.Step{
		ProjectID: projectID,
		Name:      strings.TrimSpace(in.Name),
		Title:     strings.TrimSpace(in.Title),
		Subtitle:  strings.TrimSpace(in.Subtitle),
	}
	if st.Name == "" {
		st.Name = st.Title
	}
	if st.Name == "" {
		return nil, apperr.Validation("name", "name or title is required")
	}
	if st.Title == "" {
		st.Title = st.Name
	}
	if err := s.store.CreateStep(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) ListSteps(ctx context.Context, ownerID, projectID string) ([]defdomain.Step, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSteps(ctx, projectID)
}

func (s *Service) UpdateStep(ctx context.Context, ownerID, stepID string, patch StepPatch) (*defdomain.Step, error) {
	st, _, err := s.ownedStep(ctx, ownerID, stepID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		st.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Title != nil {
		st.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Subtitle != nil {
		st.Subtitle = strings.TrimSpace(*patch.Subtitle)
	}
	if err := s.store.UpdateStep(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStep removes the step with its fields and choices; remaining steps
// are compacted to 1..N.
func (s *Service) DeleteStep(ctx context.Context, ownerID, stepID string) error {
	if _, _, err := s.ownedStep(ctx, ownerID, stepID); err != nil {
		return err
	}
	return s.store.DeleteStep(ctx, stepID)
}

func (s *Service) ReorderSteps(ctx context.Context, ownerID, projectID string, ordered []string) ([]defdomain.Step, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	if err := s.store.ReorderSteps(ctx, projectID, ordered); err != nil {
		return nil, err
	}
	return s.store.ListSteps(ctx, projectID)
}

// Fields ---------------------------------------------------------------------

func (s *Service) CreateField(ctx context.Context, ownerID, stepID string, in FieldInput) (*defdomain.FieldNode, error) {
	if _, _, err := s.ownedStep(ctx, ownerID, stepID); err != nil {
		return nil, err
	}
	ft, err := parseFieldType(in.Type)
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)
	if label == "" && strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("label", "label or name is required")
	}
	if label == "" {
		label = strings.TrimSpace(in.Name)
	}
	f := &defdomain.Field{
		StepID:      stepID,
		Name:        fieldName(in.Name, label),
		Label:       label,
		Type:        ft,
		Placeholder: in.Placeholder,
		HelpText:    in.HelpText,
		Required:    in.Required,
		MinLength:   zeroClears(in.MinLength),
		MaxLength:   zeroClears(in.MaxLength),
		Pattern:     in.Pattern,
	}
	if err := defdomain.CheckRules(f); err != nil {
		return nil, apperr.Validation("rules", err.Error())
	}

	var choices []defdomain.Choice
	switch {
	case ft.HasChoices():
		if len(in.Choices) == 0 {
			return nil, apperr.Validation("choices", string(ft)+" fields need at least one choice")
		}
		if choices, err = buildChoices(in.Choices); err != nil {
			return nil, err
		}
	case len(in.Choices) > 0:
		return nil, apperr.Validation("choices", string(ft)+" fields do not take choices")
	}

	if err := s.store.CreateField(ctx, f, choices); err != nil {
		return nil, err
	}
	return &defdomain.FieldNode{Field: *f, Choices: choices}, nil
}

func (s *Service) ListFields(ctx context.Context, ownerID, stepID string) ([]defdomain.Field, error) {
	if _, _, err := s.ownedStep(ctx, ownerID, stepID); err != nil {
		return nil, err
	}
	return s.store.ListFields(ctx, stepID)
}

// UpdateField applies patch. Switching to a non-choice type drops the
// field's choices; switching to a choice type requires choices in the same
// request.
func (s *Service) UpdateField(ctx context.Context, ownerID, fieldID string, patch FieldPatch) (*defdomain.FieldNode, error) {
	f, _, err := s.ownedField(ctx, ownerID, fieldID)
	if err != nil {
		return nil, err
	}
	oldType := f.Type

	if patch.Label != nil {
		if strings.TrimSpace(*patch.Label) == "" {
			return nil, apperr.Validation("label", "label is required")
		}
		f.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.Name != nil {
		f.Name = fieldName(*patch.Name, f.Label)
	}
	if patch.Type != nil {
		ft, err := parseFieldType(*patch.Type)
		if err != nil {
			return nil, err
		}
		f.Type = ft
	}
	if patch.Placeholder != nil {
		f.Placeholder = *patch.Placeholder
	}
	if patch.HelpText != nil {
		f.HelpText = *patch.HelpText
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.MinLength != nil {
		f.MinLength = zeroClears(patch.MinLength)
	}
	if patch.MaxLength != nil {
		f.MaxLength = zeroClears(patch.MaxLength)
	}
	if patch.Pattern != nil {
		f.Pattern = *patch.Pattern
	}
	if err := defdomain.CheckRules(f); err != nil {
		return nil, apperr.Validation("rules", err.Error())
	}

	var (
		choices []defdomain.Choice
		replace bool
	)
	switch {
	case patch.Choices != nil:
		if !f.Type.HasChoices() {
			return nil, apperr.Validation("choices", string(f.Type)+" fields do not take choices")
		}
		if len(patch.Choices) == 0 {
			return nil, apperr.Validation("choices", string(f.Type)+" fields need at least one choice")
		}
		if choices, err = buildChoices(patch.Choices); err != nil {
			return nil, err
		}
		replace = true
	case f.Type.HasChoices() && !oldType.HasChoices():
		return nil, apperr.Validation("choices", "choices are required when changing type to "+string(f.Type))
	case !f.Type.HasChoices() && oldType.HasChoices():
		replace = true
	}

	if err := s.store.UpdateField(ctx, f, choices, replace); err != nil {
		return nil, err
	}
	if !replace {
		if choices, err = s.store.ListChoices(ctx, f.ID); err != nil {
			return nil, err
		}
	}
	return &defdomain.FieldNode{Field: *f, Choices: choices}, nil
}

func (s *Service) DeleteField(ctx context.Context, ownerID, fieldID string) error {
	if _, _, err := s.ownedField(ctx, ownerID, fieldID); err != nil {
		return err
	}
	return s.store.DeleteField(ctx, fieldID)
}

func (s *Service) ReorderFields(ctx context.Context, ownerID, stepID string, ordered []string) ([]defdomain.Field, error) {
	if _, _, err := s.ownedStep(ctx, ownerID, stepID); err != nil {
		return nil, err
	}
	if err := s.store.ReorderFields(ctx, stepID, ordered); err != nil {
		return nil, err
	}
	return s.store.ListFields(ctx, stepID)
}

// Choices --------------------------------------------------------------------

func (s *Service) CreateChoice(ctx context.Context, ownerID, fieldID string, in ChoiceInput) (*defdomain.Choice, error) {
	f, _, err := s.ownedField(ctx, ownerID, fieldID)
	if err != nil {
		return nil, err
	}
	if !f.Type.HasChoices() {
		return nil, apperr.Validation("field_id", string(f.Type)+" fields do not take choices")
	}
	built, err := buildChoices([]ChoiceInput{in})
	if err != nil {
		return nil, err
	}
	c := built[0]
	existing, err := s.store.ListChoices(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Value == c.Value {
			return nil, apperr.Validation("value", "duplicate choice value "+c.Value)
		}
	}
	c.FieldID = fieldID
	if err := s.store.CreateChoice(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListChoices(ctx context.Context, ownerID, fieldID string) ([]defdomain.Choice, error) {
	if _, _, err := s.ownedField(ctx, ownerID, fieldID); err != nil {
		return nil, err
	}
	return s.store.ListChoices(ctx, fieldID)
}

func (s *Service) UpdateChoice(ctx context.Context, ownerID, choiceID string, patch ChoicePatch) (*defdomain.Choice, error) {
	c, _, err := s.ownedChoice(ctx, ownerID, choiceID)
	if err != nil {
		return nil, err
	}
	if patch.Label != nil {
		if strings.TrimSpace(*patch.Label) == "" {
			return nil, apperr.Validation("label", "label is required")
		}
		c.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.Value != nil {
		c.Value = strings.TrimSpace(*patch.Value)
		if c.Value == "" {
			c.Value = c.Label
		}
		siblings, err := s.store.ListChoices(ctx, c.FieldID)
		if err != nil {
			return nil, err
		}
		for _, e := range siblings {
			if e.ID != c.ID && e.Value == c.Value {
				return nil, apperr.Validation("value", "duplicate choice value "+c.Value)
			}
		}
	}
	if patch.IsDefault != nil {
		c.IsDefault = *patch.IsDefault
	}
	if err := s.store.UpdateChoice(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteChoice refuses to remove the last choice of a choice-type field.
func (s *Service) DeleteChoice(ctx context.Context, ownerID, choiceID string) error {
	if _, _, err := s.ownedChoice(ctx, ownerID, choiceID); err != nil {
		return err
	}
	return s.store.DeleteChoice(ctx, choiceID)
}

func (s *Service) ReorderChoices(ctx context.Context, ownerID, fieldID string, ordered []string) ([]defdomain.Choice, error) {
	if _, _, err := s.ownedField(ctx, ownerID, fieldID); err != nil {
		return nil, err
	}
	if err := s.store.ReorderChoices(ctx, fieldID, ordered); err != nil {
		return nil, err
	}
	return s.store.ListChoices(ctx, fieldID)
}
