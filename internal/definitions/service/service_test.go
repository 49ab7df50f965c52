package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/memory"
)

const owner = "owner-1"

func setupService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store), store
}

func seedTree(t *testing.T, svc *Service) *defdomain.Tree {
	t.Helper()
	ctx := context.Background()
	p, err := svc.CreateProject(ctx, owner, ProjectInput{Name: "Résumé Builder", SystemPrompt: "You write resumes."})
	require.NoError(t, err)

	about, err := svc.CreateStep(ctx, owner, p.ID, StepInput{Title: "About you"})
	require.NoError(t, err)
	_, err = svc.CreateField(ctx, owner, about.ID, FieldInput{Label: "Full Name", Type: defdomain.FieldText, Required: true})
	require.NoError(t, err)
	_, err = svc.CreateField(ctx, owner, about.ID, FieldInput{Label: "Seniority", Type: defdomain.FieldSelect,
		Choices: []ChoiceInput{{Label: "Junior"}, {Label: "Senior"}}})
	require.NoError(t, err)

	goals, err := svc.CreateStep(ctx, owner, p.ID, StepInput{Title: "Goals"})
	require.NoError(t, err)
	_, err = svc.CreateField(ctx, owner, goals.ID, FieldInput{Label: "Target role", Type: defdomain.FieldTextarea})
	require.NoError(t, err)

	tree, err := svc.GetTree(ctx, owner, p.ID)
	require.NoError(t, err)
	return tree
}

func TestCreateFieldDerivesName(t *testing.T) {
	svc, _ := setupService(t)
	tree := seedTree(t, svc)
	assert.Equal(t, "full_name", tree.Steps[0].Fields[0].Name)
	assert.Equal(t, "Junior", tree.Steps[0].Fields[1].Choices[0].Value)
}

func TestChoiceInvariant(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)
	stepID := tree.Steps[0].ID
	seniority := tree.Steps[0].Fields[1]

	t.Run("choice type requires choices at creation", func(t *testing.T) {
		_, err := svc.CreateField(ctx, owner, stepID, FieldInput{Label: "Pick", Type: defdomain.FieldRadio})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("non-choice type rejects choices", func(t *testing.T) {
		_, err := svc.CreateField(ctx, owner, stepID, FieldInput{Label: "Email", Type: defdomain.FieldEmail,
			Choices: []ChoiceInput{{Label: "x"}}})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("switching to text drops choices", func(t *testing.T) {
		text := defdomain.FieldText
		node, err := svc.UpdateField(ctx, owner, seniority.ID, FieldPatch{Type: &text})
		require.NoError(t, err)
		assert.Empty(t, node.Choices)

		left, err := svc.ListChoices(ctx, owner, seniority.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
	})

	t.Run("switching to radio without choices is rejected", func(t *testing.T) {
		radio := defdomain.FieldRadio
		_, err := svc.UpdateField(ctx, owner, seniority.ID, FieldPatch{Type: &radio})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("switching to radio with choices succeeds", func(t *testing.T) {
		radio := defdomain.FieldRadio
		node, err := svc.UpdateField(ctx, owner, seniority.ID, FieldPatch{Type: &radio,
			Choices: []ChoiceInput{{Label: "Yes"}, {Label: "No"}}})
		require.NoError(t, err)
		require.Len(t, node.Choices, 2)
		assert.Equal(t, 2, node.Choices[1].Position)
	})
}

func TestUpdateChoiceRejectsDuplicateValue(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)
	choices := tree.Steps[0].Fields[1].Choices
	require.Len(t, choices, 2)

	taken := choices[0].Value
	_, err := svc.UpdateChoice(ctx, owner, choices[1].ID, ChoicePatch{Value: &taken})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "value", e.Details["field"])

	// keeping its own value is not a collision
	own := choices[1].Value
	label := "Senior engineer"
	c, err := svc.UpdateChoice(ctx, owner, choices[1].ID, ChoicePatch{Label: &label, Value: &own})
	require.NoError(t, err)
	assert.Equal(t, "Senior", c.Value)
}

func TestDeleteStepCompactsAndCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)
	third, err := svc.CreateStep(ctx, owner, tree.Project.ID, StepInput{Title: "Extras"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.Position)

	require.NoError(t, svc.DeleteStep(ctx, owner, tree.Steps[1].ID))

	steps, err := svc.ListSteps(ctx, owner, tree.Project.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, []int{1, 2}, []int{steps[0].Position, steps[1].Position})
	assert.Equal(t, third.ID, steps[1].ID)

	_, err = svc.ListFields(ctx, owner, tree.Steps[1].ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReorderSteps(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)

	steps, err := svc.ReorderSteps(ctx, owner, tree.Project.ID, []string{tree.Steps[1].ID, tree.Steps[0].ID})
	require.NoError(t, err)
	assert.Equal(t, tree.Steps[1].ID, steps[0].ID)

	_, err = svc.ReorderSteps(ctx, owner, tree.Project.ID, []string{tree.Steps[1].ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	tree := seedTree(t, svc)

	_, err := store.Activate(ctx, deploydomain.ActivateParams{ProjectID: tree.Project.ID, Slug: "resume-builder"}, nil)
	require.NoError(t, err)

	clone, err := svc.Clone(ctx, owner, tree.Project.ID)
	require.NoError(t, err)

	assert.NotEqual(t, tree.Project.ID, clone.Project.ID)
	assert.False(t, clone.Project.Deployed)
	assert.Nil(t, clone.Project.Subdomain)
	require.Len(t, clone.Steps, len(tree.Steps))
	assert.Equal(t, tree.FieldCount(), clone.FieldCount())
	for i := range tree.Steps {
		assert.Equal(t, tree.Steps[i].Title, clone.Steps[i].Title)
		assert.NotEqual(t, tree.Steps[i].ID, clone.Steps[i].ID)
		for j := range tree.Steps[i].Fields {
			orig, cp := tree.Steps[i].Fields[j], clone.Steps[i].Fields[j]
			assert.Equal(t, orig.Name, cp.Name)
			assert.Equal(t, orig.Type, cp.Type)
			assert.Equal(t, len(orig.Choices), len(cp.Choices))
		}
	}
}

func TestExportImportYAML(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)

	data, err := svc.Export(ctx, owner, tree.Project.ID, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "full_name")

	imported, err := svc.Import(ctx, "owner-2", data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "owner-2", imported.Project.OwnerID)
	assert.Equal(t, tree.Project.Name, imported.Project.Name)
	assert.Equal(t, tree.FieldCount(), imported.FieldCount())
	assert.Equal(t, []string{"Junior", "Senior"}, []string{
		imported.Steps[0].Fields[1].Choices[0].Value,
		imported.Steps[0].Fields[1].Choices[1].Value,
	})
}

func TestImportRejectsMalformed(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Import(context.Background(), owner, []byte("{not json"), FormatJSON)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestNormalizeTreeDeduplicatesNames(t *testing.T) {
	tree := &defdomain.Tree{
		Project: defdomain.Project{Name: "Dupes"},
		Steps: []defdomain.StepNode{{
			Step: defdomain.Step{Title: "One"},
			Fields: []defdomain.FieldNode{
				{Field: defdomain.Field{Label: "Topic", Type: defdomain.FieldText}},
				{Field: defdomain.Field{Label: "Topic", Type: defdomain.FieldText}},
			},
		}},
	}
	require.NoError(t, NormalizeTree(tree))
	assert.Equal(t, "topic", tree.Steps[0].Fields[0].Name)
	assert.Equal(t, "topic_2", tree.Steps[0].Fields[1].Name)
	assert.Equal(t, defdomain.TierPublic, tree.Project.Tier)
}

func TestRenameKeepsSubdomain(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)
	tree := seedTree(t, svc)

	p, err := svc.UpdateSubdomain(ctx, owner, tree.Project.ID, "My Resumes")
	require.NoError(t, err)
	require.NotNil(t, p.Subdomain)
	assert.Equal(t, "my-resumes", *p.Subdomain)

	name := "Completely Different"
	p, err = svc.UpdateProject(ctx, owner, tree.Project.ID, ProjectPatch{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, p.Subdomain)
	assert.Equal(t, "my-resumes", *p.Subdomain)
}

func TestUpdateSubdomainConflict(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)
	live := seedTree(t, svc)
	_, err := store.Activate(ctx, deploydomain.ActivateParams{ProjectID: live.Project.ID, Slug: "resume-builder"}, nil)
	require.NoError(t, err)

	draft, err := svc.CreateProject(ctx, owner, ProjectInput{Name: "Résumé Builder"})
	require.NoError(t, err)

	_, err = svc.UpdateSubdomain(ctx, owner, draft.ID, "resume-builder")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	suggestions, _ := e.Details["suggestions"].([]apperr.Suggestion)
	assert.NotEmpty(t, suggestions)
}

func TestOwnershipHidesForeignProjects(t *testing.T) {
	svc, _ := setupService(t)
	tree := seedTree(t, svc)
	_, err := svc.GetTree(context.Background(), "intruder", tree.Project.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = svc.DeleteField(context.Background(), "intruder", tree.Steps[0].Fields[0].ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
