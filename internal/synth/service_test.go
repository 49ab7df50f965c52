package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

type fakeCompleter struct {
	reply string
	err   error
	last  completion.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

type fakeImporter struct {
	owner string
	tree  *defdomain.Tree
}

func (f *fakeImporter) ImportTree(_ context.Context, ownerID string, tree *defdomain.Tree) (*defdomain.Tree, error) {
	f.owner, f.tree = ownerID, tree
	return tree, nil
}

func TestQuestions(t *testing.T) {
	ctx := context.Background()

	t.Run("strings and objects", func(t *testing.T) {
		fc := &fakeCompleter{reply: `Sure! {"questions": ["Who is the audience?", {"question": "How formal?"}, "What length?", "Any examples?"]}`}
		out, err := New(fc, nil).Questions(ctx, QuestionsInput{Idea: "cover letters", Role: "career coach"})
		require.NoError(t, err)
		assert.False(t, out.Fallback)
		assert.Equal(t, []string{"Who is the audience?", "How formal?", "What length?", "Any examples?"}, out.Questions)
		assert.Contains(t, fc.last.User, "Persona: career coach")
	})

	t.Run("clamped to five", func(t *testing.T) {
		fc := &fakeCompleter{reply: `{"questions":["a","b","c","d","e","f","g"]}`}
		out, err := New(fc, nil).Questions(ctx, QuestionsInput{Idea: "x"})
		require.NoError(t, err)
		assert.Len(t, out.Questions, 5)
	})

	t.Run("garbage padded to three", func(t *testing.T) {
		fc := &fakeCompleter{reply: "I cannot help with that."}
		out, err := New(fc, nil).Questions(ctx, QuestionsInput{Idea: "x"})
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.Len(t, out.Questions, 3)
	})

	t.Run("upstream error propagates", func(t *testing.T) {
		fc := &fakeCompleter{err: apperr.UpstreamGeneration(completion.FailureTimeout, errors.New("deadline"))}
		_, err := New(fc, nil).Questions(ctx, QuestionsInput{Idea: "x"})
		assert.Equal(t, apperr.KindUpstreamGeneration, apperr.KindOf(err))
	})
}

func TestDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("aliases and coercion", func(t *testing.T) {
		fc := &fakeCompleter{reply: "```json\n" + `{
			"tool_name": "  Trip Planner ",
			"system_prompt": "Plan a trip.",
			"steps": [{
				"title": "Basics",
				"fields": [
					{"label": "Destination", "field_type": "text", "is_required": true},
					{"label": "Budget", "type": "currency"},
					{"label": "Style", "type": "select", "options": ["Relaxed", {"label": "Packed", "value": "packed"}]},
					{"label": "Pace", "type": "radio"},
					{"label": "Destination", "type": "text"}
				]
			}]
		}` + "\n```"}
		d, err := New(fc, nil).Draft(ctx, DraftInput{Idea: "trip planning", Answers: []QA{{Question: "Budget?", Answer: "low"}}})
		require.NoError(t, err)
		assert.False(t, d.Fallback)
		assert.Contains(t, fc.last.User, "A: low")

		assert.Equal(t, "Trip Planner", d.Tree.Project.Name)
		fields := d.Tree.Steps[0].Fields
		require.Len(t, fields, 5)
		assert.True(t, fields[0].Required)
		assert.Equal(t, defdomain.FieldText, fields[1].Type)
		assert.Equal(t, defdomain.FieldSelect, fields[2].Type)
		require.Len(t, fields[2].Choices, 2)
		assert.Equal(t, "Relaxed", fields[2].Choices[0].Value)
		assert.Equal(t, "packed", fields[2].Choices[1].Value)
		assert.Equal(t, defdomain.FieldText, fields[3].Type)
		assert.Equal(t, "destination", fields[0].Name)
		assert.Equal(t, "destination_2", fields[4].Name)
		assert.Len(t, d.Warnings, 2)
	})

	t.Run("top level fields", func(t *testing.T) {
		fc := &fakeCompleter{reply: `{"name":"Quick","fields":[{"question":"What do you need?","type":"textarea"}]}`}
		d, err := New(fc, nil).Draft(ctx, DraftInput{Idea: "quick"})
		require.NoError(t, err)
		assert.False(t, d.Fallback)
		require.Len(t, d.Tree.Steps, 1)
		assert.Equal(t, "What do you need?", d.Tree.Steps[0].Fields[0].Label)
		assert.NotEmpty(t, d.Tree.Project.SystemPrompt)
	})

	for name, reply := range map[string]string{
		"no json":      "Here is your form!",
		"broken json":  `{"steps": [ {"fields": }`,
		"no steps":     `{"name": "Empty"}`,
		"empty fields": `{"name": "Empty", "steps": [{"title": "A", "fields": []}]}`,
	} {
		t.Run("fallback "+name, func(t *testing.T) {
			fc := &fakeCompleter{reply: reply}
			d, err := New(fc, nil).Draft(ctx, DraftInput{Idea: "summarize meeting notes", Role: "an editor"})
			require.NoError(t, err)
			assert.True(t, d.Fallback)
			require.Len(t, d.Tree.Steps, 1)
			require.Len(t, d.Tree.Steps[0].Fields, 1)
			assert.Equal(t, "summarize meeting notes", d.Tree.Project.Name)
			assert.Contains(t, d.Tree.Project.SystemPrompt, "You are an editor.")
		})
	}

	t.Run("idea required", func(t *testing.T) {
		_, err := New(&fakeCompleter{}, nil).Draft(ctx, DraftInput{Idea: " "})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestCommit(t *testing.T) {
	imp := &fakeImporter{}
	svc := New(&fakeCompleter{}, imp)
	tree := scaffold("idea", "")
	_, err := svc.Commit(context.Background(), "u1", tree)
	require.NoError(t, err)
	assert.Equal(t, "u1", imp.owner)
	assert.Same(t, tree, imp.tree)

	_, err = svc.Commit(context.Background(), "u1", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON(`answer: {"a":{"b":2}} done`))
	assert.Equal(t, "", extractJSON("nothing here"))
}
