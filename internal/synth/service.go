// Package synth turns a freeform tool idea into a candidate definition tree
// using the completion service. Model output is untrusted: it is parsed
// defensively, validated, coerced where possible, and replaced by a minimal
// scaffold when it cannot be used. Nothing here writes to the store except
// Commit, which goes through the regular import path.
package synth

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	defservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
)

const maxIdeaLen = 4000

// Importer commits a candidate tree as a new draft project.
type Importer interface {
	ImportTree(ctx context.Context, ownerID string, tree *defdomain.Tree) (*defdomain.Tree, error)
}

type QuestionsInput struct {
	Idea string `json:"idea"`
	Role string `json:"role"`
}

type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type DraftInput struct {
	Idea    string `json:"idea"`
	Role    string `json:"role"`
	Answers []QA   `json:"answers"`
}

type Questions struct {
	Questions []string `json:"questions"`
	Fallback  bool     `json:"fallback"`
}

// Draft is a candidate tree. Fallback is set when the scaffold replaced the
// model's reply; Warnings lists the repairs applied.
type Draft struct {
	Tree     *defdomain.Tree `json:"tree"`
	Fallback bool            `json:"fallback"`
	Warnings []string        `json:"warnings,omitempty"`
}

type Service struct {
	completer completion.Completer
	defs      Importer
}

func New(completer completion.Completer, defs Importer) *Service {
	return &Service{completer: completer, defs: defs}
}

func checkIdea(idea string) error {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return apperr.Validation("idea", "idea is required")
	}
	if len(idea) > maxIdeaLen {
		return apperr.Validation("idea", "idea is too long")
	}
	return nil
}

// Questions asks the model for 3 to 5 clarifying questions about the idea.
func (s *Service) Questions(ctx context.Context, in QuestionsInput) (*Questions, error) {
	if err := checkIdea(in.Idea); err != nil {
		return nil, err
	}
	text, err := s.completer.Complete(ctx, completion.Request{
		Caller: "synth.questions",
		System: questionsSystemPrompt,
		User:   questionsUserPrompt(in.Idea, in.Role),
	})
	if err != nil {
		return nil, err
	}
	qs, fellBack := parseQuestions(text)
	if fellBack {
		logging.FromContext(ctx).Info("clarifying questions padded with defaults", zap.Int("usable", countUsable(qs)))
	}
	return &Questions{Questions: qs, Fallback: fellBack}, nil
}

func countUsable(qs []string) int {
	n := 0
	for _, q := range qs {
		used := false
		for _, d := range defaultQuestions {
			if q == d {
				used = true
				break
			}
		}
		if !used {
			n++
		}
	}
	return n
}

// Draft asks the model for a candidate tree. Completion failures surface as
// upstream_generation errors; anything wrong with the reply itself yields the
// scaffold instead.
func (s *Service) Draft(ctx context.Context, in DraftInput) (*Draft, error) {
	if err := checkIdea(in.Idea); err != nil {
		return nil, err
	}
	text, err := s.completer.Complete(ctx, completion.Request{
		Caller: "synth.draft",
		System: draftSystemPrompt,
		User:   draftUserPrompt(in),
	})
	if err != nil {
		return nil, err
	}

	tree, warnings, perr := interpretDraft(text, in)
	if perr != nil {
		logging.FromContext(ctx).Warn("draft reply unusable, using scaffold", zap.Error(perr))
		tree = scaffold(in.Idea, in.Role)
		if err := defservice.NormalizeTree(tree); err != nil {
			return nil, err
		}
		return &Draft{Tree: tree, Fallback: true, Warnings: []string{perr.Error()}}, nil
	}
	return &Draft{Tree: tree, Warnings: warnings}, nil
}

func interpretDraft(text string, in DraftInput) (*defdomain.Tree, []string, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, nil, errNoJSON
	}
	if !gjson.Valid(raw) {
		return nil, nil, errBadJSON
	}
	doc := canonicalDraft(raw)
	if err := validateDraft(doc); err != nil {
		return nil, nil, &schemaError{err: err}
	}

	tree := treeFromDraft(doc)
	warnings := coercions(doc, tree)
	if tree.Project.Name == "" {
		tree.Project.Name = scaffold(in.Idea, "").Project.Name
	}
	if tree.Project.Role == "" {
		tree.Project.Role = strings.TrimSpace(in.Role)
	}
	if tree.Project.SystemPrompt == "" {
		tree.Project.SystemPrompt = scaffold(in.Idea, in.Role).Project.SystemPrompt
		warnings = append(warnings, "system prompt missing, default used")
	}
	if err := defservice.NormalizeTree(tree); err != nil {
		return nil, nil, err
	}
	return tree, warnings, nil
}

// coercions reports the type repairs treeFromDraft made.
func coercions(doc map[string]any, tree *defdomain.Tree) []string {
	var out []string
	steps, _ := doc["steps"].([]any)
	for i, s := range steps {
		sm, _ := s.(map[string]any)
		fields, _ := sm["fields"].([]any)
		for j, f := range fields {
			fm, _ := f.(map[string]any)
			asked := str(fm["type"])
			got := tree.Steps[i].Fields[j].Type
			if asked != "" && asked != string(got) {
				out = append(out, "field "+tree.Steps[i].Fields[j].Label+": type "+asked+" coerced to "+string(got))
			}
		}
	}
	return out
}

// Commit stores a candidate tree as a new draft owned by ownerID.
func (s *Service) Commit(ctx context.Context, ownerID string, tree *defdomain.Tree) (*defdomain.Tree, error) {
	if tree == nil {
		return nil, apperr.Validation("tree", "tree is required")
	}
	return s.defs.ImportTree(ctx, ownerID, tree)
}
