package synth

import (
	"strings"

	"github.com/tidwall/gjson"

	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const (
	minQuestions = 3
	maxQuestions = 5
)

var defaultQuestions = []string{
	"Who will fill in this form, and what do they already know?",
	"What should the generated answer contain, and how long should it be?",
	"Which details are essential and which are optional?",
	"What tone should the assistant use?",
}

// extractJSON strips code fences and surrounding prose, returning the text
// from the first '{' to the last '}'.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "\ufeff")
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = rest
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// parseQuestions returns between minQuestions and maxQuestions questions,
// padding with defaults when the reply is unusable or too short.
func parseQuestions(text string) (questions []string, fellBack bool) {
	raw := extractJSON(text)
	if raw != "" && gjson.Valid(raw) {
		list := gjson.Get(raw, "questions")
		if !list.Exists() {
			list = gjson.Get(raw, "clarifying_questions")
		}
		seen := map[string]struct{}{}
		for _, q := range list.Array() {
			s := q.String()
			if q.IsObject() {
				s = firstString(q, "question", "text")
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[strings.ToLower(s)]; dup {
				continue
			}
			seen[strings.ToLower(s)] = struct{}{}
			questions = append(questions, s)
			if len(questions) == maxQuestions {
				break
			}
		}
	}
	fellBack = len(questions) < minQuestions
	for _, d := range defaultQuestions {
		if len(questions) >= minQuestions {
			break
		}
		questions = append(questions, d)
	}
	return questions, fellBack
}

// canonicalDraft translates the names a model may use into the canonical
// draft document: field_type->type, is_required->required,
// options->choices, and fields given at the top level instead of in steps.
func canonicalDraft(raw string) map[string]any {
	root := gjson.Parse(raw)
	doc := map[string]any{
		"name":          firstString(root, "name", "tool_name", "title"),
		"description":   firstString(root, "description", "summary"),
		"system_prompt": firstString(root, "system_prompt", "systemPrompt", "prompt"),
	}

	stepsJSON := root.Get("steps")
	if !stepsJSON.Exists() && root.Get("fields").IsArray() {
		doc["steps"] = []any{map[string]any{
			"title":  "Details",
			"fields": canonicalFields(root.Get("fields")),
		}}
		return doc
	}

	var steps []any
	for _, st := range stepsJSON.Array() {
		steps = append(steps, map[string]any{
			"title":    firstString(st, "title", "name", "step_title"),
			"subtitle": firstString(st, "subtitle", "description"),
			"fields":   canonicalFields(firstOf(st, "fields", "questions", "inputs")),
		})
	}
	doc["steps"] = steps
	return doc
}

func canonicalFields(list gjson.Result) []any {
	var out []any
	for _, f := range list.Array() {
		field := map[string]any{
			"label":       firstString(f, "label", "question", "title", "name"),
			"name":        firstString(f, "name", "key", "id"),
			"type":        strings.ToLower(firstString(f, "type", "field_type", "input_type")),
			"required":    firstOf(f, "required", "is_required").Bool(),
			"placeholder": firstString(f, "placeholder"),
			"help_text":   firstString(f, "help_text", "helpText", "description"),
		}
		if ml := firstOf(f, "max_length", "maxLength"); ml.Type == gjson.Number && ml.Int() > 0 {
			field["max_length"] = ml.Int()
		}
		if opts := firstOf(f, "choices", "options"); opts.IsArray() {
			var choices []any
			for _, o := range opts.Array() {
				c := map[string]any{}
				if o.IsObject() {
					c["label"] = firstString(o, "label", "text", "name", "value")
					c["value"] = firstString(o, "value")
				} else {
					c["label"] = strings.TrimSpace(o.String())
					c["value"] = ""
				}
				if c["label"] != "" {
					choices = append(choices, c)
				}
			}
			field["choices"] = choices
		}
		out = append(out, field)
	}
	return out
}

func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// treeFromDraft builds a definition tree from a schema-valid canonical
// draft. Unsupported types become text, as do choice types with no choices.
func treeFromDraft(doc map[string]any) *defdomain.Tree {
	tree := &defdomain.Tree{Project: defdomain.Project{
		Name:         str(doc["name"]),
		Description:  str(doc["description"]),
		SystemPrompt: str(doc["system_prompt"]),
		Tier:         defdomain.TierPublic,
		Enabled:      true,
	}}
	steps, _ := doc["steps"].([]any)
	for i, s := range steps {
		sm, _ := s.(map[string]any)
		node := defdomain.StepNode{Step: defdomain.Step{
			Title:    str(sm["title"]),
			Subtitle: str(sm["subtitle"]),
			Position: i + 1,
		}}
		fields, _ := sm["fields"].([]any)
		for j, f := range fields {
			fm, _ := f.(map[string]any)
			ft, ok := defdomain.ParseFieldType(str(fm["type"]))
			if !ok {
				ft = defdomain.FieldText
			}
			fn := defdomain.FieldNode{Field: defdomain.Field{
				Name:        str(fm["name"]),
				Label:       str(fm["label"]),
				Type:        ft,
				Required:    fm["required"] == true,
				Placeholder: str(fm["placeholder"]),
				HelpText:    str(fm["help_text"]),
				Position:    j + 1,
			}}
			if ml, ok := fm["max_length"].(int64); ok && ml > 0 {
				n := int(ml)
				fn.MaxLength = &n
			}
			if ft.HasChoices() {
				choices, _ := fm["choices"].([]any)
				for k, c := range choices {
					cm, _ := c.(map[string]any)
					fn.Choices = append(fn.Choices, defdomain.Choice{
						Label:    str(cm["label"]),
						Value:    str(cm["value"]),
						Position: k + 1,
					})
				}
				if len(fn.Choices) == 0 {
					fn.Type = defdomain.FieldText
				}
			}
			node.Fields = append(node.Fields, fn)
		}
		tree.Steps = append(tree.Steps, node)
	}
	return tree
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// scaffold is the minimal single-step, single-field draft used whenever the
// model's reply cannot be used.
func scaffold(idea, role string) *defdomain.Tree {
	name := strings.TrimSpace(idea)
	if len([]rune(name)) > 60 {
		name = string([]rune(name)[:60])
	}
	if name == "" {
		name = "New tool"
	}
	prompt := "Help the user with: " + strings.TrimSpace(idea)
	if r := strings.TrimSpace(role); r != "" {
		prompt = "You are " + r + ". " + prompt
	}
	return &defdomain.Tree{
		Project: defdomain.Project{
			Name:         name,
			Role:         strings.TrimSpace(role),
			SystemPrompt: prompt,
			Tier:         defdomain.TierPublic,
			Enabled:      true,
		},
		Steps: []defdomain.StepNode{{
			Step: defdomain.Step{Name: "details", Title: "Details", Position: 1},
			Fields: []defdomain.FieldNode{{Field: defdomain.Field{
				Name:     "request",
				Label:    "Describe what you need",
				Type:     defdomain.FieldTextarea,
				Required: true,
				Position: 1,
			}}},
		}},
	}
}
