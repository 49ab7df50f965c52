package domain

import "time"

// Project is an author's multi-step form definition plus its AI behavior.
type Project struct {
	ID              string    `json:"id" yaml:"id,omitempty"`
	OwnerID         string    `json:"owner_id" yaml:"-"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description,omitempty"`
	Role            string    `json:"role" yaml:"role,omitempty"`
	SystemPrompt    string    `json:"system_prompt" yaml:"system_prompt,omitempty"`
	Tier            Tier      `json:"tier" yaml:"tier"`
	RequiredPackage string    `json:"required_package,omitempty" yaml:"required_package,omitempty"`
	Subdomain       *string   `json:"subdomain" yaml:"-"`
	Deployed        bool      `json:"deployed" yaml:"-"`
	Enabled         bool      `json:"enabled" yaml:"enabled"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

type Step struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	ProjectID string    `json:"project_id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Title     string    `json:"title" yaml:"title"`
	Subtitle  string    `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Position  int       `json:"position" yaml:"position"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

type Field struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	StepID      string    `json:"step_id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label" yaml:"label"`
	Type        FieldType `json:"type" yaml:"type"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string    `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
	Position    int       `json:"position" yaml:"position"`
	MinLength   *int      `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength   *int      `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Pattern     string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

type Choice struct {
	ID        string `json:"id" yaml:"id,omitempty"`
	FieldID   string `json:"field_id" yaml:"-"`
	Label     string `json:"label" yaml:"label"`
	Value     string `json:"value" yaml:"value"`
	Position  int    `json:"position" yaml:"position"`
	IsDefault bool   `json:"is_default" yaml:"is_default,omitempty"`
}

// Tree is a Project with its full Step/Field/Choice hierarchy, each level
// sorted by position.
type Tree struct {
	Project Project    `json:"project" yaml:"project"`
	Steps   []StepNode `json:"steps" yaml:"steps"`
}

type StepNode struct {
	Step   `yaml:",inline"`
	Fields []FieldNode `json:"fields" yaml:"fields"`
}

type FieldNode struct {
	Field   `yaml:",inline"`
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// FieldCount returns the number of fields across all steps.
func (t *Tree) FieldCount() int {
	n := 0
	for _, s := range t.Steps {
		n += len(s.Fields)
	}
	return n
}

// FieldByID finds a field and the step that holds it.
func (t *Tree) FieldByID(id string) (*StepNode, *FieldNode) {
	for i := range t.Steps {
		for j := range t.Steps[i].Fields {
			if t.Steps[i].Fields[j].ID == id {
				return &t.Steps[i], &t.Steps[i].Fields[j]
			}
		}
	}
	return nil, nil
}
