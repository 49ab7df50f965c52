package domain

import (
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// Manifest is the machine-readable structure the public bundle is driven by.
type Manifest struct {
	ProjectID    string         `json:"project_id"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Tier         defdomain.Tier `json:"tier"`
	SystemPrompt string         `json:"system_prompt"`
	SubmitURL    string         `json:"submit_url,omitempty"`
	Steps        []ManifestStep `json:"steps"`
}

type ManifestStep struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle,omitempty"`
	Fields   []ManifestField `json:"fields"`
}

type ManifestField struct {
	Name        string              `json:"name"`
	Label       string              `json:"label"`
	Type        defdomain.FieldType `json:"type"`
	Required    bool                `json:"required"`
	Placeholder string              `json:"placeholder,omitempty"`
	HelpText    string              `json:"help_text,omitempty"`
	MinLength   *int                `json:"min_length,omitempty"`
	MaxLength   *int                `json:"max_length,omitempty"`
	Pattern     string              `json:"pattern,omitempty"`
	Choices     []ManifestChoice    `json:"choices,omitempty"`
}

type ManifestChoice struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// BuildManifest flattens a definition tree, already sorted by position.
func BuildManifest(tree *defdomain.Tree, slug, submitURL string) *Manifest {
	m := &Manifest{
		ProjectID:    tree.Project.ID,
		Slug:         slug,
		Name:         tree.Project.Name,
		Description:  tree.Project.Description,
		Tier:         tree.Project.Tier,
		SystemPrompt: tree.Project.SystemPrompt,
		SubmitURL:    submitURL,
		Steps:        make([]ManifestStep, 0, len(tree.Steps)),
	}
	for _, s := range tree.Steps {
		ms := ManifestStep{
			Name:     s.Name,
			Title:    s.Title,
			Subtitle: s.Subtitle,
			Fields:   make([]ManifestField, 0, len(s.Fields)),
		}
		for _, f := range s.Fields {
			mf := ManifestField{
				Name:        f.Name,
				Label:       f.Label,
				Type:        f.Type,
				Required:    f.Required,
				Placeholder: f.Placeholder,
				HelpText:    f.HelpText,
				MinLength:   f.MinLength,
				MaxLength:   f.MaxLength,
				Pattern:     f.Pattern,
			}
			if f.Type.HasChoices() {
				for _, c := range f.Choices {
					mf.Choices = append(mf.Choices, ManifestChoice{Label: c.Label, Value: c.Value, IsDefault: c.IsDefault})
				}
			}
			ms.Fields = append(ms.Fields, mf)
		}
		m.Steps = append(m.Steps, ms)
	}
	return m
}
