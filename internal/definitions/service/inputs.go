package service

import (
	"strings"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

type ProjectInput struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Role            string         `json:"role"`
	SystemPrompt    string         `json:"system_prompt"`
	Tier            defdomain.Tier `json:"tier"`
	RequiredPackage string         `json:"required_package"`
	Enabled         *bool          `json:"enabled"`
}

// ProjectPatch leaves nil attributes untouched. Name changes never move the
// subdomain; use UpdateSubdomain for that.
type ProjectPatch struct {
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	Role            *string         `json:"role"`
	SystemPrompt    *string         `json:"system_prompt"`
	Tier            *defdomain.Tier `json:"tier"`
	RequiredPackage *string         `json:"required_package"`
	Enabled         *bool           `json:"enabled"`
}

type StepInput struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type StepPatch struct {
	Name     *string `json:"name"`
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
}

type ChoiceInput struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	IsDefault bool   `json:"is_default"`
}

type ChoicePatch struct {
	Label     *string `json:"label"`
	Value     *string `json:"value"`
	IsDefault *bool   `json:"is_default"`
}

type FieldInput struct {
	Name        string              `json:"name"`
	Label       string              `json:"label"`
	Type        defdomain.FieldType `json:"type"`
	Placeholder string              `json:"placeholder"`
	HelpText    string              `json:"help_text"`
	Required    bool                `json:"required"`
	MinLength   *int                `json:"min_length"`
	MaxLength   *int                `json:"max_length"`
	Pattern     string              `json:"pattern"`
	Choices     []ChoiceInput       `json:"choices"`
}

// FieldPatch leaves nil attributes untouched. A zero MinLength or MaxLength
// clears the rule. Choices, when present, replace the field's choices.
type FieldPatch struct {
	Name        *string              `json:"name"`
	Label       *string              `json:"label"`
	Type        *defdomain.FieldType `json:"type"`
	Placeholder *string              `json:"placeholder"`
	HelpText    *string              `json:"help_text"`
	Required    *bool                `json:"required"`
	MinLength   *int                 `json:"min_length"`
	MaxLength   *int                 `json:"max_length"`
	Pattern     *string              `json:"pattern"`
	Choices     []ChoiceInput        `json:"choices"`
}

func buildChoices(in []ChoiceInput) ([]defdomain.Choice, error) {
	out := make([]defdomain.Choice, 0, len(in))
	seen := map[string]struct{}{}
	for _, c := range in {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			return nil, apperr.Validation("choices", "choice label is required")
		}
		value := strings.TrimSpace(c.Value)
		if value == "" {
			value = label
		}
		if _, dup := seen[value]; dup {
			return nil, apperr.Validation("choices", "duplicate choice value "+value)
		}
		seen[value] = struct{}{}
		out = append(out, defdomain.Choice{Label: label, Value: value, IsDefault: c.IsDefault})
	}
	return out, nil
}

func parseTier(t defdomain.Tier) (defdomain.Tier, error) {
	tier, ok := defdomain.ParseTier(string(t))
	if !ok {
		return "", apperr.Validation("tier", "unknown access tier "+string(t))
	}
	return tier, nil
}

func parseFieldType(t defdomain.FieldType) (defdomain.FieldType, error) {
	ft, ok := defdomain.ParseFieldType(string(t))
	if !ok {
		return "", apperr.Validation("type", "unsupported field type "+string(t))
	}
	return ft, nil
}

func fieldName(name, label string) string {
	if strings.TrimSpace(name) == "" {
		name = label
	}
	return defdomain.NameFromLabel(name)
}

func zeroClears(p *int) *int {
	if p == nil || *p == 0 {
		return nil
	}
	v := *p
	return &v
}
