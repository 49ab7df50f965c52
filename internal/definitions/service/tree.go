package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const documentVersion = 1

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml"/"yml", or a matching content type.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "json" || strings.Contains(s, "json"):
		return FormatJSON, true
	case s == "yaml" || s == "yml" || strings.Contains(s, "yaml"):
		return FormatYAML, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Document is the backup/transfer form of a full definition tree.
type Document struct {
	Version        int       `json:"version" yaml:"version"`
	ExportedAt     time.Time `json:"exported_at" yaml:"exported_at"`
	defdomain.Tree `yaml:",inline"`
}

func (s *Service) Export(ctx context.Context, ownerID, projectID string, format Format) ([]byte, error) {
	tree, err := s.GetTree(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	doc := Document{Version: documentVersion, ExportedAt: time.Now().UTC(), Tree: *tree}
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeDocument parses an exported document.
func DecodeDocument(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, apperr.Validation("document", "malformed "+string(format)+" document: "+err.Error())
	}
	if doc.Version > documentVersion {
		return nil, apperr.Validation("version", fmt.Sprintf("unsupported document version %d", doc.Version))
	}
	return &doc, nil
}

func (s *Service) Import(ctx context.Context, ownerID string, data []byte, format Format) (*defdomain.Tree, error) {
	doc, err := DecodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return s.ImportTree(ctx, ownerID, &doc.Tree)
}

// NormalizeTree enforces definition invariants on an externally supplied
// tree: names present and unique, supported types, choices exactly when the
// type needs them, coherent rules. Sibling order follows position, then
// slice order.
func NormalizeTree(tree *defdomain.Tree) error {
	p := &tree.Project
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("project.name", "name is required")
	}
	tier, err := parseTier(p.Tier)
	if err != nil {
		return err
	}
	p.Tier = tier
	p.ID, p.Subdomain, p.Deployed = "", nil, false

	defdomain.SortByPosition(tree.Steps, defdomain.StepNodePos)
	names := map[string]struct{}{}
	for i := range tree.Steps {
		st := &tree.Steps[i]
		st.Title = strings.TrimSpace(st.Title)
		st.Name = strings.TrimSpace(st.Name)
		if st.Name == "" {
			if st.Title != "" {
				st.Name = st.Title
			} else {
				st.Name = fmt.Sprintf("Step %d", i+1)
			}
		}
		if st.Title == "" {
			st.Title = st.Name
		}

		defdomain.SortByPosition(st.Fields, defdomain.FieldNodePos)
		for j := range st.Fields {
			f := &st.Fields[j]
			where := fmt.Sprintf("steps[%d].fields[%d]", i, j)
			f.Label = strings.TrimSpace(f.Label)
			if f.Label == "" && strings.TrimSpace(f.Name) == "" {
				return apperr.Validation(where, "field needs a name or label")
			}
			if f.Label == "" {
				f.Label = strings.TrimSpace(f.Name)
			}
			f.Name = defdomain.UniqueName(fieldName(f.Name, f.Label), names)
			names[f.Name] = struct{}{}

			ft, ok := defdomain.ParseFieldType(string(f.Type))
			if !ok {
				return apperr.Validation(where+".type", "unsupported field type "+string(f.Type))
			}
			f.Type = ft
			if err := defdomain.CheckRules(&f.Field); err != nil {
				return apperr.Validation(where, err.Error())
			}

			if !f.Type.HasChoices() {
				f.Choices = nil
				continue
			}
			if len(f.Choices) == 0 {
				return apperr.Validation(where+".choices", string(f.Type)+" fields need at least one choice")
			}
			defdomain.SortByPosition(f.Choices, defdomain.ChoicePos)
			in := make([]ChoiceInput, len(f.Choices))
			for k, c := range f.Choices {
				in[k] = ChoiceInput{Label: c.Label, Value: c.Value, IsDefault: c.IsDefault}
			}
			choices, err := buildChoices(in)
			if err != nil {
				return err
			}
			f.Choices = choices
		}
	}
	return nil
}
