package synth

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// draftSchema describes the canonical draft after alias translation.
const draftSchema = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "system_prompt": {"type": "string"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["fields"],
        "properties": {
          "title": {"type": "string"},
          "subtitle": {"type": "string"},
          "fields": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["label"],
              "properties": {
                "label": {"type": "string", "minLength": 1},
                "name": {"type": "string"},
                "type": {"type": "string"},
                "required": {"type": "boolean"},
                "placeholder": {"type": "string"},
                "help_text": {"type": "string"},
                "max_length": {"type": "integer", "minimum": 1},
                "choices": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["label"],
                    "properties": {
                      "label": {"type": "string", "minLength": 1},
                      "value": {"type": "string"}
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var compiledDraftSchema = mustCompile("draft.json", draftSchema)

func mustCompile(name, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

// validateDraft checks a canonical draft document against the schema.
func validateDraft(doc map[string]any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var inst any
	if err := json.Unmarshal(b, &inst); err != nil {
		return err
	}
	return compiledDraftSchema.Validate(inst)
}
