package synth

import (
	"fmt"
	"strings"
)

const questionsSystemPrompt = `You help people design small AI-powered form tools.
Given a tool idea and the persona the tool should adopt, ask the author between 3 and 5
short clarifying questions that would change how the form is structured.
Reply with JSON only, in this shape:
{"questions": ["...", "..."]}`

const draftSystemPrompt = `You design multi-step data-collection forms that feed an AI assistant.
Produce a form for the idea below. Use between 1 and 5 steps and at most 8 fields per step.
Allowed field types: text, textarea, select, radio, checkbox, number, email, date.
select, radio and checkbox fields must list their options.
Also write the system prompt the assistant will run with when a user submits the form.
Reply with JSON only, in this shape:
{
  "name": "short tool name",
  "description": "one or two sentences",
  "system_prompt": "instructions for the assistant",
  "steps": [
    {"title": "...", "subtitle": "...", "fields": [
      {"label": "...", "name": "snake_case", "type": "text", "required": true,
       "placeholder": "...", "help_text": "...", "choices": ["..."]}
    ]}
  ]
}`

func questionsUserPrompt(idea, role string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool idea: %s\n", strings.TrimSpace(idea))
	if r := strings.TrimSpace(role); r != "" {
		fmt.Fprintf(&b, "Persona: %s\n", r)
	}
	return b.String()
}

func draftUserPrompt(in DraftInput) string {
	var b strings.Builder
	b.WriteString(questionsUserPrompt(in.Idea, in.Role))
	answered := 0
	for _, qa := range in.Answers {
		if strings.TrimSpace(qa.Answer) == "" {
			continue
		}
		if answered == 0 {
			b.WriteString("\nClarifications:\n")
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", strings.TrimSpace(qa.Question), strings.TrimSpace(qa.Answer))
		answered++
	}
	return b.String()
}
