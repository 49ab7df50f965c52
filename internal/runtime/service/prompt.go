package service

import (
	"strings"

	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// assemblePrompt returns the system instructions and the user content: one
// "label: value" line per answered field, in step then field order.
func assemblePrompt(tree *defdomain.Tree, answers map[string]value) (system, user string) {
	system = strings.TrimSpace(tree.Project.SystemPrompt)
	if role := strings.TrimSpace(tree.Project.Role); role != "" && system == "" {
		system = "You are " + role + "."
	}

	var b strings.Builder
	for _, st := range tree.Steps {
		for _, f := range st.Fields {
			v, ok := answers[f.ID]
			if !ok || v.empty() {
				continue
			}
			label := f.Label
			if label == "" {
				label = f.Name
			}
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(v.String())
			b.WriteByte('\n')
		}
	}
	return system, strings.TrimRight(b.String(), "\n")
}
