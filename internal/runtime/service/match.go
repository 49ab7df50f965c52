package service

import (
	"sort"
	"strings"
	"unicode"

	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// attribution maps submitted keys to fields of the tree.
type attribution struct {
	fields       map[string]*defdomain.FieldNode // key -> field
	steps        map[string]string               // field id -> step id
	unattributed []string
}

type keyNormalizer func(string) string

// matchLevels are tried in order; a key claimed at an earlier level is never
// reconsidered, and each field is claimed by at most one key.
var matchLevels = []keyNormalizer{
	func(s string) string { return s },
	underscoreKey,
	alnumKey,
}

func underscoreKey(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == ' ' || r == '-' || r == '_' || r == '.' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

func alnumKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// attribute matches submitted keys against field names. Keys are visited in
// sorted order so ties resolve the same way on every request.
func attribute(tree *defdomain.Tree, keys []string) *attribution {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	type candidate struct {
		field *defdomain.FieldNode
		step  string
	}
	var all []candidate
	for i := range tree.Steps {
		for j := range tree.Steps[i].Fields {
			all = append(all, candidate{field: &tree.Steps[i].Fields[j], step: tree.Steps[i].ID})
		}
	}

	a := &attribution{fields: map[string]*defdomain.FieldNode{}, steps: map[string]string{}}
	claimed := map[string]bool{}
	for _, norm := range matchLevels {
		index := map[string]candidate{}
		for _, c := range all {
			if claimed[c.field.ID] {
				continue
			}
			k := norm(c.field.Name)
			if _, dup := index[k]; !dup && k != "" {
				index[k] = c
			}
		}
		for _, key := range sorted {
			if _, done := a.fields[key]; done {
				continue
			}
			c, ok := index[norm(key)]
			if !ok || claimed[c.field.ID] {
				continue
			}
			claimed[c.field.ID] = true
			a.fields[key] = c.field
			a.steps[c.field.ID] = c.step
		}
	}
	for _, key := range sorted {
		if _, ok := a.fields[key]; !ok {
			a.unattributed = append(a.unattributed, key)
		}
	}
	return a
}

// byField inverts the attribution.
func (a *attribution) byField() map[string]string {
	out := make(map[string]string, len(a.fields))
	for key, f := range a.fields {
		out[f.ID] = key
	}
	return out
}
