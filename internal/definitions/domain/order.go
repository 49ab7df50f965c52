package domain

import (
	"fmt"
	"sort"
)

// SortByPosition sorts siblings in place by their position value.
func SortByPosition[T any](items []T, pos func(*T) *int) {
	sort.SliceStable(items, func(i, j int) bool {
		return *pos(&items[i]) < *pos(&items[j])
	})
}

// Compact re-indexes siblings to a contiguous 1..N sequence in one pass,
// keeping their relative order. It returns true if any position changed.
func Compact[T any](items []T, pos func(*T) *int) bool {
	SortByPosition(items, pos)
	changed := false
	for i := range items {
		p := pos(&items[i])
		if *p != i+1 {
			*p = i + 1
			changed = true
		}
	}
	return changed
}

// Reorder maps each id in ordered to its new 1-based position. ordered must
// be a complete permutation of current.
func Reorder(current, ordered []string) (map[string]int, error) {
	if len(current) != len(ordered) {
		return nil, fmt.Errorf("expected %d ids, got %d", len(current), len(ordered))
	}
	known := make(map[string]struct{}, len(current))
	for _, id := range current {
		known[id] = struct{}{}
	}
	out := make(map[string]int, len(ordered))
	for i, id := range ordered {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("unknown id %q", id)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("duplicate id %q", id)
		}
		out[id] = i + 1
	}
	return out, nil
}

func StepPos(s *Step) *int { return &s.Position }
func FieldPos(f *Field) *int { return &f.Position }
func ChoicePos(c *Choice) *int { return &c.Position }
func StepNodePos(s *StepNode) *int { return &s.Position }
func FieldNodePos(f *FieldNode) *int { return &f.Position }
