// Package address derives public slugs for Projects and formats their
// public addresses.
package address

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
)

const (
	MaxLength = 50
	// Fallback is used when a name has no usable characters.
	Fallback = "tool"
)

var (
	suggestionSuffixes = []string{"Pro", "Plus", "Advanced"}
	suggestionPrefixes = []string{"My", "Custom"}
)

// Derive turns a Project name into a candidate slug. It is a pure function of
// name: lowercase, accents folded, characters outside [a-z0-9 ] dropped,
// whitespace runs joined by single hyphens, trimmed, at most MaxLength long.
func Derive(name string) string {
	folded := fold(name)

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingHyphen = true
		}
	}

	slug := b.String()
	if len(slug) > MaxLength {
		slug = strings.Trim(slug[:MaxLength], "-")
	}
	if slug == "" {
		return Fallback
	}
	return slug
}

// Normalize cleans an explicitly requested subdomain with the same rules.
func Normalize(requested string) string {
	return Derive(strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(requested))
}

// Valid reports whether s already is a well-formed slug.
func Valid(s string) bool {
	if s == "" || len(s) > MaxLength || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	return !strings.Contains(s, "--")
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Suggestion is an alternative name and the slug it derives to.
type Suggestion = apperr.Suggestion

// Suggestions proposes alternative names for a colliding one, e.g. "Résumé
// Builder Pro" and "My Résumé Builder". Entries deriving to the rejected slug
// or to each other are skipped.
func Suggestions(name string) []Suggestion {
	base := Derive(name)
	name = strings.TrimSpace(strings.TrimRightFunc(strings.TrimSpace(name), unicode.IsPunct))
	seen := map[string]struct{}{base: {}}

	var out []Suggestion
	add := func(candidate string) {
		slug := Derive(candidate)
		if _, dup := seen[slug]; dup {
			return
		}
		seen[slug] = struct{}{}
		out = append(out, Suggestion{Name: candidate, Slug: slug})
	}
	for _, s := range suggestionSuffixes {
		add(name + " " + s)
	}
	for _, p := range suggestionPrefixes {
		add(p + " " + name)
	}
	return out
}

// SlugChecker reports which slugs projectID could claim right now.
type SlugChecker interface {
	AvailableSlugs(ctx context.Context, slugs []string, projectID string) (map[string]bool, error)
}

// AvailableSuggestions filters Suggestions(name) to slugs currently free for
// projectID. The result is advisory; a later claim can still lose a race.
// On lookup failure the unfiltered list is returned.
func AvailableSuggestions(ctx context.Context, checker SlugChecker, name, projectID string) []Suggestion {
	all := Suggestions(name)
	slugs := make([]string, len(all))
	for i, sg := range all {
		slugs[i] = sg.Slug
	}
	avail, err := checker.AvailableSlugs(ctx, slugs, projectID)
	if err != nil {
		return all
	}
	out := make([]Suggestion, 0, len(all))
	for _, sg := range all {
		if avail[sg.Slug] {
			out = append(out, sg)
		}
	}
	return out
}

// PublicHost is the serving host of a deployed slug: {slug}.tool.{base}.
func PublicHost(slug, baseDomain string) string {
	return fmt.Sprintf("%s.tool.%s", slug, strings.TrimPrefix(baseDomain, "."))
}

func PublicURL(scheme, slug, baseDomain string) string {
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, PublicHost(slug, baseDomain))
}

// SlugFromHost extracts the slug from a public host, returning false for
// hosts outside the tool domain.
func SlugFromHost(host, baseDomain string) (string, bool) {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	suffix := ".tool." + strings.TrimPrefix(baseDomain, ".")
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	slug := strings.TrimSuffix(host, suffix)
	return slug, Valid(slug)
}
