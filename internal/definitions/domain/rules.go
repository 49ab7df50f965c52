package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// CheckRules verifies a field's own validation rules are coherent.
func CheckRules(f *Field) error {
	if f.MinLength != nil && *f.MinLength < 0 {
		return fmt.Errorf("min_length must not be negative")
	}
	if f.MaxLength != nil && *f.MaxLength < 1 {
		return fmt.Errorf("max_length must be positive")
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", *f.MinLength, *f.MaxLength)
	}
	if f.Pattern != "" {
		if _, err := CompilePattern(f.Pattern); err != nil {
			return fmt.Errorf("pattern: %v", err)
		}
	}
	return nil
}

// CompilePattern compiles a field pattern anchored to the whole value.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// NameFromLabel derives an internal field identifier, e.g. "Full Name" -> "full_name".
func NameFromLabel(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}

// UniqueName returns name, or name with a numeric suffix when taken.
func UniqueName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
