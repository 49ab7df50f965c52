package service

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const dateLayout = "2006-01-02"

// value is one submitted answer. Checkbox answers keep their parts.
type value struct {
	parts []string
}

func (v value) String() string { return strings.Join(v.parts, ", ") }

func (v value) empty() bool {
	for _, p := range v.parts {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// toValue flattens a decoded JSON value.
func toValue(raw any) value {
	switch t := raw.(type) {
	case nil:
		return value{}
	case string:
		return value{parts: []string{strings.TrimSpace(t)}}
	case float64:
		return value{parts: []string{strconv.FormatFloat(t, 'f', -1, 64)}}
	case bool:
		return value{parts: []string{strconv.FormatBool(t)}}
	case []any:
		var v value
		for _, item := range t {
			if s := toValue(item).String(); s != "" {
				v.parts = append(v.parts, s)
			}
		}
		return v
	default:
		return value{parts: []string{strings.TrimSpace(fmt.Sprint(t))}}
	}
}

// checkValue applies the field's type and rules to a non-empty value.
func checkValue(f *defdomain.FieldNode, v value) error {
	if f.Type.HasChoices() {
		if f.Type != defdomain.FieldCheckbox && len(v.parts) > 1 {
			return apperr.Validation(f.Name, f.Label+" accepts a single choice")
		}
		allowed := make(map[string]struct{}, len(f.Choices))
		for _, c := range f.Choices {
			allowed[c.Value] = struct{}{}
		}
		for _, p := range v.parts {
			if _, ok := allowed[p]; !ok {
				return apperr.Validation(f.Name, fmt.Sprintf("%q is not a choice of %s", p, f.Label))
			}
		}
		return nil
	}

	s := v.String()
	switch f.Type {
	case defdomain.FieldNumber:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return apperr.Validation(f.Name, f.Label+" must be a number")
		}
	case defdomain.FieldEmail:
		if a, err := mail.ParseAddress(s); err != nil || a.Address != s {
			return apperr.Validation(f.Name, f.Label+" must be an email address")
		}
	case defdomain.FieldDate:
		if _, err := time.Parse(dateLayout, s); err != nil {
			return apperr.Validation(f.Name, f.Label+" must be a date (YYYY-MM-DD)")
		}
	}

	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength {
		return apperr.Validation(f.Name, fmt.Sprintf("%s must be at least %d characters", f.Label, *f.MinLength))
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		return apperr.Validation(f.Name, fmt.Sprintf("%s must be at most %d characters", f.Label, *f.MaxLength))
	}
	if f.Pattern != "" {
		re, err := defdomain.CompilePattern(f.Pattern)
		if err != nil {
			// a stored rule that no longer compiles rejects rather than admits
			return apperr.Validation(f.Name, f.Label+" cannot be validated: invalid pattern")
		}
		if !re.MatchString(s) {
			return apperr.Validation(f.Name, f.Label+" has an invalid format")
		}
	}
	return nil
}
