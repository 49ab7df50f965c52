// Package apperr defines the typed error kinds surfaced by every service.
// Handlers translate a Kind into a status code and render Details as-is, so
// callers get enough structure to act on (suggested slugs, required package,
// current usage vs. limit).
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindAuth               Kind = "auth"
	KindEntitlement        Kind = "entitlement"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindUpstreamGeneration Kind = "upstream_generation"
	KindPersistence        Kind = "persistence"
	KindMaterialization    Kind = "materialization"
)

// Error is the single error type carried across service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func Validation(field, message string) *Error {
	e := &Error{Kind: KindValidation, Message: message}
	if field != "" {
		e.Details = map[string]any{"field": field}
	}
	return e
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: entity + " not found",
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// Suggestion is an alternative name/slug pair offered on an address conflict.
type Suggestion struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func Conflict(slug string, suggestions []Suggestion) *Error {
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("subdomain %q is already in use", slug),
		Details: map[string]any{"slug": slug, "suggestions": suggestions},
	}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func Entitlement(requiredTier, requiredPackage, description string) *Error {
	d := map[string]any{"required_tier": requiredTier}
	if requiredPackage != "" {
		d["required_package"] = requiredPackage
	}
	if description != "" {
		d["package_description"] = description
	}
	return &Error{Kind: KindEntitlement, Message: "insufficient entitlement for this tool", Details: d}
}

func QuotaExceeded(limit, usage int64) *Error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: "usage quota exceeded",
		Details: map[string]any{"limit": limit, "usage": usage},
	}
}

func UpstreamGeneration(reason string, err error) *Error {
	return &Error{
		Kind:    KindUpstreamGeneration,
		Message: "generation failed",
		Details: map[string]any{"reason": reason},
		Err:     err,
	}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

func Materialization(op string, err error) *Error {
	return &Error{Kind: KindMaterialization, Message: op, Err: err}
}

// WithDetail returns e with one more detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}
