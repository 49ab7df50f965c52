package domain

import "strings"

// FieldType is the input kind of a Field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldDate     FieldType = "date"
)

var fieldTypes = map[FieldType]struct{}{
	FieldText: {}, FieldTextarea: {}, FieldSelect: {}, FieldRadio: {},
	FieldCheckbox: {}, FieldNumber: {}, FieldEmail: {}, FieldDate: {},
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// HasChoices reports whether fields of this type carry Choices.
func (t FieldType) HasChoices() bool {
	return t == FieldSelect || t == FieldRadio || t == FieldCheckbox
}

// ParseFieldType normalizes s and returns ok=false for unsupported types.
func ParseFieldType(s string) (FieldType, bool) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Tier is the access level a Project demands of its runtime callers.
type Tier string

const (
	TierPublic     Tier = "public"
	TierRegistered Tier = "registered"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierPublic:     0,
	TierRegistered: 1,
	TierPremium:    2,
	TierEnterprise: 3,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank orders tiers; an unknown tier ranks above enterprise so it never admits.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return len(tierRank)
}

// Covers reports whether holding t satisfies a requirement of need.
func (t Tier) Covers(need Tier) bool {
	return t.Valid() && t.Rank() >= need.Rank()
}

func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TierPublic, true
	}
	return t, t.Valid()
}
