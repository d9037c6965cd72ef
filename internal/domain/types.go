package domain

import "slices"

// TypeTag is one of the closed set of canonical value types.
type TypeTag string

const (
	TypeNever   TypeTag = "never"
	TypeAny     TypeTag = "any"
	TypeNull    TypeTag = "null"
	TypeBoolean TypeTag = "boolean"
	TypeInteger TypeTag = "integer"
	TypeNumber  TypeTag = "number"
	TypeString  TypeTag = "string"
	TypeArray   TypeTag = "array"
	TypeMap     TypeTag = "map"
)

var typeOrder = map[TypeTag]int{
	TypeNever:   0,
	TypeAny:     1,
	TypeNull:    2,
	TypeBoolean: 3,
	TypeInteger: 4,
	TypeNumber:  5,
	TypeString:  6,
	TypeArray:   7,
	TypeMap:     8,
}

// Valid reports whether t is part of the canonical type set.
func (t TypeTag) Valid() bool {
	_, ok := typeOrder[t]
	return ok
}

// SortTypes returns the distinct tags of ts in canonical order.
func SortTypes(ts []TypeTag) []TypeTag {
	if len(ts) == 0 {
		return nil
	}
	out := make([]TypeTag, 0, len(ts))
	for _, t := range ts {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b TypeTag) int {
		return typeOrder[a] - typeOrder[b]
	})
	return out
}

// HasType reports whether ts admits t. An empty set and the any tag admit
// every type, and number admits integer.
func HasType(ts []TypeTag, t TypeTag) bool {
	if len(ts) == 0 || slices.Contains(ts, TypeAny) {
		return true
	}
	if slices.Contains(ts, t) {
		return true
	}
	return t == TypeInteger && slices.Contains(ts, TypeNumber)
}
