package rules

import (
	"slices"

	"github.com/i2y/schemair/internal/domain"
)

// intersectTypes intersects the type sets of nodes. Empty sets and the any
// tag are universal, never contributes nothing and integer is a subset of
// number. ok is false when no type survives.
func intersectTypes(sets [][]domain.TypeTag) (out []domain.TypeTag, ok bool) {
	var acc []domain.TypeTag
	constrained := false
	sawAny := false
	for _, ts := range sets {
		if len(ts) == 0 {
			continue
		}
		if slices.Contains(ts, domain.TypeAny) {
			sawAny = true
			continue
		}
		ts = slices.DeleteFunc(slices.Clone(ts), func(t domain.TypeTag) bool { return t == domain.TypeNever })
		if len(ts) == 0 {
			return nil, false
		}
		if !constrained {
			acc = slices.Clone(ts)
			constrained = true
			continue
		}
		acc = intersectPair(acc, ts)
		if len(acc) == 0 {
			return nil, false
		}
	}
	if !constrained {
		if sawAny {
			return []domain.TypeTag{domain.TypeAny}, true
		}
		return nil, true
	}
	return domain.SortTypes(acc), true
}

func intersectPair(a, b []domain.TypeTag) []domain.TypeTag {
	var out []domain.TypeTag
	for _, x := range a {
		switch {
		case slices.Contains(b, x):
			out = append(out, x)
		case x == domain.TypeInteger && slices.Contains(b, domain.TypeNumber):
			out = append(out, x)
		case x == domain.TypeNumber && slices.Contains(b, domain.TypeInteger):
			out = append(out, domain.TypeInteger)
		}
	}
	return domain.SortTypes(out)
}

// isNever reports whether a node admits no value.
func isNever(types []domain.TypeTag) bool {
	return len(types) > 0 && !slices.ContainsFunc(types, func(t domain.TypeTag) bool { return t != domain.TypeNever })
}
