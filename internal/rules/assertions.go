package rules

import (
	"math"
	"slices"
	"unicode/utf8"

	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/domain"
)

func admits(types []domain.TypeTag, t domain.TypeTag) bool {
	return len(types) == 0 || slices.Contains(types, domain.TypeAny) || slices.Contains(types, t)
}

// mergeAssertions combines the assertion blocks of nodes conjunctively and
// keeps only blocks for types that survived the type intersection. Required
// properties are handled with the object applicators. Constraints that do
// not fit next to the merged ones, such as a second format, come back as
// separate blocks in rest.
func mergeAssertions(nodes []arena.Node, types []domain.TypeTag) (out domain.Assertions, rest []domain.Assertions, ok bool) {
	var (
		booleans []*domain.BooleanAssertions
		integers []*domain.NumericAssertions
		numbers  []*domain.NumericAssertions
		strs     []*domain.StringAssertions
		arrays   []*domain.ArrayAssertions
		maps     []*domain.MapAssertions
	)
	for _, n := range nodes {
		as := n.Assertions
		if as.Boolean != nil {
			booleans = append(booleans, as.Boolean)
		}
		switch {
		case as.Integer != nil:
			integers = append(integers, as.Integer)
		case as.Number != nil && !slices.Contains(n.Types, domain.TypeInteger):
			// number constraints also bind the integers a node admits
			integers = append(integers, as.Number)
		}
		if as.Number != nil {
			numbers = append(numbers, as.Number)
		}
		if as.String != nil {
			strs = append(strs, as.String)
		}
		if as.Array != nil {
			arrays = append(arrays, as.Array)
		}
		if as.Map != nil {
			maps = append(maps, as.Map)
		}
	}

	ok = true
	if admits(types, domain.TypeBoolean) && len(booleans) > 0 {
		out.Boolean, ok = mergeBoolean(booleans)
		if !ok {
			return out, nil, false
		}
	}
	if admits(types, domain.TypeInteger) && len(integers) > 0 {
		var extra []*domain.NumericAssertions
		out.Integer, extra, ok = mergeNumeric(integers)
		if !ok {
			return out, nil, false
		}
		for _, e := range extra {
			rest = append(rest, domain.Assertions{Integer: e})
		}
	}
	if admits(types, domain.TypeNumber) && len(numbers) > 0 {
		var extra []*domain.NumericAssertions
		out.Number, extra, ok = mergeNumeric(numbers)
		if !ok {
			return out, nil, false
		}
		for _, e := range extra {
			rest = append(rest, domain.Assertions{Number: e})
		}
	}
	if admits(types, domain.TypeString) && len(strs) > 0 {
		var extra []*domain.StringAssertions
		out.String, extra, ok = mergeString(strs)
		if !ok {
			return out, nil, false
		}
		for _, e := range extra {
			rest = append(rest, domain.Assertions{String: e})
		}
	}
	if admits(types, domain.TypeArray) && len(arrays) > 0 {
		out.Array, ok = mergeArray(arrays)
		if !ok {
			return out, nil, false
		}
	}
	if admits(types, domain.TypeMap) && len(maps) > 0 {
		out.Map, ok = mergeMap(maps)
		if !ok {
			return out, nil, false
		}
	}
	return out, rest, true
}

// intersectOptions intersects the non-empty option lists, keeping the order
// of the first. ok is false when the intersection is empty.
func intersectOptions[T comparable](lists [][]T) ([]T, bool) {
	var acc []T
	started := false
	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		if !started {
			acc = slices.Clone(list)
			started = true
			continue
		}
		acc = slices.DeleteFunc(acc, func(v T) bool { return !slices.Contains(list, v) })
		if len(acc) == 0 {
			return nil, false
		}
	}
	return acc, true
}

func mergeBoolean(blocks []*domain.BooleanAssertions) (*domain.BooleanAssertions, bool) {
	lists := make([][]bool, 0, len(blocks))
	for _, b := range blocks {
		lists = append(lists, b.Options)
	}
	options, ok := intersectOptions(lists)
	if !ok {
		return nil, false
	}
	out := &domain.BooleanAssertions{Options: options}
	if out.IsEmpty() {
		return nil, true
	}
	return out, true
}

// mergeNumeric intersects numeric blocks. A divisor that cannot be folded
// into one common multiple, or a format other than the first, is returned
// in its own block in extra.
func mergeNumeric(blocks []*domain.NumericAssertions) (out *domain.NumericAssertions, extra []*domain.NumericAssertions, ok bool) {
	out = &domain.NumericAssertions{}
	lists := make([][]float64, 0, len(blocks))
	for _, b := range blocks {
		out.MinimumInclusive = maxFloat(out.MinimumInclusive, b.MinimumInclusive)
		out.MinimumExclusive = maxFloat(out.MinimumExclusive, b.MinimumExclusive)
		out.MaximumInclusive = minFloat(out.MaximumInclusive, b.MaximumInclusive)
		out.MaximumExclusive = minFloat(out.MaximumExclusive, b.MaximumExclusive)
		var divisor *float64
		out.MultipleOf, divisor = mergeMultipleOf(out.MultipleOf, b.MultipleOf)
		if divisor != nil {
			extra = append(extra, &domain.NumericAssertions{MultipleOf: divisor})
		}
		switch {
		case b.ValueFormat == nil:
		case out.ValueFormat == nil:
			out.ValueFormat = domain.Ref(*b.ValueFormat)
		case *out.ValueFormat != *b.ValueFormat:
			extra = append(extra, &domain.NumericAssertions{ValueFormat: domain.Ref(*b.ValueFormat)})
		}
		lists = append(lists, b.Options)
	}

	if out.MinimumInclusive != nil && out.MinimumExclusive != nil {
		if *out.MinimumExclusive >= *out.MinimumInclusive {
			out.MinimumInclusive = nil
		} else {
			out.MinimumExclusive = nil
		}
	}
	if out.MaximumInclusive != nil && out.MaximumExclusive != nil {
		if *out.MaximumExclusive <= *out.MaximumInclusive {
			out.MaximumInclusive = nil
		} else {
			out.MaximumExclusive = nil
		}
	}
	if !boundsSatisfiable(out) {
		return nil, nil, false
	}

	options, ok := intersectOptions(lists)
	if !ok {
		return nil, nil, false
	}
	if len(options) > 0 {
		options = slices.DeleteFunc(options, func(v float64) bool {
			if !withinBounds(out, v) {
				return true
			}
			return slices.ContainsFunc(extra, func(e *domain.NumericAssertions) bool {
				return e.MultipleOf != nil && !isMultiple(v, *e.MultipleOf)
			})
		})
		if len(options) == 0 {
			return nil, nil, false
		}
	}
	out.Options = options
	if out.IsEmpty() {
		return nil, extra, true
	}
	return out, extra, true
}

func boundsSatisfiable(n *domain.NumericAssertions) bool {
	lo, loExclusive := n.MinimumInclusive, false
	if n.MinimumExclusive != nil {
		lo, loExclusive = n.MinimumExclusive, true
	}
	hi, hiExclusive := n.MaximumInclusive, false
	if n.MaximumExclusive != nil {
		hi, hiExclusive = n.MaximumExclusive, true
	}
	if lo == nil || hi == nil {
		return true
	}
	if loExclusive || hiExclusive {
		return *lo < *hi
	}
	return *lo <= *hi
}

func withinBounds(n *domain.NumericAssertions, v float64) bool {
	switch {
	case n.MinimumInclusive != nil && v < *n.MinimumInclusive:
		return false
	case n.MinimumExclusive != nil && v <= *n.MinimumExclusive:
		return false
	case n.MaximumInclusive != nil && v > *n.MaximumInclusive:
		return false
	case n.MaximumExclusive != nil && v >= *n.MaximumExclusive:
		return false
	case n.MultipleOf != nil && *n.MultipleOf != 0 && !isMultiple(v, *n.MultipleOf):
		return false
	}
	return true
}

func isMultiple(v, of float64) bool {
	q := v / of
	return math.Abs(q-math.Round(q)) < 1e-9
}

// mergeMultipleOf folds two divisors into their least common multiple. When
// there is none it keeps a and hands b back as rest.
func mergeMultipleOf(a, b *float64) (merged, rest *float64) {
	switch {
	case b == nil:
		return a, nil
	case a == nil:
		return domain.Ref(*b), nil
	case *a == *b:
		return a, nil
	}
	if l, ok := lcm(*a, *b); ok {
		return domain.Ref(l), nil
	}
	return a, domain.Ref(*b)
}

// maxDecimals bounds the fractional digits lcm scales away.
const maxDecimals = 9

// lcm returns the least common multiple of two positive decimal divisors,
// scaling both to integers first. ok is false for divisors with more
// fractional digits than maxDecimals or a multiple beyond exact float range.
func lcm(a, b float64) (float64, bool) {
	if a <= 0 || b <= 0 {
		return 0, false
	}
	if isMultiple(b, a) {
		return b, true
	}
	if isMultiple(a, b) {
		return a, true
	}
	scale := 1.0
	for range maxDecimals + 1 {
		x, y := a*scale, b*scale
		if whole(x) && whole(y) {
			if x > 1<<53 || y > 1<<53 {
				return 0, false
			}
			xi, yi := int64(math.Round(x)), int64(math.Round(y))
			q := xi / gcd(xi, yi)
			if q > (1<<53)/yi {
				return 0, false
			}
			return float64(q*yi) / scale, true
		}
		scale *= 10
	}
	return 0, false
}

func whole(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-6
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// mergeString intersects string blocks. A format other than the first is
// returned in its own block in extra.
func mergeString(blocks []*domain.StringAssertions) (out *domain.StringAssertions, extra []*domain.StringAssertions, ok bool) {
	out = &domain.StringAssertions{}
	lists := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		out.MinimumLength = maxCount(out.MinimumLength, b.MinimumLength)
		out.MaximumLength = minCount(out.MaximumLength, b.MaximumLength)
		for _, p := range b.ValuePatterns {
			if !slices.Contains(out.ValuePatterns, p) {
				out.ValuePatterns = append(out.ValuePatterns, p)
			}
		}
		switch {
		case b.ValueFormat == nil:
		case out.ValueFormat == nil:
			out.ValueFormat = domain.Ref(*b.ValueFormat)
		case *out.ValueFormat != *b.ValueFormat:
			extra = append(extra, &domain.StringAssertions{ValueFormat: domain.Ref(*b.ValueFormat)})
		}
		lists = append(lists, b.Options)
	}
	if crossed(out.MinimumLength, out.MaximumLength) {
		return nil, nil, false
	}
	options, ok := intersectOptions(lists)
	if !ok {
		return nil, nil, false
	}
	if len(options) > 0 {
		options = slices.DeleteFunc(options, func(s string) bool {
			n := uint64(utf8.RuneCountInString(s))
			return (out.MinimumLength != nil && n < *out.MinimumLength) ||
				(out.MaximumLength != nil && n > *out.MaximumLength)
		})
		if len(options) == 0 {
			return nil, nil, false
		}
	}
	out.Options = options
	if out.IsEmpty() {
		return nil, extra, true
	}
	return out, extra, true
}

func mergeArray(blocks []*domain.ArrayAssertions) (*domain.ArrayAssertions, bool) {
	out := &domain.ArrayAssertions{}
	for _, b := range blocks {
		out.MinimumItems = maxCount(out.MinimumItems, b.MinimumItems)
		out.MaximumItems = minCount(out.MaximumItems, b.MaximumItems)
		out.UniqueItems = out.UniqueItems || b.UniqueItems
	}
	if crossed(out.MinimumItems, out.MaximumItems) {
		return nil, false
	}
	if out.IsEmpty() {
		return nil, true
	}
	return out, true
}

func mergeMap(blocks []*domain.MapAssertions) (*domain.MapAssertions, bool) {
	out := &domain.MapAssertions{}
	for _, b := range blocks {
		out.MinimumProperties = maxCount(out.MinimumProperties, b.MinimumProperties)
		out.MaximumProperties = minCount(out.MaximumProperties, b.MaximumProperties)
	}
	if crossed(out.MinimumProperties, out.MaximumProperties) {
		return nil, false
	}
	if out.IsEmpty() {
		return nil, true
	}
	return out, true
}

func crossed(lo, hi *uint64) bool {
	return lo != nil && hi != nil && *lo > *hi
}

func maxFloat(a, b *float64) *float64 {
	if b == nil {
		return a
	}
	if a == nil || *b > *a {
		return domain.Ref(*b)
	}
	return a
}

func minFloat(a, b *float64) *float64 {
	if b == nil {
		return a
	}
	if a == nil || *b < *a {
		return domain.Ref(*b)
	}
	return a
}

func maxCount(a, b *uint64) *uint64 {
	if b == nil {
		return a
	}
	if a == nil || *b > *a {
		return domain.Ref(*b)
	}
	return a
}

func minCount(a, b *uint64) *uint64 {
	if b == nil {
		return a
	}
	if a == nil || *b < *a {
		return domain.Ref(*b)
	}
	return a
}
