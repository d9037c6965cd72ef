package rules

import (
	"bytes"
	"math/bits"
	"slices"

	"github.com/i2y/schemair/internal/arena"
)

// DefaultMaxAnyOfArity bounds the subset enumeration of ResolveAnyOf.
const DefaultMaxAnyOfArity = 12

// ResolveAnyOf rewrites anyOf into oneOf. Every satisfiable combination of
// alternatives that is not contained in a larger satisfiable combination
// becomes one merged alternative. Merging happens in union mode, so the
// structural children of a combination are themselves joined with anyOf and
// resolved by later passes.
//
// Nodes with a reference or an allOf member that is not settled are left
// for the other rules, and so are nodes with an alternative that is not
// settled yet. Above maxArity alternatives the subsets are not enumerated
// and the original alternatives become the oneOf.
func ResolveAnyOf(maxArity int) arena.Transform {
	if maxArity <= 0 {
		maxArity = DefaultMaxAnyOfArity
	}
	return func(a *arena.Arena, key arena.Key, node arena.Node) (arena.Node, error) {
		apps := node.Applicators
		if len(apps.AnyOf) == 0 || apps.Reference != nil {
			return node, nil
		}

		base := node.Clone()
		base.Applicators.AnyOf = nil
		baseParts, ok, err := conjuncts(a, base)
		if err != nil || !ok {
			return node, err
		}
		hasBase := !isEmptyContent(base)

		alts := without(uniqueKeys(apps.AnyOf), key)
		if len(alts) == 0 {
			return never(node.Metadata), nil
		}
		members := make([][]arena.Node, len(alts))
		for i, alt := range alts {
			parts, ok, err := settled(a, alt)
			if err != nil || !ok {
				return node, err
			}
			members[i] = parts
		}

		if len(alts) > maxArity {
			return arityFallback(a, base, alts), nil
		}

		subset := func(mask uint32) []arena.Node {
			var out []arena.Node
			if hasBase {
				out = append(out, baseParts...)
			}
			for i := range alts {
				if mask&(1<<i) != 0 {
					out = append(out, members[i]...)
				}
			}
			return out
		}

		n := len(alts)
		masks := make([]uint32, 0, 1<<n-1)
		for mask := uint32(1); mask < 1<<n; mask++ {
			masks = append(masks, mask)
		}
		slices.SortStableFunc(masks, func(x, y uint32) int {
			return bits.OnesCount32(x) - bits.OnesCount32(y)
		})

		dry := &merger{arena: a, mode: union, dry: true}
		sat := make([]bool, 1<<n)
		for _, mask := range masks {
			if !hasBase && bits.OnesCount32(mask) == 1 {
				sat[mask] = true
				continue
			}
			_, sat[mask] = dry.merge(subset(mask))
		}

		builder := &merger{arena: a, mode: union}
		var keys []arena.Key
		var shapes [][]byte
		for _, mask := range masks {
			if !sat[mask] || hasSatisfiableSuperset(sat, mask, n) {
				continue
			}
			var k arena.Key
			if !hasBase && bits.OnesCount32(mask) == 1 {
				k = alts[bits.TrailingZeros32(mask)]
			} else {
				merged, ok := builder.merge(subset(mask))
				if !ok {
					continue
				}
				k = a.Intern(merged)
			}
			if slices.Contains(keys, k) {
				continue
			}
			candidate, err := a.Get(k)
			if err != nil {
				return node, err
			}
			shape := arena.ShapeFingerprint(candidate)
			if slices.ContainsFunc(shapes, func(s []byte) bool { return bytes.Equal(s, shape) }) {
				continue
			}
			keys = append(keys, k)
			shapes = append(shapes, shape)
		}

		if len(keys) == 0 {
			return never(node.Metadata), nil
		}
		out := arena.Node{Metadata: node.Metadata}
		out.Applicators.OneOf = keys
		return out, nil
	}
}

// hasSatisfiableSuperset relies on satisfiability being monotone: when some
// strict superset is satisfiable, so is a superset with one more element.
func hasSatisfiableSuperset(sat []bool, mask uint32, n int) bool {
	for i := range n {
		bit := uint32(1) << i
		if mask&bit == 0 && sat[mask|bit] {
			return true
		}
	}
	return false
}

func arityFallback(a *arena.Arena, base arena.Node, alts []arena.Key) arena.Node {
	out := base
	out.Exact = false
	if len(out.Applicators.OneOf) == 0 {
		out.Applicators.OneOf = alts
		return out
	}
	var choice arena.Node
	choice.Applicators.OneOf = alts
	out.Applicators.AllOf = uniqueKeys(append(out.Applicators.AllOf, a.Intern(choice)))
	return out
}
