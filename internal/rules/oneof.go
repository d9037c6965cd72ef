package rules

import (
	"bytes"

	"github.com/i2y/schemair/internal/arena"
)

// DedupOneOf drops oneOf alternatives that repeat a key or the shape of an
// earlier alternative.
func DedupOneOf() arena.Transform {
	return func(a *arena.Arena, _ arena.Key, node arena.Node) (arena.Node, error) {
		alts := node.Applicators.OneOf
		if len(alts) < 2 {
			return node, nil
		}
		kept := make([]arena.Key, 0, len(alts))
		var shapes [][]byte
	next:
		for _, k := range alts {
			n, err := a.Get(k)
			if err != nil {
				return node, err
			}
			shape := arena.ShapeFingerprint(n)
			for _, s := range shapes {
				if bytes.Equal(s, shape) {
					continue next
				}
			}
			kept = append(kept, k)
			shapes = append(shapes, shape)
		}
		if len(kept) == len(alts) {
			return node, nil
		}
		out := node.Clone()
		out.Applicators.OneOf = kept
		return out, nil
	}
}
