package rules

import (
	"slices"

	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/domain"
)

// ResolveReference removes references. A node that is only a reference
// becomes a copy of its target; any other node keeps its content and moves
// the target into allOf. Targets that are references themselves are
// resolved first, and a reference chain that leads back to the node is
// dropped.
func ResolveReference() arena.Transform {
	return func(a *arena.Arena, key arena.Key, node arena.Node) (arena.Node, error) {
		ref := node.Applicators.Reference
		if ref == nil {
			return node, nil
		}
		target := *ref
		if target == key {
			return dropReference(node), nil
		}
		t, err := a.Get(target)
		if err != nil {
			return node, err
		}
		if t.Applicators.Reference != nil {
			if referenceCycle(a, target, key) {
				return dropReference(node), nil
			}
			return node, nil
		}

		if node.IsAlias() {
			out := t.Clone()
			out.Metadata = overlayMetadata(node.Metadata, t.Metadata)
			out.Exact = node.Exact && t.Exact
			return out, nil
		}
		out := node.Clone()
		out.Applicators.Reference = nil
		if !slices.Contains(out.Applicators.AllOf, target) {
			out.Applicators.AllOf = append(out.Applicators.AllOf, target)
		}
		return out, nil
	}
}

func dropReference(node arena.Node) arena.Node {
	out := node.Clone()
	out.Applicators.Reference = nil
	out.Exact = false
	return out
}

// referenceCycle follows the reference chain from start and reports whether
// it reaches key.
func referenceCycle(a *arena.Arena, start, key arena.Key) bool {
	seen := make(map[arena.Key]bool)
	for cur := start; !seen[cur]; {
		if cur == key {
			return true
		}
		seen[cur] = true
		n, err := a.Get(cur)
		if err != nil || n.Applicators.Reference == nil {
			return false
		}
		cur = *n.Applicators.Reference
	}
	return false
}

func overlayMetadata(top, bottom domain.Metadata) domain.Metadata {
	out := bottom
	if top.Title != "" {
		out.Title = top.Title
	}
	if top.Description != "" {
		out.Description = top.Description
	}
	if top.Deprecated {
		out.Deprecated = true
	}
	if len(top.Examples) > 0 {
		out.Examples = slices.Clone(top.Examples)
	}
	return out
}
