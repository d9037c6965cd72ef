package rules

import (
	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/domain"
)

func compositeEdges(n arena.Node) []arena.Key {
	var out []arena.Key
	if n.Applicators.Reference != nil {
		out = append(out, *n.Applicators.Reference)
	}
	out = append(out, n.Applicators.AllOf...)
	return append(out, n.Applicators.AnyOf...)
}

// onCompositeCycle reports whether start can reach itself through
// reference, allOf and anyOf edges.
func onCompositeCycle(a *arena.Arena, start arena.Key) (bool, error) {
	visited := make(map[arena.Key]bool)
	stack := []arena.Key{start}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, err := a.Get(k)
		if err != nil {
			return false, err
		}
		for _, next := range compositeEdges(n) {
			if next == start {
				return true, nil
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false, nil
}

func stripComposite(n arena.Node) arena.Node {
	n.Applicators.Reference = nil
	n.Applicators.AllOf = nil
	n.Applicators.AnyOf = nil
	n.Exact = false
	return n
}

// conjuncts splits n into itself without allOf followed by its allOf
// members. ok is false when n has a reference or anyOf, or when a member
// still has composite applicators.
func conjuncts(a *arena.Arena, n arena.Node) ([]arena.Node, bool, error) {
	if n.Applicators.Reference != nil || len(n.Applicators.AnyOf) > 0 {
		return nil, false, nil
	}
	if len(n.Applicators.AllOf) == 0 {
		return []arena.Node{n}, true, nil
	}
	head := n.Clone()
	head.Applicators.AllOf = nil
	out := []arena.Node{head}
	for _, k := range uniqueKeys(n.Applicators.AllOf) {
		member, err := a.Get(k)
		if err != nil {
			return nil, false, err
		}
		if member.HasComposite() {
			return nil, false, nil
		}
		out = append(out, member)
	}
	return out, true, nil
}

// settled loads k for merging as a list of conjuncts. A node whose allOf
// members are all free of composite applicators is split by conjuncts. Any
// other node with composite applicators is not ready unless it lies on a
// composite cycle, in which case the composite applicators are dropped.
func settled(a *arena.Arena, k arena.Key) ([]arena.Node, bool, error) {
	n, err := a.Get(k)
	if err != nil {
		return nil, false, err
	}
	parts, ok, err := conjuncts(a, n)
	if err != nil || ok {
		return parts, ok, err
	}
	cyclic, err := onCompositeCycle(a, k)
	if err != nil || !cyclic {
		return nil, false, err
	}
	return []arena.Node{stripComposite(n)}, true, nil
}

func isEmptyContent(n arena.Node) bool {
	return len(n.Types) == 0 && n.Assertions.IsEmpty() && n.Applicators.IsEmpty()
}

func never(metadata domain.Metadata) arena.Node {
	return arena.Node{Metadata: metadata, Types: []domain.TypeTag{domain.TypeNever}}
}
