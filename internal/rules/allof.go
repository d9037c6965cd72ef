package rules

import (
	"github.com/i2y/schemair/internal/arena"
)

// ResolveAllOf flattens allOf by intersecting the node with its settled
// members. An unsatisfiable intersection becomes never.
func ResolveAllOf() arena.Transform {
	return func(a *arena.Arena, key arena.Key, node arena.Node) (arena.Node, error) {
		apps := node.Applicators
		if len(apps.AllOf) == 0 || apps.Reference != nil {
			return node, nil
		}

		base := node.Clone()
		base.Applicators.AllOf = nil
		nodes := []arena.Node{base}
		for _, member := range without(uniqueKeys(apps.AllOf), key) {
			parts, ok, err := settled(a, member)
			if err != nil || !ok {
				return node, err
			}
			nodes = append(nodes, parts...)
		}

		m := &merger{arena: a, mode: intersect}
		merged, ok := m.merge(nodes)
		if !ok {
			return never(node.Metadata), nil
		}
		merged.Metadata = node.Metadata
		return merged, nil
	}
}
