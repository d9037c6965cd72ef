package rules

import (
	"maps"
	"slices"

	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/domain"
)

type mode int

const (
	// intersect merges the members of an allOf: children combine with allOf.
	intersect mode = iota
	// union builds an anyOf candidate: structural children combine with anyOf.
	union
)

// maxCrossProduct caps the oneOf combinations produced when several merged
// nodes carry oneOf. A list that would exceed it is kept as a separate
// conjunct.
const maxCrossProduct = 64

// merger combines several settled nodes into one. A dry merger only decides
// satisfiability and never touches the arena.
type merger struct {
	arena *arena.Arena
	mode  mode
	dry   bool
}

func uniqueKeys(keys []arena.Key) []arena.Key {
	if len(keys) == 0 {
		return nil
	}
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

func without(keys []arena.Key, k arena.Key) []arena.Key {
	return slices.DeleteFunc(slices.Clone(keys), func(x arena.Key) bool { return x == k })
}

// combine returns one key standing for the conjunction or disjunction of
// keys, interning an allOf or anyOf node when there is more than one.
func (m *merger) combine(keys []arena.Key, how mode) arena.Key {
	keys = uniqueKeys(keys)
	if len(keys) == 1 || m.dry {
		return keys[0]
	}
	var n arena.Node
	if how == union {
		n.Applicators.AnyOf = keys
	} else {
		n.Applicators.AllOf = keys
	}
	return m.arena.Intern(n)
}

func (m *merger) combinePtr(keys []arena.Key, how mode) *arena.Key {
	if len(keys) == 0 {
		return nil
	}
	k := m.combine(keys, how)
	return &k
}

// merge combines nodes. ok is false when the types or assertions cannot be
// satisfied together. The result carries no metadata and is not exact.
//
// A constraint that has no room next to the one the result keeps, such as a
// second contains schema, is interned as its own node and joins the result's
// allOf. Such a node has no composite applicators, so the result still
// settles.
func (m *merger) merge(nodes []arena.Node) (arena.Node, bool) {
	sets := make([][]domain.TypeTag, 0, len(nodes))
	for _, n := range nodes {
		sets = append(sets, n.Types)
	}
	types, ok := intersectTypes(sets)
	if !ok {
		return arena.Node{}, false
	}
	assertions, rest, ok := mergeAssertions(nodes, types)
	if !ok {
		return arena.Node{}, false
	}
	out := arena.Node{Types: types, Assertions: assertions}

	if admits(types, domain.TypeMap) {
		if required := m.required(nodes); len(required) > 0 {
			if out.Assertions.Map == nil {
				out.Assertions.Map = &domain.MapAssertions{}
			}
			out.Assertions.Map.Required = required
			if limit := out.Assertions.Map.MaximumProperties; limit != nil && uint64(len(required)) > *limit {
				return arena.Node{}, false
			}
		}
	}

	apps, extra := m.applicators(nodes)
	for _, as := range rest {
		extra = append(extra, arena.Node{Assertions: as})
	}
	if !m.dry && len(extra) > 0 {
		for _, n := range extra {
			apps.AllOf = append(apps.AllOf, m.arena.Intern(n))
		}
		apps.AllOf = uniqueKeys(apps.AllOf)
	}
	out.Applicators = apps
	return out, true
}

// required unions the required lists. In union mode a name is dropped when
// some node declares the property without requiring it.
func (m *merger) required(nodes []arena.Node) []string {
	var names []string
	for _, n := range nodes {
		if n.Assertions.Map != nil {
			names = append(names, n.Assertions.Map.Required...)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)
	if m.mode != union {
		return names
	}
	return slices.DeleteFunc(names, func(name string) bool {
		for _, n := range nodes {
			if _, declared := n.Applicators.ObjectProperties[name]; !declared {
				continue
			}
			if n.Assertions.Map == nil || !slices.Contains(n.Assertions.Map.Required, name) {
				return true
			}
		}
		return false
	})
}

// conditional is one if/then/else group.
type conditional struct {
	cond, then, els *arena.Key
}

func sameKey(a, b *arena.Key) bool {
	return (a == nil && b == nil) || (a != nil && b != nil && *a == *b)
}

func (c conditional) equal(o conditional) bool {
	return sameKey(c.cond, o.cond) && sameKey(c.then, o.then) && sameKey(c.els, o.els)
}

// applicators merges the applicators of nodes. The second result lists the
// conjuncts that did not fit on the merged node.
func (m *merger) applicators(nodes []arena.Node) (domain.Applicators[arena.Key], []arena.Node) {
	var out domain.Applicators[arena.Key]
	var extra []arena.Node

	var refs, allOf []arena.Key
	var anyOfLists, oneOfLists [][]arena.Key
	var nots, contains []arena.Key
	var conditionals []conditional
	for _, n := range nodes {
		a := n.Applicators
		if a.Reference != nil {
			refs = append(refs, *a.Reference)
		}
		allOf = append(allOf, a.AllOf...)
		if len(a.AnyOf) > 0 {
			anyOfLists = append(anyOfLists, a.AnyOf)
		}
		if len(a.OneOf) > 0 {
			oneOfLists = append(oneOfLists, a.OneOf)
		}
		if a.Not != nil {
			nots = append(nots, *a.Not)
		}
		if a.Contains != nil {
			contains = append(contains, *a.Contains)
		}
		c := conditional{a.If, a.Then, a.Else}
		if (c.cond != nil || c.then != nil || c.els != nil) && !slices.ContainsFunc(conditionals, c.equal) {
			conditionals = append(conditionals, c)
		}
	}

	refs = uniqueKeys(refs)
	if len(refs) > 0 {
		out.Reference = &refs[0]
		allOf = append(allOf, refs[1:]...)
	}
	switch len(anyOfLists) {
	case 0:
	case 1:
		out.AnyOf = slices.Clone(anyOfLists[0])
	default:
		for _, list := range anyOfLists {
			allOf = append(allOf, m.combine(list, union))
		}
	}
	out.AllOf = uniqueKeys(allOf)
	var lists []arena.Node
	out.OneOf, lists = m.oneOf(oneOfLists)
	extra = append(extra, lists...)
	// not a and not b is not (a or b)
	out.Not = m.combinePtr(nots, union)
	if contains = uniqueKeys(contains); len(contains) > 0 {
		out.Contains = &contains[0]
		for _, k := range contains[1:] {
			extra = append(extra, arena.Node{Applicators: domain.Applicators[arena.Key]{Contains: domain.Ref(k)}})
		}
	}
	for i, c := range conditionals {
		if i == 0 {
			out.If, out.Then, out.Else = c.cond, c.then, c.els
			continue
		}
		extra = append(extra, arena.Node{Applicators: domain.Applicators[arena.Key]{If: c.cond, Then: c.then, Else: c.els}})
	}

	out.DependentSchemas = m.keyed(nodes, func(a domain.Applicators[arena.Key]) map[string]arena.Key {
		return a.DependentSchemas
	}, intersect, nil)
	out.TupleItems = m.tuple(nodes)
	out.ArrayItems = m.combinePtr(collect(nodes, func(a domain.Applicators[arena.Key]) *arena.Key { return a.ArrayItems }), m.mode)
	out.ObjectProperties = m.keyed(nodes, func(a domain.Applicators[arena.Key]) map[string]arena.Key {
		return a.ObjectProperties
	}, m.mode, func(a domain.Applicators[arena.Key]) *arena.Key { return a.MapProperties })
	out.MapProperties = m.combinePtr(collect(nodes, func(a domain.Applicators[arena.Key]) *arena.Key { return a.MapProperties }), m.mode)
	out.PatternProperties = m.keyed(nodes, func(a domain.Applicators[arena.Key]) map[string]arena.Key {
		return a.PatternProperties
	}, m.mode, nil)
	out.PropertyNames = m.combinePtr(collect(nodes, func(a domain.Applicators[arena.Key]) *arena.Key { return a.PropertyNames }), m.mode)
	return out, extra
}

func collect(nodes []arena.Node, get func(domain.Applicators[arena.Key]) *arena.Key) []arena.Key {
	var out []arena.Key
	for _, n := range nodes {
		if k := get(n.Applicators); k != nil {
			out = append(out, *k)
		}
	}
	return out
}

// keyed merges a name-keyed applicator. In intersect mode a node lacking a
// name contributes its fallback schema, if any, for that name.
func (m *merger) keyed(
	nodes []arena.Node,
	get func(domain.Applicators[arena.Key]) map[string]arena.Key,
	how mode,
	fallback func(domain.Applicators[arena.Key]) *arena.Key,
) map[string]arena.Key {
	names := make(map[string]struct{})
	for _, n := range nodes {
		for name := range get(n.Applicators) {
			names[name] = struct{}{}
		}
	}
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]arena.Key, len(names))
	for _, name := range slices.Sorted(maps.Keys(names)) {
		var keys []arena.Key
		for _, n := range nodes {
			if k, ok := get(n.Applicators)[name]; ok {
				keys = append(keys, k)
				continue
			}
			if how == intersect && fallback != nil {
				if k := fallback(n.Applicators); k != nil {
					keys = append(keys, *k)
				}
			}
		}
		out[name] = m.combine(keys, how)
	}
	return out
}

// tuple merges positional items slot by slot. A tuple that is too short
// passes the other slots through in union mode and contributes its
// arrayItems schema in intersect mode.
func (m *merger) tuple(nodes []arena.Node) []arena.Key {
	size := 0
	for _, n := range nodes {
		size = max(size, len(n.Applicators.TupleItems))
	}
	if size == 0 {
		return nil
	}
	out := make([]arena.Key, size)
	for i := range size {
		var keys []arena.Key
		for _, n := range nodes {
			items := n.Applicators.TupleItems
			switch {
			case i < len(items):
				keys = append(keys, items[i])
			case m.mode == intersect && n.Applicators.ArrayItems != nil:
				keys = append(keys, *n.Applicators.ArrayItems)
			}
		}
		out[i] = m.combine(keys, m.mode)
	}
	return out
}

// oneOf keeps a single oneOf list and replaces several with the pairwise
// intersections of their alternatives. A list that would push the product
// past maxCrossProduct comes back as a {oneOf: list} node in rest.
func (m *merger) oneOf(lists [][]arena.Key) (out []arena.Key, rest []arena.Node) {
	switch len(lists) {
	case 0:
		return nil, nil
	case 1:
		return slices.Clone(lists[0]), nil
	}
	combos := [][]arena.Key{nil}
	for i, list := range lists {
		if i > 0 && len(combos)*len(list) > maxCrossProduct {
			rest = append(rest, arena.Node{Applicators: domain.Applicators[arena.Key]{OneOf: slices.Clone(list)}})
			continue
		}
		var next [][]arena.Key
		for _, combo := range combos {
			for _, k := range list {
				next = append(next, append(slices.Clone(combo), k))
			}
		}
		combos = next
	}
	out = make([]arena.Key, 0, len(combos))
	for _, combo := range combos {
		k := m.combine(combo, intersect)
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, rest
}
