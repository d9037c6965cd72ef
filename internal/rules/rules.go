// Package rules holds the rewrite rules that normalize a schema arena.
//
// Rules are arena.Transform values. Each one leaves a node untouched until
// the nodes it depends on are settled, so running them to a fixpoint with
// arena.Normalize resolves the graph bottom-up.
package rules

import "github.com/i2y/schemair/internal/arena"

type Options struct {
	MaxAnyOfArity int
}

// Default returns the standard rule order.
func Default(opts Options) []arena.Transform {
	return []arena.Transform{
		ResolveReference(),
		ResolveAllOf(),
		ResolveAnyOf(opts.MaxAnyOfArity),
		DedupOneOf(),
	}
}
