package domain

import (
	"maps"
	"slices"
)

// Node is the dialect-independent form of a schema. R is the type used to
// refer to other nodes: node-id strings in intermediate documents and arena
// keys during normalization.
type Node[R comparable] struct {
	// Exact is false once a rewrite has lost precision.
	Exact       bool           `json:"exact" yaml:"exact"`
	Metadata    Metadata       `json:"metadata" yaml:"metadata"`
	Types       []TypeTag      `json:"types,omitempty" yaml:"types,omitempty"`
	Assertions  Assertions     `json:"assertions" yaml:"assertions"`
	Applicators Applicators[R] `json:"applicators" yaml:"applicators"`
}

// CanonicalNode is a node whose references are node-id strings.
type CanonicalNode = Node[string]

type Metadata struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Examples    []any  `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Assertions groups value constraints per value type. A nil block means the
// type carries no constraints.
type Assertions struct {
	Boolean *BooleanAssertions `json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Integer *NumericAssertions `json:"integer,omitempty" yaml:"integer,omitempty"`
	Number  *NumericAssertions `json:"number,omitempty" yaml:"number,omitempty"`
	String  *StringAssertions  `json:"string,omitempty" yaml:"string,omitempty"`
	Array   *ArrayAssertions   `json:"array,omitempty" yaml:"array,omitempty"`
	Map     *MapAssertions     `json:"map,omitempty" yaml:"map,omitempty"`
}

type BooleanAssertions struct {
	Options []bool `json:"options,omitempty" yaml:"options,omitempty"`
}

type NumericAssertions struct {
	Options          []float64 `json:"options,omitempty" yaml:"options,omitempty"`
	MinimumInclusive *float64  `json:"minimumInclusive,omitempty" yaml:"minimumInclusive,omitempty"`
	MinimumExclusive *float64  `json:"minimumExclusive,omitempty" yaml:"minimumExclusive,omitempty"`
	MaximumInclusive *float64  `json:"maximumInclusive,omitempty" yaml:"maximumInclusive,omitempty"`
	MaximumExclusive *float64  `json:"maximumExclusive,omitempty" yaml:"maximumExclusive,omitempty"`
	MultipleOf       *float64  `json:"multipleOf,omitempty" yaml:"multipleOf,omitempty"`
	ValueFormat      *string   `json:"valueFormat,omitempty" yaml:"valueFormat,omitempty"`
}

type StringAssertions struct {
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
	MinimumLength *uint64  `json:"minimumLength,omitempty" yaml:"minimumLength,omitempty"`
	MaximumLength *uint64  `json:"maximumLength,omitempty" yaml:"maximumLength,omitempty"`
	// ValuePatterns must all match.
	ValuePatterns []string `json:"valuePatterns,omitempty" yaml:"valuePatterns,omitempty"`
	ValueFormat   *string  `json:"valueFormat,omitempty" yaml:"valueFormat,omitempty"`
}

type ArrayAssertions struct {
	MinimumItems *uint64 `json:"minimumItems,omitempty" yaml:"minimumItems,omitempty"`
	MaximumItems *uint64 `json:"maximumItems,omitempty" yaml:"maximumItems,omitempty"`
	UniqueItems  bool    `json:"uniqueItems,omitempty" yaml:"uniqueItems,omitempty"`
}

type MapAssertions struct {
	MinimumProperties *uint64  `json:"minimumProperties,omitempty" yaml:"minimumProperties,omitempty"`
	MaximumProperties *uint64  `json:"maximumProperties,omitempty" yaml:"maximumProperties,omitempty"`
	Required          []string `json:"required,omitempty" yaml:"required,omitempty"`
}

// Applicators hold the references from a node to its sub-schemas.
type Applicators[R comparable] struct {
	Reference         *R           `json:"reference,omitempty" yaml:"reference,omitempty"`
	AllOf             []R          `json:"allOf,omitempty" yaml:"allOf,omitempty"`
	AnyOf             []R          `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
	OneOf             []R          `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
	Not               *R           `json:"not,omitempty" yaml:"not,omitempty"`
	If                *R           `json:"if,omitempty" yaml:"if,omitempty"`
	Then              *R           `json:"then,omitempty" yaml:"then,omitempty"`
	Else              *R           `json:"else,omitempty" yaml:"else,omitempty"`
	DependentSchemas  map[string]R `json:"dependentSchemas,omitempty" yaml:"dependentSchemas,omitempty"`
	TupleItems        []R          `json:"tupleItems,omitempty" yaml:"tupleItems,omitempty"`
	ArrayItems        *R           `json:"arrayItems,omitempty" yaml:"arrayItems,omitempty"`
	Contains          *R           `json:"contains,omitempty" yaml:"contains,omitempty"`
	ObjectProperties  map[string]R `json:"objectProperties,omitempty" yaml:"objectProperties,omitempty"`
	MapProperties     *R           `json:"mapProperties,omitempty" yaml:"mapProperties,omitempty"`
	PatternProperties map[string]R `json:"patternProperties,omitempty" yaml:"patternProperties,omitempty"`
	PropertyNames     *R           `json:"propertyNames,omitempty" yaml:"propertyNames,omitempty"`
}

// Ref returns a pointer to a copy of r.
func Ref[R any](r R) *R {
	return &r
}

// IsEmpty reports whether no assertion block is present.
func (a Assertions) IsEmpty() bool {
	return a.Boolean == nil && a.Integer == nil && a.Number == nil &&
		a.String == nil && a.Array == nil && a.Map == nil
}

// HasComposite reports whether the node still carries a reference, allOf or
// anyOf applicator.
func (n Node[R]) HasComposite() bool {
	return n.Applicators.Reference != nil || len(n.Applicators.AllOf) > 0 || len(n.Applicators.AnyOf) > 0
}

// IsAlias reports whether the node is nothing but a reference.
func (n Node[R]) IsAlias() bool {
	if n.Applicators.Reference == nil || len(n.Types) > 0 || !n.Assertions.IsEmpty() {
		return false
	}
	rest := n.Applicators
	rest.Reference = nil
	return rest.IsEmpty()
}

// IsEmpty reports whether no applicator is present.
func (a Applicators[R]) IsEmpty() bool {
	return a.Reference == nil && len(a.AllOf) == 0 && len(a.AnyOf) == 0 && len(a.OneOf) == 0 &&
		a.Not == nil && a.If == nil && a.Then == nil && a.Else == nil &&
		len(a.DependentSchemas) == 0 && len(a.TupleItems) == 0 && a.ArrayItems == nil &&
		a.Contains == nil && len(a.ObjectProperties) == 0 && a.MapProperties == nil &&
		len(a.PatternProperties) == 0 && a.PropertyNames == nil
}

// Children lists every referenced node in a stable order.
func (n Node[R]) Children() []R {
	a := n.Applicators
	var out []R
	add := func(r *R) {
		if r != nil {
			out = append(out, *r)
		}
	}
	addMap := func(m map[string]R) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, m[k])
		}
	}
	add(a.Reference)
	out = append(out, a.AllOf...)
	out = append(out, a.AnyOf...)
	out = append(out, a.OneOf...)
	add(a.Not)
	add(a.If)
	add(a.Then)
	add(a.Else)
	addMap(a.DependentSchemas)
	out = append(out, a.TupleItems...)
	add(a.ArrayItems)
	add(a.Contains)
	addMap(a.ObjectProperties)
	add(a.MapProperties)
	addMap(a.PatternProperties)
	add(a.PropertyNames)
	return out
}

// Clone returns a deep copy that shares no slices, maps or pointers with n.
func (n Node[R]) Clone() Node[R] {
	out := n
	out.Metadata.Examples = slices.Clone(n.Metadata.Examples)
	out.Types = slices.Clone(n.Types)
	out.Assertions = n.Assertions.Clone()
	out.Applicators = n.Applicators.Clone()
	return out
}

func (a Assertions) Clone() Assertions {
	out := Assertions{}
	if a.Boolean != nil {
		out.Boolean = &BooleanAssertions{Options: slices.Clone(a.Boolean.Options)}
	}
	out.Integer = a.Integer.Clone()
	out.Number = a.Number.Clone()
	if a.String != nil {
		s := *a.String
		s.Options = slices.Clone(s.Options)
		s.MinimumLength = clonePtr(s.MinimumLength)
		s.MaximumLength = clonePtr(s.MaximumLength)
		s.ValuePatterns = slices.Clone(s.ValuePatterns)
		s.ValueFormat = clonePtr(s.ValueFormat)
		out.String = &s
	}
	if a.Array != nil {
		arr := *a.Array
		arr.MinimumItems = clonePtr(arr.MinimumItems)
		arr.MaximumItems = clonePtr(arr.MaximumItems)
		out.Array = &arr
	}
	if a.Map != nil {
		m := *a.Map
		m.MinimumProperties = clonePtr(m.MinimumProperties)
		m.MaximumProperties = clonePtr(m.MaximumProperties)
		m.Required = slices.Clone(m.Required)
		out.Map = &m
	}
	return out
}

func (n *NumericAssertions) Clone() *NumericAssertions {
	if n == nil {
		return nil
	}
	out := *n
	out.Options = slices.Clone(n.Options)
	out.MinimumInclusive = clonePtr(n.MinimumInclusive)
	out.MinimumExclusive = clonePtr(n.MinimumExclusive)
	out.MaximumInclusive = clonePtr(n.MaximumInclusive)
	out.MaximumExclusive = clonePtr(n.MaximumExclusive)
	out.MultipleOf = clonePtr(n.MultipleOf)
	out.ValueFormat = clonePtr(n.ValueFormat)
	return &out
}

func (a Applicators[R]) Clone() Applicators[R] {
	return Applicators[R]{
		Reference:         clonePtr(a.Reference),
		AllOf:             slices.Clone(a.AllOf),
		AnyOf:             slices.Clone(a.AnyOf),
		OneOf:             slices.Clone(a.OneOf),
		Not:               clonePtr(a.Not),
		If:                clonePtr(a.If),
		Then:              clonePtr(a.Then),
		Else:              clonePtr(a.Else),
		DependentSchemas:  maps.Clone(a.DependentSchemas),
		TupleItems:        slices.Clone(a.TupleItems),
		ArrayItems:        clonePtr(a.ArrayItems),
		Contains:          clonePtr(a.Contains),
		ObjectProperties:  maps.Clone(a.ObjectProperties),
		MapProperties:     clonePtr(a.MapProperties),
		PatternProperties: maps.Clone(a.PatternProperties),
		PropertyNames:     clonePtr(a.PropertyNames),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MapReferences rewrites every reference of n with f, leaving all other
// content untouched.
func MapReferences[A, B comparable](n Node[A], f func(A) (B, error)) (Node[B], error) {
	var err error
	one := func(r *A) *B {
		if r == nil || err != nil {
			return nil
		}
		var b B
		b, err = f(*r)
		return &b
	}
	list := func(rs []A) []B {
		if rs == nil {
			return nil
		}
		out := make([]B, 0, len(rs))
		for _, r := range rs {
			if err != nil {
				return nil
			}
			var b B
			b, err = f(r)
			out = append(out, b)
		}
		return out
	}
	dict := func(m map[string]A) map[string]B {
		if m == nil {
			return nil
		}
		out := make(map[string]B, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if err != nil {
				return nil
			}
			var b B
			b, err = f(m[k])
			out[k] = b
		}
		return out
	}

	src := n.Applicators
	out := Node[B]{
		Exact:      n.Exact,
		Metadata:   n.Metadata,
		Types:      slices.Clone(n.Types),
		Assertions: n.Assertions.Clone(),
		Applicators: Applicators[B]{
			Reference:         one(src.Reference),
			AllOf:             list(src.AllOf),
			AnyOf:             list(src.AnyOf),
			OneOf:             list(src.OneOf),
			Not:               one(src.Not),
			If:                one(src.If),
			Then:              one(src.Then),
			Else:              one(src.Else),
			DependentSchemas:  dict(src.DependentSchemas),
			TupleItems:        list(src.TupleItems),
			ArrayItems:        one(src.ArrayItems),
			Contains:          one(src.Contains),
			ObjectProperties:  dict(src.ObjectProperties),
			MapProperties:     one(src.MapProperties),
			PatternProperties: dict(src.PatternProperties),
			PropertyNames:     one(src.PropertyNames),
		},
	}
	out.Metadata.Examples = slices.Clone(n.Metadata.Examples)
	if err != nil {
		return Node[B]{}, err
	}
	return out, nil
}

func (b *BooleanAssertions) IsEmpty() bool {
	return b == nil || len(b.Options) == 0
}

func (n *NumericAssertions) IsEmpty() bool {
	return n == nil || (len(n.Options) == 0 && n.MinimumInclusive == nil && n.MinimumExclusive == nil &&
		n.MaximumInclusive == nil && n.MaximumExclusive == nil && n.MultipleOf == nil && n.ValueFormat == nil)
}

func (s *StringAssertions) IsEmpty() bool {
	return s == nil || (len(s.Options) == 0 && s.MinimumLength == nil && s.MaximumLength == nil &&
		len(s.ValuePatterns) == 0 && s.ValueFormat == nil)
}

func (a *ArrayAssertions) IsEmpty() bool {
	return a == nil || (a.MinimumItems == nil && a.MaximumItems == nil && !a.UniqueItems)
}

func (m *MapAssertions) IsEmpty() bool {
	return m == nil || (m.MinimumProperties == nil && m.MaximumProperties == nil && len(m.Required) == 0)
}
