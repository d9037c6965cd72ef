package document

import (
	"math"
	"slices"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
)

// IntermediateEntries converts every schema node owned by the document into
// a canonical node keyed by its canonical node id. Embedded roots belong to
// their own document and are skipped, as is the root of an OpenAPI
// container.
func (d *Document) IntermediateEntries() ([]domain.GraphEntry, error) {
	var entries []domain.GraphEntry
	for _, ptr := range d.order {
		if _, ok := d.embedded[ptr]; ok {
			continue
		}
		if ptr == "" && !d.adapter.RootIsSchema(d.root) {
			continue
		}
		id, err := d.canonicalLocation(ptr)
		if err != nil {
			return nil, err
		}
		node, err := d.buildNode(ptr, d.nodes[ptr])
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.GraphEntry{ID: id.String(), Node: node})
	}
	return entries, nil
}

func (d *Document) buildNode(ptr string, raw any) (domain.CanonicalNode, error) {
	a := d.adapter
	node := domain.CanonicalNode{Exact: true}
	if a.IsAlwaysValid(raw) {
		node.Types = []domain.TypeTag{domain.TypeAny}
		return node, nil
	}
	if a.IsNeverValid(raw) {
		node.Types = []domain.TypeTag{domain.TypeNever}
		return node, nil
	}

	if title, ok := a.SelectTitle(raw); ok {
		node.Metadata.Title = title
	}
	if description, ok := a.SelectDescription(raw); ok {
		node.Metadata.Description = description
	}
	if deprecated, ok := a.SelectDeprecated(raw); ok {
		node.Metadata.Deprecated = deprecated
	}
	if examples, ok := a.SelectExamples(raw); ok {
		node.Metadata.Examples = examples
	}

	types, ok := a.SelectTypes(raw)
	if !ok {
		types = a.InferTypes(raw)
	}
	node.Types = types
	node.Assertions = buildAssertions(a, raw, types)

	apps, err := d.buildApplicators(ptr, raw)
	if err != nil {
		return domain.CanonicalNode{}, err
	}
	node.Applicators = apps
	return node, nil
}

func declares(types []domain.TypeTag, t domain.TypeTag) bool {
	return len(types) == 0 || slices.Contains(types, t) || slices.Contains(types, domain.TypeAny)
}

func buildAssertions(a dialect.Adapter, raw any, types []domain.TypeTag) domain.Assertions {
	var out domain.Assertions
	options, _ := a.SelectOptions(raw)

	if declares(types, domain.TypeBoolean) {
		b := &domain.BooleanAssertions{}
		for _, o := range options {
			if v, ok := o.(bool); ok && !slices.Contains(b.Options, v) {
				b.Options = append(b.Options, v)
			}
		}
		if !b.IsEmpty() {
			out.Boolean = b
		}
	}
	if declares(types, domain.TypeInteger) {
		if n := numericAssertions(a, raw, options, true); !n.IsEmpty() {
			out.Integer = n
		}
	}
	if declares(types, domain.TypeNumber) {
		if n := numericAssertions(a, raw, options, false); !n.IsEmpty() {
			out.Number = n
		}
	}
	if declares(types, domain.TypeString) {
		s := &domain.StringAssertions{}
		if v, ok := a.SelectMinLength(raw); ok {
			s.MinimumLength = &v
		}
		if v, ok := a.SelectMaxLength(raw); ok {
			s.MaximumLength = &v
		}
		if v, ok := a.SelectPattern(raw); ok {
			s.ValuePatterns = []string{v}
		}
		if v, ok := a.SelectFormat(raw); ok {
			s.ValueFormat = &v
		}
		for _, o := range options {
			if v, ok := o.(string); ok && !slices.Contains(s.Options, v) {
				s.Options = append(s.Options, v)
			}
		}
		if !s.IsEmpty() {
			out.String = s
		}
	}
	if declares(types, domain.TypeArray) {
		arr := &domain.ArrayAssertions{UniqueItems: a.SelectUniqueItems(raw)}
		if v, ok := a.SelectMinItems(raw); ok {
			arr.MinimumItems = &v
		}
		if v, ok := a.SelectMaxItems(raw); ok {
			arr.MaximumItems = &v
		}
		if !arr.IsEmpty() {
			out.Array = arr
		}
	}
	if declares(types, domain.TypeMap) {
		m := &domain.MapAssertions{}
		if v, ok := a.SelectMinProperties(raw); ok {
			m.MinimumProperties = &v
		}
		if v, ok := a.SelectMaxProperties(raw); ok {
			m.MaximumProperties = &v
		}
		if v, ok := a.SelectRequired(raw); ok {
			m.Required = v
		}
		if !m.IsEmpty() {
			out.Map = m
		}
	}
	return out
}

func numericAssertions(a dialect.Adapter, raw any, options []any, integer bool) *domain.NumericAssertions {
	n := &domain.NumericAssertions{}
	if v, ok := a.SelectMinimumInclusive(raw); ok {
		n.MinimumInclusive = &v
	}
	if v, ok := a.SelectMinimumExclusive(raw); ok {
		n.MinimumExclusive = &v
	}
	if v, ok := a.SelectMaximumInclusive(raw); ok {
		n.MaximumInclusive = &v
	}
	if v, ok := a.SelectMaximumExclusive(raw); ok {
		n.MaximumExclusive = &v
	}
	if v, ok := a.SelectMultipleOf(raw); ok {
		n.MultipleOf = &v
	}
	if v, ok := a.SelectFormat(raw); ok {
		n.ValueFormat = &v
	}
	for _, o := range options {
		f, ok := dialect.ToNumber(o)
		if !ok || (integer && f != math.Trunc(f)) || slices.Contains(n.Options, f) {
			continue
		}
		n.Options = append(n.Options, f)
	}
	return n
}

// childResolver maps located children to canonical node ids and keeps the
// first failure.
type childResolver struct {
	d   *Document
	ptr string
	err error
}

func (r *childResolver) id(c dialect.Child) string {
	if r.err != nil {
		return ""
	}
	loc, err := r.d.canonicalLocation(domain.JoinPointer(r.ptr, c.Tokens...))
	if err != nil {
		r.err = err
		return ""
	}
	return loc.String()
}

func (r *childResolver) single(c dialect.Child, ok bool) *string {
	if !ok {
		return nil
	}
	id := r.id(c)
	return &id
}

func (r *childResolver) list(children []dialect.Child) []string {
	if len(children) == 0 {
		return nil
	}
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, r.id(c))
	}
	return out
}

func (r *childResolver) dict(children []dialect.Child) map[string]string {
	if len(children) == 0 {
		return nil
	}
	out := make(map[string]string, len(children))
	for _, c := range children {
		out[c.Key] = r.id(c)
	}
	return out
}

func (d *Document) buildApplicators(ptr string, raw any) (domain.Applicators[string], error) {
	a := d.adapter
	r := &childResolver{d: d, ptr: ptr}
	apps := domain.Applicators[string]{
		AllOf:             r.list(a.SelectAllOf(raw)),
		AnyOf:             r.list(a.SelectAnyOf(raw)),
		OneOf:             r.list(a.SelectOneOf(raw)),
		Not:               r.single(a.SelectNot(raw)),
		If:                r.single(a.SelectIf(raw)),
		Then:              r.single(a.SelectThen(raw)),
		Else:              r.single(a.SelectElse(raw)),
		DependentSchemas:  r.dict(a.SelectDependentSchemas(raw)),
		TupleItems:        r.list(a.SelectTupleItems(raw)),
		ArrayItems:        r.single(a.SelectArrayItems(raw)),
		Contains:          r.single(a.SelectContains(raw)),
		ObjectProperties:  r.dict(a.SelectProperties(raw)),
		MapProperties:     r.single(a.SelectAdditionalProperties(raw)),
		PatternProperties: r.dict(a.SelectPatternProperties(raw)),
		PropertyNames:     r.single(a.SelectPropertyNames(raw)),
	}
	if r.err != nil {
		return domain.Applicators[string]{}, r.err
	}

	from := d.location(ptr).String()
	if ref, ok := a.SelectRef(raw); ok {
		target, err := d.resolveReference(from, ref)
		if err != nil {
			return domain.Applicators[string]{}, err
		}
		apps.Reference = domain.Ref(target.String())
	}
	if ref, ok := a.SelectDynamicRef(raw); ok {
		target, err := d.resolveDynamicReference(from, ref)
		if err != nil {
			return domain.Applicators[string]{}, err
		}
		if apps.Reference == nil {
			apps.Reference = domain.Ref(target.String())
		} else {
			apps.AllOf = append(apps.AllOf, target.String())
		}
	}
	return apps, nil
}
