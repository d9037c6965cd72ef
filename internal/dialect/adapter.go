package dialect

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/i2y/schemair/internal/domain"
)

// Child is a sub-schema found by a locator. Key is the local name used by
// the owning applicator (property name, index, definition name) and Tokens
// is the pointer path from the parent node.
type Child struct {
	Key    string
	Tokens []string
	Node   any
}

// Adapter reads raw decoded nodes using the vocabulary of one dialect. All
// accessors are total: an absent or malformed keyword yields ok == false or
// an empty result.
type Adapter struct {
	dialect Dialect
}

func NewAdapter(d Dialect) Adapter {
	return Adapter{dialect: d}
}

func (a Adapter) Dialect() Dialect {
	return a.dialect
}

func (a Adapter) modern() bool {
	return a.dialect != Draft04
}

// IsAlwaysValid reports whether node is the "true" boolean schema.
func (a Adapter) IsAlwaysValid(node any) bool {
	b, ok := node.(bool)
	return ok && b
}

// IsNeverValid reports whether node is the "false" boolean schema.
func (a Adapter) IsNeverValid(node any) bool {
	b, ok := node.(bool)
	return ok && !b
}

// RootIsSchema is false for OpenAPI containers whose root only hosts schemas.
func (a Adapter) RootIsSchema(root any) bool {
	if a.dialect != OAS31 {
		return true
	}
	m, ok := root.(map[string]any)
	if !ok {
		return true
	}
	_, container := m["openapi"]
	return !container
}

// SelectID returns the document identity declared by node. In draft-04 an
// id made of a bare fragment is an anchor and not an identity.
func (a Adapter) SelectID(node any) (string, bool) {
	if a.modern() {
		return stringValue(node, "$id")
	}
	id, ok := stringValue(node, "id")
	if !ok || strings.HasPrefix(id, "#") {
		return "", false
	}
	return id, true
}

func (a Adapter) SelectAnchor(node any) (string, bool) {
	if a.modern() {
		return stringValue(node, "$anchor")
	}
	id, ok := stringValue(node, "id")
	if !ok || !strings.HasPrefix(id, "#") || len(id) < 2 || strings.HasPrefix(id, "#/") {
		return "", false
	}
	return id[1:], true
}

func (a Adapter) SelectDynamicAnchor(node any) (string, bool) {
	if !a.modern() {
		return "", false
	}
	return stringValue(node, "$dynamicAnchor")
}

func (a Adapter) SelectRef(node any) (string, bool) {
	return stringValue(node, "$ref")
}

func (a Adapter) SelectDynamicRef(node any) (string, bool) {
	if !a.modern() {
		return "", false
	}
	return stringValue(node, "$dynamicRef")
}

func (a Adapter) SelectTitle(node any) (string, bool) {
	return stringValue(node, "title")
}

func (a Adapter) SelectDescription(node any) (string, bool) {
	return stringValue(node, "description")
}

func (a Adapter) SelectDeprecated(node any) (bool, bool) {
	if !a.modern() {
		return false, false
	}
	v, ok := field(node, "deprecated")
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// SelectExamples merges "examples" with the OpenAPI singular "example".
func (a Adapter) SelectExamples(node any) ([]any, bool) {
	var out []any
	if a.modern() {
		if v, ok := field(node, "examples"); ok {
			if list, ok := v.([]any); ok {
				out = append(out, list...)
			}
		}
	}
	if a.dialect == OAS31 {
		if v, ok := field(node, "example"); ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

// SelectTypes returns the declared types normalized to the canonical set.
// Boolean schemas map to any and never.
func (a Adapter) SelectTypes(node any) ([]domain.TypeTag, bool) {
	if a.IsAlwaysValid(node) {
		return []domain.TypeTag{domain.TypeAny}, true
	}
	if a.IsNeverValid(node) {
		return []domain.TypeTag{domain.TypeNever}, true
	}
	v, ok := field(node, "type")
	if !ok {
		return nil, false
	}
	var names []string
	switch t := v.(type) {
	case string:
		names = []string{t}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	default:
		return nil, false
	}
	var out []domain.TypeTag
	for _, name := range names {
		if tag, ok := normalizeType(name); ok {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return domain.SortTypes(out), true
}

func normalizeType(name string) (domain.TypeTag, bool) {
	if name == "object" {
		return domain.TypeMap, true
	}
	tag := domain.TypeTag(name)
	if !tag.Valid() || tag == domain.TypeMap {
		return "", false
	}
	return tag, true
}

// SelectMinimumInclusive reads "minimum" unless draft-04 marks it exclusive.
func (a Adapter) SelectMinimumInclusive(node any) (float64, bool) {
	if !a.modern() && boolValue(node, "exclusiveMinimum") {
		return 0, false
	}
	return numberValue(node, "minimum")
}

func (a Adapter) SelectMinimumExclusive(node any) (float64, bool) {
	if !a.modern() {
		if !boolValue(node, "exclusiveMinimum") {
			return 0, false
		}
		return numberValue(node, "minimum")
	}
	return numberValue(node, "exclusiveMinimum")
}

func (a Adapter) SelectMaximumInclusive(node any) (float64, bool) {
	if !a.modern() && boolValue(node, "exclusiveMaximum") {
		return 0, false
	}
	return numberValue(node, "maximum")
}

func (a Adapter) SelectMaximumExclusive(node any) (float64, bool) {
	if !a.modern() {
		if !boolValue(node, "exclusiveMaximum") {
			return 0, false
		}
		return numberValue(node, "maximum")
	}
	return numberValue(node, "exclusiveMaximum")
}

func (a Adapter) SelectMultipleOf(node any) (float64, bool) {
	return numberValue(node, "multipleOf")
}

func (a Adapter) SelectMinLength(node any) (uint64, bool) {
	return countValue(node, "minLength")
}

func (a Adapter) SelectMaxLength(node any) (uint64, bool) {
	return countValue(node, "maxLength")
}

func (a Adapter) SelectPattern(node any) (string, bool) {
	return stringValue(node, "pattern")
}

func (a Adapter) SelectFormat(node any) (string, bool) {
	return stringValue(node, "format")
}

func (a Adapter) SelectMinItems(node any) (uint64, bool) {
	return countValue(node, "minItems")
}

func (a Adapter) SelectMaxItems(node any) (uint64, bool) {
	return countValue(node, "maxItems")
}

func (a Adapter) SelectUniqueItems(node any) bool {
	return boolValue(node, "uniqueItems")
}

func (a Adapter) SelectMinProperties(node any) (uint64, bool) {
	return countValue(node, "minProperties")
}

func (a Adapter) SelectMaxProperties(node any) (uint64, bool) {
	return countValue(node, "maxProperties")
}

func (a Adapter) SelectRequired(node any) ([]string, bool) {
	v, ok := field(node, "required")
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}

// SelectOptions returns the enumerated values, including const.
func (a Adapter) SelectOptions(node any) ([]any, bool) {
	var out []any
	if v, ok := field(node, "enum"); ok {
		if list, ok := v.([]any); ok {
			out = append(out, list...)
		}
	}
	if a.modern() {
		if v, ok := field(node, "const"); ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

// IsNumber reports whether v decodes to a JSON number. Booleans and strings
// are rejected even though cast would coerce them.
func IsNumber(v any) bool {
	_, ok := toNumber(v)
	return ok
}

// ToNumber converts a decoded JSON number to float64.
func ToNumber(v any) (float64, bool) {
	return toNumber(v)
}

func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
	default:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func field(node any, key string) (any, bool) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func stringValue(node any, key string) (string, bool) {
	v, ok := field(node, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolValue(node any, key string) bool {
	v, ok := field(node, key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func numberValue(node any, key string) (float64, bool) {
	v, ok := field(node, key)
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

func countValue(node any, key string) (uint64, bool) {
	f, ok := numberValue(node, key)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	n, err := cast.ToUint64E(f)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isSchemaValue(v any) bool {
	switch v.(type) {
	case map[string]any, bool:
		return true
	default:
		return false
	}
}

func schemaMap(node any, keyword string) []Child {
	v, ok := field(node, keyword)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var out []Child
	for _, name := range slices.Sorted(maps.Keys(m)) {
		if isSchemaValue(m[name]) {
			out = append(out, Child{Key: name, Tokens: []string{keyword, name}, Node: m[name]})
		}
	}
	return out
}

func schemaList(node any, keyword string) []Child {
	v, ok := field(node, keyword)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []Child
	for i, item := range list {
		if isSchemaValue(item) {
			key := strconv.Itoa(i)
			out = append(out, Child{Key: key, Tokens: []string{keyword, key}, Node: item})
		}
	}
	return out
}

func schemaSingle(node any, keyword string) (Child, bool) {
	v, ok := field(node, keyword)
	if !ok || !isSchemaValue(v) {
		return Child{}, false
	}
	return Child{Key: keyword, Tokens: []string{keyword}, Node: v}, true
}

var inferenceKeywords = []struct {
	tag      domain.TypeTag
	keywords []string
}{
	{domain.TypeNumber, []string{"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum", "multipleOf"}},
	{domain.TypeString, []string{"minLength", "maxLength", "pattern"}},
	{domain.TypeArray, []string{"items", "prefixItems", "additionalItems", "minItems", "maxItems", "uniqueItems", "contains"}},
	{domain.TypeMap, []string{"properties", "additionalProperties", "patternProperties", "required",
		"minProperties", "maxProperties", "propertyNames", "dependentSchemas", "dependencies"}},
}

// InferTypes derives types for a node without a "type" keyword. Enumerated
// values decide first, then type-specific keywords. A nil result means the
// node is unconstrained.
func (a Adapter) InferTypes(node any) []domain.TypeTag {
	if options, ok := a.SelectOptions(node); ok {
		out := make([]domain.TypeTag, 0, len(options))
		for _, v := range options {
			out = append(out, ValueType(v))
		}
		return domain.SortTypes(out)
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	var out []domain.TypeTag
	for _, group := range inferenceKeywords {
		for _, keyword := range group.keywords {
			if _, ok := m[keyword]; ok {
				out = append(out, group.tag)
				break
			}
		}
	}
	return domain.SortTypes(out)
}

// ValueType returns the canonical type of a decoded JSON value.
func ValueType(v any) domain.TypeTag {
	switch t := v.(type) {
	case nil:
		return domain.TypeNull
	case bool:
		return domain.TypeBoolean
	case string:
		return domain.TypeString
	case []any:
		return domain.TypeArray
	case map[string]any:
		return domain.TypeMap
	default:
		if f, ok := toNumber(t); ok {
			if f == math.Trunc(f) && !math.IsInf(f, 0) {
				return domain.TypeInteger
			}
			return domain.TypeNumber
		}
		return domain.TypeAny
	}
}
