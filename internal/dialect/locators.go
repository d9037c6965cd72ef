package dialect

import (
	"maps"
	"slices"
	"strconv"
)

func (a Adapter) SelectDefinitions(node any) []Child {
	if !a.modern() {
		return schemaMap(node, "definitions")
	}
	return append(schemaMap(node, "$defs"), schemaMap(node, "definitions")...)
}

func (a Adapter) SelectProperties(node any) []Child {
	return schemaMap(node, "properties")
}

func (a Adapter) SelectPatternProperties(node any) []Child {
	return schemaMap(node, "patternProperties")
}

func (a Adapter) SelectAdditionalProperties(node any) (Child, bool) {
	return schemaSingle(node, "additionalProperties")
}

func (a Adapter) SelectPropertyNames(node any) (Child, bool) {
	if !a.modern() {
		return Child{}, false
	}
	return schemaSingle(node, "propertyNames")
}

// SelectTupleItems returns positional item schemas: "items" given as an
// array in draft-04, "prefixItems" otherwise.
func (a Adapter) SelectTupleItems(node any) []Child {
	if !a.modern() {
		return schemaList(node, "items")
	}
	return schemaList(node, "prefixItems")
}

// SelectArrayItems returns the schema applied to items past the tuple.
func (a Adapter) SelectArrayItems(node any) (Child, bool) {
	if !a.modern() {
		if v, ok := field(node, "items"); ok {
			if _, tuple := v.([]any); tuple {
				return schemaSingle(node, "additionalItems")
			}
		}
	}
	return schemaSingle(node, "items")
}

func (a Adapter) SelectContains(node any) (Child, bool) {
	if !a.modern() {
		return Child{}, false
	}
	return schemaSingle(node, "contains")
}

func (a Adapter) SelectAllOf(node any) []Child {
	return schemaList(node, "allOf")
}

func (a Adapter) SelectAnyOf(node any) []Child {
	return schemaList(node, "anyOf")
}

func (a Adapter) SelectOneOf(node any) []Child {
	return schemaList(node, "oneOf")
}

func (a Adapter) SelectNot(node any) (Child, bool) {
	return schemaSingle(node, "not")
}

func (a Adapter) SelectIf(node any) (Child, bool) {
	if !a.modern() {
		return Child{}, false
	}
	return schemaSingle(node, "if")
}

func (a Adapter) SelectThen(node any) (Child, bool) {
	if !a.modern() {
		return Child{}, false
	}
	return schemaSingle(node, "then")
}

func (a Adapter) SelectElse(node any) (Child, bool) {
	if !a.modern() {
		return Child{}, false
	}
	return schemaSingle(node, "else")
}

// SelectDependentSchemas reads "dependentSchemas", or the schema-valued
// entries of draft-04 "dependencies".
func (a Adapter) SelectDependentSchemas(node any) []Child {
	if !a.modern() {
		return schemaMap(node, "dependencies")
	}
	return schemaMap(node, "dependentSchemas")
}

// SelectSubschemas lists every direct sub-schema of a schema node in a fixed
// order.
func (a Adapter) SelectSubschemas(node any) []Child {
	var out []Child
	single := func(c Child, ok bool) {
		if ok {
			out = append(out, c)
		}
	}
	out = append(out, a.SelectDefinitions(node)...)
	out = append(out, a.SelectAllOf(node)...)
	out = append(out, a.SelectAnyOf(node)...)
	out = append(out, a.SelectOneOf(node)...)
	single(a.SelectNot(node))
	single(a.SelectIf(node))
	single(a.SelectThen(node))
	single(a.SelectElse(node))
	out = append(out, a.SelectDependentSchemas(node)...)
	out = append(out, a.SelectTupleItems(node)...)
	single(a.SelectArrayItems(node))
	single(a.SelectContains(node))
	out = append(out, a.SelectProperties(node)...)
	single(a.SelectAdditionalProperties(node))
	out = append(out, a.SelectPatternProperties(node)...)
	single(a.SelectPropertyNames(node))
	return out
}

var operationMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// SelectDocumentSchemas lists the schemas hosted by an OpenAPI container:
// component schemas plus the schemas of operation parameters, request
// bodies and responses.
func (a Adapter) SelectDocumentSchemas(root any) []Child {
	var out []Child
	components, _ := field(root, "components")
	for _, c := range schemaMap(components, "schemas") {
		c.Tokens = append([]string{"components"}, c.Tokens...)
		out = append(out, c)
	}

	pathsValue, _ := field(root, "paths")
	paths, _ := pathsValue.(map[string]any)
	for _, path := range slices.Sorted(maps.Keys(paths)) {
		item := paths[path]
		base := []string{"paths", path}
		out = append(out, parameterSchemas(item, base)...)
		for _, method := range operationMethods {
			op, ok := field(item, method)
			if !ok {
				continue
			}
			opTokens := append(slices.Clone(base), method)
			out = append(out, parameterSchemas(op, opTokens)...)
			if body, ok := field(op, "requestBody"); ok {
				out = append(out, contentSchemas(body, append(slices.Clone(opTokens), "requestBody"))...)
			}
			responsesValue, _ := field(op, "responses")
			responses, _ := responsesValue.(map[string]any)
			for _, status := range slices.Sorted(maps.Keys(responses)) {
				tokens := append(slices.Clone(opTokens), "responses", status)
				out = append(out, contentSchemas(responses[status], tokens)...)
			}
		}
	}
	return out
}

func parameterSchemas(owner any, base []string) []Child {
	v, ok := field(owner, "parameters")
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	var out []Child
	for i, param := range list {
		c, ok := schemaSingle(param, "schema")
		if !ok {
			continue
		}
		index := strconv.Itoa(i)
		c.Key = joinKey(base, "parameters", index)
		c.Tokens = append(slices.Clone(base), "parameters", index, "schema")
		out = append(out, c)
	}
	return out
}

func contentSchemas(owner any, base []string) []Child {
	v, ok := field(owner, "content")
	if !ok {
		return nil
	}
	content, _ := v.(map[string]any)
	var out []Child
	for _, mediaType := range slices.Sorted(maps.Keys(content)) {
		c, ok := schemaSingle(content[mediaType], "schema")
		if !ok {
			continue
		}
		c.Key = joinKey(base, "content", mediaType)
		c.Tokens = append(slices.Clone(base), "content", mediaType, "schema")
		out = append(out, c)
	}
	return out
}

func joinKey(base []string, rest ...string) string {
	key := ""
	for _, part := range append(slices.Clone(base), rest...) {
		if key != "" {
			key += "."
		}
		key += part
	}
	return key
}
