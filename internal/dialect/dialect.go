package dialect

import (
	"fmt"
	"strings"
)

// Dialect selects the keyword vocabulary used to read raw schema nodes.
type Dialect uint8

const (
	Unknown Dialect = iota
	Draft04
	Draft202012
	OAS31
)

const (
	Draft04URI     = "http://json-schema.org/draft-04/schema"
	Draft202012URI = "https://json-schema.org/draft/2020-12/schema"
	OAS31URI       = "https://spec.openapis.org/oas/3.1/dialect/base"
)

var schemaURIs = map[string]Dialect{
	Draft04URI:     Draft04,
	Draft202012URI: Draft202012,
	OAS31URI:       OAS31,
}

func (d Dialect) String() string {
	switch d {
	case Draft04:
		return "draft-04"
	case Draft202012:
		return "draft-2020-12"
	case OAS31:
		return "oas-v3-1"
	default:
		return "unknown"
	}
}

// SchemaURI is the $schema value that identifies the dialect.
func (d Dialect) SchemaURI() string {
	switch d {
	case Draft04:
		return Draft04URI
	case Draft202012:
		return Draft202012URI
	case OAS31:
		return OAS31URI
	default:
		return ""
	}
}

// MetaSchemaURL returns the meta-schema a document root of this dialect can
// be validated against. OpenAPI containers have none.
func (d Dialect) MetaSchemaURL() string {
	switch d {
	case Draft04:
		return Draft04URI
	case Draft202012:
		return Draft202012URI
	default:
		return ""
	}
}

// Parse maps a dialect name or $schema URI to a Dialect.
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft-04", "draft4", "draft-4":
		return Draft04, nil
	case "draft-2020-12", "2020-12":
		return Draft202012, nil
	case "oas-v3-1", "oas31", "openapi-3.1":
		return OAS31, nil
	}
	if d, ok := schemaURIs[strings.TrimSuffix(s, "#")]; ok {
		return d, nil
	}
	return Unknown, fmt.Errorf("unknown dialect %q", s)
}

// Detect picks the dialect of a raw document from its $schema keyword or,
// for OpenAPI containers, from the openapi version. fallback is returned
// when neither is conclusive.
func Detect(raw any, fallback Dialect) Dialect {
	m, ok := raw.(map[string]any)
	if !ok {
		return fallback
	}
	if s, ok := m["$schema"].(string); ok {
		if d, ok := schemaURIs[strings.TrimSuffix(s, "#")]; ok {
			return d
		}
	}
	if v, ok := m["openapi"].(string); ok && strings.HasPrefix(v, "3.1") {
		return OAS31
	}
	return fallback
}
