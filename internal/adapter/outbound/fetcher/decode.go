package fetcher

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var ErrEmptyDocument = errors.New("empty document")

// Decode parses a JSON or YAML document into plain Go values: objects
// become map[string]any, arrays []any. Non-string mapping keys are
// formatted as strings.
func Decode(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if raw == nil {
		return nil, ErrEmptyDocument
	}
	return normalize(raw), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			out[key] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
