package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want SchemaLocation
	}{
		{
			name: "root pointer",
			raw:  "https://example.com/a.json",
			want: SchemaLocation{Document: "https://example.com/a.json"},
		},
		{
			name: "empty fragment",
			raw:  "https://example.com/a.json#",
			want: SchemaLocation{Document: "https://example.com/a.json"},
		},
		{
			name: "pointer fragment",
			raw:  "https://example.com/a.json#/$defs/item",
			want: SchemaLocation{Document: "https://example.com/a.json", Pointer: "/$defs/item"},
		},
		{
			name: "anchor fragment",
			raw:  "https://example.com/a.json#item",
			want: SchemaLocation{Document: "https://example.com/a.json", Anchor: "item"},
		},
		{
			name: "urn document",
			raw:  "urn:example:root#/properties/a",
			want: SchemaLocation{Document: "urn:example:root", Pointer: "/properties/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchemaLocationString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("https://example.com/a#", NewLocation("https://example.com/a").String())
	assert.Equal("https://example.com/a#name", SchemaLocation{Document: "https://example.com/a", Anchor: "name"}.String())
	assert.Equal("https://example.com/a#/properties/a~1b",
		NewLocation("https://example.com/a#ignored").Child("properties", "a/b").String())
}

func TestSchemaLocationChildEscaping(t *testing.T) {
	assert := assert.New(t)

	loc := NewLocation("file:///tmp/s.json").Child("properties", "x~y/z", "items")
	assert.Equal("/properties/x~0y~1z/items", loc.Pointer)
	assert.Equal([]string{"properties", "x~y/z", "items"}, loc.Tokens())
	assert.Equal("/a/b", JoinPointer("/a", "b"))
}

func TestSchemaLocationHasPrefix(t *testing.T) {
	assert := assert.New(t)

	root := NewLocation("https://example.com/a")
	defs := root.Child("$defs", "b")
	assert.True(defs.HasPrefix(root))
	assert.True(defs.Child("properties").HasPrefix(defs))
	assert.False(root.Child("$defs", "bb").HasPrefix(defs))
	assert.False(defs.HasPrefix(NewLocation("https://example.com/other")))
}

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"fragment only", "https://example.com/schemas/a.json", "#/$defs/x", "https://example.com/schemas/a.json#/$defs/x"},
		{"relative file", "https://example.com/schemas/a.json", "b.json#c", "https://example.com/schemas/b.json#c"},
		{"absolute", "https://example.com/a.json", "https://other.org/x", "https://other.org/x#"},
		{"opaque base", "urn:example:root", "#anchor", "urn:example:root#anchor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLocation(tt.base, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
