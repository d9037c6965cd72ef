package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// SchemaLocation addresses a single schema fragment. Document is the
// canonical URL of the owning document without a fragment. Exactly one of
// Pointer and Anchor is meaningful: when Anchor is set the location is in
// anchor form, otherwise Pointer holds a JSON pointer ("" is the root).
type SchemaLocation struct {
	Document string
	Pointer  string
	Anchor   string
}

// NewLocation returns the root location of a document.
func NewLocation(document string) SchemaLocation {
	return SchemaLocation{Document: StripFragment(document)}
}

// IsAnchor reports whether the location is expressed as a named anchor.
func (l SchemaLocation) IsAnchor() bool {
	return l.Anchor != ""
}

func (l SchemaLocation) String() string {
	if l.Anchor != "" {
		return l.Document + "#" + l.Anchor
	}
	return l.Document + "#" + l.Pointer
}

// Child appends reference tokens to a pointer-form location. The tokens are
// escaped with the usual ~0 and ~1 rules.
func (l SchemaLocation) Child(tokens ...string) SchemaLocation {
	var b strings.Builder
	b.WriteString(l.Pointer)
	for _, token := range tokens {
		b.WriteByte('/')
		b.WriteString(EscapeToken(token))
	}
	return SchemaLocation{Document: l.Document, Pointer: b.String()}
}

// Tokens returns the unescaped reference tokens of the pointer.
func (l SchemaLocation) Tokens() []string {
	return PointerTokens(l.Pointer)
}

// HasPrefix reports whether l lies at or below prefix in the same document.
func (l SchemaLocation) HasPrefix(prefix SchemaLocation) bool {
	if l.Document != prefix.Document || l.IsAnchor() || prefix.IsAnchor() {
		return false
	}
	return l.Pointer == prefix.Pointer || strings.HasPrefix(l.Pointer, prefix.Pointer+"/")
}

// ParseLocation splits a URL with an optional fragment into a location.
// Fragments that are empty or start with "/" are pointers, anything else is
// an anchor name.
func ParseLocation(raw string) (SchemaLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return SchemaLocation{}, fmt.Errorf("invalid schema location %q: %w", raw, err)
	}
	fragment := u.Fragment
	u.Fragment = ""
	u.RawFragment = ""
	loc := SchemaLocation{Document: u.String()}
	if fragment == "" || strings.HasPrefix(fragment, "/") {
		loc.Pointer = fragment
	} else {
		loc.Anchor = fragment
	}
	return loc, nil
}

// ResolveLocation resolves a possibly relative reference against a base
// document URL and parses the result.
func ResolveLocation(base, ref string) (SchemaLocation, error) {
	b, err := url.Parse(base)
	if err != nil {
		return SchemaLocation{}, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return SchemaLocation{}, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return ParseLocation(b.ResolveReference(r).String())
}

// StripFragment drops the fragment part of a URL, if any.
func StripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// EscapeToken escapes a single JSON pointer reference token.
func EscapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// UnescapeToken reverses EscapeToken.
func UnescapeToken(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// PointerTokens splits a JSON pointer into unescaped tokens.
func PointerTokens(pointer string) []string {
	if pointer == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, part := range parts {
		parts[i] = UnescapeToken(part)
	}
	return parts
}

// JoinPointer builds a pointer from a base pointer and raw tokens.
func JoinPointer(base string, tokens ...string) string {
	return SchemaLocation{Pointer: base}.Child(tokens...).Pointer
}
