package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateAnchor     = errors.New("duplicate anchor")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrUnknownNode         = errors.New("unknown node")
	ErrLoaderFailure       = errors.New("loader failure")
	ErrNoFixpoint          = errors.New("normalization did not reach a fixpoint")
)

// DuplicateAnchorError is returned when a document declares the same anchor
// name twice.
type DuplicateAnchorError struct {
	Document string
	Anchor   string
	Dynamic  bool
	First    string
	Second   string
}

func (e *DuplicateAnchorError) Error() string {
	kind := "anchor"
	if e.Dynamic {
		kind = "dynamic anchor"
	}
	return fmt.Sprintf("%s %q declared twice in %s (at %q and %q)", kind, e.Anchor, e.Document, e.First, e.Second)
}

func (e *DuplicateAnchorError) Is(target error) bool {
	return target == ErrDuplicateAnchor
}

// UnresolvedReferenceError is returned when a reference or dynamic reference
// has no target in the registry.
type UnresolvedReferenceError struct {
	From      string
	Reference string
	Dynamic   bool
	Err       error
}

func (e *UnresolvedReferenceError) Error() string {
	kind := "reference"
	if e.Dynamic {
		kind = "dynamic reference"
	}
	msg := fmt.Sprintf("unresolved %s %q", kind, e.Reference)
	if e.From != "" {
		msg += " from " + e.From
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

func (e *UnresolvedReferenceError) Unwrap() error {
	return e.Err
}

// UnknownNodeError is returned when a node id or arena key is not present.
type UnknownNodeError struct {
	Location string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %s", e.Location)
}

func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}

// LoaderFailureError wraps a failure of the document loader.
type LoaderFailureError struct {
	URL string
	Err error
}

func (e *LoaderFailureError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}

func (e *LoaderFailureError) Is(target error) bool {
	return target == ErrLoaderFailure
}

func (e *LoaderFailureError) Unwrap() error {
	return e.Err
}
