package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
)

// Loader retrieves and decodes a document by URL.
type Loader interface {
	FetchDocument(ctx context.Context, url string) (any, error)
}

// EmbeddedDocument is a sub-tree that declares its own identity and is
// registered as a separate document.
type EmbeddedDocument struct {
	URL      string
	GivenURL string
	Raw      any
}

// ReferencedDocument is an external document that a $ref points into.
type ReferencedDocument struct {
	RetrievalURL string
	GivenURL     string
}

// Document is one registered schema document: its raw nodes indexed by JSON
// pointer together with its anchor tables.
type Document struct {
	registry      *Registry
	adapter       dialect.Adapter
	retrievalURL  string
	givenURL      string
	antecedentURL string
	url           string
	root          any

	nodes         map[string]any
	order         []string
	embedded      map[string]EmbeddedDocument
	embeddedOrder []string
	references    []ReferencedDocument

	anchors        map[string]string
	dynamicAnchors map[string]string
	anchorAt       map[string]string
	dynamicAt      map[string]string
}

// NewDocument indexes raw. The canonical URL is the declared identity
// resolved against givenURL, or givenURL itself. antecedentURL names the
// document that embeds or references this one and is empty for roots.
func NewDocument(registry *Registry, retrievalURL, givenURL, antecedentURL string, raw any, fallback dialect.Dialect) (*Document, error) {
	base, err := domain.ParseLocation(givenURL)
	if err != nil {
		return nil, err
	}
	d := &Document{
		registry:       registry,
		adapter:        dialect.NewAdapter(dialect.Detect(raw, fallback)),
		retrievalURL:   retrievalURL,
		givenURL:       givenURL,
		antecedentURL:  antecedentURL,
		url:            base.Document,
		root:           raw,
		nodes:          make(map[string]any),
		embedded:       make(map[string]EmbeddedDocument),
		anchors:        make(map[string]string),
		dynamicAnchors: make(map[string]string),
		anchorAt:       make(map[string]string),
		dynamicAt:      make(map[string]string),
	}
	if id, ok := d.adapter.SelectID(raw); ok {
		loc, err := domain.ResolveLocation(givenURL, id)
		if err != nil {
			return nil, fmt.Errorf("document %s declares an invalid identity %q: %w", givenURL, id, err)
		}
		d.url = loc.Document
	}
	if err := d.index(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) URL() string {
	return d.url
}

func (d *Document) RetrievalURL() string {
	return d.retrievalURL
}

func (d *Document) GivenURL() string {
	return d.givenURL
}

// AntecedentURL is empty for documents loaded directly.
func (d *Document) AntecedentURL() string {
	return d.antecedentURL
}

func (d *Document) Dialect() dialect.Dialect {
	return d.adapter.Dialect()
}

func (d *Document) Root() any {
	return d.root
}

// Node returns the raw node at a pointer-form location of this document.
func (d *Document) Node(loc domain.SchemaLocation) (any, bool) {
	if loc.Document != d.url || loc.IsAnchor() {
		return nil, false
	}
	n, ok := d.nodes[loc.Pointer]
	return n, ok
}

// Locations lists every indexed node in breadth-first order, embedded roots
// included.
func (d *Document) Locations() []domain.SchemaLocation {
	out := make([]domain.SchemaLocation, 0, len(d.order))
	for _, ptr := range d.order {
		out = append(out, d.location(ptr))
	}
	return out
}

func (d *Document) EmbeddedDocuments() []EmbeddedDocument {
	out := make([]EmbeddedDocument, 0, len(d.embeddedOrder))
	for _, ptr := range d.embeddedOrder {
		out = append(out, d.embedded[ptr])
	}
	return out
}

func (d *Document) ReferencedDocuments() []ReferencedDocument {
	out := make([]ReferencedDocument, len(d.references))
	copy(out, d.references)
	return out
}

func (d *Document) location(ptr string) domain.SchemaLocation {
	return domain.SchemaLocation{Document: d.url, Pointer: ptr}
}

func (d *Document) index() error {
	d.nodes[""] = d.root
	d.order = []string{""}
	queue := []string{""}
	for len(queue) > 0 {
		ptr := queue[0]
		queue = queue[1:]
		node := d.nodes[ptr]

		if ptr != "" {
			emb, ok, err := d.embeddedAt(ptr, node)
			if err != nil {
				return err
			}
			if ok {
				d.embedded[ptr] = emb
				d.embeddedOrder = append(d.embeddedOrder, ptr)
				continue
			}
		}
		if err := d.collect(ptr, node); err != nil {
			return err
		}
		for _, child := range d.subschemas(ptr, node) {
			childPtr := domain.JoinPointer(ptr, child.Tokens...)
			if _, seen := d.nodes[childPtr]; seen {
				continue
			}
			d.nodes[childPtr] = child.Node
			d.order = append(d.order, childPtr)
			queue = append(queue, childPtr)
		}
	}

	for name, ptr := range d.dynamicAnchors {
		if other, ok := d.anchors[name]; ok && other != ptr {
			return &domain.DuplicateAnchorError{Document: d.url, Anchor: name, Dynamic: true, First: other, Second: ptr}
		}
	}
	return nil
}

func (d *Document) subschemas(ptr string, node any) []dialect.Child {
	if ptr == "" && !d.adapter.RootIsSchema(node) {
		return d.adapter.SelectDocumentSchemas(node)
	}
	return d.adapter.SelectSubschemas(node)
}

func (d *Document) embeddedAt(ptr string, node any) (EmbeddedDocument, bool, error) {
	id, ok := d.adapter.SelectID(node)
	if !ok {
		return EmbeddedDocument{}, false, nil
	}
	loc, err := domain.ResolveLocation(d.url, id)
	if err != nil {
		return EmbeddedDocument{}, false, fmt.Errorf("node %s declares an invalid identity %q: %w", d.location(ptr), id, err)
	}
	if loc.Document == d.url {
		return EmbeddedDocument{}, false, nil
	}
	return EmbeddedDocument{URL: loc.Document, GivenURL: d.location(ptr).String(), Raw: node}, true, nil
}

func (d *Document) collect(ptr string, node any) error {
	if name, ok := d.adapter.SelectAnchor(node); ok {
		if prev, exists := d.anchors[name]; exists {
			return &domain.DuplicateAnchorError{Document: d.url, Anchor: name, First: prev, Second: ptr}
		}
		d.anchors[name] = ptr
		d.anchorAt[ptr] = name
	}
	if name, ok := d.adapter.SelectDynamicAnchor(node); ok {
		if prev, exists := d.dynamicAnchors[name]; exists {
			return &domain.DuplicateAnchorError{Document: d.url, Anchor: name, Dynamic: true, First: prev, Second: ptr}
		}
		d.dynamicAnchors[name] = ptr
		if _, named := d.anchorAt[ptr]; !named {
			d.dynamicAt[ptr] = name
		}
	}
	if ref, ok := d.adapter.SelectRef(node); ok {
		loc, err := domain.ResolveLocation(d.url, ref)
		if err != nil {
			return &domain.UnresolvedReferenceError{From: d.location(ptr).String(), Reference: ref, Err: err}
		}
		if loc.Document != d.url {
			d.addReference(loc.Document)
		}
	}
	return nil
}

func (d *Document) addReference(url string) {
	for _, ref := range d.references {
		if ref.RetrievalURL == url {
			return
		}
	}
	d.references = append(d.references, ReferencedDocument{RetrievalURL: url, GivenURL: url})
}

func (d *Document) anchorPointer(name string) (string, bool) {
	if ptr, ok := d.anchors[name]; ok {
		return ptr, true
	}
	ptr, ok := d.dynamicAnchors[name]
	return ptr, ok
}

// lookupPointer finds the document that owns ptr, descending into embedded
// documents when ptr lies below an embedded root.
func (d *Document) lookupPointer(ptr string) (*Document, domain.SchemaLocation, error) {
	if _, ok := d.nodes[ptr]; ok {
		return d, d.location(ptr), nil
	}
	for _, root := range d.embeddedOrder {
		if !strings.HasPrefix(ptr, root+"/") {
			continue
		}
		child := d.registry.GetDocument(d.embedded[root].URL)
		if child == nil {
			break
		}
		return child.lookupPointer(strings.TrimPrefix(ptr, root))
	}
	return nil, domain.SchemaLocation{}, &domain.UnknownNodeError{Location: d.location(ptr).String()}
}

// canonicalLocation returns the preferred identifier of the node at ptr:
// its anchor, else its dynamic anchor, else its pointer. Embedded roots are
// identified by the root of the embedded document.
func (d *Document) canonicalLocation(ptr string) (domain.SchemaLocation, error) {
	if emb, ok := d.embedded[ptr]; ok {
		child := d.registry.GetDocument(emb.URL)
		if child == nil {
			return domain.SchemaLocation{}, &domain.UnknownNodeError{Location: emb.URL}
		}
		return child.canonicalLocation("")
	}
	if name, ok := d.anchorAt[ptr]; ok {
		return domain.SchemaLocation{Document: d.url, Anchor: name}, nil
	}
	if name, ok := d.dynamicAt[ptr]; ok {
		return domain.SchemaLocation{Document: d.url, Anchor: name}, nil
	}
	return d.location(ptr), nil
}

// ResolveReference resolves a $ref value against this document and returns
// the canonical location of its target.
func (d *Document) ResolveReference(ref string) (domain.SchemaLocation, error) {
	return d.resolveReference("", ref)
}

func (d *Document) resolveReference(from, ref string) (domain.SchemaLocation, error) {
	loc, err := domain.ResolveLocation(d.url, ref)
	if err != nil {
		return domain.SchemaLocation{}, &domain.UnresolvedReferenceError{From: from, Reference: ref, Err: err}
	}
	owner, local, err := d.registry.GetDocumentForNode(loc)
	if err != nil {
		return domain.SchemaLocation{}, &domain.UnresolvedReferenceError{From: from, Reference: ref, Err: err}
	}
	target, err := owner.canonicalLocation(local.Pointer)
	if err != nil {
		return domain.SchemaLocation{}, &domain.UnresolvedReferenceError{From: from, Reference: ref, Err: err}
	}
	return target, nil
}

// ResolveDynamicReference resolves a $dynamicRef by searching the dynamic
// scope outermost-first for a matching dynamic anchor. A reference without
// an anchor fragment resolves like $ref.
func (d *Document) ResolveDynamicReference(ref string) (domain.SchemaLocation, error) {
	return d.resolveDynamicReference("", ref)
}

func (d *Document) resolveDynamicReference(from, ref string) (domain.SchemaLocation, error) {
	loc, err := domain.ResolveLocation(d.url, ref)
	if err != nil {
		return domain.SchemaLocation{}, &domain.UnresolvedReferenceError{From: from, Reference: ref, Dynamic: true, Err: err}
	}
	if !loc.IsAnchor() {
		return d.resolveReference(from, ref)
	}
	for _, doc := range d.scope() {
		if ptr, ok := doc.dynamicAnchors[loc.Anchor]; ok {
			return doc.canonicalLocation(ptr)
		}
	}
	return domain.SchemaLocation{}, &domain.UnresolvedReferenceError{From: from, Reference: ref, Dynamic: true}
}

// scope returns the antecedent chain ending at d, outermost document first.
func (d *Document) scope() []*Document {
	var chain []*Document
	seen := make(map[string]bool)
	for cur := d; cur != nil && !seen[cur.url]; {
		seen[cur.url] = true
		chain = append(chain, cur)
		if cur.antecedentURL == "" {
			break
		}
		cur = d.registry.GetDocument(cur.antecedentURL)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
