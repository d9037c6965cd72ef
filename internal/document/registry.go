package document

import (
	"context"
	"fmt"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
)

// Registry owns every document of one load session keyed by canonical URL.
// It is not safe for concurrent use; create one per load.
type Registry struct {
	loader         Loader
	defaultDialect dialect.Dialect
	documents      map[string]*Document
	order          []*Document
	retrieved      map[string]string
}

func NewRegistry(loader Loader, defaultDialect dialect.Dialect) *Registry {
	return &Registry{
		loader:         loader,
		defaultDialect: defaultDialect,
		documents:      make(map[string]*Document),
		retrieved:      make(map[string]string),
	}
}

// Load fetches url with the loader and registers it together with every
// document it embeds or references.
func (r *Registry) Load(ctx context.Context, url string) (*Document, error) {
	loc, err := domain.ParseLocation(url)
	if err != nil {
		return nil, err
	}
	if canonical, ok := r.retrieved[loc.Document]; ok {
		return r.documents[canonical], nil
	}
	raw, err := r.fetch(ctx, loc.Document)
	if err != nil {
		return nil, err
	}
	return r.RegisterAndExpand(ctx, loc.Document, loc.Document, "", raw, r.defaultDialect)
}

func (r *Registry) fetch(ctx context.Context, url string) (any, error) {
	if r.loader == nil {
		return nil, &domain.LoaderFailureError{URL: url, Err: fmt.Errorf("no loader configured")}
	}
	raw, err := r.loader.FetchDocument(ctx, url)
	if err != nil {
		return nil, &domain.LoaderFailureError{URL: url, Err: err}
	}
	return raw, nil
}

// RegisterAndExpand registers raw under its canonical URL, then its
// embedded documents, then every referenced document not yet known. A
// document whose canonical URL is already registered is not replaced.
func (r *Registry) RegisterAndExpand(ctx context.Context, retrievalURL, givenURL, antecedentURL string, raw any, d dialect.Dialect) (*Document, error) {
	doc, err := NewDocument(r, retrievalURL, givenURL, antecedentURL, raw, d)
	if err != nil {
		return nil, err
	}
	if existing, ok := r.documents[doc.url]; ok {
		return existing, nil
	}
	r.documents[doc.url] = doc
	r.order = append(r.order, doc)
	if _, ok := r.retrieved[retrievalURL]; !ok {
		r.retrieved[retrievalURL] = doc.url
	}

	for _, emb := range doc.EmbeddedDocuments() {
		if _, ok := r.documents[emb.URL]; ok {
			continue
		}
		if _, err := r.RegisterAndExpand(ctx, retrievalURL, emb.GivenURL, doc.url, emb.Raw, doc.Dialect()); err != nil {
			return nil, err
		}
	}

	for _, ref := range doc.ReferencedDocuments() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := r.documents[ref.GivenURL]; ok {
			continue
		}
		if _, ok := r.retrieved[ref.RetrievalURL]; ok {
			continue
		}
		refRaw, err := r.fetch(ctx, ref.RetrievalURL)
		if err != nil {
			return nil, err
		}
		if _, err := r.RegisterAndExpand(ctx, ref.RetrievalURL, ref.GivenURL, doc.url, refRaw, doc.Dialect()); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// GetDocument returns the document registered under exactly url.
func (r *Registry) GetDocument(url string) *Document {
	return r.documents[url]
}

// GetDocumentForNode returns the document owning loc and loc rewritten as a
// pointer into that document. loc may name the document by its canonical or
// its retrieval URL. Anchors are resolved and pointers that cross into an
// embedded document are translated to it.
func (r *Registry) GetDocumentForNode(loc domain.SchemaLocation) (*Document, domain.SchemaLocation, error) {
	doc := r.documents[loc.Document]
	if doc == nil {
		doc = r.documents[r.retrieved[loc.Document]]
	}
	if doc == nil {
		return nil, domain.SchemaLocation{}, &domain.UnknownNodeError{Location: loc.String()}
	}
	if loc.IsAnchor() {
		ptr, ok := doc.anchorPointer(loc.Anchor)
		if !ok {
			return nil, domain.SchemaLocation{}, &domain.UnknownNodeError{Location: loc.String()}
		}
		return doc, doc.location(ptr), nil
	}
	return doc.lookupPointer(loc.Pointer)
}

// Documents returns the registered documents in registration order.
func (r *Registry) Documents() []*Document {
	out := make([]*Document, len(r.order))
	copy(out, r.order)
	return out
}

// Graph collects the intermediate entries of all documents into one graph.
func (r *Registry) Graph() (*domain.Graph, error) {
	g := domain.NewGraph()
	for _, doc := range r.order {
		entries, err := doc.IntermediateEntries()
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", doc.url, err)
		}
		for _, entry := range entries {
			if err := g.Add(entry.ID, entry.Node); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
