package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
)

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) FetchDocument(ctx context.Context, url string) (any, error) {
	args := m.Called(ctx, url)
	return args.Get(0), args.Error(1)
}

func TestRegistryLoadFollowsReferences(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	loader.On("FetchDocument", ctx, "https://example.com/order.json").Return(decode(t, `{
		"type": "object",
		"properties": {
			"customer": {"$ref": "customer.json"},
			"items": {"type": "array", "items": {"$ref": "item.json#/$defs/line"}}
		}
	}`), nil).Once()
	loader.On("FetchDocument", ctx, "https://example.com/customer.json").Return(decode(t, `{
		"type": "object",
		"properties": {"last": {"$ref": "order.json"}}
	}`), nil).Once()
	loader.On("FetchDocument", ctx, "https://example.com/item.json").Return(decode(t, `{
		"$defs": {"line": {"type": "object", "properties": {"sku": {"type": "string"}}}}
	}`), nil).Once()

	r := NewRegistry(loader, dialect.Draft202012)
	root, err := r.Load(ctx, "https://example.com/order.json")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/order.json", root.URL())

	var urls []string
	for _, doc := range r.Documents() {
		urls = append(urls, doc.URL())
	}
	assert.Equal(t, []string{
		"https://example.com/order.json",
		"https://example.com/customer.json",
		"https://example.com/item.json",
	}, urls)

	customer := r.GetDocument("https://example.com/customer.json")
	require.NotNil(t, customer)
	assert.Equal(t, "https://example.com/order.json", customer.AntecedentURL())

	g, err := r.Graph()
	require.NoError(t, err)
	node, ok := g.Lookup("https://example.com/order.json#/properties/items/items")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/item.json#/$defs/line", *node.Applicators.Reference)

	again, err := r.Load(ctx, "https://example.com/order.json")
	require.NoError(t, err)
	assert.Same(t, root, again)

	loader.AssertExpectations(t)
}

func TestRegistryReferenceByRetrievalURL(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	loader.On("FetchDocument", ctx, "https://example.com/a.json").Return(decode(t, `{
		"properties": {"b": {"$ref": "b.json#/$defs/y"}}
	}`), nil).Once()
	loader.On("FetchDocument", ctx, "https://example.com/b.json").Return(decode(t, `{
		"$id": "https://example.com/schemas/b",
		"$defs": {"y": {"type": "string"}}
	}`), nil).Once()

	r := NewRegistry(loader, dialect.Draft202012)
	_, err := r.Load(ctx, "https://example.com/a.json")
	require.NoError(t, err)
	require.NotNil(t, r.GetDocument("https://example.com/schemas/b"))

	doc, loc, err := r.GetDocumentForNode(domain.SchemaLocation{Document: "https://example.com/b.json", Pointer: "/$defs/y"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/schemas/b", doc.URL())
	assert.Equal(t, "https://example.com/schemas/b#/$defs/y", loc.String())

	g, err := r.Graph()
	require.NoError(t, err)
	node, ok := g.Lookup("https://example.com/a.json#/properties/b")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/schemas/b#/$defs/y", *node.Applicators.Reference)

	loader.AssertExpectations(t)
}

func TestRegistryLoaderFailure(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	cause := errors.New("404 not found")
	loader.On("FetchDocument", ctx, "https://example.com/a.json").Return(decode(t, `{"$ref": "b.json"}`), nil)
	loader.On("FetchDocument", ctx, "https://example.com/b.json").Return(nil, cause)

	r := NewRegistry(loader, dialect.Draft202012)
	_, err := r.Load(ctx, "https://example.com/a.json")
	require.ErrorIs(t, err, domain.ErrLoaderFailure)
	assert.ErrorIs(t, err, cause)

	var failure *domain.LoaderFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "https://example.com/b.json", failure.URL)
}

func TestRegistryWithoutLoader(t *testing.T) {
	r := NewRegistry(nil, dialect.Draft202012)
	_, err := r.Load(context.Background(), "file:///missing.json")
	assert.ErrorIs(t, err, domain.ErrLoaderFailure)
}

func TestRegistryKeepsFirstRegistration(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, dialect.Draft202012)

	first, err := r.RegisterAndExpand(ctx, "urn:x", "urn:x", "", decode(t, `{"type": "string"}`), dialect.Draft202012)
	require.NoError(t, err)
	second, err := r.RegisterAndExpand(ctx, "urn:x", "urn:x", "", decode(t, `{"type": "number"}`), dialect.Draft202012)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, r.Documents(), 1)
}

func TestGetDocumentForNode(t *testing.T) {
	r, _ := register(t, "https://example.com/root", `{
		"$defs": {
			"a": {"$anchor": "a"},
			"inner": {"$id": "https://example.com/inner", "properties": {"p": {}}}
		}
	}`, dialect.Draft202012)

	doc, loc, err := r.GetDocumentForNode(domain.SchemaLocation{Document: "https://example.com/root", Anchor: "a"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/root", doc.URL())
	assert.Equal(t, "/$defs/a", loc.Pointer)

	doc, loc, err = r.GetDocumentForNode(domain.NewLocation("https://example.com/root").Child("$defs", "inner", "properties", "p"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/inner", doc.URL())
	assert.Equal(t, "/properties/p", loc.Pointer)

	_, _, err = r.GetDocumentForNode(domain.NewLocation("https://example.com/unknown"))
	assert.ErrorIs(t, err, domain.ErrUnknownNode)
}
