package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// MockLoader is a mock implementation of the document.Loader interface.
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) FetchDocument(ctx context.Context, url string) (any, error) {
	args := m.Called(ctx, url)
	return args.Get(0), args.Error(1)
}

// MockGraphRepository is a mock implementation of the GraphRepository interface.
type MockGraphRepository struct {
	mock.Mock
}

func (m *MockGraphRepository) Save(ctx context.Context, graph usecase.CanonicalGraph) error {
	args := m.Called(ctx, graph)
	return args.Error(0)
}

func (m *MockGraphRepository) List(ctx context.Context) ([]usecase.CanonicalGraph, error) {
	args := m.Called(ctx)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.([]usecase.CanonicalGraph), args.Error(1)
}

func (m *MockGraphRepository) FindBySource(ctx context.Context, source string) (*usecase.CanonicalGraph, error) {
	args := m.Called(ctx, source)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*usecase.CanonicalGraph), args.Error(1)
}

const (
	rootURL  = "file:///schemas/root.json"
	otherURL = "file:///schemas/other.json"
)

func rootDocument() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"a": map[string]any{"anyOf": []any{
				map[string]any{"type": "string"},
				map[string]any{"type": "number"},
			}},
			"b": map[string]any{"$ref": "other.json"},
		},
	}
}

func TestCanonicalizeUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loadErr := errors.New("connection refused")
	saveErr := errors.New("save failed")

	tests := []struct {
		name          string
		mockSetup     func(*MockLoader, *MockGraphRepository)
		source        usecase.SourceConfig
		wantErr       bool
		expectErrText string
		check         func(*testing.T, *usecase.CanonicalGraph)
	}{
		{
			name: "Success - referenced documents are loaded and normalized",
			mockSetup: func(loader *MockLoader, repo *MockGraphRepository) {
				loader.On("FetchDocument", mock.Anything, rootURL).Return(rootDocument(), nil).Once()
				loader.On("FetchDocument", mock.Anything, otherURL).Return(map[string]any{"type": "boolean"}, nil).Once()
				repo.On("Save", mock.Anything, mock.MatchedBy(func(g usecase.CanonicalGraph) bool {
					return g.Source == rootURL
				})).Return(nil).Once()
			},
			source: usecase.SourceConfig{URL: rootURL},
			check: func(t *testing.T, g *usecase.CanonicalGraph) {
				assert.Equal(t, []string{rootURL, otherURL}, g.Documents)
				assert.Equal(t, dialect.Draft202012, g.Dialect)

				a, ok := g.Graph.Lookup(rootURL + "#/properties/a")
				require.True(t, ok)
				assert.Len(t, a.Applicators.OneOf, 2)
				assert.Empty(t, a.Applicators.AnyOf)
				assert.False(t, a.Exact)

				b, ok := g.Graph.Lookup(rootURL + "#/properties/b")
				require.True(t, ok)
				assert.Nil(t, b.Applicators.Reference)
				assert.Equal(t, []domain.TypeTag{domain.TypeBoolean}, b.Types)
			},
		},
		{
			name: "Failure - loader error",
			mockSetup: func(loader *MockLoader, repo *MockGraphRepository) {
				loader.On("FetchDocument", mock.Anything, rootURL).Return(nil, loadErr).Once()
			},
			source:        usecase.SourceConfig{URL: rootURL},
			wantErr:       true,
			expectErrText: "failed to load schema documents from file:///schemas/root.json: failed to load file:///schemas/root.json: connection refused",
		},
		{
			name: "Failure - save error",
			mockSetup: func(loader *MockLoader, repo *MockGraphRepository) {
				loader.On("FetchDocument", mock.Anything, otherURL).Return(map[string]any{"type": "boolean"}, nil).Once()
				repo.On("Save", mock.Anything, mock.Anything).Return(saveErr).Once()
			},
			source:        usecase.SourceConfig{URL: otherURL},
			wantErr:       true,
			expectErrText: "failed to save canonical graph: save failed",
		},
		{
			name:      "Failure - empty source",
			mockSetup: func(loader *MockLoader, repo *MockGraphRepository) {},
			source:    usecase.SourceConfig{URL: "  "},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := new(MockLoader)
			repo := new(MockGraphRepository)
			tt.mockSetup(loader, repo)

			uc := usecase.NewCanonicalizeUseCase(loader, repo, dialect.Draft202012, usecase.NormalizeOptions{}, logger)
			got, err := uc.Execute(ctx, tt.source)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.expectErrText != "" {
					assert.EqualError(t, err, tt.expectErrText)
				}
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}

			loader.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestCanonicalizeUseCase_LoaderFailureIsTyped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	loader := new(MockLoader)
	loader.On("FetchDocument", mock.Anything, rootURL).Return(nil, errors.New("boom"))

	uc := usecase.NewCanonicalizeUseCase(loader, new(MockGraphRepository), dialect.Draft202012, usecase.NormalizeOptions{}, logger)
	_, err := uc.Execute(context.Background(), usecase.SourceConfig{URL: rootURL})

	var lf *domain.LoaderFailureError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, rootURL, lf.URL)
	assert.ErrorIs(t, err, domain.ErrLoaderFailure)
}

func TestCanonicalizeUseCase_PassesHeaders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	headers := map[string]string{"Authorization": "Bearer token"}

	loader := new(MockLoader)
	loader.On("FetchDocument", mock.MatchedBy(func(ctx context.Context) bool {
		return usecase.HeadersFromContext(ctx)["Authorization"] == "Bearer token"
	}), otherURL).Return(map[string]any{"type": "string"}, nil).Once()
	repo := new(MockGraphRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	uc := usecase.NewCanonicalizeUseCase(loader, repo, dialect.Draft202012, usecase.NormalizeOptions{}, logger)
	_, err := uc.Execute(context.Background(), usecase.SourceConfig{URL: otherURL, Headers: headers})
	require.NoError(t, err)
	loader.AssertExpectations(t)
}

func TestCanonicalizeUseCase_NoFixpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	loader := new(MockLoader)
	loader.On("FetchDocument", mock.Anything, rootURL).Return(rootDocument(), nil)
	loader.On("FetchDocument", mock.Anything, otherURL).Return(map[string]any{"type": "boolean"}, nil)

	uc := usecase.NewCanonicalizeUseCase(loader, new(MockGraphRepository), dialect.Draft202012,
		usecase.NormalizeOptions{MaxPasses: 1}, logger)
	_, err := uc.Execute(context.Background(), usecase.SourceConfig{URL: rootURL})
	assert.ErrorIs(t, err, domain.ErrNoFixpoint)
}

func TestCanonicalizeUseCase_ExecuteAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	loader := new(MockLoader)
	loader.On("FetchDocument", mock.Anything, otherURL).Return(map[string]any{"type": "boolean"}, nil)
	loader.On("FetchDocument", mock.Anything, "file:///schemas/missing.json").Return(nil, errors.New("not found"))
	repo := new(MockGraphRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewCanonicalizeUseCase(loader, repo, dialect.Draft202012, usecase.NormalizeOptions{}, logger)
	graphs, failures := uc.ExecuteAll(context.Background(), []usecase.SourceConfig{
		{URL: "file:///schemas/missing.json"},
		{URL: otherURL},
	})

	require.Len(t, graphs, 1)
	assert.Equal(t, otherURL, graphs[0].Source)
	assert.Contains(t, failures, "file:///schemas/missing.json")
}

func TestNormalizeSourceURL(t *testing.T) {
	abs, err := filepath.Abs("schemas/a.json")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a.json", "https://example.com/a.json"},
		{"github://o/r/a.json@main", "github://o/r/a.json@main"},
		{"urn:example:a", "urn:example:a"},
		{"/tmp/a.json", "file:///tmp/a.json"},
		{"schemas/a.json", "file://" + filepath.ToSlash(abs)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.NormalizeSourceURL(tt.in))
		})
	}
}
