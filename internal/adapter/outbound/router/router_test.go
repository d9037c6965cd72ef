package router_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/router"
	"github.com/i2y/schemair/internal/dialect"
)

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) FetchDocument(ctx context.Context, url string) (any, error) {
	args := m.Called(ctx, url)
	return args.Get(0), args.Error(1)
}

type MockGate struct {
	mock.Mock
}

func (m *MockGate) Validate(raw any, d dialect.Dialect) error {
	args := m.Called(raw, d)
	return args.Error(0)
}

func TestRouter_FetchDocument(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	doc := map[string]any{"type": "string"}

	tests := []struct {
		name        string
		url         string
		mockSetup   func(gh, def *MockLoader)
		expectError bool
	}{
		{
			name: "github scheme",
			url:  "github://o/r/a.json",
			mockSetup: func(gh, def *MockLoader) {
				gh.On("FetchDocument", ctx, "github://o/r/a.json").Return(doc, nil).Once()
			},
		},
		{
			name: "https scheme",
			url:  "https://example.com/a.json",
			mockSetup: func(gh, def *MockLoader) {
				def.On("FetchDocument", ctx, "https://example.com/a.json").Return(doc, nil).Once()
			},
		},
		{
			name: "file scheme",
			url:  "file:///a.json",
			mockSetup: func(gh, def *MockLoader) {
				def.On("FetchDocument", ctx, "file:///a.json").Return(doc, nil).Once()
			},
		},
		{
			name:        "urn is not retrievable",
			url:         "urn:example:a",
			mockSetup:   func(gh, def *MockLoader) {},
			expectError: true,
		},
		{
			name: "loader error passes through",
			url:  "https://example.com/missing.json",
			mockSetup: func(gh, def *MockLoader) {
				def.On("FetchDocument", ctx, "https://example.com/missing.json").Return(nil, errors.New("status 404")).Once()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh, def := new(MockLoader), new(MockLoader)
			tt.mockSetup(gh, def)

			r := router.NewRouter(gh, def, nil, dialect.Draft202012, logger)
			raw, err := r.FetchDocument(ctx, tt.url)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, doc, raw)
			}
			gh.AssertExpectations(t)
			def.AssertExpectations(t)
		})
	}
}

func TestRouter_NoGitHubLoader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := router.NewRouter(nil, new(MockLoader), nil, dialect.Draft202012, logger)

	_, err := r.FetchDocument(context.Background(), "github://o/r/a.json")
	assert.ErrorContains(t, err, "no loader for github URL")
}

func TestRouter_Gate(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	draft04 := map[string]any{"$schema": "http://json-schema.org/draft-04/schema#", "type": "string"}
	plain := map[string]any{"type": 42}
	gateErr := errors.New("does not conform")

	def := new(MockLoader)
	def.On("FetchDocument", ctx, "file:///ok.json").Return(draft04, nil)
	def.On("FetchDocument", ctx, "file:///bad.json").Return(plain, nil)

	gate := new(MockGate)
	gate.On("Validate", draft04, dialect.Draft04).Return(nil).Once()
	gate.On("Validate", plain, dialect.Draft202012).Return(gateErr).Once()

	r := router.NewRouter(nil, def, gate, dialect.Draft202012, logger)

	_, err := r.FetchDocument(ctx, "file:///ok.json")
	assert.NoError(t, err)

	_, err = r.FetchDocument(ctx, "file:///bad.json")
	assert.ErrorIs(t, err, gateErr)

	gate.AssertExpectations(t)
}
