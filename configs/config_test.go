package configs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/internal/dialect"
)

func staticOpener(files map[string]string) configs.Opener {
	return func(_ context.Context, path string) (io.ReadCloser, error) {
		content, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func TestLoad_Defaults(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("SCHEMAIR_CONFIG_FILE", "")

	cfg, err := configs.LoadWith(context.Background(), staticOpener(nil))
	require.NoError(t, err)

	assert.Equal(":8080", cfg.ListenAddr)
	assert.Equal(":8081", cfg.AdminAddr)
	assert.Equal(30*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(dialect.Draft202012, cfg.ParsedDefaultDialect())
	assert.Equal("json", cfg.OutputFormat)
	assert.Equal(configs.DefaultNormalize, cfg.Normalize)
	assert.Empty(cfg.SchemaSources)
	assert.Equal(slog.LevelInfo, cfg.ParsedLogLevel())
}

func TestLoad_File(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("SCHEMAIR_CONFIG_FILE", "schemair.yaml")
	t.Setenv("SCHEMAIR_LOG_LEVEL", "debug")

	file := `
schema_sources:
  - ./schemas/root.json
  - url: https://example.com/openapi.yaml
    dialect: oas-v3-1
    headers:
      Authorization: Bearer token
normalize:
  max_passes: 50
`
	cfg, err := configs.LoadWith(context.Background(), staticOpener(map[string]string{"schemair.yaml": file}))
	require.NoError(t, err)

	assert.Equal([]configs.SchemaSource{
		{URL: "./schemas/root.json"},
		{URL: "https://example.com/openapi.yaml", Dialect: "oas-v3-1", Headers: map[string]string{"Authorization": "Bearer token"}},
	}, cfg.SchemaSources)
	assert.Equal(50, cfg.Normalize.MaxPasses)
	assert.Equal(configs.DefaultNormalize.MaxNodes, cfg.Normalize.MaxNodes)
	assert.Equal(configs.DefaultNormalize.MaxAnyOfArity, cfg.Normalize.MaxAnyOfArity)
	assert.Equal(slog.LevelDebug, cfg.ParsedLogLevel())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SCHEMAIR_CONFIG_FILE", "schemair.yaml")
	t.Setenv("SCHEMAIR_NORMALIZE_MAXNODES", "500")

	file := "normalize:\n  max_nodes: 10\n"
	cfg, err := configs.LoadWith(context.Background(), staticOpener(map[string]string{"schemair.yaml": file}))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Normalize.MaxNodes)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		file          string
		expectErrText string
	}{
		{
			name:          "missing file",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "missing.yaml"},
			expectErrText: "failed to read config file 'missing.yaml'",
		},
		{
			name:          "malformed yaml",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "schemair.yaml"},
			file:          "schema_sources: [",
			expectErrText: "failed to unmarshal config file",
		},
		{
			name:          "unknown source key",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "schemair.yaml"},
			file:          "schema_sources:\n  - url: a.json\n    server: localhost:50051\n",
			expectErrText: "invalid schema source #0",
		},
		{
			name:          "source without url",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "schemair.yaml"},
			file:          "schema_sources:\n  - dialect: draft-04\n",
			expectErrText: "invalid configuration",
		},
		{
			name:          "bad source dialect",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "schemair.yaml"},
			file:          "schema_sources:\n  - url: a.json\n    dialect: draft-07\n",
			expectErrText: "invalid configuration",
		},
		{
			name:          "bad output format",
			env:           map[string]string{"SCHEMAIR_CONFIG_FILE": "", "SCHEMAIR_OUTPUT_FORMAT": "xml"},
			expectErrText: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := configs.LoadWith(context.Background(), staticOpener(map[string]string{"schemair.yaml": tt.file}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectErrText)
		})
	}
}

func TestConfig_ParsedLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := configs.Config{LogLevel: in}
		assert.Equal(t, want, cfg.ParsedLogLevel(), in)
	}
}
