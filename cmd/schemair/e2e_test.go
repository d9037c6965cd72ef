package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/fetcher"
	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/adapter/outbound/metaschema"
	"github.com/i2y/schemair/internal/adapter/outbound/router"
	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

func writeSchema(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func callTool(t *testing.T, handle func(context.Context, json.RawMessage) any, id int, name string, args map[string]any) string {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)
	out, err := json.Marshal(handle(context.Background(), msg))
	require.NoError(t, err)
	return string(out)
}

// TestMCPServer_EndToEnd drives the tools over JSON-RPC against schema files
// on disk.
func TestMCPServer_EndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dir := t.TempDir()
	root := writeSchema(t, dir, "root.json", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {"a": {"$ref": "other.json"}},
  "required": ["a"]
}`)
	writeSchema(t, dir, "other.json", `{"type": ["string", "number"]}`)
	broken := writeSchema(t, dir, "broken.json", `{"$ref": "missing.json"}`)

	loader := router.NewRouter(nil, fetcher.NewFetcher(http.DefaultClient, logger), metaschema.NewValidator(logger), dialect.Draft202012, logger)
	repo := memrepo.NewInMemoryGraphRepository(logger)
	uc := usecase.NewCanonicalizeUseCase(loader, repo, dialect.Draft202012, usecase.NormalizeOptions{MaxPasses: 100}, logger)
	list := usecase.NewListGraphsUseCase(repo, logger)

	srv := newMCPServer(context.Background(), uc, list, []usecase.SourceConfig{{URL: root}}, logger)
	handle := func(ctx context.Context, msg json.RawMessage) any { return srv.HandleMessage(ctx, msg) }

	rootURL := usecase.NormalizeSourceURL(root)
	otherURL := usecase.NormalizeSourceURL(filepath.Join(dir, "other.json"))

	t.Run("initial sources are canonicalized at startup", func(t *testing.T) {
		out := callTool(t, handle, 1, "list_graphs", nil)
		assert.Contains(t, out, rootURL)
		assert.Contains(t, out, otherURL)
		assert.NotContains(t, out, `"isError":true`)
	})

	t.Run("canonicalize returns the intermediate document", func(t *testing.T) {
		out := callTool(t, handle, 2, "canonicalize_schema", map[string]any{"source": root})
		assert.Contains(t, out, domain.IntermediateSchemaID)
		assert.NotContains(t, out, `"isError":true`)
	})

	t.Run("get_graph in yaml", func(t *testing.T) {
		out := callTool(t, handle, 3, "get_graph", map[string]any{"source": rootURL, "format": "yaml"})
		assert.Contains(t, out, fmt.Sprintf("$schema: %s", domain.IntermediateSchemaID))
	})

	t.Run("missing referenced document is a tool error", func(t *testing.T) {
		out := callTool(t, handle, 4, "canonicalize_schema", map[string]any{"source": broken})
		assert.Contains(t, out, `"isError":true`)
	})
}
