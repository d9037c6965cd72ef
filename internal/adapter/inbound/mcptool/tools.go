package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/usecase"
)

const (
	ToolCanonicalize = "canonicalize_schema"
	ToolListGraphs   = "list_graphs"
	ToolGetGraph     = "get_graph"
)

// ServerAdapter is the part of the mcp-go server the tools are registered on.
type ServerAdapter interface {
	AddTool(tool mcp.Tool, handlerFunc mcpGoServer.ToolHandlerFunc)
}

type Canonicalizer interface {
	Execute(ctx context.Context, source usecase.SourceConfig) (*usecase.CanonicalGraph, error)
}

type GraphLister interface {
	Execute(ctx context.Context) ([]usecase.CanonicalGraph, error)
	Get(ctx context.Context, source string) (*usecase.CanonicalGraph, error)
}

// Tools exposes canonicalization over MCP.
type Tools struct {
	canonicalize Canonicalizer
	graphs       GraphLister
	logger       *slog.Logger
}

func NewTools(canonicalize Canonicalizer, graphs GraphLister, logger *slog.Logger) *Tools {
	return &Tools{
		canonicalize: canonicalize,
		graphs:       graphs,
		logger:       logger.With("component", "mcp_tools"),
	}
}

// Register adds all tools to the server.
func (t *Tools) Register(srv ServerAdapter) {
	srv.AddTool(mcp.NewTool(ToolCanonicalize,
		mcp.WithDescription("Load a JSON Schema or OpenAPI 3.1 document with everything it references and return its canonical node graph."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("URL of the root document: https://, file://, github://owner/repo/path@ref or a local path"),
		),
		mcp.WithString("dialect",
			mcp.Description("Dialect used when the document has no $schema keyword"),
			mcp.Enum("draft-04", "draft-2020-12", "oas-v3-1"),
		),
		mcp.WithString("format",
			mcp.Description("Output encoding of the graph"),
			mcp.Enum("json", "yaml"),
		),
	), t.handleCanonicalize)

	srv.AddTool(mcp.NewTool(ToolListGraphs,
		mcp.WithDescription("List the sources canonicalized so far."),
	), t.handleListGraphs)

	srv.AddTool(mcp.NewTool(ToolGetGraph,
		mcp.WithDescription("Return the stored canonical graph of a source."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source URL as listed by "+ToolListGraphs)),
		mcp.WithString("format", mcp.Enum("json", "yaml")),
	), t.handleGetGraph)

	t.logger.Info("Registered MCP tools", slog.Int("count", 3))
}

func (t *Tools) handleCanonicalize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var d dialect.Dialect
	if name := request.GetString("dialect", ""); name != "" {
		if d, err = dialect.Parse(name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	format := request.GetString("format", "json")

	log := t.logger.With(slog.String("tool", ToolCanonicalize), slog.String("source", source))
	log.Info("Handling tool call")

	graph, err := t.canonicalize.Execute(ctx, usecase.SourceConfig{URL: source, Dialect: d})
	if err != nil {
		log.Error("Canonicalization failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to canonicalize %s: %v", source, err)), nil
	}
	return t.encode(graph.Graph, format)
}

func (t *Tools) handleListGraphs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphs, err := t.graphs.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	summaries := make([]usecase.GraphSummary, 0, len(graphs))
	for _, g := range graphs {
		summaries = append(summaries, g.Summary())
	}
	return t.encode(summaries, "json")
}

func (t *Tools) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	graph, err := t.graphs.Get(ctx, source)
	if errors.Is(err, usecase.ErrGraphNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no graph for %s, call %s first", source, ToolCanonicalize)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return t.encode(graph.Graph, request.GetString("format", "json"))
}

func (t *Tools) encode(v any, format string) (*mcp.CallToolResult, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case "json":
		out, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(v)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode result as %s: %w", format, err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
