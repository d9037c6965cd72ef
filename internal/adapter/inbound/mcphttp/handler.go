package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// Canonicalizer runs the canonicalization of one source.
type Canonicalizer interface {
	Execute(ctx context.Context, source usecase.SourceConfig) (*usecase.CanonicalGraph, error)
}

// GraphLister reads stored graphs.
type GraphLister interface {
	Execute(ctx context.Context) ([]usecase.CanonicalGraph, error)
	Get(ctx context.Context, source string) (*usecase.CanonicalGraph, error)
}

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	canonicalize Canonicalizer
	graphs       GraphLister
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(canonicalize Canonicalizer, graphs GraphLister, logger *slog.Logger) *Handlers {
	return &Handlers{
		canonicalize: canonicalize,
		graphs:       graphs,
		logger:       logger.With("component", "mcphttp_handler"),
	}
}

// RegisterAdminRoutes sets up the HTTP routes for admin endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/canonicalize", h.handleCanonicalize)
	mux.HandleFunc("GET /admin/graphs", h.handleListGraphs)
	mux.HandleFunc("GET /admin/graph", h.handleGetGraph)
}

// CanonicalizeRequest defines the expected JSON body for the
// /admin/canonicalize endpoint.
type CanonicalizeRequest struct {
	Source  string            `json:"source"`
	Dialect string            `json:"dialect,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// handleCanonicalize implements POST /admin/canonicalize
func (h *Handlers) handleCanonicalize(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req CanonicalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode canonicalize request body", slog.Any("error", err))
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		h.logger.Warn("Canonicalize request missing source field")
		http.Error(w, "Missing 'source' field in request body", http.StatusBadRequest)
		return
	}
	var d dialect.Dialect
	if req.Dialect != "" {
		parsed, err := dialect.Parse(req.Dialect)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid dialect: %v", err), http.StatusBadRequest)
			return
		}
		d = parsed
	}

	h.logger.Info("Received canonicalize request", slog.String("source", req.Source))
	graph, err := h.canonicalize.Execute(r.Context(), usecase.SourceConfig{URL: req.Source, Dialect: d, Headers: req.Headers})
	if err != nil {
		h.logger.Error("Failed to canonicalize schema", slog.String("source", req.Source), slog.Any("error", err))
		http.Error(w, fmt.Sprintf("Failed to canonicalize schema: %v", err), statusFor(err))
		return
	}

	h.writeJSON(w, http.StatusOK, graph.Summary())
	h.logger.Info("Canonicalize request completed", slog.String("source", graph.Source))
}

// handleListGraphs implements GET /admin/graphs
func (h *Handlers) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := h.graphs.Execute(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list graphs: %v", err), http.StatusInternalServerError)
		return
	}
	summaries := make([]usecase.GraphSummary, 0, len(graphs))
	for _, g := range graphs {
		summaries = append(summaries, g.Summary())
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// handleGetGraph implements GET /admin/graph?source=...&format=json|yaml
func (h *Handlers) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		http.Error(w, "Missing 'source' query parameter", http.StatusBadRequest)
		return
	}
	graph, err := h.graphs.Get(r.Context(), source)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get graph: %v", err), statusFor(err))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		h.writeJSON(w, http.StatusOK, graph.Graph)
	case "yaml":
		out, err := yaml.Marshal(graph.Graph)
		if err != nil {
			h.logger.Error("Failed to encode graph", slog.Any("error", err))
			http.Error(w, "Failed to encode graph", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(out)
	default:
		http.Error(w, fmt.Sprintf("Unknown format %q", format), http.StatusBadRequest)
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("error", err))
	}
}

// statusFor maps use case errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrEmptySource):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrGraphNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLoaderFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDuplicateAnchor),
		errors.Is(err, domain.ErrUnresolvedReference),
		errors.Is(err, domain.ErrUnknownNode),
		errors.Is(err, domain.ErrNoFixpoint):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
