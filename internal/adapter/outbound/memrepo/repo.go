package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/i2y/schemair/internal/usecase"
)

// InMemoryGraphRepository provides an in-memory implementation of the
// GraphRepository.
// NOTE: This implementation is not persistent and data will be lost on restart.
type InMemoryGraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]usecase.CanonicalGraph // Map source URL to its canonical graph
	logger *slog.Logger
}

// NewInMemoryGraphRepository creates a new in-memory repository.
func NewInMemoryGraphRepository(logger *slog.Logger) *InMemoryGraphRepository {
	return &InMemoryGraphRepository{
		graphs: make(map[string]usecase.CanonicalGraph),
		logger: logger.With("component", "mem_repo"),
	}
}

// Save stores the graph under its source, replacing an earlier one.
func (r *InMemoryGraphRepository) Save(ctx context.Context, graph usecase.CanonicalGraph) error {
	if graph.Source == "" {
		r.logger.Error("Failed to save graph", slog.String("reason", "empty source"))
		return fmt.Errorf("save failed: graph has no source")
	}
	if graph.Graph == nil {
		r.logger.Error("Failed to save graph", slog.String("source", graph.Source), slog.String("reason", "nil graph"))
		return fmt.Errorf("save failed: graph for %s is nil", graph.Source)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.graphs[graph.Source]
	graph.Documents = slices.Clone(graph.Documents)
	r.graphs[graph.Source] = graph
	r.logger.Info("Saved canonical graph",
		slog.String("source", graph.Source),
		slog.Int("nodes", graph.Graph.Len()),
		slog.Bool("replaced", replaced),
		slog.Int("total_graphs", len(r.graphs)))
	return nil
}

// List returns all stored graphs ordered by source.
func (r *InMemoryGraphRepository) List(ctx context.Context) ([]usecase.CanonicalGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]usecase.CanonicalGraph, 0, len(r.graphs))
	for _, source := range slices.Sorted(maps.Keys(r.graphs)) {
		g := r.graphs[source]
		g.Documents = slices.Clone(g.Documents)
		list = append(list, g)
	}
	r.logger.Debug("Listed graphs from repository", slog.Int("count", len(list)))
	return list, nil
}

// FindBySource retrieves the graph stored for source.
func (r *InMemoryGraphRepository) FindBySource(ctx context.Context, source string) (*usecase.CanonicalGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph, ok := r.graphs[source]
	if !ok {
		r.logger.Warn("Graph not found", slog.String("source", source))
		return nil, usecase.ErrGraphNotFound
	}
	graph.Documents = slices.Clone(graph.Documents)
	r.logger.Debug("Found graph", slog.String("source", source))
	return &graph, nil
}
