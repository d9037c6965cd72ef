package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ListGraphsUseCase provides read access to the stored canonical graphs.
type ListGraphsUseCase struct {
	repository GraphRepository
	logger     *slog.Logger
}

// NewListGraphsUseCase creates a new ListGraphsUseCase.
func NewListGraphsUseCase(repository GraphRepository, logger *slog.Logger) *ListGraphsUseCase {
	return &ListGraphsUseCase{
		repository: repository,
		logger:     logger.With("usecase", "ListGraphs"),
	}
}

// Execute retrieves all graphs currently stored in the repository.
func (uc *ListGraphsUseCase) Execute(ctx context.Context) ([]CanonicalGraph, error) {
	uc.logger.Info("Listing graphs")
	graphs, err := uc.repository.List(ctx)
	if err != nil {
		uc.logger.Error("Failed to list graphs from repository", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list graphs from repository: %w", err)
	}
	uc.logger.Info("Successfully listed graphs", slog.Int("count", len(graphs)))
	return graphs, nil
}

// Get retrieves the graph stored for source. Bare paths are matched by
// their file URL.
func (uc *ListGraphsUseCase) Get(ctx context.Context, source string) (*CanonicalGraph, error) {
	source = NormalizeSourceURL(source)
	graph, err := uc.repository.FindBySource(ctx, source)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			uc.logger.Warn("Graph not found", slog.String("source", source))
			return nil, err
		}
		uc.logger.Error("Failed to find graph", slog.String("source", source), slog.Any("error", err))
		return nil, fmt.Errorf("failed to find graph for %s: %w", source, err)
	}
	return graph, nil
}
