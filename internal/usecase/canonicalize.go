package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/document"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/rules"
)

const instrumentationName = "github.com/i2y/schemair/internal/usecase"

// CanonicalizeUseCase loads a schema source with everything it references,
// converts it to the canonical node graph, normalizes the graph and stores
// the result.
type CanonicalizeUseCase struct {
	loader         document.Loader
	repository     GraphRepository
	defaultDialect dialect.Dialect
	options        NormalizeOptions
	logger         *slog.Logger
	tracer         trace.Tracer
	documents      metric.Int64Counter
	synthesized    metric.Int64Counter
	now            func() time.Time
}

// NewCanonicalizeUseCase creates a new CanonicalizeUseCase. Sources without
// an explicit dialect that do not declare one are read as defaultDialect.
func NewCanonicalizeUseCase(
	loader document.Loader,
	repository GraphRepository,
	defaultDialect dialect.Dialect,
	options NormalizeOptions,
	logger *slog.Logger,
) *CanonicalizeUseCase {
	meter := otel.Meter(instrumentationName)
	documents, err := meter.Int64Counter("schemair.documents.loaded",
		metric.WithDescription("Schema documents registered while canonicalizing"))
	if err != nil {
		logger.Warn("Failed to create documents counter", slog.Any("error", err))
	}
	synthesized, err := meter.Int64Counter("schemair.nodes.synthesized",
		metric.WithDescription("Nodes created by normalization"))
	if err != nil {
		logger.Warn("Failed to create synthesized counter", slog.Any("error", err))
	}
	return &CanonicalizeUseCase{
		loader:         loader,
		repository:     repository,
		defaultDialect: defaultDialect,
		options:        options,
		logger:         logger.With("usecase", "Canonicalize"),
		tracer:         otel.Tracer(instrumentationName),
		documents:      documents,
		synthesized:    synthesized,
		now:            time.Now,
	}
}

// Execute canonicalizes one source. Every call uses a fresh document
// registry, so documents are fetched again on each call.
func (uc *CanonicalizeUseCase) Execute(ctx context.Context, source SourceConfig) (*CanonicalGraph, error) {
	if strings.TrimSpace(source.URL) == "" {
		return nil, ErrEmptySource
	}
	url := NormalizeSourceURL(source.URL)
	d := source.Dialect
	if d == dialect.Unknown {
		d = uc.defaultDialect
	}

	log := uc.logger.With(slog.String("source", url), slog.String("dialect", d.String()))
	log.Info("Starting canonicalization")

	ctx, span := uc.tracer.Start(ctx, "Canonicalize", trace.WithAttributes(
		attribute.String("schemair.source", url),
		attribute.String("schemair.dialect", d.String()),
	))
	defer span.End()

	result, err := uc.run(WithHeaders(ctx, source.Headers), log, url, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := uc.repository.Save(ctx, *result); err != nil {
		log.Error("Failed to save canonical graph", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save canonical graph: %w", err)
	}

	log.Info("Successfully canonicalized schema",
		slog.Int("documents", len(result.Documents)),
		slog.Int("nodes", result.Graph.Len()),
		slog.Int("sweeps", result.Report.Sweeps),
		slog.Int("synthesized", result.Report.Synthesized))
	return result, nil
}

func (uc *CanonicalizeUseCase) run(ctx context.Context, log *slog.Logger, url string, d dialect.Dialect) (*CanonicalGraph, error) {
	// 1. Load the source and everything it references
	loadCtx, span := uc.tracer.Start(ctx, "Canonicalize.load")
	registry := document.NewRegistry(uc.loader, d)
	root, err := registry.Load(loadCtx, url)
	span.End()
	if err != nil {
		log.Error("Failed to load schema documents", slog.Any("error", err))
		return nil, fmt.Errorf("failed to load schema documents from %s: %w", url, err)
	}
	docs := registry.Documents()
	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		urls = append(urls, doc.URL())
	}
	uc.count(ctx, uc.documents, int64(len(docs)))
	log.Debug("Loaded schema documents", slog.Int("count", len(docs)), slog.String("root", root.URL()))

	// 2. Convert to the intermediate graph
	_, span = uc.tracer.Start(ctx, "Canonicalize.extract")
	graph, err := registry.Graph()
	span.End()
	if err != nil {
		log.Error("Failed to build intermediate graph", slog.Any("error", err))
		return nil, fmt.Errorf("failed to build intermediate graph: %w", err)
	}
	log.Debug("Built intermediate graph", slog.Int("nodes", graph.Len()))

	// 3. Normalize to a fixpoint
	_, span = uc.tracer.Start(ctx, "Canonicalize.normalize")
	normalized, report, err := Normalize(graph, uc.options)
	span.SetAttributes(
		attribute.Int("schemair.sweeps", report.Sweeps),
		attribute.Int("schemair.passes", report.Passes),
		attribute.Int("schemair.synthesized", report.Synthesized),
	)
	span.End()
	if err != nil {
		log.Error("Failed to normalize graph", slog.Any("error", err), slog.Int("passes", report.Passes))
		return nil, fmt.Errorf("failed to normalize graph: %w", err)
	}
	uc.count(ctx, uc.synthesized, int64(report.Synthesized))

	return &CanonicalGraph{
		Source:          url,
		Dialect:         root.Dialect(),
		Documents:       urls,
		Graph:           normalized,
		Report:          report,
		CanonicalizedAt: uc.now(),
	}, nil
}

func (uc *CanonicalizeUseCase) count(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil && n > 0 {
		c.Add(ctx, n)
	}
}

// ExecuteAll canonicalizes every source in order. It keeps going after a
// failed source and returns the graphs that succeeded with the failures
// keyed by source URL.
func (uc *CanonicalizeUseCase) ExecuteAll(ctx context.Context, sources []SourceConfig) ([]*CanonicalGraph, map[string]error) {
	var graphs []*CanonicalGraph
	failures := make(map[string]error)
	for _, src := range sources {
		if ctx.Err() != nil {
			failures[src.URL] = ctx.Err()
			continue
		}
		g, err := uc.Execute(ctx, src)
		if err != nil {
			failures[src.URL] = err
			continue
		}
		graphs = append(graphs, g)
	}
	return graphs, failures
}

// Normalize runs the default rule set over graph and returns the normalized
// graph with the run report.
func Normalize(graph *domain.Graph, options NormalizeOptions) (*domain.Graph, arena.Report, error) {
	a, err := arena.FromGraph(graph)
	if err != nil {
		return nil, arena.Report{}, fmt.Errorf("failed to build arena: %w", err)
	}
	transforms := rules.Default(rules.Options{MaxAnyOfArity: options.MaxAnyOfArity})
	report, err := a.Normalize(transforms, arena.Limits{MaxPasses: options.MaxPasses, MaxNodes: options.MaxNodes})
	if err != nil {
		return nil, report, err
	}
	out, err := a.Graph()
	if err != nil {
		return nil, report, fmt.Errorf("failed to convert arena: %w", err)
	}
	return out, report, nil
}

// NormalizeSourceURL turns a bare file path into a file URL. URLs with a
// scheme are returned unchanged.
func NormalizeSourceURL(source string) string {
	source = strings.TrimSpace(source)
	if strings.Contains(source, "://") || strings.HasPrefix(source, "urn:") {
		return source
	}
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return "file://" + filepath.ToSlash(source)
}
