package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/i2y/schemair/internal/arena"
	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrGraphNotFound = errors.New("graph not found")
	ErrEmptySource   = errors.New("empty schema source")
)

// --- Schema Source Related ---

// SourceConfig represents a schema source with optional configuration.
// An unknown Dialect falls back to the use case default.
type SourceConfig struct {
	URL     string
	Dialect dialect.Dialect
	Headers map[string]string
}

type headersKey struct{}

// WithHeaders attaches request headers for the documents fetched while
// canonicalizing one source.
func WithHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return context.WithValue(ctx, headersKey{}, headers)
}

// HeadersFromContext returns the headers attached with WithHeaders.
func HeadersFromContext(ctx context.Context) map[string]string {
	h, _ := ctx.Value(headersKey{}).(map[string]string)
	return h
}

// --- Normalization ---

// NormalizeOptions bound a normalization run. Zero values select the
// defaults of the rules and arena packages.
type NormalizeOptions struct {
	MaxPasses     int
	MaxNodes      int
	MaxAnyOfArity int
}

// --- Graph storage ---

// CanonicalGraph is the stored result of canonicalizing one source.
type CanonicalGraph struct {
	Source          string
	Dialect         dialect.Dialect
	Documents       []string
	Graph           *domain.Graph
	Report          arena.Report
	CanonicalizedAt time.Time
}

// GraphSummary is the wire form of a stored graph without its nodes.
type GraphSummary struct {
	Source          string    `json:"source"`
	Dialect         string    `json:"dialect"`
	Documents       []string  `json:"documents"`
	Nodes           int       `json:"nodes"`
	Sweeps          int       `json:"sweeps"`
	Passes          int       `json:"passes"`
	Synthesized     int       `json:"synthesized"`
	CanonicalizedAt time.Time `json:"canonicalizedAt"`
}

// Summary drops the node table.
func (g CanonicalGraph) Summary() GraphSummary {
	s := GraphSummary{
		Source:          g.Source,
		Dialect:         g.Dialect.String(),
		Documents:       g.Documents,
		Sweeps:          g.Report.Sweeps,
		Passes:          g.Report.Passes,
		Synthesized:     g.Report.Synthesized,
		CanonicalizedAt: g.CanonicalizedAt,
	}
	if g.Graph != nil {
		s.Nodes = g.Graph.Len()
	}
	return s
}

// GraphRepository defines the contract for storing and retrieving
// canonicalized graphs.
type GraphRepository interface {
	// Save stores a graph, replacing any earlier graph for the same source.
	Save(ctx context.Context, graph CanonicalGraph) error

	// List retrieves all stored graphs ordered by source.
	List(ctx context.Context) ([]CanonicalGraph, error)

	// FindBySource retrieves the graph of a source, or ErrGraphNotFound.
	FindBySource(ctx context.Context, source string) (*CanonicalGraph, error)
}
