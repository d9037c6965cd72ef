package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/document"
)

// SchemaGate rejects fetched documents, for example those that do not
// conform to their meta-schema.
type SchemaGate interface {
	Validate(raw any, d dialect.Dialect) error
}

// Router implements document.Loader and routes fetches by URL scheme:
// github:// goes to the GitHub loader, everything else to the default one.
type Router struct {
	github         document.Loader
	fallback       document.Loader
	gate           SchemaGate
	defaultDialect dialect.Dialect
	logger         *slog.Logger
}

// NewRouter creates a new loader router. github and gate may be nil.
func NewRouter(github, fallback document.Loader, gate SchemaGate, defaultDialect dialect.Dialect, logger *slog.Logger) *Router {
	return &Router{
		github:         github,
		fallback:       fallback,
		gate:           gate,
		defaultDialect: defaultDialect,
		logger:         logger.With("component", "loader_router"),
	}
}

// FetchDocument routes the fetch to the loader for the URL scheme and
// passes the result through the gate.
func (r *Router) FetchDocument(ctx context.Context, url string) (any, error) {
	log := r.logger.With(slog.String("url", url))

	var loader document.Loader
	switch {
	case strings.HasPrefix(url, "github://"):
		if r.github == nil {
			log.Error("No GitHub loader configured")
			return nil, fmt.Errorf("no loader for github URL: %s", url)
		}
		log.Debug("Routing to GitHub loader")
		loader = r.github
	case strings.HasPrefix(url, "urn:"):
		log.Error("URN documents cannot be fetched")
		return nil, fmt.Errorf("cannot fetch non-retrievable URL: %s", url)
	default:
		log.Debug("Routing to default loader")
		loader = r.fallback
	}

	raw, err := loader.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	if r.gate != nil {
		d := dialect.Detect(raw, r.defaultDialect)
		if err := r.gate.Validate(raw, d); err != nil {
			log.Error("Document rejected", slog.String("dialect", d.String()), slog.Any("error", err))
			return nil, fmt.Errorf("document %s rejected: %w", url, err)
		}
	}
	return raw, nil
}
