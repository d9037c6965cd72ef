package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/schemair/internal/usecase"
)

// maxDocumentSize bounds a fetched document body.
const maxDocumentSize = 32 << 20

// Fetcher implements document.Loader for http(s) URLs, file URLs and bare
// local paths. Documents may be JSON or YAML.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a new document Fetcher.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		httpClient: client,
		logger:     logger.With("component", "document_fetcher"),
	}
}

// FetchDocument loads and decodes the document at src.
func (f *Fetcher) FetchDocument(ctx context.Context, src string) (any, error) {
	log := f.logger.With(slog.String("source", src))
	log.Info("Fetching schema document")

	data, err := f.FetchBytes(ctx, src)
	if err != nil {
		return nil, err
	}
	raw, err := Decode(data)
	if err != nil {
		log.Error("Failed to decode schema document", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode schema document from %s: %w", src, err)
	}
	if IsOpenAPI(raw) {
		CheckOpenAPI(ctx, data, log)
	}
	log.Info("Successfully fetched schema document", slog.Int("bytes", len(data)))
	return raw, nil
}

// FetchBytes returns the body of the document at src.
func (f *Fetcher) FetchBytes(ctx context.Context, src string) ([]byte, error) {
	log := f.logger.With(slog.String("source", src))

	u, parseErr := url.Parse(src)
	switch {
	case parseErr == nil && (u.Scheme == "http" || u.Scheme == "https"):
		return f.fetchHTTP(ctx, log, src)
	case parseErr == nil && u.Scheme == "file":
		return f.readFile(log, u.Path)
	case parseErr == nil && u.Scheme != "" && len(u.Scheme) > 1:
		log.Error("Unsupported URL scheme", slog.String("scheme", u.Scheme))
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, src)
	default:
		log.Debug("Assuming local file path")
		return f.readFile(log, src)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, log *slog.Logger, src string) ([]byte, error) {
	log.Debug("Fetching from URL")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request for %s: %w", src, err)
	}
	req.Header.Set("Accept", "application/schema+json, application/json, application/yaml;q=0.9, */*;q=0.8")
	headers := usecase.HeadersFromContext(ctx)
	if len(headers) > 0 {
		log.Debug("Applying custom headers", slog.Int("header_count", len(headers)))
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Error("Failed to fetch document from URL", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch document from URL %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("Received non-OK status code from URL", slog.String("status", resp.Status), slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("failed to fetch document from URL %s: status %s", src, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		log.Error("Failed to read response body from URL", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read response body from %s: %w", src, err)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("document at %s exceeds %d bytes", src, maxDocumentSize)
	}
	return body, nil
}

func (f *Fetcher) readFile(log *slog.Logger, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("Failed to read document from file", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read document from file %s: %w", path, err)
	}
	return data, nil
}

// IsOpenAPI reports whether raw is an OpenAPI document root.
func IsOpenAPI(raw any) bool {
	m, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	v, ok := m["openapi"].(string)
	return ok && strings.HasPrefix(v, "3.")
}

// CheckOpenAPI parses data as an OpenAPI description and logs what the
// OpenAPI loader and validator report. Problems never fail the fetch.
func CheckOpenAPI(ctx context.Context, data []byte, log *slog.Logger) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		log.Warn("OpenAPI document could not be parsed", slog.Any("error", err))
		return
	}
	if err := doc.Validate(ctx); err != nil {
		log.Warn("OpenAPI document validation failed", slog.Any("validation_error", err))
		return
	}
	log.Debug("OpenAPI document is valid", slog.String("openapi", doc.OpenAPI))
}
