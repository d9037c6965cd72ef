package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/i2y/schemair/internal/adapter/outbound/fetcher"
)

// Fetcher loads schema documents from GitHub repositories. It implements
// document.Loader for github:// URLs.
type Fetcher struct {
	ghClient *GHClient
	logger   *slog.Logger
}

// NewFetcher creates a new GitHub document fetcher
func NewFetcher(client *GHClient, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = NewGHClient()
	}
	return &Fetcher{
		ghClient: client,
		logger:   logger.With("component", "github_fetcher"),
	}
}

// FetchDocument retrieves and decodes a document from a GitHub repository
func (f *Fetcher) FetchDocument(ctx context.Context, source string) (any, error) {
	log := f.logger.With(slog.String("source", source))

	if !IsGitHubURL(source) {
		return nil, fmt.Errorf("not a GitHub URL: %s", source)
	}

	log.Info("Fetching schema document from GitHub")

	content, err := f.ghClient.FetchFileRaw(ctx, source)
	if err != nil {
		log.Error("Failed to fetch file from GitHub", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch file from GitHub: %w", err)
	}

	raw, err := fetcher.Decode(content)
	if err != nil {
		log.Error("Failed to decode schema document", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode schema document from %s: %w", source, err)
	}
	if fetcher.IsOpenAPI(raw) {
		fetcher.CheckOpenAPI(ctx, content, log)
	}

	log.Info("Successfully fetched schema document from GitHub", slog.Int("bytes", len(content)))
	return raw, nil
}

// LoadGitHubConfig loads a configuration file from GitHub
func LoadGitHubConfig(ctx context.Context, githubURL string) ([]byte, error) {
	if !IsGitHubURL(githubURL) {
		return nil, fmt.Errorf("not a GitHub URL: %s", githubURL)
	}

	content, err := NewGHClient().FetchFileRaw(ctx, githubURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config from GitHub: %w", err)
	}
	return content, nil
}

// LoadConfigFromGitHubOrFile loads configuration from either a GitHub URL or local file
func LoadConfigFromGitHubOrFile(ctx context.Context, path string) (io.ReadCloser, error) {
	if IsGitHubURL(path) {
		content, err := LoadGitHubConfig(ctx, path)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(content))), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return file, nil
}
