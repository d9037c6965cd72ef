package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs a command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s command failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s command failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// GHClient wraps the gh CLI command for GitHub operations
type GHClient struct {
	run CommandRunner
}

// NewGHClient creates a new GitHub client
func NewGHClient() *GHClient {
	return &GHClient{run: execRunner}
}

// NewGHClientWithRunner creates a GitHub client that runs gh through run.
func NewGHClientWithRunner(run CommandRunner) *GHClient {
	return &GHClient{run: run}
}

// Location is a parsed github:// URL.
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseURL parses a github:// URL into its components
// Format: github://owner/repo/path/to/file[@ref]
func ParseURL(githubURL string) (Location, error) {
	if !IsGitHubURL(githubURL) {
		return Location{}, fmt.Errorf("invalid GitHub URL format: %s", githubURL)
	}

	urlPath := strings.TrimPrefix(githubURL, "github://")
	if i := strings.IndexByte(urlPath, '#'); i >= 0 {
		urlPath = urlPath[:i]
	}

	var loc Location
	if i := strings.LastIndexByte(urlPath, '@'); i >= 0 {
		loc.Ref = urlPath[i+1:]
		urlPath = urlPath[:i]
	}

	pathParts := strings.SplitN(urlPath, "/", 3)
	if len(pathParts) < 3 || pathParts[0] == "" || pathParts[1] == "" || pathParts[2] == "" {
		return Location{}, fmt.Errorf("invalid GitHub URL format: expected github://owner/repo/path/to/file")
	}
	loc.Owner, loc.Repo, loc.Path = pathParts[0], pathParts[1], pathParts[2]
	return loc, nil
}

func (l Location) apiPath() string {
	p := fmt.Sprintf("repos/%s/%s/contents/%s", l.Owner, l.Repo, l.Path)
	if l.Ref != "" {
		p += "?ref=" + l.Ref
	}
	return p
}

// FetchFile retrieves a file from GitHub using the gh CLI
func (c *GHClient) FetchFile(ctx context.Context, githubURL string) ([]byte, error) {
	loc, err := ParseURL(githubURL)
	if err != nil {
		return nil, err
	}

	if err := c.checkGHCommand(ctx); err != nil {
		return nil, err
	}

	out, err := c.run(ctx, "gh", "api", loc.apiPath(), "--jq", ".content")
	if err != nil {
		return nil, err
	}

	// The content is base64 encoded with embedded newlines
	encodedContent := strings.ReplaceAll(strings.TrimSpace(string(out)), `\n`, "")
	encodedContent = strings.ReplaceAll(encodedContent, "\n", "")
	if encodedContent == "" {
		return nil, fmt.Errorf("empty response from GitHub")
	}

	content, err := base64.StdEncoding.DecodeString(encodedContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return content, nil
}

// FetchFileRaw retrieves a file from GitHub through its download URL. It
// handles files above the contents API size limit.
func (c *GHClient) FetchFileRaw(ctx context.Context, githubURL string) ([]byte, error) {
	loc, err := ParseURL(githubURL)
	if err != nil {
		return nil, err
	}

	if err := c.checkGHCommand(ctx); err != nil {
		return nil, err
	}

	out, err := c.run(ctx, "gh", "api", loc.apiPath(), "--jq", ".download_url")
	if err != nil {
		return nil, err
	}

	downloadURL := strings.TrimSpace(string(out))
	if downloadURL == "" || downloadURL == "null" {
		return nil, fmt.Errorf("no download URL found")
	}

	return c.run(ctx, "curl", "-s", "-f", "-L", downloadURL)
}

// checkGHCommand verifies that the gh CLI is installed and authenticated
func (c *GHClient) checkGHCommand(ctx context.Context) error {
	if _, err := c.run(ctx, "gh", "auth", "status"); err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "executable file not found") || strings.Contains(msg, "not found"):
			return fmt.Errorf("gh CLI is not installed. Please install it from https://cli.github.com/")
		case strings.Contains(msg, "not logged in"):
			return fmt.Errorf("gh CLI is not authenticated. Please run 'gh auth login' first")
		}
		return fmt.Errorf("gh auth check failed: %w", err)
	}
	return nil
}

// IsGitHubURL checks if a URL is a GitHub URL
func IsGitHubURL(url string) bool {
	return strings.HasPrefix(url, "github://")
}
