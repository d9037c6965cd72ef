package github

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        Location
		expectError bool
	}{
		{
			name: "simple github URL",
			url:  "github://owner/repo/path/to/file.yaml",
			want: Location{Owner: "owner", Repo: "repo", Path: "path/to/file.yaml"},
		},
		{
			name: "github URL with ref",
			url:  "github://owner/repo/path/to/file.yaml@v1.0",
			want: Location{Owner: "owner", Repo: "repo", Path: "path/to/file.yaml", Ref: "v1.0"},
		},
		{
			name: "fragment is ignored",
			url:  "github://owner/repo/schemas/a.json@main#/$defs/x",
			want: Location{Owner: "owner", Repo: "repo", Path: "schemas/a.json", Ref: "main"},
		},
		{
			name:        "invalid URL - not github",
			url:         "https://github.com/owner/repo/file.yaml",
			expectError: true,
		},
		{
			name:        "invalid URL - missing path",
			url:         "github://owner/repo",
			expectError: true,
		},
		{
			name:        "invalid URL - missing repo",
			url:         "github://owner",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte
	errs    map[string]error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call, " ")
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.outputs[key], nil
}

func TestGHClient_FetchFile(t *testing.T) {
	content := `{"type": "string"}`
	runner := &fakeRunner{outputs: map[string][]byte{
		"gh api repos/o/r/s.json?ref=main --jq .content": []byte(base64.StdEncoding.EncodeToString([]byte(content)) + "\n"),
	}}
	client := NewGHClientWithRunner(runner.run)

	got, err := client.FetchFile(context.Background(), "github://o/r/s.json@main")
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	assert.Equal(t, []string{"gh", "auth", "status"}, runner.calls[0])
}

func TestGHClient_FetchFileRaw(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gh api repos/o/r/s.json --jq .download_url":   []byte("https://raw.example.com/s.json\n"),
		"curl -s -f -L https://raw.example.com/s.json": []byte(`{"type": "number"}`),
	}}
	client := NewGHClientWithRunner(runner.run)

	got, err := client.FetchFileRaw(context.Background(), "github://o/r/s.json")
	require.NoError(t, err)
	assert.Equal(t, `{"type": "number"}`, string(got))
	assert.Len(t, runner.calls, 3)
}

func TestGHClient_NotAuthenticated(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"gh auth status": errors.New("gh command failed: You are not logged in to any GitHub hosts"),
	}}
	client := NewGHClientWithRunner(runner.run)

	_, err := client.FetchFileRaw(context.Background(), "github://o/r/s.json")
	assert.ErrorContains(t, err, "gh auth login")
}

func TestGHClient_NoDownloadURL(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"gh api repos/o/r/dir --jq .download_url": []byte("null\n"),
	}}
	client := NewGHClientWithRunner(runner.run)

	_, err := client.FetchFileRaw(context.Background(), "github://o/r/dir")
	assert.EqualError(t, err, "no download URL found")
}

func TestIsGitHubURL(t *testing.T) {
	assert.True(t, IsGitHubURL("github://o/r/p"))
	assert.False(t, IsGitHubURL("https://github.com/o/r"))
}
