package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/i2y/schemair/internal/usecase"
)

type batchCanonicalizer interface {
	ExecuteAll(ctx context.Context, sources []usecase.SourceConfig) ([]*usecase.CanonicalGraph, map[string]error)
}

// runCLI canonicalizes sources and writes one intermediate document per
// successful source to out, in source order. A summary goes to status.
func runCLI(ctx context.Context, uc batchCanonicalizer, sources []usecase.SourceConfig, format string, out, status io.Writer) error {
	graphs, failures := uc.ExecuteAll(ctx, sources)

	var encode func(v any) error
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		encode = enc.Encode
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		encode = enc.Encode
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	for _, g := range graphs {
		if err := encode(g.Graph); err != nil {
			return fmt.Errorf("failed to write graph for %s: %w", g.Source, err)
		}
	}

	ok, bad, dim := color.New(color.FgGreen, color.Bold), color.New(color.FgRed, color.Bold), color.New(color.Faint)
	if !isTerminal(status) {
		ok.DisableColor()
		bad.DisableColor()
		dim.DisableColor()
	}
	for _, g := range graphs {
		s := g.Summary()
		ok.Fprint(status, "ok   ")
		fmt.Fprintf(status, "%s ", s.Source)
		dim.Fprintf(status, "(%s, %d documents, %d nodes, %d synthesized, %d sweeps)\n",
			s.Dialect, len(s.Documents), s.Nodes, s.Synthesized, s.Sweeps)
	}
	for _, src := range sources {
		err, failed := failures[src.URL]
		if !failed {
			continue
		}
		bad.Fprint(status, "FAIL ")
		fmt.Fprintf(status, "%s: %v\n", src.URL, err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d sources failed", len(failures), len(sources))
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
