// Package metaschema checks fetched schema documents against the
// meta-schema of their dialect.
package metaschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/i2y/schemair/internal/dialect"
)

var ErrInvalidSchema = errors.New("document does not conform to its meta-schema")

// Validator compiles meta-schemas on first use and caches them. The
// draft-04 and 2020-12 meta-schemas ship with the jsonschema library, so no
// network access is needed.
type Validator struct {
	mu       sync.Mutex
	compiler *jsonschema.Compiler
	schemas  map[dialect.Dialect]*jsonschema.Schema
	logger   *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		compiler: jsonschema.NewCompiler(),
		schemas:  make(map[dialect.Dialect]*jsonschema.Schema),
		logger:   logger.With("component", "metaschema_validator"),
	}
}

func (v *Validator) schemaFor(d dialect.Dialect) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.schemas[d]; ok {
		return s, nil
	}
	url := d.MetaSchemaURL()
	if url == "" {
		return nil, nil
	}
	s, err := v.compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile meta-schema %s: %w", url, err)
	}
	v.logger.Debug("Compiled meta-schema", slog.String("dialect", d.String()), slog.String("url", url))
	v.schemas[d] = s
	return s, nil
}

// Validate checks raw against the meta-schema of d. Dialects without a
// standalone meta-schema, such as OpenAPI 3.1 documents, always pass.
func (v *Validator) Validate(raw any, d dialect.Dialect) error {
	s, err := v.schemaFor(d)
	if err != nil {
		return err
	}
	if s == nil {
		v.logger.Debug("No meta-schema for dialect, skipping", slog.String("dialect", d.String()))
		return nil
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	if err := s.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			v.logger.Warn("Schema document failed meta-schema validation",
				slog.String("dialect", d.String()),
				slog.Int("causes", len(verr.Causes)))
		}
		return fmt.Errorf("%w (%s): %w", ErrInvalidSchema, d, err)
	}
	return nil
}
