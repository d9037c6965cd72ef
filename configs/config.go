package configs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/schemair/internal/adapter/outbound/github"
	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/rules"
)

const envPrefix = "schemair"

// SchemaSource represents a single root schema document with optional headers.
type SchemaSource struct {
	URL     string            `yaml:"url" mapstructure:"url" validate:"required"`
	Dialect string            `yaml:"dialect,omitempty" mapstructure:"dialect" validate:"omitempty,oneof=draft-04 draft-2020-12 oas-v3-1"`
	Headers map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
}

// NormalizeConfig bounds a normalization run. Zero disables a guard.
type NormalizeConfig struct {
	MaxPasses     int `yaml:"max_passes" validate:"gte=0"`
	MaxNodes      int `yaml:"max_nodes" validate:"gte=0"`
	MaxAnyOfArity int `yaml:"max_anyof_arity" validate:"gte=0"`
}

// DefaultNormalize is used for every field the config file leaves unset.
var DefaultNormalize = NormalizeConfig{
	MaxPasses:     1000,
	MaxNodes:      100000,
	MaxAnyOfArity: rules.DefaultMaxAnyOfArity,
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	SchemaSources []any           `yaml:"schema_sources"`
	Normalize     NormalizeConfig `yaml:"normalize"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "SCHEMAIR_", overriding file settings.
type Config struct {
	// Config File Path (Loaded first from env)
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// File-loaded fields
	SchemaSources []SchemaSource  `validate:"dive"`
	Normalize     NormalizeConfig

	// Environment-overridable fields
	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:":8080" validate:"required"`
	AdminAddr                string        `envconfig:"ADMIN_ADDR" default:":8081" validate:"required"`
	HTTPClientTimeout        time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s" validate:"gt=0"`
	DefaultDialect           string        `envconfig:"DEFAULT_DIALECT" default:"draft-2020-12" validate:"oneof=draft-04 draft-2020-12 oas-v3-1"`
	StrictMetaSchema         bool          `envconfig:"STRICT_META_SCHEMA" default:"false"`
	OutputFormat             string        `envconfig:"OUTPUT_FORMAT" default:"json" validate:"oneof=json yaml"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// ParsedDefaultDialect returns the dialect for documents without $schema.
func (c *Config) ParsedDefaultDialect() dialect.Dialect {
	d, err := dialect.Parse(c.DefaultDialect)
	if err != nil {
		return dialect.Draft202012
	}
	return d
}

// Load loads configuration first from environment variables (to get file path),
// then from the specified YAML file, and finally overrides with environment variables again.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, github.LoadConfigFromGitHubOrFile)
}

// Opener returns the contents of a config file path or github:// URL.
type Opener func(ctx context.Context, path string) (io.ReadCloser, error)

// LoadWith is Load with a custom file opener.
func LoadWith(ctx context.Context, open Opener) (*Config, error) {
	// 1. Load initial config from Env (primarily to get ConfigFilePath)
	var initialCfg Config
	if err := envconfig.Process(envPrefix, &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	// 2. Load config from YAML file if path is specified
	fileCfg := FileConfig{}
	if initialCfg.ConfigFilePath != "" {
		r, err := open(ctx, initialCfg.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration file.", "path", initialCfg.ConfigFilePath)
	} else {
		slog.Info("No config file path specified (SCHEMAIR_CONFIG_FILE), using defaults/env vars only.")
	}

	// 3. Create final config, starting with file values, then process Env vars again for overrides.
	finalCfg := initialCfg

	sources, err := parseSchemaSources(fileCfg.SchemaSources)
	if err != nil {
		return nil, err
	}
	finalCfg.SchemaSources = sources

	finalCfg.Normalize = fileCfg.Normalize
	if err := mergo.Merge(&finalCfg.Normalize, DefaultNormalize); err != nil {
		return nil, fmt.Errorf("failed to apply normalize defaults: %w", err)
	}

	if err := envconfig.Process(envPrefix, &finalCfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}

	if err := validator.New().Struct(&finalCfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &finalCfg, nil
}

// parseSchemaSources accepts both the plain string and the object form.
func parseSchemaSources(raw []any) ([]SchemaSource, error) {
	out := make([]SchemaSource, 0, len(raw))
	for i, source := range raw {
		switch v := source.(type) {
		case string:
			out = append(out, SchemaSource{URL: v})
		case map[string]any:
			var ss SchemaSource
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				ErrorUnused:      true,
				Result:           &ss,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create decoder: %w", err)
			}
			if err := dec.Decode(v); err != nil {
				return nil, fmt.Errorf("invalid schema source #%d: %w", i, err)
			}
			out = append(out, ss)
		default:
			slog.Warn("Ignoring invalid schema source format", "source", source)
		}
	}
	return out, nil
}
