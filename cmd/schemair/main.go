package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/internal/adapter/inbound/mcphttp"
	"github.com/i2y/schemair/internal/adapter/inbound/mcptool"
	"github.com/i2y/schemair/internal/adapter/outbound/fetcher"
	"github.com/i2y/schemair/internal/adapter/outbound/github"
	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/adapter/outbound/metaschema"
	"github.com/i2y/schemair/internal/adapter/outbound/router"
	"github.com/i2y/schemair/internal/dialect"
	"github.com/i2y/schemair/internal/usecase"
)

const (
	serviceName    = "schemair"
	serviceVersion = "0.1.0"
)

func main() {
	// === Command Line Flags ===
	var transport, format, dialectName string
	flag.StringVar(&transport, "transport", "cli", "Transport mode: cli, stdio or sse")
	flag.StringVar(&format, "format", "", "Output format in cli mode: json or yaml (default from config)")
	flag.StringVar(&dialectName, "dialect", "", "Dialect for documents without $schema (default from config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if format != "" {
		cfg.OutputFormat = format
	}
	defaultDialect := cfg.ParsedDefaultDialect()
	if dialectName != "" {
		if defaultDialect, err = dialect.Parse(dialectName); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -dialect: %v\n", err)
			os.Exit(2)
		}
	}

	// === Logging ===
	logLevel := cfg.ParsedLogLevel()
	var logger *slog.Logger
	if transport == "stdio" {
		// stdout carries the protocol in stdio mode.
		logFile, err := os.OpenFile("/tmp/schemair.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
		} else {
			defer logFile.Close()
			logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
		}
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()), slog.String("transport", transport))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	var gate router.SchemaGate
	if cfg.StrictMetaSchema {
		gate = metaschema.NewValidator(logger)
		logger.Info("Meta-schema validation enabled.")
	}
	loader := router.NewRouter(
		github.NewFetcher(github.NewGHClient(), logger),
		fetcher.NewFetcher(httpClient, logger),
		gate,
		defaultDialect,
		logger,
	)
	repo := memrepo.NewInMemoryGraphRepository(logger)
	canonicalizeUC := usecase.NewCanonicalizeUseCase(loader, repo, defaultDialect, usecase.NormalizeOptions{
		MaxPasses:     cfg.Normalize.MaxPasses,
		MaxNodes:      cfg.Normalize.MaxNodes,
		MaxAnyOfArity: cfg.Normalize.MaxAnyOfArity,
	}, logger)
	listUC := usecase.NewListGraphsUseCase(repo, logger)

	sources := sourceConfigs(cfg.SchemaSources, flag.Args())

	// === Transport Mode Selection ===
	switch transport {
	case "cli":
		if len(sources) == 0 {
			fmt.Fprintln(os.Stderr, "No schema sources: pass paths or URLs, or set schema_sources in the config file.")
			os.Exit(2)
		}
		if err := runCLI(ctx, canonicalizeUC, sources, cfg.OutputFormat, os.Stdout, os.Stderr); err != nil {
			os.Exit(1)
		}

	case "stdio":
		mcpSrv := newMCPServer(ctx, canonicalizeUC, listUC, sources, logger)
		logger.Info("Starting in STDIO mode")
		stdioServer := mcpGoServer.NewStdioServer(mcpSrv)
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			logger.Error("STDIO server error", slog.Any("error", err))
			os.Exit(1)
		}

	case "sse":
		mcpSrv := newMCPServer(ctx, canonicalizeUC, listUC, sources, logger)
		logger.Info("Starting in SSE mode")
		sseServer := mcpGoServer.NewSSEServer(mcpSrv, mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr))

		// === Admin HTTP Server Setup ===
		adminMux := http.NewServeMux()
		mcphttp.NewHandlers(canonicalizeUC, listUC, logger).RegisterAdminRoutes(adminMux)
		adminServer := &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: adminMux,
		}
		go func() {
			logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin HTTP server failed to start.", slog.Any("error", err))
			}
		}()

		go func() {
			logger.Info("MCP SSE server starting.", slog.String("address", cfg.ListenAddr))
			if err := sseServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP SSE server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		<-ctx.Done()

		// === Server Shutdown ===
		logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin HTTP server graceful shutdown failed.", slog.Any("error", err))
		}
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("MCP SSE server graceful shutdown failed.", slog.Any("error", err))
		}
		logger.Info("Servers shut down gracefully.")

	default:
		logger.Error("Invalid transport mode", slog.String("transport", transport))
		os.Exit(2)
	}
}

// newMCPServer registers the tools and canonicalizes the configured sources
// so list_graphs has content from the start.
func newMCPServer(ctx context.Context, uc *usecase.CanonicalizeUseCase, list *usecase.ListGraphsUseCase, sources []usecase.SourceConfig, logger *slog.Logger) *mcpGoServer.MCPServer {
	mcpSrv := mcpGoServer.NewMCPServer(serviceName, serviceVersion, mcpGoServer.WithToolCapabilities(false))
	mcptool.NewTools(uc, list, logger).Register(mcpSrv)

	if len(sources) > 0 {
		logger.Info("Performing initial canonicalization...", slog.Int("sources", len(sources)))
		graphs, failures := uc.ExecuteAll(ctx, sources)
		for source, err := range failures {
			logger.Error("Initial canonicalization failed. Server startup continuing.", slog.String("source", source), slog.Any("error", err))
		}
		logger.Info("Initial canonicalization completed.", slog.Int("graphs", len(graphs)))
	}
	return mcpSrv
}

// sourceConfigs prefers sources given on the command line over the config file.
func sourceConfigs(fromConfig []configs.SchemaSource, args []string) []usecase.SourceConfig {
	if len(args) > 0 {
		out := make([]usecase.SourceConfig, len(args))
		for i, arg := range args {
			out[i] = usecase.SourceConfig{URL: arg}
		}
		return out
	}
	out := make([]usecase.SourceConfig, 0, len(fromConfig))
	for _, source := range fromConfig {
		sc := usecase.SourceConfig{URL: source.URL, Headers: source.Headers}
		if source.Dialect != "" {
			// Validated by configs.Load.
			sc.Dialect, _ = dialect.Parse(source.Dialect)
		}
		out = append(out, sc)
	}
	return out
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace exporter.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("SCHEMAIR_OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry TracerProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
