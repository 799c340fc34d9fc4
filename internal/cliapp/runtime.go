package cliapp

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"mcmappings/internal/core/config"
	"mcmappings/internal/core/errors"
	"mcmappings/internal/core/ports"
	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/resolver"
	"mcmappings/internal/shared/observability"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

type runtime struct {
	cfg      *config.Config
	store    ports.MappingStore
	resolver ports.CrossReferencer
	stdout   io.Writer
	stderr   io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "mappings v%s\n", versionString)
		return 0
	}
	if opts.command == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[opts.command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", opts.command, usage)
		return 2
	}

	configureLogging(stderr, opts.verbose)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	slog.Debug("config loaded", "config", cfg.String())

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Insecure:    cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	rt, cleanup, err := newRuntime(ctx, cfg, stdout, stderr)
	if err != nil {
		slog.Error("failed to open mapping store", "error", err, "path", cfg.DB.Path)
		return 1
	}
	defer cleanup()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		server := NewObservabilityServer(addr, rt.store)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err, "addr", addr)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	if err := cmd(ctx, rt, opts.args); err != nil {
		return reportError(stderr, err)
	}
	return 0
}

func newRuntime(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*runtime, func(), error) {
	store, err := mappingdb.Open(ctx, cfg.DB.Path, mappingdb.Options{
		BusyTimeout:  cfg.DB.BusyTimeout,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Logger:       slog.Default().With("component", "mappingdb"),
	})
	if err != nil {
		return nil, nil, err
	}
	res, err := resolver.New(store, resolver.Options{
		CacheEnabled: cfg.Resolver.CacheOn(),
		CacheSize:    cfg.Resolver.CacheSize,
		SearchLimit:  cfg.Resolver.SearchLimit,
		Logger:       slog.Default().With("component", "resolver"),
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	rt := &runtime{cfg: cfg, store: store, resolver: res, stdout: stdout, stderr: stderr}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close mapping store", "error", err)
		}
	}
	return rt, cleanup, nil
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	config.ApplyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reportError prints err for the user. Usage and validation problems exit
// with 2, everything else with 1.
func reportError(stderr io.Writer, err error) int {
	var de *errors.DomainError
	if stderrors.As(err, &de) {
		fmt.Fprintf(stderr, "%s %s\n", errorStyle.Render(string(de.Code)), de.Message)
		if de.Code == errors.CodeValidationError {
			return 2
		}
		return 1
	}
	if stderrors.Is(err, flag.ErrHelp) {
		return 0
	}
	if stderrors.Is(err, errUsage) {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	fmt.Fprintln(stderr, err.Error())
	return 1
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
