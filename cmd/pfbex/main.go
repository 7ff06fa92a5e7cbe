package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/pfbio/pfbex/internal/config"
	"github.com/pfbio/pfbex/internal/export"
	"github.com/pfbio/pfbex/internal/model"
	"github.com/pfbio/pfbex/internal/source"
)

// Output file names inside the configured output directory.
const (
	schemaFileName   = "pfb_schema.json"
	entitiesFileName = "entities.ndjson"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("export interrupted")
		} else {
			log.Error("export failed", "err", err)
		}
		os.Exit(1)
	}
}

func run() error {
	// Stop the run on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	// Load and validate the table model.
	tables, err := model.Load(cfg.ModelPath)
	if err != nil {
		return err
	}
	if err := model.Validate(tables); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	logger.Info("model loaded", "path", cfg.ModelPath, "tables", len(tables))

	provider := newProvider(cfg)

	sink, err := newSink(cfg.OutputDir)
	if err != nil {
		return err
	}

	service := export.NewService(
		export.WithLogger(logger),
		export.WithNamespace(cfg.Namespace),
		export.WithRootSentinel(cfg.RootSentinel),
		export.WithFailureThreshold(cfg.FailureThreshold),
		export.WithTableParallelism(cfg.Parallelism),
		export.WithValidation(cfg.Validate),
	)

	summary, err := service.Run(ctx, tables, provider, sink)
	if closeErr := sink.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	logger.Info("wrote export",
		"schema", filepath.Join(cfg.OutputDir, schemaFileName),
		"entities", filepath.Join(cfg.OutputDir, entitiesFileName),
		"run_id", summary.RunID,
	)
	return nil
}

// newProvider picks the row source for the configured format. Config.Check
// already rejected anything else.
func newProvider(cfg config.Config) source.Provider {
	if cfg.Format == config.FormatTabular {
		return source.NewTabular(cfg.DataDir)
	}
	return source.NewDataDir(cfg.DataDir)
}

func newSink(dir string) (export.Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	schemaFile, err := os.Create(filepath.Join(dir, schemaFileName))
	if err != nil {
		return nil, fmt.Errorf("creating schema file: %w", err)
	}
	entityFile, err := os.Create(filepath.Join(dir, entitiesFileName))
	if err != nil {
		schemaFile.Close()
		return nil, fmt.Errorf("creating entity file: %w", err)
	}
	return export.NewJSONSink(schemaFile, entityFile), nil
}

func newLogger(level string) *log.Logger {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parsed,
	})
}
