package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pfbio/pfbex/internal/schema"
	"github.com/pfbio/pfbex/internal/transform"
)

// Source formats the exporter can read rows from.
const (
	FormatNDJSON  = "ndjson"
	FormatTabular = "tabular"
)

// Config collects everything an export run needs from the environment.
type Config struct {
	// ModelPath is a table definition file or a directory of them.
	ModelPath string
	// DataDir holds the per-table data files.
	DataDir string
	// Format selects the row provider, FormatNDJSON or FormatTabular.
	Format string

	// OutputDir receives the schema document and the entity stream.
	OutputDir string
	// Namespace qualifies record names in the schema document.
	Namespace string
	// RootSentinel is the id the trailing root relation points at.
	RootSentinel string
	// FailureThreshold aborts the run once exceeded. Zero means no limit.
	FailureThreshold int
	// Parallelism caps how many tables export concurrently.
	Parallelism int
	// Validate re-checks every entity against the schema before writing.
	Validate bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

func DefaultConfig() Config {
	return Config{
		DataDir:      "data",
		Format:       FormatNDJSON,
		OutputDir:    "out",
		Namespace:    schema.DefaultDocumentNamespace,
		RootSentinel: transform.DefaultRootSentinel,
		Parallelism:  4,
		Validate:     true,
		LogLevel:     "info",
	}
}

// Load reads config.yaml from configPath and applies PFBEX_* environment
// overrides on top of the defaults. A missing file is fine, env and defaults
// still apply.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("PFBEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map nested keys to flat env vars, PFBEX_SOURCE_MODEL and friends.
	v.BindEnv("source.model")
	v.BindEnv("source.data")
	v.BindEnv("source.format")
	v.BindEnv("export.output")
	v.BindEnv("export.namespace")
	v.BindEnv("export.root_sentinel")
	v.BindEnv("export.failure_threshold")
	v.BindEnv("export.parallelism")
	v.BindEnv("export.validate")
	v.BindEnv("log.level")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	if v.IsSet("source.model") {
		cfg.ModelPath = v.GetString("source.model")
	}
	if v.IsSet("source.data") {
		cfg.DataDir = v.GetString("source.data")
	}
	if v.IsSet("source.format") {
		cfg.Format = v.GetString("source.format")
	}
	if v.IsSet("export.output") {
		cfg.OutputDir = v.GetString("export.output")
	}
	if v.IsSet("export.namespace") {
		cfg.Namespace = v.GetString("export.namespace")
	}
	if v.IsSet("export.root_sentinel") {
		cfg.RootSentinel = v.GetString("export.root_sentinel")
	}
	if v.IsSet("export.failure_threshold") {
		cfg.FailureThreshold = v.GetInt("export.failure_threshold")
	}
	if v.IsSet("export.parallelism") {
		cfg.Parallelism = v.GetInt("export.parallelism")
	}
	if v.IsSet("export.validate") {
		cfg.Validate = v.GetBool("export.validate")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check rejects values no export run could work with.
func (c Config) Check() error {
	if c.ModelPath == "" {
		return fmt.Errorf("source.model is required")
	}
	if c.Format != FormatNDJSON && c.Format != FormatTabular {
		return fmt.Errorf("unsupported source format %q", c.Format)
	}
	if c.FailureThreshold < 0 {
		return fmt.Errorf("failure threshold must not be negative, got %d", c.FailureThreshold)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}
