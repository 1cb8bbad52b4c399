package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/remote"
	"github.com/ajitpratap0/strata/pkg/store"
)

// Config is the configuration of one strata run.
type Config struct {
	// Dataset is the logical dataset name stored in every input file.
	Dataset string `yaml:"dataset" json:"dataset"`

	// Reader settings for input files and iteration
	Reader ReaderConfig `yaml:"reader" json:"reader"`

	// Writer settings for the output dataset
	Writer WriterConfig `yaml:"writer" json:"writer"`

	// Remote settings for s3:// and gs:// paths
	Remote remote.Config `yaml:"remote" json:"remote"`

	// Observability settings for logging, tracing and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// FriendConfig names a row-aligned dataset read alongside the inputs.
type FriendConfig struct {
	Dataset string   `yaml:"dataset" json:"dataset"`
	Files   []string `yaml:"files" json:"files"`
}

// ReaderConfig contains input and iteration settings.
type ReaderConfig struct {
	// Files are read in order as one sequence of rows
	Files []string `yaml:"files" json:"files"`
	// Friends contribute extra columns for the same rows
	Friends []FriendConfig `yaml:"friends" json:"friends"`
	// Aliases map alternative names to columns or formulas
	Aliases map[string]string `yaml:"aliases" json:"aliases"`
	// Selection restricts processing to rows where it holds
	Selection string `yaml:"selection" json:"selection"`
	// PrintEvery is the number of rows between progress lines
	PrintEvery int64 `yaml:"print_every" json:"print_every"`
	// Quiet suppresses progress lines
	Quiet bool `yaml:"quiet" json:"quiet"`
	// Limit caps the rows visited; negative means all
	Limit int64 `yaml:"limit" json:"limit"`
	// StartAt is the first row visited
	StartAt int64 `yaml:"start_at" json:"start_at"`
	// Eager decodes every column on each row
	Eager bool `yaml:"eager" json:"eager"`
	// Remaining adds a time-remaining estimate to progress lines
	Remaining bool `yaml:"remaining" json:"remaining"`
	// MemoryMap maps local input files into memory
	MemoryMap bool `yaml:"memory_map" json:"memory_map"`
}

// WriterConfig contains output settings.
type WriterConfig struct {
	// Path of the output file
	Path string `yaml:"path" json:"path"`
	// Dataset name of the output; defaults to the input dataset
	Dataset string `yaml:"dataset" json:"dataset"`
	// Mode is create, append or extend
	Mode string `yaml:"mode" json:"mode"`
	// Commit is unified or independent; empty picks by mode
	Commit string `yaml:"commit" json:"commit"`
	// Compression codec for parquet output
	Compression string `yaml:"compression" json:"compression"`
	// RowGroupLength caps the rows per parquet row group
	RowGroupLength int64 `yaml:"row_group_length" json:"row_group_length"`
	// Columns are copied from the input to the output
	Columns []string `yaml:"columns" json:"columns"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level"`
	Encoding    string   `yaml:"encoding" json:"encoding"`
	Development bool     `yaml:"development" json:"development"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// Logger converts the section to a logger.Config.
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		Encoding:    l.Encoding,
		OutputPaths: l.OutputPaths,
	}
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	Logging LoggingConfig               `yaml:"logging" json:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// SummaryInterval is how often throughput is logged during long runs
	SummaryInterval time.Duration `yaml:"summary_interval" json:"summary_interval"`
}

// New returns a configuration with defaults for the named dataset.
func New(dataset string) *Config {
	return &Config{
		Dataset: dataset,
		Reader: ReaderConfig{
			PrintEvery: 1000,
			Limit:      -1,
			Remaining:  true,
			Aliases:    make(map[string]string),
		},
		Writer: WriterConfig{
			Mode:           "create",
			Compression:    "snappy",
			RowGroupLength: 64 * 1024,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:       "info",
				Encoding:    "console",
				OutputPaths: []string{"stderr"},
			},
			Tracing:         observability.DefaultConfig(),
			SummaryInterval: 30 * time.Second,
		},
	}
}

// Validate validates the configuration for correctness.
func (c *Config) Validate() error {
	if c.Reader.PrintEvery < 1 {
		return configError("reader.print_every must be at least 1")
	}
	if c.Reader.StartAt < 0 {
		return configError("reader.start_at cannot be negative")
	}
	for i, f := range c.Reader.Friends {
		if len(f.Files) == 0 {
			return configError("reader.friends[%d] has no files", i)
		}
	}
	if _, err := store.ParseWriteMode(c.Writer.Mode); err != nil {
		return err
	}
	switch strings.ToLower(c.Writer.Commit) {
	case "", "unified", "independent":
	default:
		return configError("writer.commit must be unified or independent, got %q", c.Writer.Commit)
	}
	if c.Writer.RowGroupLength < 0 {
		return configError("writer.row_group_length cannot be negative")
	}
	if r := c.Observability.Tracing.SamplingRate; r < 0 || r > 1 {
		return configError("observability.tracing.sampling_rate must be in [0, 1]")
	}
	return nil
}

// OutputDataset returns the dataset name written to the output.
func (c *Config) OutputDataset() string {
	if c.Writer.Dataset != "" {
		return c.Writer.Dataset
	}
	return c.Dataset
}

func configError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeConfig, format, args...)
}
