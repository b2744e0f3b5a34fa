// Package config loads compactor settings from a YAML file, COMPACTOR_
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/compactor/pkg/checkpoint"
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
	"github.com/Sumatoshi-tech/compactor/pkg/exclude"
	"github.com/Sumatoshi-tech/compactor/pkg/observability"
	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidAlgorithm     = errors.New("invalid compression algorithm")
	ErrInvalidEstimator     = errors.New("invalid estimator algorithm")
	ErrInvalidThreshold     = errors.New("estimator threshold must be in (0, 1]")
	ErrInvalidBlockSize     = errors.New("estimator block size must be positive")
	ErrInvalidMargin        = errors.New("estimator margin of error must be in (0, 1)")
	ErrInvalidConfidence    = errors.New("invalid estimator confidence")
	ErrInvalidWholeFile     = errors.New("estimator whole file limit must not be negative")
	ErrInvalidSmallFileSize = errors.New("invalid small file threshold")
	ErrInvalidCheckInterval = errors.New("scan check interval must be positive")
	ErrInvalidInterval      = errors.New("interval must be positive")
	ErrInvalidResultsBuffer = errors.New("results buffer must be positive")
	ErrInvalidExcludes      = errors.New("invalid exclude pattern")
	ErrInvalidLogLevel      = errors.New("invalid log level")
)

// Config holds every compactor setting.
type Config struct {
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Estimator   EstimatorConfig   `mapstructure:"estimator"   yaml:"estimator"`
	Excludes    []string          `mapstructure:"excludes"    yaml:"excludes"`
	Decimal     bool              `mapstructure:"decimal"     yaml:"decimal"`
	Scan        ScanConfig        `mapstructure:"scan"        yaml:"scan"`
	Compaction  CompactionConfig  `mapstructure:"compaction"  yaml:"compaction"`
	State       StateConfig       `mapstructure:"state"       yaml:"state"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"  yaml:"checkpoint"`
	Logging     LoggingConfig     `mapstructure:"logging"     yaml:"logging"`
}

// CompressionConfig selects the filesystem compression algorithm.
type CompressionConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

// EstimatorConfig tunes the compressibility probe.
type EstimatorConfig struct {
	Algorithm      string  `mapstructure:"algorithm"        yaml:"algorithm"`
	Threshold      float64 `mapstructure:"threshold"        yaml:"threshold"`
	BlockSize      int64   `mapstructure:"block_size"       yaml:"block_size"`
	MarginOfError  float64 `mapstructure:"margin_of_error"  yaml:"margin_of_error"`
	Confidence     int     `mapstructure:"confidence"       yaml:"confidence"`
	WholeFileLimit int64   `mapstructure:"whole_file_limit" yaml:"whole_file_limit"`
}

// ScanConfig tunes directory classification.
type ScanConfig struct {
	SmallFileThreshold string        `mapstructure:"small_file_threshold" yaml:"small_file_threshold"`
	CheckInterval      int           `mapstructure:"check_interval"       yaml:"check_interval"`
	StatusInterval     time.Duration `mapstructure:"status_interval"      yaml:"status_interval"`
}

// CompactionConfig tunes the compaction pipeline.
type CompactionConfig struct {
	StatusInterval time.Duration `mapstructure:"status_interval" yaml:"status_interval"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"  yaml:"flush_interval"`
	ResultsBuffer  int           `mapstructure:"results_buffer"  yaml:"results_buffer"`
}

// StateConfig locates persistent state such as the known-incompressible set.
type StateConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// CheckpointConfig controls resumable runs.
type CheckpointConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir"     yaml:"dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json"  yaml:"json"`
}

// KnownSetFile is where the known-incompressible set is persisted.
func (c *Config) KnownSetFile() string {
	return filepath.Join(c.State.Dir, "incompressible.dat")
}

// SmallFileBytes returns the parsed small file threshold.
func (c *Config) SmallFileBytes() (uint64, error) {
	n, err := units.Parse(c.Scan.SmallFileThreshold)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSmallFileSize, err)
	}

	return n, nil
}

// LoadConfig loads configuration from configPath, or from .compactor.yaml in
// the working or home directory when configPath is empty. A missing file in
// the search path is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("compression.algorithm", DefaultAlgorithm)

	viperCfg.SetDefault("estimator.algorithm", DefaultEstimatorAlgorithm)
	viperCfg.SetDefault("estimator.threshold", DefaultThreshold)
	viperCfg.SetDefault("estimator.block_size", DefaultBlockSize)
	viperCfg.SetDefault("estimator.margin_of_error", DefaultMarginOfError)
	viperCfg.SetDefault("estimator.confidence", DefaultConfidence)
	viperCfg.SetDefault("estimator.whole_file_limit", DefaultWholeFileLimit)

	viperCfg.SetDefault("excludes", exclude.DefaultPatterns)
	viperCfg.SetDefault("decimal", false)

	viperCfg.SetDefault("scan.small_file_threshold", DefaultSmallFileThreshold)
	viperCfg.SetDefault("scan.check_interval", DefaultCheckInterval)
	viperCfg.SetDefault("scan.status_interval", DefaultScanStatusInterval)

	viperCfg.SetDefault("compaction.status_interval", DefaultCompactionStatusInterval)
	viperCfg.SetDefault("compaction.flush_interval", DefaultFlushInterval)
	viperCfg.SetDefault("compaction.results_buffer", DefaultResultsBuffer)

	viperCfg.SetDefault("state.dir", defaultStateDir())

	viperCfg.SetDefault("checkpoint.enabled", DefaultCheckpointEnabled)
	viperCfg.SetDefault("checkpoint.dir", checkpoint.DefaultDir())

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", false)
}

func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return homeDirName
	}

	return filepath.Join(dir, appDirName)
}

// Validate checks every setting and returns the first problem found.
func (c *Config) Validate() error {
	_, err := compact.ParseAlgorithm(c.Compression.Algorithm)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAlgorithm, c.Compression.Algorithm)
	}

	if !estimate.Known(estimate.Algorithm(c.Estimator.Algorithm)) {
		return fmt.Errorf("%w: %q", ErrInvalidEstimator, c.Estimator.Algorithm)
	}

	if c.Estimator.Threshold <= 0 || c.Estimator.Threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.Estimator.Threshold)
	}

	if c.Estimator.BlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, c.Estimator.BlockSize)
	}

	if c.Estimator.MarginOfError <= 0 || c.Estimator.MarginOfError >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidMargin, c.Estimator.MarginOfError)
	}

	_, err = estimate.ConfidenceLevel(c.Estimator.Confidence)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfidence, err)
	}

	if c.Estimator.WholeFileLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWholeFile, c.Estimator.WholeFileLimit)
	}

	_, err = c.SmallFileBytes()
	if err != nil {
		return err
	}

	if c.Scan.CheckInterval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCheckInterval, c.Scan.CheckInterval)
	}

	intervals := []struct {
		key string
		val time.Duration
	}{
		{"scan.status_interval", c.Scan.StatusInterval},
		{"compaction.status_interval", c.Compaction.StatusInterval},
		{"compaction.flush_interval", c.Compaction.FlushInterval},
	}

	for _, iv := range intervals {
		if iv.val <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidInterval, iv.key, iv.val)
		}
	}

	if c.Compaction.ResultsBuffer <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidResultsBuffer, c.Compaction.ResultsBuffer)
	}

	_, err = exclude.New(c.Excludes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExcludes, err)
	}

	_, err = observability.ParseLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}
