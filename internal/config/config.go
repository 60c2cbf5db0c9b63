// Package config loads and validates MediaLens configuration.
// Precedence: defaults, then the YAML file, then MEDIALENS_* environment
// variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	lenserr "github.com/medialens/medialens/internal/errors"
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("90s", "10m") as well as integer nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete MediaLens configuration.
type Config struct {
	Version int          `yaml:"version"`
	Paths   PathsConfig  `yaml:"paths"`
	Index   IndexConfig  `yaml:"index"`
	Search  SearchConfig `yaml:"search"`
	Vector  VectorConfig `yaml:"vector"`
	Logging LogConfig    `yaml:"logging"`
}

// PathsConfig locates the library and the engine's data directory.
type PathsConfig struct {
	// Library is the media library root scanned for files.
	Library string `yaml:"library"`

	// Data holds the database, vector snapshot, logs, and lock file.
	Data string `yaml:"data"`
}

// IndexConfig controls the processing pipeline.
type IndexConfig struct {
	// MaxConcurrentJobs bounds simultaneous analyses.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// JobTimeout bounds one analysis.
	JobTimeout Duration `yaml:"job_timeout"`

	// ConflictPolicy is "wait" or "reject" for duplicate submissions.
	ConflictPolicy string `yaml:"conflict_policy"`

	// FingerprintMode is "stat" or "content".
	FingerprintMode string `yaml:"fingerprint_mode"`

	// WatchDebounce coalesces file events before resubmission.
	WatchDebounce Duration `yaml:"watch_debounce"`
}

// SearchConfig controls hybrid ranking.
type SearchConfig struct {
	// LexicalWeight and SemanticWeight must sum to 1.0.
	LexicalWeight  float64 `yaml:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`

	// MinScore drops fused results below this combined score.
	MinScore float64 `yaml:"min_score"`

	// CandidateMultiplier over-fetches each branch relative to the limit.
	CandidateMultiplier int `yaml:"candidate_multiplier"`

	// MaxResults is the default page size.
	MaxResults int `yaml:"max_results"`
}

// VectorConfig controls the embedding index.
type VectorConfig struct {
	// Dimensions is the embedding width; must match the analyzer's model.
	Dimensions int `yaml:"dimensions"`

	M        int `yaml:"m"`
	EfSearch int `yaml:"ef_search"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// File receives logs in addition to stderr when non-empty.
	// Relative paths resolve under the data directory.
	File string `yaml:"file"`
}

// CurrentVersion is the config schema version this build reads.
const CurrentVersion = 1

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			Library: ".",
			Data:    ".medialens",
		},
		Index: IndexConfig{
			MaxConcurrentJobs: 1,
			JobTimeout:        Duration(10 * time.Minute),
			ConflictPolicy:    "wait",
			FingerprintMode:   "stat",
			WatchDebounce:     Duration(2 * time.Second),
		},
		Search: SearchConfig{
			LexicalWeight:       0.3,
			SemanticWeight:      0.7,
			MinScore:            0.18,
			CandidateMultiplier: 3,
			MaxResults:          20,
		},
		Vector: VectorConfig{
			Dimensions: 384,
			M:          16,
			EfSearch:   40,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// path is empty or the file does not exist, then applies environment
// overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			return nil, lenserr.New(lenserr.ErrCodeConfigNotFound,
				"config file not found: "+path, err)
		case err != nil:
			return nil, lenserr.ConfigError("read config "+path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, lenserr.ConfigError("parse config "+path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but silently uses defaults when the
// file is absent. Used by commands where a config file is optional.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// applyEnvOverrides applies MEDIALENS_* environment variables, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEDIALENS_LIBRARY"); v != "" {
		c.Paths.Library = v
	}
	if v := os.Getenv("MEDIALENS_DATA_DIR"); v != "" {
		c.Paths.Data = v
	}
	if v := os.Getenv("MEDIALENS_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.MaxConcurrentJobs = n
		}
	}
	if v := os.Getenv("MEDIALENS_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Index.JobTimeout = Duration(d)
		}
	}
	if v := os.Getenv("MEDIALENS_CONFLICT_POLICY"); v != "" {
		c.Index.ConflictPolicy = v
	}
	if v := os.Getenv("MEDIALENS_FINGERPRINT_MODE"); v != "" {
		c.Index.FingerprintMode = v
	}
	if v := os.Getenv("MEDIALENS_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("MEDIALENS_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("MEDIALENS_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.MinScore = f
		}
	}
	if v := os.Getenv("MEDIALENS_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Vector.Dimensions = n
		}
	}
	if v := os.Getenv("MEDIALENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return lenserr.ConfigError(
			fmt.Sprintf("unsupported config version %d (want %d)", c.Version, CurrentVersion), nil)
	}
	if c.Index.MaxConcurrentJobs < 1 {
		return lenserr.ConfigError("index.max_concurrent_jobs must be at least 1", nil)
	}
	if c.Index.JobTimeout <= 0 {
		return lenserr.ConfigError("index.job_timeout must be positive", nil)
	}
	switch c.Index.ConflictPolicy {
	case "wait", "reject":
	default:
		return lenserr.ConfigError(
			fmt.Sprintf("index.conflict_policy must be wait or reject, got %q", c.Index.ConflictPolicy), nil)
	}
	switch c.Index.FingerprintMode {
	case "stat", "content":
	default:
		return lenserr.ConfigError(
			fmt.Sprintf("index.fingerprint_mode must be stat or content, got %q", c.Index.FingerprintMode), nil)
	}

	if c.Search.LexicalWeight < 0 || c.Search.SemanticWeight < 0 {
		return lenserr.ConfigError("search weights must not be negative", nil)
	}
	if sum := c.Search.LexicalWeight + c.Search.SemanticWeight; math.Abs(sum-1.0) > 1e-9 {
		return lenserr.ConfigError(
			fmt.Sprintf("search weights must sum to 1.0, got %.3f", sum), nil)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return lenserr.ConfigError("search.min_score must be within [0, 1]", nil)
	}
	if c.Vector.Dimensions < 1 {
		return lenserr.ConfigError("vector.dimensions must be at least 1", nil)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return lenserr.ConfigError(
			fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level), nil)
	}

	return nil
}

// DatabasePath returns the record store location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.Data, "medialens.db")
}

// VectorSnapshotPath returns the vector index snapshot location.
func (c *Config) VectorSnapshotPath() string {
	return filepath.Join(c.Paths.Data, "vectors.hnsw")
}

// LockPath returns the data-directory lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.Data, "medialens.lock")
}

// LogFilePath resolves the log file location, or "" when file logging is
// disabled.
func (c *Config) LogFilePath() string {
	if c.Logging.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(c.Paths.Data, c.Logging.File)
}
