// Package config loads and validates smartsearch configuration.
//
// Precedence, lowest to highest: built-in defaults, config file
// (smartsearch.yaml), environment variables (SMARTSEARCH_*).
// Validation runs once at load time; an invalid configuration is fatal
// at startup and can never surface at query time.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-directory config file name.
const ConfigFileName = "smartsearch.yaml"

// Config represents the complete smartsearch configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Fusion    FusionConfig    `yaml:"fusion" json:"fusion"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Spell     SpellConfig     `yaml:"spell" json:"spell"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk locations for index data.
type PathsConfig struct {
	// DataDir is the root directory for all index artifacts
	// (catalog database, lexical index, vector store).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Tables is an optional directory of YAML table files (lexicon,
	// misspellings, gazetteers, synonyms) overriding the embedded defaults.
	Tables string `yaml:"tables" json:"tables"`
}

// FusionConfig configures score fusion.
// The three strategy weights must sum to 1.0; this is enforced at load.
type FusionConfig struct {
	// LexicalWeight is the weight for keyword index scores (default: 0.4).
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// StatisticalWeight is the weight for structured/attribute scores (default: 0.3).
	StatisticalWeight float64 `yaml:"statistical_weight" json:"statistical_weight"`

	// SemanticWeight is the weight for vector similarity scores (default: 0.3).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// BusinessBoostFactor scales the multiplicative business-signal boost
	// applied after fusion (default: 0.2).
	BusinessBoostFactor float64 `yaml:"business_boost_factor" json:"business_boost_factor"`
}

// RetrievalConfig configures the strategy escalation state machine.
type RetrievalConfig struct {
	// TargetCount is the number of unique candidates at which escalation
	// stops (default: 20).
	TargetCount int `yaml:"target_count" json:"target_count"`

	// MinAcceptable is the yield below which the next strategy is always
	// invoked (default: 5).
	MinAcceptable int `yaml:"min_acceptable" json:"min_acceptable"`

	// StrategyTimeout bounds each individual strategy call (default: 150ms).
	StrategyTimeout time.Duration `yaml:"strategy_timeout" json:"strategy_timeout"`

	// RequestBudget bounds the whole retrieval phase (default: 500ms).
	RequestBudget time.Duration `yaml:"request_budget" json:"request_budget"`
}

// SpellConfig configures the spell corrector.
type SpellConfig struct {
	// MaxEditDistance is the maximum edit distance for lexicon candidate
	// lookup (default: 2).
	MaxEditDistance int `yaml:"max_edit_distance" json:"max_edit_distance"`

	// MinFrequency is the minimum observed frequency a lexicon candidate
	// needs before it is accepted as a correction (default: 2). Guards
	// against correcting rare-but-valid brand names into common words.
	MinFrequency int `yaml:"min_frequency" json:"min_frequency"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Enabled toggles the read-through result cache (default: true).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Size is the maximum number of cached responses (default: 1024).
	Size int `yaml:"size" json:"size"`
	// TTL is how long a cached response stays fresh (default: 60s).
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Fusion: FusionConfig{
			LexicalWeight:       0.4,
			StatisticalWeight:   0.3,
			SemanticWeight:      0.3,
			BusinessBoostFactor: 0.2,
		},
		Retrieval: RetrievalConfig{
			TargetCount:     20,
			MinAcceptable:   5,
			StrategyTimeout: 150 * time.Millisecond,
			RequestBudget:   500 * time.Millisecond,
		},
		Spell: SpellConfig{
			MaxEditDistance: 2,
			MinFrequency:    2,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    1024,
			TTL:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration for the given directory.
// Missing config file is not an error; defaults apply.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SMARTSEARCH_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Fusion.LexicalWeight = w
		}
	}
	if v := os.Getenv("SMARTSEARCH_STATISTICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Fusion.StatisticalWeight = w
		}
	}
	if v := os.Getenv("SMARTSEARCH_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Fusion.SemanticWeight = w
		}
	}
	if v := os.Getenv("SMARTSEARCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SMARTSEARCH_TABLES_DIR"); v != "" {
		c.Paths.Tables = v
	}
	if v := os.Getenv("SMARTSEARCH_STRATEGY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Retrieval.StrategyTimeout = d
		}
	}
	if v := os.Getenv("SMARTSEARCH_REQUEST_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Retrieval.RequestBudget = d
		}
	}
	if v := os.Getenv("SMARTSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SMARTSEARCH_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// WeightSumTolerance is the floating-point slack allowed when checking
// that fusion weights sum to 1.0.
const WeightSumTolerance = 1e-6

// ErrInvalidConfig marks a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for consistency.
// Called once at startup; failures here are fatal.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	for name, w := range map[string]float64{
		"fusion.lexical_weight":     c.Fusion.LexicalWeight,
		"fusion.statistical_weight": c.Fusion.StatisticalWeight,
		"fusion.semantic_weight":    c.Fusion.SemanticWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, w)
		}
	}

	sum := c.Fusion.LexicalWeight + c.Fusion.StatisticalWeight + c.Fusion.SemanticWeight
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.6f", sum)
	}

	if c.Fusion.BusinessBoostFactor < 0 {
		return fmt.Errorf("fusion.business_boost_factor must be non-negative, got %f", c.Fusion.BusinessBoostFactor)
	}

	if c.Retrieval.TargetCount <= 0 {
		return fmt.Errorf("retrieval.target_count must be positive, got %d", c.Retrieval.TargetCount)
	}
	if c.Retrieval.MinAcceptable < 0 {
		return fmt.Errorf("retrieval.min_acceptable must be non-negative, got %d", c.Retrieval.MinAcceptable)
	}
	if c.Retrieval.MinAcceptable > c.Retrieval.TargetCount {
		return fmt.Errorf("retrieval.min_acceptable (%d) cannot exceed retrieval.target_count (%d)",
			c.Retrieval.MinAcceptable, c.Retrieval.TargetCount)
	}
	if c.Retrieval.StrategyTimeout <= 0 {
		return fmt.Errorf("retrieval.strategy_timeout must be positive, got %s", c.Retrieval.StrategyTimeout)
	}
	if c.Retrieval.RequestBudget <= 0 {
		return fmt.Errorf("retrieval.request_budget must be positive, got %s", c.Retrieval.RequestBudget)
	}

	if c.Spell.MaxEditDistance < 0 {
		return fmt.Errorf("spell.max_edit_distance must be non-negative, got %d", c.Spell.MaxEditDistance)
	}
	if c.Spell.MinFrequency < 0 {
		return fmt.Errorf("spell.min_frequency must be non-negative, got %d", c.Spell.MinFrequency)
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative, got %d", c.Cache.Size)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative, got %s", c.Cache.TTL)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".smartsearch")
	}
	return filepath.Join(home, ".smartsearch")
}
