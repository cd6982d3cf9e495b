package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/gradelens/pkg/analyzer/compare"
	"github.com/panbanda/gradelens/pkg/analyzer/distribution"
	"github.com/panbanda/gradelens/pkg/analyzer/ranking"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for gradelens.
type Config struct {
	// Grading thresholds
	Grading GradingConfig `koanf:"grading" toml:"grading" json:"grading"`

	// Band boundaries in percent of maximum
	Bands classify.Bands `koanf:"bands" toml:"bands" json:"bands"`

	// Risk and momentum heuristics
	Signals compare.SignalConfig `koanf:"signals" toml:"signals" json:"signals"`

	// Distribution labels
	Distribution distribution.Config `koanf:"distribution" toml:"distribution" json:"distribution"`

	Ranking RankingConfig `koanf:"ranking" toml:"ranking" json:"ranking"`

	// Where datasets come from
	Source SourceConfig `koanf:"source" toml:"source" json:"source"`

	Output OutputConfig `koanf:"output" toml:"output" json:"output"`
	Log    LogConfig    `koanf:"log" toml:"log" json:"log"`
	Server ServerConfig `koanf:"server" toml:"server" json:"server"`
}

// GradingConfig sets pass/good/excellent thresholds. The top-level values
// are percentages of a subject's maximum; Subjects holds absolute
// per-subject overrides.
type GradingConfig struct {
	DefaultMaxPoints float64            `koanf:"default_max_points" toml:"default_max_points" json:"default_max_points"`
	Pass             float64            `koanf:"pass" toml:"pass" json:"pass"`
	Good             float64            `koanf:"good" toml:"good" json:"good"`
	Excellent        float64            `koanf:"excellent" toml:"excellent" json:"excellent"`
	Subjects         []SubjectThreshold `koanf:"subjects" toml:"subjects" json:"subjects"`
}

// SubjectThreshold overrides the thresholds of one subject in points.
type SubjectThreshold struct {
	SubjectID int64   `koanf:"subject_id" toml:"subject_id" json:"subject_id"`
	Pass      float64 `koanf:"pass" toml:"pass" json:"pass"`
	Good      float64 `koanf:"good" toml:"good" json:"good"`
	Excellent float64 `koanf:"excellent" toml:"excellent" json:"excellent"`
}

// RankingConfig controls the tie-break total.
type RankingConfig struct {
	Secondary string `koanf:"secondary" toml:"secondary" json:"secondary"` // percentage, total
}

// SourceConfig locates the dataset.
type SourceConfig struct {
	Path           string `koanf:"path" toml:"path" json:"path"`
	DSN            string `koanf:"dsn" toml:"dsn" json:"dsn"`
	MaxConns       int32  `koanf:"max_conns" toml:"max_conns" json:"max_conns"`
	TimeoutSeconds int    `koanf:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format" json:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color" json:"color"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Mode  string `koanf:"mode" toml:"mode" json:"mode"` // development, production
	Level string `koanf:"level" toml:"level" json:"level"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr         string   `koanf:"addr" toml:"addr" json:"addr"`
	AllowOrigins []string `koanf:"allow_origins" toml:"allow_origins" json:"allow_origins"`
	// MaxBodyBytes caps the size of an inline dataset posted to the API.
	MaxBodyBytes int64 `koanf:"max_body_bytes" toml:"max_body_bytes" json:"max_body_bytes"`
}

// DefaultMaxBodyBytes is the default request body limit (8 MiB).
const DefaultMaxBodyBytes = 8 << 20

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	tiers := classify.DefaultPercentTiers()
	return &Config{
		Grading: GradingConfig{
			DefaultMaxPoints: models.DefaultMaxPoints,
			Pass:             tiers.Pass,
			Good:             tiers.Good,
			Excellent:        tiers.Excellent,
		},
		Bands:        classify.DefaultBands(),
		Signals:      compare.DefaultSignalConfig(),
		Distribution: distribution.DefaultConfig(),
		Ranking: RankingConfig{
			Secondary: "percentage",
		},
		Source: SourceConfig{
			MaxConns:       4,
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Mode:  "production",
			Level: "info",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
	dirs []string
}

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs replaces the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// LoadResult is a validated configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

// configNames are searched in order within each search directory.
var configNames = []string{
	"gradelens.toml",
	"gradelens.yaml",
	"gradelens.yml",
	"gradelens.json",
	".gradelens.toml",
	".gradelens.yaml",
	".gradelens.yml",
	".gradelens.json",
}

// LoadConfig loads and validates configuration from an explicit path or
// the first file found in the search directories.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dirs: []string{".", ".gradelens"}}
	for _, opt := range opts {
		opt(&o)
	}

	source := o.path
	if source == "" {
		source = find(o.dirs)
	}

	cfg := DefaultConfig()
	if source != "" {
		var err error
		if cfg, err = Load(source); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", displaySource(source), err)
	}
	return &LoadResult{Config: cfg, Source: source}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	res, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return res.Config
}

func find(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func displaySource(source string) string {
	if source == "" {
		return "default configuration"
	}
	return source
}

// Validate checks every threshold for consistency.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Grading.DefaultMaxPoints <= 0 {
		add("grading.default_max_points must be positive, got %v", c.Grading.DefaultMaxPoints)
	}
	if c.Grading.Pass <= 0 || !c.PercentTiers().Valid() || c.Grading.Excellent > 100 {
		add("grading thresholds must satisfy 0 < pass <= good <= excellent <= 100")
	}
	seen := make(map[int64]bool, len(c.Grading.Subjects))
	for _, s := range c.Grading.Subjects {
		if seen[s.SubjectID] {
			add("grading.subjects: duplicate subject_id %d", s.SubjectID)
		}
		seen[s.SubjectID] = true
		t := classify.Tiers{Pass: s.Pass, Good: s.Good, Excellent: s.Excellent}
		if s.Pass <= 0 || !t.Valid() {
			add("grading.subjects: subject %d thresholds must satisfy 0 < pass <= good <= excellent", s.SubjectID)
		}
	}
	if !c.Bands.Valid() {
		add("bands must satisfy 0 < lower < middle < elite <= 100")
	}
	if c.Signals.MinRisk <= 0 || c.Signals.MinMomentum <= 0 {
		add("signals.min_risk and signals.min_momentum must be positive")
	}
	if c.Signals.TopN < 0 || c.Signals.Limit < 0 {
		add("signals.top_n and signals.limit must not be negative")
	}
	if c.Distribution.SkewThreshold <= 0 {
		add("distribution.skew_threshold must be positive")
	}
	switch c.Ranking.Secondary {
	case "percentage", "total":
	default:
		add("ranking.secondary must be percentage or total, got %q", c.Ranking.Secondary)
	}
	switch c.Output.Format {
	case "text", "json", "markdown", "toon":
	default:
		add("output.format must be text, json, markdown or toon, got %q", c.Output.Format)
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}
	switch c.Log.Mode {
	case "development", "production":
	default:
		add("log.mode must be development or production, got %q", c.Log.Mode)
	}
	return errors.Join(errs...)
}

// PercentTiers returns the grading thresholds as percentages of maximum.
func (c *Config) PercentTiers() classify.Tiers {
	return classify.Tiers{Pass: c.Grading.Pass, Good: c.Grading.Good, Excellent: c.Grading.Excellent}
}

// Overrides returns the absolute per-subject thresholds keyed by subject id.
func (c *Config) Overrides() map[int64]classify.Tiers {
	out := make(map[int64]classify.Tiers, len(c.Grading.Subjects))
	for _, s := range c.Grading.Subjects {
		out[s.SubjectID] = classify.Tiers{Pass: s.Pass, Good: s.Good, Excellent: s.Excellent}
	}
	return out
}

// Resolver builds the threshold lookup for a set of subjects.
func (c *Config) Resolver(subjects []models.Subject) classify.Resolver {
	return classify.NewTableResolver(c.PercentTiers(), c.Grading.DefaultMaxPoints, subjects, c.Overrides())
}

// Secondary returns the ranking tie-break function.
func (c *Config) Secondary() ranking.SecondaryFunc {
	if c.Ranking.Secondary == "total" {
		return func(e ranking.Entry) float64 { return e.Total }
	}
	return ranking.ByPercentage
}
