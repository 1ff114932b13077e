// Package config loads and validates the texbuilder YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "texbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Tools       ToolsConfig       `yaml:"tools"`
	Build       BuildConfig       `yaml:"build"`
	Patterns    PatternsConfig    `yaml:"patterns"`
	LogEncoding string            `yaml:"log_encoding,omitempty"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Events      EventsConfig      `yaml:"events"`
	History     HistoryConfig     `yaml:"history"`
	Watch       WatchConfig       `yaml:"watch"`
	Check       CheckConfig       `yaml:"check"`
	path        string
}

// DocumentsConfig selects the main documents to build.
type DocumentsConfig struct {
	// Root is the source tree; relative paths resolve against the config file directory.
	Root string `yaml:"root"`
	// Include lists main files relative to Root. When empty, documents are discovered.
	Include []string `yaml:"include,omitempty"`
	// MainPattern identifies main files during discovery.
	MainPattern string `yaml:"main_pattern,omitempty"`
}

// ToolConfig configures one external program.
type ToolConfig struct {
	Command  string   `yaml:"command"`
	Path     string   `yaml:"path,omitempty"`
	Args     []string `yaml:"args,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty"`
}

// ToolsConfig holds the external programs texbuilder drives.
type ToolsConfig struct {
	Latex          ToolConfig `yaml:"latex"`
	Bibtex         ToolConfig `yaml:"bibtex"`
	Makeindex      ToolConfig `yaml:"makeindex"`
	Splitindex     ToolConfig `yaml:"splitindex"`
	Makeglossaries ToolConfig `yaml:"makeglossaries"`
	Pythontex      ToolConfig `yaml:"pythontex"`
	Chktex         ToolConfig `yaml:"chktex"`
	Diff           ToolConfig `yaml:"diff"`
}

// TimestampMode selects the reproducible build timestamp source.
type TimestampMode string

const (
	TimestampNone  TimestampMode = "none"
	TimestampFixed TimestampMode = "fixed"
	TimestampEnv   TimestampMode = "env"
	TimestampGit   TimestampMode = "git"
)

// BuildConfig controls the convergence loop and the worker pool.
type BuildConfig struct {
	Target string `yaml:"target"`
	// MaxReruns bounds compiler reruns; -1 means unbounded.
	MaxReruns   *int          `yaml:"max_reruns,omitempty"`
	Concurrency int           `yaml:"concurrency"`
	Timestamp   TimestampMode `yaml:"timestamp"`
	// TimestampValue is RFC 3339 or Unix seconds; used with timestamp: fixed.
	TimestampValue string `yaml:"timestamp_value,omitempty"`
	ReportDir      string `yaml:"report_dir"`
	BadBoxes       *bool  `yaml:"bad_boxes,omitempty"`
	Warnings       *bool  `yaml:"warnings,omitempty"`
}

// PatternsConfig overrides the regular expressions scanned in logs.
// Empty values keep the defaults.
type PatternsConfig struct {
	LatexRerun       string `yaml:"latex_rerun,omitempty"`
	LatexError       string `yaml:"latex_error,omitempty"`
	LatexWarning     string `yaml:"latex_warning,omitempty"`
	LatexBadBox      string `yaml:"latex_bad_box,omitempty"`
	BibtexError      string `yaml:"bibtex_error,omitempty"`
	BibtexWarning    string `yaml:"bibtex_warning,omitempty"`
	MakeindexError   string `yaml:"makeindex_error,omitempty"`
	MakeindexWarning string `yaml:"makeindex_warning,omitempty"`
	GlossaryError    string `yaml:"glossary_error,omitempty"`
	GlossaryWarning  string `yaml:"glossary_warning,omitempty"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// EventsConfig enables publishing build events to NATS.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// HistoryConfig enables the SQLite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce,omitempty"`
	// RebuildSchedule is a cron expression for periodic full rebuilds; empty disables them.
	RebuildSchedule string   `yaml:"rebuild_schedule,omitempty"`
	Extensions      []string `yaml:"extensions,omitempty"`
}

// CheckConfig configures lint and diff checks.
type CheckConfig struct {
	// ReferenceDir holds expected artifacts for diff checks, relative to the documents root.
	ReferenceDir string `yaml:"reference_dir,omitempty"`
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// Dir returns the directory relative paths in the configuration resolve against.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// Resolve makes p absolute relative to the config directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// Load loads configuration from the specified file, applies defaults,
// normalizes enumerated fields and validates the result.
func Load(configPath string) (*Config, *NormalizationResult, error) {
	loadEnvFiles(filepath.Dir(configPath))

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, errors.ConfigNotFound(configPath)
	}
	// #nosec G304 -- config path is supplied by the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to read config file").
			WithContext("path", configPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to parse config file").
			WithContext("path", configPath)
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	cfg.path = abs

	res, err := NormalizeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		return nil, nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

// Parse decodes YAML with ${VAR} expansion. No defaults are applied.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, rooted at dir.
func Default(dir string) *Config {
	cfg := &Config{path: filepath.Join(dir, DefaultPath)}
	_ = NewDefaultApplier().ApplyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.New(errors.CategoryConfig, errors.SeverityFatal,
			fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath))
	}

	maxReruns := 5
	badBoxes := true
	example := Config{
		Version: "1",
		Documents: DocumentsConfig{
			Root:    ".",
			Include: []string{"thesis.tex"},
		},
		Tools: ToolsConfig{
			Latex:  ToolConfig{Command: "pdflatex", Args: defaultLatexArgs()},
			Bibtex: ToolConfig{Command: "bibtex"},
			Makeindex: ToolConfig{
				Command: "makeindex",
			},
			Makeglossaries: ToolConfig{Command: "makeglossaries"},
			Pythontex:      ToolConfig{Command: "pythontex", Disabled: true},
			Chktex:         ToolConfig{Command: "chktex", Args: []string{"-q"}},
		},
		Build: BuildConfig{
			Target:      "pdf",
			MaxReruns:   &maxReruns,
			Concurrency: 2,
			Timestamp:   TimestampGit,
			ReportDir:   ".texbuilder",
			BadBoxes:    &badBoxes,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: false, Listen: ":9464", Path: "/metrics"},
		Events:  EventsConfig{Enabled: false, URL: "${NATS_URL}", Subject: "texbuilder.builds"},
		History: HistoryConfig{Enabled: true, Path: ".texbuilder/history.db"},
		Watch:   WatchConfig{Debounce: "750ms", RebuildSchedule: "0 3 * * *"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.SeverityFatal, "failed to marshal config")
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.FileSystemError("write config file", err).WithContext("path", configPath)
	}
	return nil
}
