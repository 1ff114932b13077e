package config

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/document"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&DocumentsDefaultApplier{},
			&ToolsDefaultApplier{},
			&BuildDefaultApplier{},
			&ObservabilityDefaultApplier{},
			&WatchDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// GetApplierByDomain returns a specific domain applier (useful for testing).
func (c *CompositeDefaultApplier) GetApplierByDomain(domain string) DefaultApplier {
	for _, applier := range c.appliers {
		if applier.Domain() == domain {
			return applier
		}
	}
	return nil
}

// DocumentsDefaultApplier handles document selection defaults.
type DocumentsDefaultApplier struct{}

func (d *DocumentsDefaultApplier) Domain() string { return "documents" }

func (d *DocumentsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Documents.Root == "" {
		cfg.Documents.Root = "."
	}
	if cfg.Documents.MainPattern == "" {
		cfg.Documents.MainPattern = document.DefaultMainPattern
	}
	return nil
}

// ToolsDefaultApplier fills in the standard TeX Live program names.
type ToolsDefaultApplier struct{}

func (t *ToolsDefaultApplier) Domain() string { return "tools" }

func defaultLatexArgs() []string {
	return []string{"-interaction=nonstopmode", "-file-line-error", "-recorder"}
}

func (t *ToolsDefaultApplier) ApplyDefaults(cfg *Config) error {
	fill := func(tc *ToolConfig, command string, args []string) {
		if tc.Command == "" {
			tc.Command = command
		}
		if tc.Args == nil && args != nil {
			tc.Args = args
		}
	}
	tools := &cfg.Tools
	fill(&tools.Latex, "pdflatex", defaultLatexArgs())
	fill(&tools.Bibtex, "bibtex", nil)
	fill(&tools.Makeindex, "makeindex", nil)
	fill(&tools.Splitindex, "splitindex", []string{"-m", "makeindex"})
	fill(&tools.Makeglossaries, "makeglossaries", nil)
	fill(&tools.Pythontex, "pythontex", nil)
	fill(&tools.Chktex, "chktex", []string{"-q"})
	fill(&tools.Diff, "diff", []string{"-q"})
	return nil
}

// BuildDefaultApplier handles Build configuration defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

// DefaultMaxReruns is the rerun bound when none is configured.
const DefaultMaxReruns = 5

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Target == "" {
		cfg.Build.Target = "pdf"
	}
	if cfg.Build.MaxReruns == nil {
		n := DefaultMaxReruns
		cfg.Build.MaxReruns = &n
	}
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = 1
	}
	if cfg.Build.Timestamp == "" {
		cfg.Build.Timestamp = TimestampNone
	}
	if cfg.Build.ReportDir == "" {
		cfg.Build.ReportDir = ".texbuilder"
	}
	if cfg.Build.BadBoxes == nil {
		v := true
		cfg.Build.BadBoxes = &v
	}
	if cfg.Build.Warnings == nil {
		v := true
		cfg.Build.Warnings = &v
	}
	return nil
}

// ObservabilityDefaultApplier handles logging, metrics, events and history defaults.
type ObservabilityDefaultApplier struct{}

func (o *ObservabilityDefaultApplier) Domain() string { return "observability" }

func (o *ObservabilityDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "texbuilder.builds"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = ".texbuilder/history.db"
	}
	return nil
}

// WatchDefaultApplier handles watch mode defaults.
type WatchDefaultApplier struct{}

func (w *WatchDefaultApplier) Domain() string { return "watch" }

func (w *WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "500ms"
	}
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = []string{".tex", ".bib", ".sty", ".cls", ".bst"}
	}
	return nil
}
