package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/text/encoding/htmlindex"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
)

// ValidateConfig validates the complete configuration.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateDocuments,
		cv.validateTools,
		cv.validateBuild,
		cv.validatePatterns,
		cv.validateObservability,
		cv.validateWatch,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateDocuments() error {
	if _, err := regexp.Compile(cv.config.Documents.MainPattern); err != nil {
		return errors.ValidationFailed("documents.main_pattern", err.Error())
	}
	return nil
}

func (cv *configurationValidator) validateTools() error {
	if cv.config.Tools.Latex.Disabled || cv.config.Tools.Latex.Command == "" {
		return errors.ValidationFailed("tools.latex", "the compiler cannot be disabled")
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build
	switch b.Target {
	case "pdf", "dvi", "xdv":
	default:
		return errors.ValidationFailed("build.target", fmt.Sprintf("unsupported target %q (want pdf, dvi or xdv)", b.Target))
	}
	if b.MaxReruns != nil && *b.MaxReruns < -1 {
		return errors.ValidationFailed("build.max_reruns", "must be -1 (unbounded) or non-negative")
	}
	switch b.Timestamp {
	case TimestampNone, TimestampEnv, TimestampGit:
	case TimestampFixed:
		if _, err := ParseTimestampValue(b.TimestampValue); err != nil {
			return errors.ValidationFailed("build.timestamp_value", err.Error())
		}
	default:
		return errors.ValidationFailed("build.timestamp", fmt.Sprintf("unsupported mode %q", b.Timestamp))
	}
	return nil
}

func (cv *configurationValidator) validatePatterns() error {
	p := cv.config.Patterns
	fields := map[string]string{
		"patterns.latex_rerun":       p.LatexRerun,
		"patterns.latex_error":       p.LatexError,
		"patterns.latex_warning":     p.LatexWarning,
		"patterns.latex_bad_box":     p.LatexBadBox,
		"patterns.bibtex_error":      p.BibtexError,
		"patterns.bibtex_warning":    p.BibtexWarning,
		"patterns.makeindex_error":   p.MakeindexError,
		"patterns.makeindex_warning": p.MakeindexWarning,
		"patterns.glossary_error":    p.GlossaryError,
		"patterns.glossary_warning":  p.GlossaryWarning,
	}
	for field, expr := range fields {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			return errors.ValidationFailed(field, err.Error())
		}
	}
	if cv.config.LogEncoding != "" {
		if _, err := htmlindex.Get(cv.config.LogEncoding); err != nil {
			return errors.ValidationFailed("log_encoding", err.Error())
		}
	}
	return nil
}

func (cv *configurationValidator) validateObservability() error {
	switch cv.config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ValidationFailed("logging.level", fmt.Sprintf("unsupported level %q", cv.config.Logging.Level))
	}
	switch cv.config.Logging.Format {
	case "text", "json":
	default:
		return errors.ValidationFailed("logging.format", fmt.Sprintf("unsupported format %q", cv.config.Logging.Format))
	}
	if cv.config.Events.Enabled {
		u, err := url.Parse(cv.config.Events.URL)
		if err != nil || u.Scheme == "" {
			return errors.ValidationFailed("events.url", "must be a nats:// URL")
		}
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	d, err := time.ParseDuration(cv.config.Watch.Debounce)
	if err != nil {
		return errors.ValidationFailed("watch.debounce", err.Error())
	}
	if d < 0 {
		return errors.ValidationFailed("watch.debounce", "must not be negative")
	}
	if s := cv.config.Watch.RebuildSchedule; s != "" {
		if err := validateCron(s); err != nil {
			return errors.ValidationFailed("watch.rebuild_schedule", err.Error())
		}
	}
	return nil
}

// validateCron registers the expression on a throwaway scheduler, which
// parses it the same way watch mode will.
func validateCron(expr string) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	defer func() { _ = s.Shutdown() }()
	_, err = s.NewJob(gocron.CronJob(expr, false), gocron.NewTask(func() {}))
	return err
}

// ParseTimestampValue accepts RFC 3339 or Unix seconds.
func ParseTimestampValue(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp value required")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or Unix seconds: %w", err)
	}
	return t.UTC(), nil
}
