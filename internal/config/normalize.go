package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/errors"
)

// NormalizationResult captures adjustments made during normalization.
type NormalizationResult struct {
	Warnings []string
}

func (r *NormalizationResult) warnChanged(field string, from, to any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to))
}

// NormalizeConfig canonicalizes enumerated fields in place. Values that
// cannot be mapped onto a known value are left for validation to reject.
func NormalizeConfig(c *Config) (*NormalizationResult, error) {
	if c == nil {
		return nil, errors.ValidationError("config nil")
	}
	res := &NormalizationResult{}
	normalizeLower(res, "build.target", &c.Build.Target)
	normalizeLower(res, "logging.level", &c.Logging.Level)
	normalizeLower(res, "logging.format", &c.Logging.Format)
	normalizeLower(res, "log_encoding", &c.LogEncoding)

	ts := string(c.Build.Timestamp)
	normalizeLower(res, "build.timestamp", &ts)
	c.Build.Timestamp = TimestampMode(ts)

	if c.Logging.Level == "warning" {
		res.warnChanged("logging.level", "warning", "warn")
		c.Logging.Level = "warn"
	}
	return res, nil
}

func normalizeLower(res *NormalizationResult, field string, v *string) {
	n := strings.ToLower(strings.TrimSpace(*v))
	if n != *v {
		res.warnChanged(field, *v, n)
		*v = n
	}
}
