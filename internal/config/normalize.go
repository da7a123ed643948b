package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mdocpack/internal/foundation/normalization"
)

const (
	ModeStatic = "static"
	ModeServer = "server"
)

var modeNormalizer = normalization.NewEnum("mode", map[string]string{
	ModeStatic: ModeStatic,
	ModeServer: ModeServer,
}, ModeStatic)

const (
	RetryBackoffFixed       = "fixed"
	RetryBackoffLinear      = "linear"
	RetryBackoffExponential = "exponential"
)

var retryBackoffNormalizer = normalization.NewEnum("retry_backoff", map[string]string{
	RetryBackoffFixed:       RetryBackoffFixed,
	RetryBackoffLinear:      RetryBackoffLinear,
	RetryBackoffExponential: RetryBackoffExponential,
}, RetryBackoffLinear)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewEnum("log_level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel maps raw onto a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// NormalizationResult captures adjustments made by Normalize.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalizes enumerated fields in place. An unknown mode falls
// back to static and an unknown log level to info, each with a warning.
func Normalize(c *Config) (*NormalizationResult, error) {
	res := &NormalizationResult{}
	if raw := c.Mode; strings.TrimSpace(raw) != "" {
		mode := modeNormalizer.Normalize(raw)
		if !modeNormalizer.Known(raw) {
			res.Warnings = append(res.Warnings, warnUnknown("mode", raw, ModeStatic))
			c.Mode = mode
		} else if mode != c.Mode {
			res.Warnings = append(res.Warnings, warnChanged("mode", c.Mode, mode))
			c.Mode = mode
		}
	}
	if raw := string(c.LogLevel); strings.TrimSpace(raw) != "" {
		lvl := NormalizeLogLevel(raw)
		if !logLevelNormalizer.Known(raw) {
			res.Warnings = append(res.Warnings, warnUnknown("log_level", raw, string(LogLevelInfo)))
		} else if lvl != c.LogLevel {
			res.Warnings = append(res.Warnings, warnChanged("log_level", c.LogLevel, lvl))
		}
		c.LogLevel = lvl
	}
	if strings.TrimSpace(c.Watch.RetryBackoff) != "" {
		backoff, err := retryBackoffNormalizer.Parse(c.Watch.RetryBackoff)
		if err != nil {
			return nil, configError(err.Error(), "watch.retry_backoff")
		}
		c.Watch.RetryBackoff = backoff
	}
	c.Output.Extension = strings.TrimSpace(c.Output.Extension)
	if c.Output.Extension != "" && !strings.HasPrefix(c.Output.Extension, ".") {
		c.Output.Extension = "." + c.Output.Extension
	}
	if c.Build.Workers < 0 {
		c.Build.Workers = 0
	}
	return res, nil
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}
