package validation

import (
	"log/slog"

	"git.home.luguber.info/inful/mdocpack/internal/logfields"
)

// SlogLogger routes diagnostics to a slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a Logger writing to l, tagged with the document path.
func NewSlogLogger(l *slog.Logger, file string) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	if file != "" {
		l = l.With(logfields.File(file))
	}
	return &SlogLogger{logger: l}
}

func (s *SlogLogger) Debug(msg string) { s.logger.Debug(msg) }
func (s *SlogLogger) Info(msg string)  { s.logger.Info(msg) }
func (s *SlogLogger) Warn(msg string)  { s.logger.Warn(msg) }
func (s *SlogLogger) Error(msg string) { s.logger.Error(msg) }

// Log is used for levels without a mapping.
func (s *SlogLogger) Log(msg string) { s.logger.Info(msg, logfields.Level("unknown")) }

// Discard drops every message.
type Discard struct{}

func (Discard) Debug(string) {}
func (Discard) Info(string)  {}
func (Discard) Warn(string)  {}
func (Discard) Error(string) {}
func (Discard) Log(string)   {}
