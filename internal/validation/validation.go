// Package validation runs schema-aware validation over a parsed document,
// surfaces every diagnostic through a Logger and fails only on critical ones.
package validation

import (
	"strings"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

// ignoredDiagnostic is raised for tags registered only at request time, so
// it is expected at build time and carries no signal.
const ignoredDiagnostic = "tag-undefined"

// Logger receives non-fatal and fatal diagnostics by level.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Log(msg string)
}

// Report summarises one validation run.
type Report struct {
	// Diagnostics holds every reported diagnostic in document order.
	Diagnostics []markdoc.ValidateError
	// Fatal holds the critical subset of Diagnostics.
	Fatal []markdoc.ValidateError
}

// Counts returns the number of diagnostics per level.
func (r *Report) Counts() map[markdoc.Level]int {
	out := map[markdoc.Level]int{}
	for _, d := range r.Diagnostics {
		out[d.Error.Level]++
	}
	return out
}

// Validate validates tree against cfg. All diagnostics except undefined
// tags are routed to logger; when any is critical the returned error holds
// each critical message with its source lines and a caret under the
// reported offset. The report is returned in both cases.
func Validate(tree *markdoc.Node, cfg *markdoc.Config, source string, logger Logger) (*Report, error) {
	if logger == nil {
		logger = Discard{}
	}
	report := &Report{}
	for _, d := range markdoc.Validate(tree, cfg) {
		if d.Error.ID == ignoredDiagnostic {
			continue
		}
		report.Diagnostics = append(report.Diagnostics, d)
		route(logger, d.Error)
		if d.Error.Level == markdoc.LevelCritical {
			report.Fatal = append(report.Fatal, d)
		}
	}

	if len(report.Fatal) == 0 {
		return report, nil
	}
	return report, derrors.ValidationError(FormatFatal(report.Fatal, source)).
		WithContext("diagnostics", len(report.Fatal)).
		Build()
}

func route(logger Logger, e markdoc.Error) {
	switch e.Level {
	case markdoc.LevelDebug:
		logger.Debug(e.Message)
	case markdoc.LevelInfo:
		logger.Info(e.Message)
	case markdoc.LevelError, markdoc.LevelCritical:
		logger.Error(e.Message)
	case markdoc.LevelWarning:
		logger.Warn(e.Message)
	default:
		logger.Log(e.Message)
	}
}

// FormatFatal renders diagnostics as the message of a build failure: the
// diagnostic message, the referenced source lines, an optional caret line
// and a blank separator line per diagnostic.
func FormatFatal(diags []markdoc.ValidateError, source string) string {
	lines := strings.Split(source, "\n")
	var parts []string
	for _, d := range diags {
		parts = append(parts, d.Error.Message)
		from, to := lineRange(d.Lines, len(lines))
		parts = append(parts, lines[from:to]...)
		if col, ok := caretColumn(d, lines); ok {
			parts = append(parts, strings.Repeat(" ", col)+"^")
		}
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n")
}

func lineRange(span []int, n int) (int, int) {
	if len(span) < 2 {
		return 0, 0
	}
	from, to := clamp(span[0], n), clamp(span[1], n)
	if to < from {
		to = from
	}
	return from, to
}

func clamp(v, n int) int {
	return max(0, min(v, n))
}

// caretColumn is the distance of the error offset from the start of the
// first referenced line.
func caretColumn(d markdoc.ValidateError, lines []string) (int, bool) {
	if d.Error.Location == nil || len(d.Lines) == 0 {
		return 0, false
	}
	first := clamp(d.Lines[0], len(lines))
	start := 0
	for _, l := range lines[:first] {
		start += len(l) + 1
	}
	col := d.Error.Location.Start.Offset - start
	if col < 0 {
		return 0, false
	}
	return col, true
}
