package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyFile       = "file"
	KeySlot       = "slot"
	KeyPartial    = "partial"
	KeyMode       = "mode"
	KeyDiagnostic = "diagnostic"
	KeyLevel      = "level"
	KeyDurationMS = "duration_ms"
	KeyBuildID    = "build_id"
	KeySchemaDir  = "schema_dir"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func File(path string) slog.Attr      { return slog.String(KeyFile, path) }
func Slot(name string) slog.Attr      { return slog.String(KeySlot, name) }
func Partial(id string) slog.Attr     { return slog.String(KeyPartial, id) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Diagnostic(id string) slog.Attr  { return slog.String(KeyDiagnostic, id) }
func Level(l string) slog.Attr        { return slog.String(KeyLevel, l) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func SchemaDir(dir string) slog.Attr  { return slog.String(KeySchemaDir, dir) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
