package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

type recordingLogger struct {
	calls []string
}

func (r *recordingLogger) Debug(msg string) { r.calls = append(r.calls, "debug:"+msg) }
func (r *recordingLogger) Info(msg string)  { r.calls = append(r.calls, "info:"+msg) }
func (r *recordingLogger) Warn(msg string)  { r.calls = append(r.calls, "warn:"+msg) }
func (r *recordingLogger) Error(msg string) { r.calls = append(r.calls, "error:"+msg) }
func (r *recordingLogger) Log(msg string)   { r.calls = append(r.calls, "log:"+msg) }

func parse(t *testing.T, src string) *markdoc.Node {
	t.Helper()
	doc, err := markdoc.Parse(src)
	require.NoError(t, err)
	return doc
}

func TestValidate_CleanDocumentPasses(t *testing.T) {
	src := "# Hello\n\n{% custom /%}\n"
	logger := &recordingLogger{}

	report, err := Validate(parse(t, src), nil, src, logger)
	require.NoError(t, err)
	require.Empty(t, report.Diagnostics)
	require.Empty(t, logger.calls, "undefined tags are not reported")
}

func TestValidate_MissingClosingIsFatalWithCaret(t *testing.T) {
	src := "# Title\n\n{% callout %}\nBody\n"
	logger := &recordingLogger{}

	report, err := Validate(parse(t, src), nil, src, logger)
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryValidation))
	require.Len(t, report.Fatal, 1)
	require.Equal(t, "Node 'callout' is missing closing\n{% callout %}\n^\n", err.Error())
	require.Equal(t, []string{"error:Node 'callout' is missing closing"}, logger.calls)
}

func TestValidate_SyntaxErrorCaretPointsAtOffset(t *testing.T) {
	src := "Hello\n{% foo bar= %}\n"

	_, err := Validate(parse(t, src), nil, src, nil)
	require.Error(t, err)
	want := "Expected value\n{% foo bar= %}\n" + strings.Repeat(" ", 12) + "^\n"
	require.Equal(t, want, err.Error())
}

func TestValidate_CaretColumnIgnoresPrecedingLineBreaks(t *testing.T) {
	src := "A\nBB\nCCC\n{% foo bar= %}\n"

	_, err := Validate(parse(t, src), nil, src, nil)
	require.Error(t, err)
	want := "Expected value\n{% foo bar= %}\n" + strings.Repeat(" ", 12) + "^\n"
	require.Equal(t, want, err.Error())
}

func TestValidate_MultipleFatalDiagnosticsAreJoined(t *testing.T) {
	src := "{% a %}\n\n{% b %}\n"

	report, err := Validate(parse(t, src), nil, src, nil)
	require.Error(t, err)
	require.Len(t, report.Fatal, 2)
	require.Contains(t, err.Error(), "Node 'a' is missing closing")
	require.Contains(t, err.Error(), "Node 'b' is missing closing")
}

func TestValidate_NonFatalDiagnosticsOnlyLogged(t *testing.T) {
	cfg := &markdoc.Config{Tags: map[string]*markdoc.Schema{
		"callout": {Attributes: map[string]*markdoc.Attribute{"type": {Type: markdoc.AttrString}}},
	}}
	src := "{% callout kind=\"x\" /%}\n"
	logger := &recordingLogger{}

	report, err := Validate(parse(t, src), cfg, src, logger)
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 1)
	require.Empty(t, report.Fatal)
	require.Equal(t, map[markdoc.Level]int{markdoc.LevelError: 1}, report.Counts())
	require.Equal(t, []string{"error:Invalid attribute: 'kind'"}, logger.calls)
}

func TestRoute_LevelMapping(t *testing.T) {
	logger := &recordingLogger{}
	for _, level := range []markdoc.Level{
		markdoc.LevelDebug, markdoc.LevelInfo, markdoc.LevelWarning,
		markdoc.LevelError, markdoc.LevelCritical, markdoc.Level("other"),
	} {
		route(logger, markdoc.Error{Level: level, Message: string(level)})
	}
	require.Equal(t, []string{
		"debug:debug", "info:info", "warn:warning",
		"error:error", "error:critical", "log:other",
	}, logger.calls)
}

func TestFormatFatal_WithoutLocationHasNoCaret(t *testing.T) {
	diag := markdoc.ValidateError{
		Lines: []int{1, 2},
		Error: markdoc.Error{Message: "boom", Level: markdoc.LevelCritical},
	}
	require.Equal(t, "boom\nsecond\n", FormatFatal([]markdoc.ValidateError{diag}, "first\nsecond\nthird"))
}
