package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdocpack/internal/build"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/retry"
)

func project(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files["mdocpack.yaml"] = "build:\n  workers: 1\n"
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	g := &Global{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Level:  &slog.LevelVar{},
		Out:    &out,
		Err:    io.Discard,
	}
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Bind(g), kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(append([]string{"-c", filepath.Join(root, "mdocpack.yaml")}, args...))
	require.NoError(t, err)
	err = kctx.Run(g, cli)
	return out.String(), err
}

func TestCompile_PrintsModule(t *testing.T) {
	root := project(t, map[string]string{"pages/index.md": "# Home\n"})
	doc := filepath.Join(root, "pages", "index.md")

	out, err := execute(t, root, "compile", doc)
	require.NoError(t, err)
	require.Contains(t, out, "export async function getStaticProps(context)")
	require.Contains(t, out, `const filepath = "/index.md";`)

	out, err = execute(t, root, "compile", "--mode", "server", doc)
	require.NoError(t, err)
	require.Contains(t, out, "getServerSideProps")
}

func TestCompile_WritesOutputFile(t *testing.T) {
	root := project(t, map[string]string{"pages/index.md": "# Home\n"})
	target := filepath.Join(root, "out", "index.js")
	out, err := execute(t, root, "compile", "-o", target, filepath.Join(root, "pages", "index.md"))
	require.NoError(t, err)
	require.Empty(t, out)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(data), "MarkdocComponent")
}

func TestBuild_ReportsSummary(t *testing.T) {
	root := project(t, map[string]string{"pages/index.md": "# Home\n", "pages/about.md": "# About\n"})
	textfile := filepath.Join(root, "metrics.prom")

	out, err := execute(t, root, "build", "--metrics-textfile", textfile)
	require.NoError(t, err)
	require.Contains(t, out, "success: 2 compiled, 0 cached, 0 failed, 0 removed")
	require.FileExists(t, filepath.Join(root, ".mdocpack", "out", "pages", "index.js"))

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	require.Contains(t, string(data), `mdocpack_compile_outcomes_total{outcome="compiled"} 2`)

	out, err = execute(t, root, "build")
	require.NoError(t, err)
	require.Contains(t, out, "0 compiled, 2 cached")
}

func TestCheck_FailsOnCriticalDiagnostics(t *testing.T) {
	root := project(t, map[string]string{
		"pages/good.md": "# Fine\n",
		"pages/bad.md":  "# Title\n\n{% callout %}\nBody\n",
	})
	out, err := execute(t, root, "check", "--color", "never")
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryValidation))
	require.Contains(t, out, filepath.Join(root, "pages", "bad.md"))
	require.Contains(t, out, " critical ")
	require.Contains(t, out, "1 of 2 documents have critical diagnostics")
	require.NotContains(t, out, "\x1b[")

	out, err = execute(t, root, "check", "--color", "never", filepath.Join(root, "pages", "good.md"))
	require.NoError(t, err)
	require.Contains(t, out, "1 documents ok")
}

func TestProps_IncludesFrontmatter(t *testing.T) {
	root := project(t, map[string]string{"pages/index.md": "---\ntitle: Hello\n---\n# Body\n"})
	out, err := execute(t, root, "props", filepath.Join(root, "pages", "index.md"), "--var", "count=3")
	require.NoError(t, err)

	var props map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &props))
	md := props["markdoc"].(map[string]any)
	require.Equal(t, map[string]any{"title": "Hello"}, md["frontmatter"])
	require.Equal(t, map[string]any{"path": "/index.md"}, md["file"])
	require.NotNil(t, md["content"])
}

func TestPreview_RendersHTML(t *testing.T) {
	root := project(t, map[string]string{"pages/index.md": "Some text\n"})
	out, err := execute(t, root, "preview", filepath.Join(root, "pages", "index.md"))
	require.NoError(t, err)
	require.Contains(t, out, "<article>")
	require.Contains(t, out, "Some text")
}

func TestNextConfig_RegistersLoader(t *testing.T) {
	root := project(t, map[string]string{
		"next.config.json": `{"reactStrictMode": true, "turbopack": {"resolveAlias": {"x": "y"}}, "webpack": {"rules": [{"test": "\\.css$", "use": [{"loader": "css-loader"}]}]}}`,
	})
	out, err := execute(t, root, "next-config", filepath.Join(root, "next.config.json"))
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	require.Equal(t, true, cfg["reactStrictMode"])

	rules := cfg["webpack"].(map[string]any)["rules"].([]any)
	require.Len(t, rules, 2)
	require.Equal(t, `\.css$`, rules[0].(map[string]any)["test"])
	use := rules[1].(map[string]any)["use"].([]any)
	require.Equal(t, "next-babel-loader", use[0].(map[string]any)["loader"])
	require.Equal(t, "mdocpack/loader", use[1].(map[string]any)["loader"])

	turbopack := cfg["turbopack"].(map[string]any)
	require.Equal(t, map[string]any{"x": "y"}, turbopack["resolveAlias"])
	require.Contains(t, turbopack, "rules")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "build")
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "warning")
	require.Equal(t, slog.LevelWarn, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true))
	t.Setenv(LogLevelEnv, "")
	require.Equal(t, slog.LevelInfo, parseLogLevel(false))
}

func TestDecodeVars(t *testing.T) {
	require.Nil(t, decodeVars(nil))
	require.Equal(t, map[string]any{"n": float64(3), "s": "plain", "b": true},
		decodeVars(map[string]string{"n": "3", "s": "plain", "b": "true"}))
}

type flakyService struct {
	requests [][]string
	failures []error
}

func (f *flakyService) Run(_ context.Context, req build.BuildRequest) (*build.BuildResult, error) {
	f.requests = append(f.requests, req.Files)
	if len(f.failures) == 0 {
		return &build.BuildResult{Status: build.BuildStatusSuccess}, nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return &build.BuildResult{
		Status: build.BuildStatusFailed,
		Files:  []build.FileResult{{Path: "/p/a.md"}, {Path: "/p/b.md", Err: err}},
	}, derrors.BuildError("1 of 2 documents failed").WithCause(errors.Join(err)).Build()
}

func TestRebuild_RetriesFilesystemFailures(t *testing.T) {
	fsErr := derrors.FileSystemError("partial file not found").Build()
	svc := &flakyService{failures: []error{fsErr}}
	policy := retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2)

	err := rebuild(context.Background(), svc, build.BuildRequest{Files: []string{"/p/a.md", "/p/b.md"}}, policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"/p/a.md", "/p/b.md"}, {"/p/b.md"}}, svc.requests)
}

func TestRebuild_DoesNotRetryValidationFailures(t *testing.T) {
	svc := &flakyService{failures: []error{derrors.ValidationError("bad").Build()}}
	policy := retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2)

	err := rebuild(context.Background(), svc, build.BuildRequest{}, policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	require.Len(t, svc.requests, 1)
}
