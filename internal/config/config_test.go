package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndRelativeDir(t *testing.T) {
	path := writeConfig(t, "mode: Server\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, filepath.Dir(path), cfg.Dir)
	require.Equal(t, ModeServer, cfg.Mode)
	require.Equal(t, `\.(md|mdoc)$`, cfg.Extension)
	require.Equal(t, "./markdoc", cfg.SchemaPath)
	require.False(t, cfg.SchemaCustom)
	require.Equal(t, ".js", cfg.Output.Extension)
	require.GreaterOrEqual(t, cfg.Build.Workers, 1)
	require.Equal(t, filepath.Join(cfg.Dir, "pages"), cfg.Path(cfg.PagesDir))
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("MDOCPACK_TEST_SCHEMA", "./schema")
	cfg, err := Load(writeConfig(t, "schema_path: ${MDOCPACK_TEST_SCHEMA}\noutput:\n  extension: mjs\n"))
	require.NoError(t, err)
	require.Equal(t, "./schema", cfg.SchemaPath)
	require.True(t, cfg.SchemaCustom)
	require.Equal(t, ".mjs", cfg.Output.Extension)
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv("MDOCPACK_TEST_MODE", "server")
	path := writeConfig(t, "mode: ${MDOCPACK_TEST_MODE}\npages_dir: ${MDOCPACK_TEST_PAGES}\n")
	dir := filepath.Dir(path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("MDOCPACK_TEST_MODE=static\nMDOCPACK_TEST_PAGES=src/pages\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MDOCPACK_TEST_PAGES") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ModeServer, cfg.Mode)
	require.Equal(t, "src/pages", cfg.PagesDir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))

	_, err = Load(writeConfig(t, "extension: \"\\\\.(md\"\n"))
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))

	_, err = Load(writeConfig(t, "pages_dir: out\noutput:\n  directory: out\n"))
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestNormalize_UnknownLogLevelWarns(t *testing.T) {
	cfg := &Config{LogLevel: "LOUD"}
	res, err := Normalize(cfg)
	require.NoError(t, err)
	require.Equal(t, LogLevelInfo, cfg.LogLevel)
	require.Len(t, res.Warnings, 1)
}

func TestLoad_UnknownModeFallsBackToStatic(t *testing.T) {
	cfg, err := Load(writeConfig(t, "mode: edge\nlog_level: debug\n"))
	require.NoError(t, err)
	require.Equal(t, ModeStatic, cfg.Mode)
	require.Equal(t, []string{"unknown mode 'edge', defaulting to static"}, cfg.Warnings)
}

func TestLoad_WatchRetry(t *testing.T) {
	cfg, err := Load(writeConfig(t, "watch:\n  retry_backoff: Exponential\n  retry_initial: 50ms\n  max_retries: 4\n"))
	require.NoError(t, err)
	require.Equal(t, RetryBackoffExponential, cfg.Watch.RetryBackoff)
	require.Equal(t, 50*time.Millisecond, cfg.Watch.RetryInitial)
	require.Equal(t, 4, cfg.Watch.MaxRetries)

	require.Equal(t, RetryBackoffLinear, Default(t.TempDir()).Watch.RetryBackoff)

	_, err = Load(writeConfig(t, "watch:\n  retry_backoff: sometimes\n"))
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}
