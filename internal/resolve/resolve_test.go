package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFSResolver_RelativeWithExtensionProbe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tags.js"), "export default {}")

	got, err := NewFSResolver().Resolve(context.Background(), dir, "./tags")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "tags.js"), got)
}

func TestFSResolver_DirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "nodes", "index.ts"), "")

	got, err := NewFSResolver().Resolve(context.Background(), dir, "./nodes")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "nodes", "index.ts"), got)
}

func TestFSResolver_BareRequestWalksNodeModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "config", "index.json"), "{}")
	nested := filepath.Join(root, "app", "markdoc")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	got, err := NewFSResolver().Resolve(context.Background(), nested, "config")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "node_modules", "config", "index.json"), got)
}

func TestFSResolver_MissingIsErrNotFound(t *testing.T) {
	_, err := NewFSResolver().Resolve(context.Background(), t.TempDir(), "./functions")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSResolver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFSResolver().Resolve(ctx, t.TempDir(), "./tags")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDependencySet_Covers(t *testing.T) {
	deps := NewDependencySet()
	deps.AddContextDependency("/site/markdoc")
	deps.AddDependency("/site/pages/index.md")

	require.True(t, deps.Covers("/site/markdoc/tags.js"))
	require.True(t, deps.Covers("/site/markdoc"))
	require.True(t, deps.Covers("/site/pages/index.md"))
	require.False(t, deps.Covers("/site/markdocs/x.js"))
	require.Equal(t, []string{"/site/markdoc"}, deps.Dirs())
	require.Equal(t, []string{"/site/pages/index.md"}, deps.Files())
}
