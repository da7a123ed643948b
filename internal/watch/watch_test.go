package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector_CoalescesAndFlagsContextDirs(t *testing.T) {
	c := collector{
		contextDirs: []string{"/site/markdoc"},
		match:       func(p string) bool { return strings.HasSuffix(p, ".md") },
	}

	_, ok := c.flush()
	require.False(t, ok)

	require.True(t, c.add("/site/pages/b.md"))
	require.True(t, c.add("/site/pages/a.md"))
	require.True(t, c.add("/site/pages/a.md"))
	require.False(t, c.add("/site/pages/image.png"))

	batch, ok := c.flush()
	require.True(t, ok)
	require.Equal(t, Batch{Files: []string{"/site/pages/a.md", "/site/pages/b.md"}}, batch)

	require.True(t, c.add("/site/markdoc/tags.js"))
	batch, ok = c.flush()
	require.True(t, ok)
	require.True(t, batch.Full)
	require.Empty(t, batch.Files)
}

func TestWatcher_DeliversBatch(t *testing.T) {
	root := t.TempDir()
	pages := filepath.Join(root, "pages")
	require.NoError(t, os.MkdirAll(pages, 0o755))

	w, err := New(Config{
		Roots:       []string{pages},
		ContextDirs: []string{filepath.Join(root, "markdoc")},
		Match:       func(p string) bool { return strings.HasSuffix(p, ".md") },
		QuietWindow: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan Batch, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, b Batch) error {
			batches <- b
			return nil
		})
	}()

	doc := filepath.Join(pages, "index.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Hi"), 0o644))

	select {
	case b := <-batches:
		require.Contains(t, b.Files, doc)
		require.False(t, b.Full)
	case <-ctx.Done():
		t.Fatal("no batch delivered")
	}
	cancel()
	require.NoError(t, <-done)
}
