package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
	"git.home.luguber.info/inful/mdocpack/internal/resolve"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLocate_DefaultMissingDirIsEmpty(t *testing.T) {
	root := t.TempDir()
	deps := resolve.NewDependencySet()

	bundle, err := Locate(context.Background(), Request{BaseDir: root, Tracker: deps})
	require.NoError(t, err)
	require.False(t, bundle.Exists)
	for _, name := range SlotNames {
		require.Equal(t, SlotAbsent, bundle.Slots[name].State)
	}
	require.Equal(t, "const schema = {};", bundle.Code(root))
	require.Equal(t, []string{filepath.Join(root, "markdoc")}, deps.Dirs())
}

func TestLocate_CustomMissingDirFails(t *testing.T) {
	root := t.TempDir()

	_, err := Locate(context.Background(), Request{BaseDir: root, SchemaPath: "./schemas/custom"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "./schemas/custom")
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}

func TestLocate_ResolvesSlotsAndRegistersDependencies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "markdoc", "tags.js"), "export const x = {};")
	writeFile(t, filepath.Join(root, "markdoc", "functions", "index.ts"), "export {};")
	deps := resolve.NewDependencySet()

	bundle, err := Locate(context.Background(), Request{BaseDir: root, Tracker: deps})
	require.NoError(t, err)
	require.True(t, bundle.Exists)
	require.Equal(t, SlotResolved, bundle.Slots[SlotTags].State)
	require.Equal(t, SlotResolved, bundle.Slots[SlotFunctions].State)
	require.Equal(t, SlotAbsent, bundle.Slots[SlotConfig].State)
	require.Equal(t, SlotAbsent, bundle.Slots[SlotNodes].State)

	require.ElementsMatch(t, []string{
		filepath.Join(root, "markdoc", "tags.js"),
		filepath.Join(root, "markdoc", "functions", "index.ts"),
	}, deps.Files())

	code := bundle.Code(filepath.Join(root, "pages"))
	require.Contains(t, code, `const config = {};`)
	require.Contains(t, code, `import * as tags from "../markdoc/tags.js";`)
	require.Contains(t, code, `const nodes = {};`)
	require.Contains(t, code, `import * as functions from "../markdoc/functions/index.ts";`)
	require.True(t, strings.HasSuffix(code, "...(config ? (config.default || config) : {}),\n};"))
}

func TestLocate_DeclarativeSlotsAreLive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "markdoc", "tags.yaml"), `
callout:
  render: Callout
  attributes:
    type:
      type: String
      default: note
      matches: [note, warning]
`)
	writeFile(t, filepath.Join(root, "markdoc", "functions.json"), `{"upper": {"expr": "upper(args[0])"}}`)
	writeFile(t, filepath.Join(root, "markdoc", "config.yml"), "variables:\n  site: docs\n  count: 2\nextends: [nextjs]\n")

	bundle, err := Locate(context.Background(), Request{BaseDir: root, Loader: DeclarativeLoader{}})
	require.NoError(t, err)
	require.Equal(t, SlotLive, bundle.Slots[SlotTags].State)
	require.Equal(t, SlotLive, bundle.Slots[SlotFunctions].State)
	require.Equal(t, SlotLive, bundle.Slots[SlotConfig].State)

	cfg := bundle.Config()
	require.Nil(t, cfg.Variables)
	require.Contains(t, cfg.Functions, "upper")
	require.Equal(t, "Callout", cfg.Tags["callout"].Render)
	require.Equal(t, "Link", cfg.Tags["link"].Render)

	runtime := bundle.Runtime()
	require.Equal(t, map[string]any{"site": "docs", "count": 2.0}, runtime.Variables)
}

func TestBundle_ScriptSlotMakesFunctionsUnknown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "markdoc", "functions.js"), "export default {};")

	bundle, err := Locate(context.Background(), Request{BaseDir: root, Loader: DeclarativeLoader{}})
	require.NoError(t, err)
	require.Equal(t, SlotResolved, bundle.Slots[SlotFunctions].State)
	require.Nil(t, bundle.Config().Functions)
}

func TestBundle_NoFunctionSlotsMeansKnownEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "markdoc"), 0o750))

	bundle, err := Locate(context.Background(), Request{BaseDir: root})
	require.NoError(t, err)
	require.NotNil(t, bundle.Config().Functions)
	require.Empty(t, bundle.Config().Functions)
}

type slowLoader struct{}

func (slowLoader) LoadSlot(ctx context.Context, _ SlotName, _ string) (*markdoc.Config, error) {
	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)
	return &markdoc.Config{}, nil
}

func TestLocate_LiveLoadTimeoutFallsBack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "markdoc", "tags.json"), "{}")

	bundle, err := Locate(context.Background(), Request{
		BaseDir:     root,
		Loader:      slowLoader{},
		LiveTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, SlotResolved, bundle.Slots[SlotTags].State)
	require.Nil(t, bundle.Slots[SlotTags].Live)
}

func TestDeclarativeLoader_RejectsBadInput(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tags.yaml")
	writeFile(t, path, "callout:\n  attributes:\n    type:\n      type: Strin\n")

	_, err := DeclarativeLoader{}.LoadSlot(context.Background(), SlotTags, path)
	require.ErrorContains(t, err, "unknown type")
	require.True(t, derrors.HasCategory(err, derrors.CategorySchema))

	_, err = DeclarativeLoader{}.LoadSlot(context.Background(), SlotTags, filepath.Join(root, "tags.tsx"))
	require.ErrorIs(t, err, ErrUnavailable)

	fnPath := filepath.Join(root, "functions.json")
	writeFile(t, fnPath, `{"broken": {"expr": "args[0] +"}}`)
	_, err = DeclarativeLoader{}.LoadSlot(context.Background(), SlotFunctions, fnPath)
	require.Error(t, err)

	badJSON := filepath.Join(root, "nodes.json")
	writeFile(t, badJSON, `{"heading": `)
	_, err = DeclarativeLoader{}.LoadSlot(context.Background(), SlotNodes, badJSON)
	require.True(t, derrors.HasCategory(err, derrors.CategorySchema))
	require.ErrorContains(t, err, "failed to decode nodes slot")
}
