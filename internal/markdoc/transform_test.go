package markdoc

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func transformSource(t *testing.T, src string, cfg *Config) any {
	t.Helper()
	out, err := Transform(mustParse(t, src), cfg)
	require.NoError(t, err)
	return out
}

func TestTransform_InterpolatedHeading(t *testing.T) {
	cfg := &Config{Variables: map[string]any{
		"markdoc": map[string]any{"frontmatter": map[string]any{"title": "Custom title"}},
	}}
	got := transformSource(t, "---\ntitle: Custom title\n---\n# {% $markdoc.frontmatter.title %}", cfg)

	want := NewTag("article", nil, []any{
		NewTag("h1", nil, []any{"Custom title"}),
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("renderable tree mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_PartialIsInlinedWithScopedVariables(t *testing.T) {
	footer := mustParse(t, "footer {% $who %}")
	cfg := &Config{
		Variables: map[string]any{"who": "outer"},
		Partials:  map[string]*Node{"footer.md": footer},
	}

	got := transformSource(t, "{% partial file=\"footer.md\" /%}\n", cfg)
	article := got.(*Tag)
	require.Len(t, article.Children, 1)
	require.Equal(t, []any{"footer ", "outer"}, article.Children[0].(*Tag).Children)

	got = transformSource(t, "{% partial file=\"footer.md\" variables={who: \"inner\"} /%}\n", cfg)
	require.Equal(t, []any{"footer ", "inner"}, got.(*Tag).Children[0].(*Tag).Children)
}

func TestTransform_RecursivePartialStopsOnReentry(t *testing.T) {
	cfg := &Config{Partials: map[string]*Node{
		"a.md": mustParse(t, "self\n\n{% partial file=\"a.md\" /%}\n"),
		"b.md": mustParse(t, "b\n\n{% partial file=\"c.md\" /%}\n"),
		"c.md": mustParse(t, "c\n\n{% partial file=\"b.md\" /%}\n"),
	}}

	got := transformSource(t, "x\n\n{% partial file=\"a.md\" /%}\n", cfg).(*Tag)
	require.Equal(t, []any{
		NewTag("p", nil, []any{"x"}),
		NewTag("p", nil, []any{"self"}),
	}, got.Children)

	got = transformSource(t, "{% partial file=\"b.md\" /%}\n\n{% partial file=\"b.md\" /%}\n", cfg).(*Tag)
	p := func(s string) any { return NewTag("p", nil, []any{s}) }
	require.Equal(t, []any{p("b"), p("c"), p("b"), p("c")}, got.Children)
}

func TestTransform_MissingPartialRendersNothing(t *testing.T) {
	got := transformSource(t, "{% partial file=\"nope.md\" /%}\n", &Config{})
	require.Empty(t, got.(*Tag).Children)
}

func TestTransform_IfElse(t *testing.T) {
	src := "{% if $flag %}\nYes\n{% else /%}\nNo\n{% /if %}\n"

	on := transformSource(t, src, &Config{Variables: map[string]any{"flag": true}}).(*Tag)
	require.Equal(t, []any{NewTag("p", nil, []any{"Yes"})}, on.Children)

	off := transformSource(t, src, &Config{Variables: map[string]any{"flag": false}}).(*Tag)
	require.Equal(t, []any{NewTag("p", nil, []any{"No"})}, off.Children)
}

func TestTransform_CustomTagAndNodeRender(t *testing.T) {
	cfg := &Config{
		Tags: map[string]*Schema{
			"callout": {Render: "Callout", Attributes: map[string]*Attribute{
				"type": {Type: AttrString, Default: "note"},
			}},
		},
		Nodes: map[NodeType]*Schema{TypeHeading: {Render: "Heading"}},
	}
	got := transformSource(t, "# Title\n\n{% callout %}\nBody\n{% /callout %}\n", cfg).(*Tag)

	require.Equal(t, "Heading", got.Children[0].(*Tag).Name)
	require.InDelta(t, 1.0, got.Children[0].(*Tag).Attributes["level"], 0)

	callout := got.Children[1].(*Tag)
	require.Equal(t, "Callout", callout.Name)
	require.Equal(t, "note", callout.Attributes["type"])
	require.Equal(t, []any{NewTag("p", nil, []any{"Body"})}, callout.Children)
}

func TestTransform_UnknownTagRendersChildren(t *testing.T) {
	got := transformSource(t, "{% mystery %}\nInside\n{% /mystery %}\n", nil).(*Tag)
	require.Equal(t, []any{NewTag("p", nil, []any{"Inside"})}, got.Children)
}

func TestTransform_ExprFunction(t *testing.T) {
	cfg := &Config{
		Variables: map[string]any{"name": "ada"},
		Functions: map[string]*FunctionSchema{"greet": {Expr: `"hi " + args[0]`}},
	}
	got := transformSource(t, "{% greet($name) %}\n", cfg).(*Tag)
	require.Equal(t, []any{"hi ada"}, got.Children)
}

func TestTransform_FenceAndList(t *testing.T) {
	got := transformSource(t, "```go\nx := 1\n```\n\n- a\n- b\n", nil).(*Tag)

	require.Equal(t, NewTag("pre", map[string]any{"data-language": "go"}, []any{"x := 1\n"}), got.Children[0])

	list := got.Children[1].(*Tag)
	require.Equal(t, "ul", list.Name)
	require.Len(t, list.Children, 2)
	require.Equal(t, "li", list.Children[0].(*Tag).Name)
}

func TestTag_MarshalJSONShape(t *testing.T) {
	raw, err := json.Marshal(NewTag("p", nil, []any{"x"}))
	require.NoError(t, err)
	require.JSONEq(t, `{"$$mdtype":"Tag","name":"p","attributes":{},"children":["x"]}`, string(raw))

	decoded, err := DecodeRenderable(raw)
	require.NoError(t, err)
	require.Equal(t, NewTag("p", nil, []any{"x"}), decoded)
}

func TestRenderHTML_WithComponentAliases(t *testing.T) {
	tree := NewTag("article", nil, []any{
		NewTag("Callout", map[string]any{"type": "note"}, []any{"Hi & bye"}),
		NewTag("hr", nil, nil),
	})
	out, err := RenderHTMLString(tree, map[string]string{"Callout": "aside"})
	require.NoError(t, err)
	require.Equal(t, `<article><aside type="note">Hi &amp; bye</aside><hr/></article>`, out)
}
