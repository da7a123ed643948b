package markdoc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Node {
	t.Helper()
	doc, err := Parse(src)
	require.NoError(t, err)
	return doc
}

func TestParse_FrontmatterAndInterpolatedHeading(t *testing.T) {
	doc := mustParse(t, "---\ntitle: Custom title\n---\n# {% $markdoc.frontmatter.title %}")

	require.Equal(t, TypeDocument, doc.Type)
	require.Equal(t, "title: Custom title", doc.Attributes["frontmatter"])
	require.Len(t, doc.Children, 1)

	heading := doc.Children[0]
	require.Equal(t, TypeHeading, heading.Type)
	require.InDelta(t, 1.0, heading.Attributes["level"], 0)
	require.Equal(t, []int{3, 4}, heading.Lines)
	require.Len(t, heading.Children, 1)

	v, ok := heading.Children[0].Attributes["content"].(*Variable)
	require.True(t, ok)
	require.Equal(t, []string{"markdoc", "frontmatter", "title"}, v.Path)
}

func TestParse_UnterminatedDelimiterIsThematicBreak(t *testing.T) {
	doc := mustParse(t, "---\n\nIntro paragraph\n")

	require.NotContains(t, doc.Attributes, "frontmatter")
	require.Len(t, doc.Children, 2)
	require.Equal(t, TypeHr, doc.Children[0].Type)
	require.Equal(t, TypeParagraph, doc.Children[1].Type)
	require.Equal(t, "Intro paragraph", doc.Children[1].Children[0].Attributes["content"])

	doc = mustParse(t, "---\ntitle: x\n")
	require.NotContains(t, doc.Attributes, "frontmatter")
	require.Equal(t, TypeHr, doc.Children[0].Type)
}

func TestParse_BlockTagWithChildren(t *testing.T) {
	doc := mustParse(t, "{% callout type=\"note\" %}\nHello\n{% /callout %}\n")

	require.Len(t, doc.Children, 1)
	tag := doc.Children[0]
	require.Equal(t, TypeTag, tag.Type)
	require.Equal(t, "callout", tag.Tag)
	require.Equal(t, "note", tag.Attributes["type"])
	require.Equal(t, []int{0, 1, 2, 3}, tag.Lines)
	require.Empty(t, tag.Errors)

	require.Len(t, tag.Children, 1)
	para := tag.Children[0]
	require.Equal(t, TypeParagraph, para.Type)
	require.Equal(t, "Hello", para.Children[0].Attributes["content"])
}

func TestParse_SelfClosingPartial(t *testing.T) {
	doc := mustParse(t, "{% partial file=\"footer.md\" /%}\n")

	require.Len(t, doc.Children, 1)
	require.Equal(t, "partial", doc.Children[0].Tag)
	require.Equal(t, "footer.md", doc.Children[0].Attributes["file"])
	require.Empty(t, doc.Children[0].Children)
}

func TestParse_UnclosedTagRecordsMissingClosing(t *testing.T) {
	doc := mustParse(t, "{% callout %}\nHello\n")

	tag := doc.Children[0]
	require.Len(t, tag.Errors, 1)
	require.Equal(t, "missing-closing", tag.Errors[0].ID)
	require.Equal(t, LevelCritical, tag.Errors[0].Level)
}

func TestParse_StrayClosingTagIsErrorNode(t *testing.T) {
	doc := mustParse(t, "Text\n\n{% /callout %}\n")

	last := doc.Children[len(doc.Children)-1]
	require.Equal(t, TypeError, last.Type)
	require.Equal(t, "missing-opening", last.Errors[0].ID)
}

func TestParse_InlineTagNesting(t *testing.T) {
	doc := mustParse(t, "Hello {% badge %}new{% /badge %} there\n")

	para := doc.Children[0]
	require.Len(t, para.Children, 3)
	require.Equal(t, "Hello ", para.Children[0].Attributes["content"])

	badge := para.Children[1]
	require.Equal(t, "badge", badge.Tag)
	require.True(t, badge.Inline)
	require.Len(t, badge.Children, 1)
	require.Equal(t, "new", badge.Children[0].Attributes["content"])

	require.Equal(t, " there", para.Children[2].Attributes["content"])
}

func TestParse_TagsInsideFencesAreLiteral(t *testing.T) {
	doc := mustParse(t, "```js\n{% foo %}\n```\n")

	require.Len(t, doc.Children, 1)
	fence := doc.Children[0]
	require.Equal(t, TypeFence, fence.Type)
	require.Equal(t, "js", fence.Attributes["language"])
	require.Equal(t, "{% foo %}\n", fence.Attributes["content"])
}

func TestParse_SyntaxErrorBecomesErrorNode(t *testing.T) {
	doc := mustParse(t, "{% foo bar= %}\n")

	require.Len(t, doc.Children, 1)
	node := doc.Children[0]
	require.Equal(t, TypeError, node.Type)
	require.Equal(t, "syntax-error", node.Errors[0].ID)
	require.Equal(t, LevelCritical, node.Errors[0].Level)
	require.NotNil(t, node.Errors[0].Location)
}

func TestParse_AnnotationMergesIntoHeading(t *testing.T) {
	doc := mustParse(t, "# Title {% #intro .lead %}\n")

	heading := doc.Children[0]
	require.Equal(t, "intro", heading.Attributes["id"])
	require.Equal(t, "lead", heading.Attributes["class"])
	require.Equal(t, "Title", heading.Children[0].Attributes["content"])
}

func TestParse_StandaloneInterpolationIsBlockText(t *testing.T) {
	doc := mustParse(t, "Intro\n\n{% $extra %}\n")

	require.Len(t, doc.Children, 2)
	require.Equal(t, TypeText, doc.Children[1].Type)
	require.IsType(t, &Variable{}, doc.Children[1].Attributes["content"])
}

func TestParse_AttributeValueKinds(t *testing.T) {
	doc := mustParse(t, `{% widget n=3 flag=true list=[1, "a"] obj={k: $v} call=equals($a, 1) /%}`+"\n")

	attrs := doc.Children[0].Attributes
	require.InDelta(t, 3.0, attrs["n"], 0)
	require.Equal(t, true, attrs["flag"])
	require.Equal(t, []any{1.0, "a"}, attrs["list"])

	obj, ok := attrs["obj"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, &Variable{Path: []string{"v"}}, obj["k"])

	call, ok := attrs["call"].(*FunctionCall)
	require.True(t, ok)
	require.Equal(t, "equals", call.Name)
	require.Len(t, call.Args, 2)
}

func TestNode_WalkVisitsDescendantsInOrder(t *testing.T) {
	doc := mustParse(t, "{% a %}\n{% b /%}\n{% /a %}\n\n{% c /%}\n")

	var tags []string
	for n := range doc.Walk() {
		if n.Type == TypeTag {
			tags = append(tags, n.Tag)
		}
	}
	require.Equal(t, []string{"a", "b", "c"}, tags)
}
