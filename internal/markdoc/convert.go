package markdoc

import (
	"strconv"
	"strings"

	gmast "github.com/yuin/goldmark/ast"
)

// converter maps a goldmark tree for one chunk back onto Nodes, expanding
// tag placeholders and translating chunk offsets to source offsets.
type converter struct {
	p      *parser
	src    []byte
	base   int
	tokens []tagToken
	maps   []placeholder
}

// inlineItem is either a finished node or a tag token awaiting nesting.
type inlineItem struct {
	node *Node
	tok  *tagToken
}

func (c *converter) orig(pos int) int {
	delta := 0
	for _, m := range c.maps {
		switch {
		case pos >= m.newEnd:
			delta += (m.origEnd - m.origStart) - (m.newEnd - m.newStart)
		case pos >= m.newStart:
			return c.base + m.origStart
		default:
			return c.base + pos + delta
		}
	}
	return c.base + pos + delta
}

// lines returns the source line span covered by a block node.
func (c *converter) lines(n gmast.Node) []int {
	first, last, ok := c.extent(n)
	if !ok {
		return nil
	}
	return []int{c.p.lineOf(c.orig(first)), c.p.lineOf(c.orig(last)) + 1}
}

func (c *converter) extent(n gmast.Node) (int, int, bool) {
	if n.Type() != gmast.TypeBlock {
		return 0, 0, false
	}
	if segs := n.Lines(); segs != nil && segs.Len() > 0 {
		first, last := segs.At(0), segs.At(segs.Len()-1)
		end := last.Stop - 1
		if end < last.Start {
			end = last.Start
		}
		return first.Start, end, true
	}
	var (
		first, last int
		found       bool
	)
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		s, e, ok := c.extent(ch)
		if !ok {
			continue
		}
		if !found {
			first = s
		}
		last, found = e, true
	}
	return first, last, found
}

func (c *converter) segmentsText(n gmast.Node) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(c.src))
	}
	return b.String()
}

// restore puts the original tag text back where placeholders were inserted.
// Used for code, where tags are literal.
func (c *converter) restore(s string) string {
	if !strings.Contains(s, placeholderOpen) {
		return s
	}
	var b strings.Builder
	for _, item := range c.expand(s) {
		if item.tok != nil {
			b.WriteString(c.p.source[item.tok.start:item.tok.end])
			continue
		}
		b.WriteString(item.node.Attributes["content"].(string))
	}
	return b.String()
}

func (c *converter) children(n gmast.Node) []*Node {
	var out []*Node
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		out = append(out, c.block(ch)...)
	}
	return out
}

func (c *converter) block(n gmast.Node) []*Node {
	lines := c.lines(n)
	switch node := n.(type) {
	case *gmast.Heading:
		out := &Node{Type: TypeHeading, Attributes: map[string]any{"level": float64(node.Level)}, Lines: lines}
		out.Children = c.nest(c.inlineItems(node), out)
		return []*Node{out}
	case *gmast.Paragraph:
		out := &Node{Type: TypeParagraph, Attributes: map[string]any{}, Lines: lines}
		out.Children = c.nest(c.inlineItems(node), out)
		return []*Node{out}
	case *gmast.TextBlock:
		return c.nest(c.inlineItems(node), nil)
	case *gmast.FencedCodeBlock:
		attrs := map[string]any{"content": c.restore(c.segmentsText(node))}
		if lang := string(node.Language(c.src)); lang != "" {
			attrs["language"] = lang
		}
		return []*Node{{Type: TypeFence, Attributes: attrs, Lines: lines}}
	case *gmast.CodeBlock:
		attrs := map[string]any{"content": c.restore(c.segmentsText(node))}
		return []*Node{{Type: TypeFence, Attributes: attrs, Lines: lines}}
	case *gmast.HTMLBlock:
		content := c.restore(c.segmentsText(node))
		text := &Node{Type: TypeText, Attributes: map[string]any{"content": strings.TrimRight(content, "\n")}, Inline: true}
		return []*Node{{Type: TypeParagraph, Attributes: map[string]any{}, Lines: lines, Children: []*Node{text}}}
	case *gmast.List:
		attrs := map[string]any{"ordered": node.IsOrdered(), "marker": string(node.Marker)}
		if node.IsOrdered() && node.Start != 1 {
			attrs["start"] = float64(node.Start)
		}
		return []*Node{{Type: TypeList, Attributes: attrs, Lines: lines, Children: c.children(node)}}
	case *gmast.ListItem:
		return []*Node{{Type: TypeItem, Attributes: map[string]any{}, Lines: lines, Children: c.children(node)}}
	case *gmast.Blockquote:
		return []*Node{{Type: TypeBlockquote, Attributes: map[string]any{}, Lines: lines, Children: c.children(node)}}
	case *gmast.ThematicBreak:
		return []*Node{{Type: TypeHr, Attributes: map[string]any{}, Lines: lines}}
	default:
		return c.children(n)
	}
}

func textNode(content string) *Node {
	return &Node{Type: TypeText, Attributes: map[string]any{"content": content}, Inline: true}
}

// expand splits s on tag placeholders.
func (c *converter) expand(s string) []inlineItem {
	var items []inlineItem
	for s != "" {
		i := strings.Index(s, placeholderOpen)
		if i < 0 {
			items = append(items, inlineItem{node: textNode(s)})
			break
		}
		j := strings.Index(s[i:], placeholderClose)
		if j < 0 {
			items = append(items, inlineItem{node: textNode(s)})
			break
		}
		if i > 0 {
			items = append(items, inlineItem{node: textNode(s[:i])})
		}
		idx, err := strconv.Atoi(s[i+len(placeholderOpen) : i+j])
		if err != nil || idx < 0 || idx >= len(c.tokens) {
			items = append(items, inlineItem{node: textNode(s[i : i+j+len(placeholderClose)])})
		} else {
			items = append(items, inlineItem{tok: &c.tokens[idx]})
		}
		s = s[i+j+len(placeholderClose):]
	}
	return items
}

func (c *converter) plainText(n gmast.Node) string {
	var b strings.Builder
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch node := ch.(type) {
		case *gmast.Text:
			b.Write(node.Segment.Value(c.src))
		case *gmast.String:
			b.Write(node.Value)
		default:
			b.WriteString(c.plainText(ch))
		}
	}
	return c.restore(b.String())
}

func (c *converter) inlineItems(parent gmast.Node) []inlineItem {
	var items []inlineItem
	for ch := parent.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch node := ch.(type) {
		case *gmast.Text:
			items = append(items, c.expand(string(node.Segment.Value(c.src)))...)
			switch {
			case node.HardLineBreak():
				items = append(items, inlineItem{node: &Node{Type: TypeHardbreak, Inline: true}})
			case node.SoftLineBreak():
				items = append(items, inlineItem{node: &Node{Type: TypeSoftbreak, Inline: true}})
			}
		case *gmast.String:
			items = append(items, c.expand(string(node.Value))...)
		case *gmast.CodeSpan:
			code := &Node{Type: TypeCode, Attributes: map[string]any{"content": c.plainText(node)}, Inline: true}
			items = append(items, inlineItem{node: code})
		case *gmast.Emphasis:
			em := &Node{Type: TypeEm, Attributes: map[string]any{}, Inline: true}
			if node.Level >= 2 {
				em.Type = TypeStrong
			}
			em.Children = c.nest(c.inlineItems(node), em)
			items = append(items, inlineItem{node: em})
		case *gmast.Link:
			attrs := map[string]any{"href": string(node.Destination)}
			if len(node.Title) > 0 {
				attrs["title"] = string(node.Title)
			}
			link := &Node{Type: TypeLink, Attributes: attrs, Inline: true}
			link.Children = c.nest(c.inlineItems(node), link)
			items = append(items, inlineItem{node: link})
		case *gmast.Image:
			attrs := map[string]any{"src": string(node.Destination), "alt": c.plainText(node)}
			if len(node.Title) > 0 {
				attrs["title"] = string(node.Title)
			}
			items = append(items, inlineItem{node: &Node{Type: TypeImage, Attributes: attrs, Inline: true}})
		case *gmast.AutoLink:
			url := string(node.URL(c.src))
			link := &Node{Type: TypeLink, Attributes: map[string]any{"href": url}, Inline: true}
			link.Children = []*Node{textNode(string(node.Label(c.src)))}
			items = append(items, inlineItem{node: link})
		case *gmast.RawHTML:
			var b strings.Builder
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				b.Write(seg.Value(c.src))
			}
			items = append(items, c.expand(b.String())...)
		default:
			items = append(items, c.inlineItems(ch)...)
		}
	}
	return items
}

// nest resolves inline tag tokens into a tree. Annotations merge their
// attributes into container when one is given.
func (c *converter) nest(items []inlineItem, container *Node) []*Node {
	var (
		out   []*Node
		stack []*Node
	)
	add := func(n *Node) {
		target := &out
		if len(stack) > 0 {
			target = &stack[len(stack)-1].Children
		}
		appendMerged(target, n)
	}

	for _, item := range items {
		if item.node != nil {
			add(item.node)
			continue
		}
		tok := *item.tok
		switch tok.kind {
		case tokenInvalid:
			add(c.p.errorNode(tok))
		case tokenValue:
			add(c.p.valueNode(tok, true))
		case tokenSelfClosing:
			add(c.p.tagNode(tok, true))
		case tokenOpen:
			n := c.p.tagNode(tok, true)
			add(n)
			stack = append(stack, n)
		case tokenClose:
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Tag == tok.name {
					idx = i
					break
				}
			}
			if idx < 0 {
				add(c.p.missingOpening(tok))
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				stack[i].Errors = append(stack[i].Errors, missingClosing(stack[i]))
			}
			c.p.close(stack[idx], tok)
			stack = stack[:idx]
		case tokenAnnotation:
			if container != nil {
				annotate(container, tok.attributes)
			}
		}
	}
	for _, open := range stack {
		open.Errors = append(open.Errors, missingClosing(open))
	}
	if container != nil {
		trimTrailingSpace(out)
	}
	return out
}

func appendMerged(target *[]*Node, n *Node) {
	list := *target
	if len(list) > 0 && n.Type == TypeText && n.Location == nil {
		last := list[len(list)-1]
		prev, ok1 := last.Attributes["content"].(string)
		next, ok2 := n.Attributes["content"].(string)
		if last.Type == TypeText && last.Location == nil && ok1 && ok2 {
			last.Attributes["content"] = prev + next
			return
		}
	}
	*target = append(list, n)
}

func annotate(container *Node, attrs map[string]any) {
	if container.Attributes == nil {
		container.Attributes = map[string]any{}
	}
	for k, v := range attrs {
		if class, ok := v.(string); ok && k == "class" {
			if prev, ok := container.Attributes["class"].(string); ok && prev != "" {
				v = prev + " " + class
			}
		}
		container.Attributes[k] = v
	}
}

// trimTrailingSpace drops whitespace left before a trailing annotation.
func trimTrailingSpace(nodes []*Node) {
	if len(nodes) == 0 {
		return
	}
	last := nodes[len(nodes)-1]
	if s, ok := last.Attributes["content"].(string); ok && last.Type == TypeText {
		last.Attributes["content"] = strings.TrimRight(s, " \t")
	}
}
