package markdoc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/mdocpack/internal/frontmatter"
)

// Inline tags are swapped for private-use placeholders before goldmark sees
// the text, so tag syntax never interacts with Markdown emphasis rules.
const (
	placeholderOpen  = "\uE000"
	placeholderClose = "\uE001"
)

// Parse parses document source into a syntax tree.
//
// Malformed tags never fail parsing: they become error nodes that Validate
// reports. An opening "---" without a closing delimiter is a thematic break,
// not frontmatter.
func Parse(source string) (*Node, error) {
	block, body, err := frontmatter.Split(source)
	if errors.Is(err, frontmatter.ErrMissingClosingDelimiter) {
		block, body, err = frontmatter.Block{}, source, nil
	}
	if err != nil {
		return nil, err
	}

	p := newParser(source)
	doc := &Node{Type: TypeDocument, Attributes: map[string]any{}}
	if block.Had {
		doc.Attributes["frontmatter"] = block.Raw
	}
	p.parseBody(doc, body, block.BodyOffset)
	doc.Lines = []int{0, len(p.lineStarts)}
	return doc, nil
}

type parser struct {
	source     string
	lineStarts []int
	md         goldmark.Markdown
}

func newParser(source string) *parser {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &parser{source: source, lineStarts: starts, md: goldmark.New()}
}

func (p *parser) lineOf(offset int) int {
	return sort.Search(len(p.lineStarts), func(i int) bool { return p.lineStarts[i] > offset }) - 1
}

func (p *parser) position(offset int) Position {
	line := p.lineOf(offset)
	return Position{Line: line, Character: offset - p.lineStarts[line], Offset: offset}
}

func (p *parser) spanLines(start, end int) []int {
	last := end - 1
	if last < start {
		last = start
	}
	return []int{p.lineOf(start), p.lineOf(last) + 1}
}

// parseBody splits the body into block-level tag lines and Markdown chunks.
// Block tags open containers; everything between them is handed to goldmark.
func (p *parser) parseBody(doc *Node, body string, base int) {
	stack := []*Node{doc}
	chunkStart := -1
	flush := func(upTo int) {
		if chunkStart >= 0 {
			p.parseMarkdown(stack[len(stack)-1], p.source[chunkStart:upTo], chunkStart)
			chunkStart = -1
		}
	}

	fence := ""
	offset := base
	for _, raw := range strings.SplitAfter(body, "\n") {
		if raw == "" {
			continue
		}
		lineStart := offset
		offset += len(raw)
		line := strings.TrimRight(raw, "\r\n")

		if marker := fenceMarker(line); marker != "" {
			fence = toggleFence(fence, marker)
		} else if fence == "" {
			if tok, ok := p.blockTag(line, lineStart); ok {
				flush(lineStart)
				stack = p.applyBlockTag(stack, tok)
				continue
			}
		}
		if chunkStart < 0 {
			chunkStart = lineStart
		}
	}
	flush(offset)

	for _, open := range stack[1:] {
		open.Errors = append(open.Errors, missingClosing(open))
	}
}

func fenceMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	}
	return ""
}

func toggleFence(active, marker string) string {
	if active == "" {
		return marker
	}
	if active == marker {
		return ""
	}
	return active
}

// blockTag reports whether line consists of exactly one tag.
func (p *parser) blockTag(line string, lineStart int) (tagToken, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{%") || !strings.HasSuffix(trimmed, "%}") {
		return tagToken{}, false
	}
	spans := findTags(trimmed)
	if len(spans) != 1 || spans[0][0] != 0 || spans[0][1] != len(trimmed) {
		return tagToken{}, false
	}
	tok := parseTag(trimmed, lineStart+strings.Index(line, trimmed))
	if tok.kind == tokenAnnotation {
		return tagToken{}, false
	}
	return tok, true
}

func (p *parser) applyBlockTag(stack []*Node, tok tagToken) []*Node {
	parent := stack[len(stack)-1]
	switch tok.kind {
	case tokenInvalid:
		parent.Children = append(parent.Children, p.errorNode(tok))
	case tokenValue:
		parent.Children = append(parent.Children, p.valueNode(tok, false))
	case tokenSelfClosing:
		parent.Children = append(parent.Children, p.tagNode(tok, false))
	case tokenOpen:
		n := p.tagNode(tok, false)
		parent.Children = append(parent.Children, n)
		stack = append(stack, n)
	case tokenClose:
		idx := -1
		for i := len(stack) - 1; i > 0; i-- {
			if stack[i].Tag == tok.name {
				idx = i
				break
			}
		}
		if idx < 0 {
			parent.Children = append(parent.Children, p.missingOpening(tok))
			return stack
		}
		for i := len(stack) - 1; i > idx; i-- {
			stack[i].Errors = append(stack[i].Errors, missingClosing(stack[i]))
		}
		p.close(stack[idx], tok)
		stack = stack[:idx]
	}
	return stack
}

func (p *parser) close(n *Node, tok tagToken) {
	n.Lines = append(n.Lines, p.spanLines(tok.start, tok.end)...)
	if n.Location != nil {
		n.Location.End = p.position(tok.end)
	}
}

func (p *parser) tagNode(tok tagToken, inline bool) *Node {
	return &Node{
		Type:       TypeTag,
		Tag:        tok.name,
		Attributes: tok.attributes,
		Inline:     inline,
		Lines:      p.spanLines(tok.start, tok.end),
		Location:   &Location{Start: p.position(tok.start), End: p.position(tok.end)},
	}
}

func (p *parser) valueNode(tok tagToken, inline bool) *Node {
	return &Node{
		Type:       TypeText,
		Attributes: map[string]any{"content": tok.value},
		Inline:     inline,
		Lines:      p.spanLines(tok.start, tok.end),
		Location:   &Location{Start: p.position(tok.start), End: p.position(tok.end)},
	}
}

func (p *parser) errorNode(tok tagToken) *Node {
	err := *tok.err
	if err.Location != nil {
		err.Location = &Location{
			Start: p.position(err.Location.Start.Offset),
			End:   p.position(min(err.Location.End.Offset, len(p.source))),
		}
	}
	return &Node{
		Type:     TypeError,
		Lines:    p.spanLines(tok.start, tok.end),
		Location: &Location{Start: p.position(tok.start), End: p.position(tok.end)},
		Errors:   []Error{err},
	}
}

func (p *parser) missingOpening(tok tagToken) *Node {
	n := p.errorNode(tagToken{start: tok.start, end: tok.end, err: &Error{
		ID:      "missing-opening",
		Level:   LevelCritical,
		Message: fmt.Sprintf("Node '%s' is missing opening", tok.name),
	}})
	return n
}

func missingClosing(n *Node) Error {
	return Error{
		ID:       "missing-closing",
		Level:    LevelCritical,
		Message:  fmt.Sprintf("Node '%s' is missing closing", n.Tag),
		Location: n.Location,
	}
}

type placeholder struct {
	newStart, newEnd   int
	origStart, origEnd int
}

// parseMarkdown parses one Markdown chunk located at the absolute offset base
// and appends the resulting blocks to container.
func (p *parser) parseMarkdown(container *Node, chunk string, base int) {
	var (
		b      strings.Builder
		tokens []tagToken
		maps   []placeholder
		pos    int
	)
	fenced := fencedRanges(chunk)
	for _, span := range findTags(chunk) {
		if inRanges(fenced, span[0]) {
			continue
		}
		b.WriteString(chunk[pos:span[0]])
		ph := placeholder{newStart: b.Len(), origStart: span[0], origEnd: span[1]}
		b.WriteString(placeholderOpen + strconv.Itoa(len(tokens)) + placeholderClose)
		ph.newEnd = b.Len()
		maps = append(maps, ph)
		tokens = append(tokens, parseTag(chunk[span[0]:span[1]], base+span[0]))
		pos = span[1]
	}
	b.WriteString(chunk[pos:])

	src := []byte(b.String())
	root := p.md.Parser().Parse(text.NewReader(src))
	conv := &converter{p: p, src: src, base: base, tokens: tokens, maps: maps}
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		container.Children = append(container.Children, conv.block(c)...)
	}
}

// fencedRanges returns byte ranges of fenced code blocks in chunk.
func fencedRanges(chunk string) [][2]int {
	var out [][2]int
	fence, start, offset := "", 0, 0
	for _, raw := range strings.SplitAfter(chunk, "\n") {
		if marker := fenceMarker(raw); marker != "" {
			next := toggleFence(fence, marker)
			switch {
			case fence == "" && next != "":
				start = offset
			case fence != "" && next == "":
				out = append(out, [2]int{start, offset + len(raw)})
			}
			fence = next
		}
		offset += len(raw)
	}
	if fence != "" {
		out = append(out, [2]int{start, len(chunk)})
	}
	return out
}

func inRanges(ranges [][2]int, at int) bool {
	for _, r := range ranges {
		if at >= r[0] && at < r[1] {
			return true
		}
	}
	return false
}
