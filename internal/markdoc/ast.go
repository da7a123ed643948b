// Package markdoc implements the document engine mdocpack compiles against:
// Markdown (via goldmark) extended with `{% tag %}` blocks, `{% $variable %}`
// interpolation, function calls and YAML frontmatter.
//
// The package exposes the four operations the compilation pipeline consumes:
// Parse, Validate, Transform and RenderHTML. The renderable tree produced by
// Transform marshals to the same JSON shape as the JavaScript runtime
// (`{"$$mdtype": "Tag", ...}`) so build-time and request-time output agree.
package markdoc

import (
	"iter"
	"strings"
)

// NodeType identifies the kind of a syntax tree node.
type NodeType string

const (
	TypeDocument   NodeType = "document"
	TypeHeading    NodeType = "heading"
	TypeParagraph  NodeType = "paragraph"
	TypeText       NodeType = "text"
	TypeTag        NodeType = "tag"
	TypeFence      NodeType = "fence"
	TypeCode       NodeType = "code"
	TypeStrong     NodeType = "strong"
	TypeEm         NodeType = "em"
	TypeLink       NodeType = "link"
	TypeImage      NodeType = "image"
	TypeList       NodeType = "list"
	TypeItem       NodeType = "item"
	TypeBlockquote NodeType = "blockquote"
	TypeHr         NodeType = "hr"
	TypeHardbreak  NodeType = "hardbreak"
	TypeSoftbreak  NodeType = "softbreak"
	TypeError      NodeType = "error"
)

// Position is a point in the document source.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
	Offset    int `json:"offset"`
}

// Location is a source span.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Level is the severity of a diagnostic.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Error is a diagnostic raised while parsing or validating a node.
type Error struct {
	ID       string    `json:"id"`
	Level    Level     `json:"level"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

// Node is one element of the syntax tree.
type Node struct {
	Type       NodeType
	Tag        string
	Attributes map[string]any
	Children   []*Node
	// Lines holds 0-based line numbers as half-open pairs: the opening span
	// first and, for block tags, the closing span second.
	Lines    []int
	Location *Location
	Errors   []Error
	Inline   bool
}

// Variable is a `$name.path` reference resolved at transform time.
type Variable struct {
	Path []string
}

// String returns the variable in source syntax.
func (v *Variable) String() string {
	return "$" + strings.Join(v.Path, ".")
}

// FunctionCall is a `name(args...)` expression resolved at transform time.
type FunctionCall struct {
	Name string
	Args []any
}

// Attr returns the named attribute or nil.
func (n *Node) Attr(name string) any {
	if n == nil || n.Attributes == nil {
		return nil
	}
	return n.Attributes[name]
}

// Walk yields every descendant of n in document order. n itself is not yielded.
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walk(n, yield)
	}
}

func walk(n *Node, yield func(*Node) bool) bool {
	for _, child := range n.Children {
		if !yield(child) {
			return false
		}
		if !walk(child, yield) {
			return false
		}
	}
	return true
}
