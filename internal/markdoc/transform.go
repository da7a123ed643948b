package markdoc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Tag is one element of the renderable tree.
type Tag struct {
	Name       string
	Attributes map[string]any
	Children   []any
}

// NewTag returns a Tag with non-nil attribute and child collections.
func NewTag(name string, attrs map[string]any, children []any) *Tag {
	if attrs == nil {
		attrs = map[string]any{}
	}
	if children == nil {
		children = []any{}
	}
	return &Tag{Name: name, Attributes: attrs, Children: children}
}

// MarshalJSON encodes the tag in the runtime's serialized form.
func (t *Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string         `json:"$$mdtype"`
		Name       string         `json:"name"`
		Attributes map[string]any `json:"attributes"`
		Children   []any          `json:"children"`
	}{"Tag", t.Name, nonNilMap(t.Attributes), nonNilSlice(t.Children)})
}

// UnmarshalJSON decodes the serialized form, rebuilding nested tags.
func (t *Tag) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string            `json:"$$mdtype"`
		Name       string            `json:"name"`
		Attributes map[string]any    `json:"attributes"`
		Children   []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "Tag" {
		return fmt.Errorf("markdoc: expected $$mdtype Tag, got %q", raw.Type)
	}
	t.Name, t.Attributes, t.Children = raw.Name, nonNilMap(raw.Attributes), []any{}
	for _, child := range raw.Children {
		value, err := DecodeRenderable(child)
		if err != nil {
			return err
		}
		t.Children = append(t.Children, value)
	}
	return nil
}

// DecodeRenderable decodes a serialized renderable value, turning objects
// marked with $$mdtype back into *Tag.
func DecodeRenderable(data []byte) (any, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	if m, ok := decoded.(map[string]any); ok && m["$$mdtype"] == "Tag" {
		tag := &Tag{}
		if err := json.Unmarshal(data, tag); err != nil {
			return nil, err
		}
		return tag, nil
	}
	return decoded, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilSlice(s []any) []any {
	if s == nil {
		return []any{}
	}
	return s
}

// fragment is a list of renderables spliced into the parent's children.
type fragment []any

// Transform converts a syntax tree into a renderable tree. Unresolvable
// values render as nothing.
func Transform(n *Node, cfg *Config) (any, error) {
	out, err := transformNode(n, cfg)
	if err != nil {
		return nil, err
	}
	if f, ok := out.(fragment); ok {
		return []any(f), nil
	}
	return out, nil
}

var defaultRender = map[NodeType]string{
	TypeDocument:   "article",
	TypeParagraph:  "p",
	TypeFence:      "pre",
	TypeCode:       "code",
	TypeStrong:     "strong",
	TypeEm:         "em",
	TypeLink:       "a",
	TypeImage:      "img",
	TypeItem:       "li",
	TypeBlockquote: "blockquote",
	TypeHr:         "hr",
	TypeHardbreak:  "br",
}

func transformNode(n *Node, cfg *Config) (any, error) {
	switch n.Type {
	case TypeError:
		return nil, nil
	case TypeText:
		return resolve(n.Attributes["content"], cfg)
	case TypeSoftbreak:
		return " ", nil
	case TypeTag:
		return transformTag(n, cfg)
	}

	if schema := cfg.node(n.Type); schema != nil && schema.Transform != nil {
		return schema.Transform(n, cfg)
	}

	attrs, err := resolveAttributes(n.Attributes, cfg)
	if err != nil {
		return nil, err
	}
	name := defaultRender[n.Type]
	var children []any
	switch n.Type {
	case TypeDocument:
		delete(attrs, "frontmatter")
	case TypeHeading:
		level, _ := attrs["level"].(float64)
		name = "h" + strconv.Itoa(int(level))
		if schema := cfg.node(n.Type); schema == nil || schema.Render == "" {
			delete(attrs, "level")
		}
	case TypeList:
		name = "ul"
		if ordered, _ := attrs["ordered"].(bool); ordered {
			name = "ol"
		}
		delete(attrs, "ordered")
		delete(attrs, "marker")
	case TypeFence:
		if lang, ok := attrs["language"]; ok {
			attrs["data-language"] = lang
			delete(attrs, "language")
		}
		children = []any{attrs["content"]}
		delete(attrs, "content")
	case TypeCode:
		children = []any{attrs["content"]}
		delete(attrs, "content")
	}
	if schema := cfg.node(n.Type); schema != nil && schema.Render != "" {
		name = schema.Render
	}

	if children == nil {
		children, err = transformChildren(n.Children, cfg)
		if err != nil {
			return nil, err
		}
	}
	return NewTag(name, attrs, children), nil
}

func transformChildren(nodes []*Node, cfg *Config) ([]any, error) {
	out := []any{}
	for _, child := range nodes {
		value, err := transformNode(child, cfg)
		if err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case nil:
		case fragment:
			out = append(out, v...)
		case []any:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	return out, nil
}

func transformTag(n *Node, cfg *Config) (any, error) {
	switch n.Tag {
	case "partial":
		if !cfg.hasTag("partial") {
			return transformPartial(n, cfg)
		}
	case "if":
		if !cfg.hasTag("if") {
			return transformIf(n, cfg)
		}
	case "else":
		return nil, nil
	}

	schema := cfg.tag(n.Tag)
	if schema == nil {
		children, err := transformChildren(n.Children, cfg)
		if err != nil {
			return nil, err
		}
		return fragment(children), nil
	}
	if schema.Transform != nil {
		return schema.Transform(n, cfg)
	}

	attrs, err := resolveAttributes(n.Attributes, cfg)
	if err != nil {
		return nil, err
	}
	for name, decl := range schema.Attributes {
		if _, ok := attrs[name]; !ok && decl.Default != nil {
			attrs[name] = decl.Default
		}
	}
	children, err := transformChildren(n.Children, cfg)
	if err != nil {
		return nil, err
	}
	name := schema.Render
	if name == "" {
		name = n.Tag
	}
	return NewTag(name, attrs, children), nil
}

func transformPartial(n *Node, cfg *Config) (any, error) {
	file, _ := n.Attributes["file"].(string)
	var partial *Node
	if cfg != nil {
		partial = cfg.Partials[file]
	}
	// a partial that includes itself, directly or not, renders nothing on re-entry
	if partial == nil || cfg.expanding[file] {
		return nil, nil
	}
	scoped := cfg.enter(file)
	if raw, ok := n.Attributes["variables"]; ok {
		resolved, err := resolve(raw, cfg)
		if err != nil {
			return nil, err
		}
		if vars, ok := resolved.(map[string]any); ok {
			scoped = scoped.WithVariables(vars)
		}
	}
	children, err := transformChildren(partial.Children, scoped)
	if err != nil {
		return nil, err
	}
	return fragment(children), nil
}

// transformIf renders the first branch whose condition holds. Branches are
// separated by else tags; an else without a condition always matches.
func transformIf(n *Node, cfg *Config) (any, error) {
	cond, err := resolve(n.Attributes["primary"], cfg)
	if err != nil {
		return nil, err
	}
	taken := Truthy(cond)
	var branch []*Node
	for _, child := range n.Children {
		if child.Type == TypeTag && child.Tag == "else" {
			if taken {
				break
			}
			if raw, ok := child.Attributes["primary"]; ok {
				value, err := resolve(raw, cfg)
				if err != nil {
					return nil, err
				}
				taken = Truthy(value)
			} else {
				taken = true
			}
			continue
		}
		if taken {
			branch = append(branch, child)
		}
	}
	children, err := transformChildren(branch, cfg)
	if err != nil {
		return nil, err
	}
	return fragment(children), nil
}

func resolveAttributes(attrs map[string]any, cfg *Config) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for name, raw := range attrs {
		value, err := resolve(raw, cfg)
		if err != nil {
			return nil, err
		}
		if value != nil {
			out[name] = value
		}
	}
	return out, nil
}

// resolve evaluates variables and function calls inside v.
func resolve(v any, cfg *Config) (any, error) {
	switch t := v.(type) {
	case *Variable:
		return lookup(cfg.variables(), t.Path), nil
	case *FunctionCall:
		fn := cfg.function(t.Name)
		if fn == nil {
			return nil, nil
		}
		args := make([]any, len(t.Args))
		for i, arg := range t.Args {
			value, err := resolve(arg, cfg)
			if err != nil {
				return nil, err
			}
			args[i] = value
		}
		return fn.call(t.Name, args, cfg)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			value, err := resolve(item, cfg)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			value, err := resolve(item, cfg)
			if err != nil {
				return nil, err
			}
			if value != nil {
				out[k] = value
			}
		}
		return out, nil
	}
	return v, nil
}

func lookup(vars map[string]any, path []string) any {
	var cur any = vars
	for _, seg := range path {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil
			}
			cur = c[i]
		default:
			return nil
		}
	}
	return cur
}
