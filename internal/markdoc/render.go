package markdoc

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// RenderHTML writes a renderable tree as HTML. components maps tag names to
// the element names to emit instead, mirroring component overrides.
func RenderHTML(w io.Writer, content any, components map[string]string) error {
	for _, n := range htmlNodes(content, components) {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("render html: %w", err)
		}
	}
	return nil
}

// RenderHTMLString is RenderHTML into a string.
func RenderHTMLString(content any, components map[string]string) (string, error) {
	var b strings.Builder
	if err := RenderHTML(&b, content, components); err != nil {
		return "", err
	}
	return b.String(), nil
}

func htmlNodes(content any, components map[string]string) []*html.Node {
	switch v := content.(type) {
	case nil:
		return nil
	case bool:
		return nil
	case string:
		return []*html.Node{{Type: html.TextNode, Data: v}}
	case []any:
		var out []*html.Node
		for _, item := range v {
			out = append(out, htmlNodes(item, components)...)
		}
		return out
	case *Tag:
		name := v.Name
		if alias, ok := components[name]; ok {
			name = alias
		}
		el := &html.Node{Type: html.ElementNode, Data: name, Attr: htmlAttrs(v.Attributes)}
		for _, child := range v.Children {
			for _, n := range htmlNodes(child, components) {
				el.AppendChild(n)
			}
		}
		return []*html.Node{el}
	default:
		return []*html.Node{{Type: html.TextNode, Data: fmt.Sprint(v)}}
	}
}

func htmlAttrs(attrs map[string]any) []html.Attribute {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]html.Attribute, 0, len(keys))
	for _, k := range keys {
		var val string
		switch v := attrs[k].(type) {
		case nil:
			continue
		case bool:
			if !v {
				continue
			}
		case string:
			val = v
		case float64:
			val = fmt.Sprint(v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			val = string(raw)
		}
		out = append(out, html.Attribute{Key: k, Val: val})
	}
	return out
}
