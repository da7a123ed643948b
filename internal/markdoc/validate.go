package markdoc

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ValidateError is one diagnostic attached to the node that produced it.
type ValidateError struct {
	Type     NodeType  `json:"type"`
	Lines    []int     `json:"lines"`
	Location *Location `json:"location,omitempty"`
	Error    Error     `json:"error"`
}

// Validate checks doc against cfg and returns diagnostics in document order.
// Syntax errors recorded by Parse are reported alongside schema findings.
func Validate(doc *Node, cfg *Config) []ValidateError {
	var out []ValidateError
	report := func(n *Node, err Error) {
		loc := err.Location
		if loc == nil {
			loc = n.Location
		}
		out = append(out, ValidateError{Type: n.Type, Lines: n.Lines, Location: loc, Error: err})
	}

	for n := range doc.Walk() {
		for _, err := range n.Errors {
			report(n, err)
		}
		switch n.Type {
		case TypeTag:
			validateTag(n, cfg, report)
		case TypeText:
			validateValue(n, n.Attributes["content"], cfg, report)
		default:
			if schema := cfg.node(n.Type); schema != nil && schema.Attributes != nil {
				validateAttributes(n, schema, cfg, report)
			}
		}
	}
	return out
}

func validateTag(n *Node, cfg *Config, report func(*Node, Error)) {
	schema := cfg.tag(n.Tag)
	if schema == nil {
		report(n, Error{
			ID:      "tag-undefined",
			Level:   LevelCritical,
			Message: fmt.Sprintf("Undefined tag: '%s'", n.Tag),
		})
		for _, v := range n.Attributes {
			validateValue(n, v, cfg, report)
		}
		return
	}
	validateAttributes(n, schema, cfg, report)
}

func validateAttributes(n *Node, schema *Schema, cfg *Config, report func(*Node, Error)) {
	names := make([]string, 0, len(n.Attributes))
	for name := range n.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := n.Attributes[name]
		validateValue(n, value, cfg, report)

		if n.Type != TypeTag {
			continue
		}
		decl := schema.Attributes[name]
		if decl == nil {
			decl = globalAttributes[name]
		}
		if decl == nil {
			report(n, Error{
				ID:      "attribute-undefined",
				Level:   LevelError,
				Message: fmt.Sprintf("Invalid attribute: '%s'", name),
			})
			continue
		}
		if isDeferred(value) {
			continue
		}
		if !typeMatches(decl.Type, value) {
			report(n, Error{
				ID:      "attribute-type-invalid",
				Level:   decl.level(),
				Message: fmt.Sprintf("Attribute '%s' must be type of '%s'", name, decl.Type),
			})
			continue
		}
		if len(decl.Matches) > 0 && !slices.ContainsFunc(decl.Matches, func(m any) bool { return fmt.Sprint(m) == fmt.Sprint(value) }) {
			report(n, Error{
				ID:      "attribute-value-invalid",
				Level:   decl.level(),
				Message: fmt.Sprintf("Attribute '%s' must match one of %s. Got '%v' instead.", name, formatMatches(decl.Matches), value),
			})
		}
	}

	required := make([]string, 0, len(schema.Attributes))
	for name, decl := range schema.Attributes {
		if decl.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	for _, name := range required {
		if _, ok := n.Attributes[name]; !ok {
			report(n, Error{
				ID:      "attribute-missing-required",
				Level:   schema.Attributes[name].level(),
				Message: fmt.Sprintf("Missing required attribute: '%s'", name),
			})
		}
	}
}

func (a *Attribute) level() Level {
	if a.ErrorLevel != "" {
		return a.ErrorLevel
	}
	return LevelError
}

func formatMatches(matches []any) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprint(m)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func isDeferred(v any) bool {
	switch v.(type) {
	case *Variable, *FunctionCall:
		return true
	}
	return false
}

func typeMatches(t AttributeType, v any) bool {
	switch t {
	case AttrString:
		_, ok := v.(string)
		return ok
	case AttrNumber:
		_, ok := v.(float64)
		return ok
	case AttrBoolean:
		_, ok := v.(bool)
		return ok
	case AttrObject:
		_, ok := v.(map[string]any)
		return ok
	case AttrArray:
		_, ok := v.([]any)
		return ok
	}
	return true
}

// validateValue reports undefined variables and functions anywhere inside v.
func validateValue(n *Node, v any, cfg *Config, report func(*Node, Error)) {
	switch t := v.(type) {
	case *Variable:
		vars := cfg.variables()
		if vars == nil {
			return
		}
		if _, ok := vars[t.Path[0]]; !ok {
			report(n, Error{
				ID:      "variable-undefined",
				Level:   LevelError,
				Message: fmt.Sprintf("Undefined variable: '%s'", strings.Join(t.Path, ".")),
			})
		}
	case *FunctionCall:
		if cfg != nil && cfg.Functions != nil && cfg.function(t.Name) == nil {
			report(n, Error{
				ID:      "function-undefined",
				Level:   LevelCritical,
				Message: fmt.Sprintf("Undefined function: '%s'", t.Name),
			})
		}
		for _, arg := range t.Args {
			validateValue(n, arg, cfg, report)
		}
	case []any:
		for _, item := range t {
			validateValue(n, item, cfg, report)
		}
	case map[string]any:
		for _, item := range t {
			validateValue(n, item, cfg, report)
		}
	}
}
