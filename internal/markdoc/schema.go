package markdoc

import "maps"

// AttributeType names the expected type of a tag attribute.
type AttributeType string

const (
	AttrString  AttributeType = "String"
	AttrNumber  AttributeType = "Number"
	AttrBoolean AttributeType = "Boolean"
	AttrObject  AttributeType = "Object"
	AttrArray   AttributeType = "Array"
	AttrAny     AttributeType = ""
)

// Attribute declares one attribute accepted by a tag or node.
type Attribute struct {
	Type     AttributeType `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any           `json:"default,omitempty" yaml:"default,omitempty"`
	Matches  []any         `json:"matches,omitempty" yaml:"matches,omitempty"`
	// ErrorLevel overrides the level of diagnostics raised for this attribute.
	ErrorLevel  Level  `json:"errorLevel,omitempty" yaml:"errorLevel,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema describes how a tag or node validates and renders.
type Schema struct {
	Render      string                `json:"render,omitempty" yaml:"render,omitempty"`
	Attributes  map[string]*Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	SelfClosing bool                  `json:"selfClosing,omitempty" yaml:"selfClosing,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`

	// Transform replaces the default rendering when set.
	Transform func(n *Node, cfg *Config) (any, error) `json:"-" yaml:"-"`
}

// FunctionSchema describes a function callable from attributes and
// interpolations.
type FunctionSchema struct {
	// Expr is an expression evaluated with `args` and `variables` in scope.
	Expr        string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Transform func(args []any, cfg *Config) (any, error) `json:"-" yaml:"-"`
}

// Config carries the schema and runtime inputs for Validate and Transform.
//
// A nil Variables or Functions map means "unknown": Validate skips the
// corresponding undefined-reference checks.
type Config struct {
	Nodes     map[NodeType]*Schema
	Tags      map[string]*Schema
	Variables map[string]any
	Functions map[string]*FunctionSchema
	Partials  map[string]*Node

	// partials being expanded on the current transform path
	expanding map[string]bool
}

// global attributes accepted by every tag.
var globalAttributes = map[string]*Attribute{
	"id":    {Type: AttrString},
	"class": {Type: AttrAny},
}

// Builtin tag schemas. Caller tags with the same name take precedence.
var builtinTags = map[string]*Schema{
	"partial": {
		SelfClosing: true,
		Attributes: map[string]*Attribute{
			"file":      {Type: AttrString, Required: true},
			"variables": {Type: AttrObject},
		},
	},
	"if": {
		Attributes: map[string]*Attribute{"primary": {Required: true}},
	},
	"else": {
		SelfClosing: true,
		Attributes:  map[string]*Attribute{"primary": {}},
	},
}

func (c *Config) tag(name string) *Schema {
	if c != nil {
		if s, ok := c.Tags[name]; ok {
			return s
		}
	}
	return builtinTags[name]
}

func (c *Config) hasTag(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Tags[name]
	return ok
}

func (c *Config) node(t NodeType) *Schema {
	if c == nil {
		return nil
	}
	return c.Nodes[t]
}

func (c *Config) function(name string) *FunctionSchema {
	if c != nil {
		if f, ok := c.Functions[name]; ok {
			return f
		}
	}
	return builtinFunctions[name]
}

func (c *Config) variables() map[string]any {
	if c == nil {
		return nil
	}
	return c.Variables
}

// WithVariables returns a shallow copy of c whose variables are extended by vars.
func (c *Config) WithVariables(vars map[string]any) *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	merged := make(map[string]any, len(out.Variables)+len(vars))
	maps.Copy(merged, out.Variables)
	maps.Copy(merged, vars)
	out.Variables = merged
	return out
}

// enter returns a shallow copy of c that records file as being expanded.
func (c *Config) enter(file string) *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	out.expanding = make(map[string]bool, len(out.expanding)+1)
	if c != nil {
		maps.Copy(out.expanding, c.expanding)
	}
	out.expanding[file] = true
	return out
}

// Merge returns a Config combining c and other; entries in other win.
func (c *Config) Merge(other *Config) *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	if other == nil {
		return out
	}
	out.Nodes = mergeMap(out.Nodes, other.Nodes)
	out.Tags = mergeMap(out.Tags, other.Tags)
	out.Variables = mergeMap(out.Variables, other.Variables)
	out.Functions = mergeMap(out.Functions, other.Functions)
	out.Partials = mergeMap(out.Partials, other.Partials)
	return out
}

func mergeMap[K comparable, V any](a, b map[K]V) map[K]V {
	if a == nil && b == nil {
		return nil
	}
	out := make(map[K]V, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
