package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/frontmatter"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

// DeclarativeLoader decodes JSON and YAML slot modules. Script modules are
// reported as ErrUnavailable.
type DeclarativeLoader struct {
	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// configModule is the shape of the config slot.
type configModule struct {
	Variables map[string]any                     `json:"variables" yaml:"variables"`
	Tags      map[string]*markdoc.Schema         `json:"tags" yaml:"tags"`
	Nodes     map[string]*markdoc.Schema         `json:"nodes" yaml:"nodes"`
	Functions map[string]*markdoc.FunctionSchema `json:"functions" yaml:"functions"`
	// Extends names built-in tag sets to include, e.g. "nextjs".
	Extends []string `json:"extends" yaml:"extends"`
}

// LoadSlot implements ModuleLoader.
func (l DeclarativeLoader) LoadSlot(ctx context.Context, slot SlotName, path string) (*markdoc.Config, error) {
	decode, ok := decoderFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, filepath.Base(path))
	}
	read := l.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mod configModule
	switch slot {
	case SlotConfig:
		err = decode(data, &mod)
	case SlotTags:
		err = decode(data, &mod.Tags)
	case SlotNodes:
		err = decode(data, &mod.Nodes)
	case SlotFunctions:
		err = decode(data, &mod.Functions)
	default:
		return nil, fmt.Errorf("unknown schema slot %q", slot)
	}
	if err != nil {
		return nil, derrors.SchemaError(fmt.Sprintf("failed to decode %s slot", slot)).
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	cfg, err := mod.config()
	if err != nil {
		return nil, derrors.SchemaError(fmt.Sprintf("invalid %s slot", slot)).
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return cfg, nil
}

func decoderFor(path string) (func([]byte, any) error, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal, true
	case ".yaml", ".yml":
		return yaml.Unmarshal, true
	}
	return nil, false
}

func (m configModule) config() (*markdoc.Config, error) {
	cfg := &markdoc.Config{Tags: m.Tags, Functions: m.Functions}
	if m.Variables != nil {
		vars, _ := frontmatter.Normalize(m.Variables).(map[string]any)
		cfg.Variables = vars
	}
	if len(m.Nodes) > 0 {
		cfg.Nodes = make(map[markdoc.NodeType]*markdoc.Schema, len(m.Nodes))
		for name, s := range m.Nodes {
			cfg.Nodes[markdoc.NodeType(name)] = s
		}
	}
	for name, s := range cfg.Tags {
		if err := checkSchema(s); err != nil {
			return nil, fmt.Errorf("tag %q: %w", name, err)
		}
	}
	for name, s := range cfg.Nodes {
		if err := checkSchema(s); err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
	}
	for name, fn := range cfg.Functions {
		if fn == nil || fn.Expr == "" {
			return nil, fmt.Errorf("function %q: missing expr", name)
		}
		if err := markdoc.CheckExpr(fn.Expr); err != nil {
			return nil, fmt.Errorf("function %q: %w", name, err)
		}
	}
	for _, set := range m.Extends {
		tags, ok := tagSets[set]
		if !ok {
			return nil, fmt.Errorf("unknown tag set %q", set)
		}
		merged := make(map[string]*markdoc.Schema, len(tags)+len(cfg.Tags))
		for k, v := range tags {
			merged[k] = v
		}
		for k, v := range cfg.Tags {
			merged[k] = v
		}
		cfg.Tags = merged
	}

	return cfg, nil
}

func checkSchema(s *markdoc.Schema) error {
	if s == nil {
		return fmt.Errorf("empty schema")
	}
	for name, attr := range s.Attributes {
		if attr == nil {
			s.Attributes[name] = &markdoc.Attribute{}
			continue
		}
		switch attr.Type {
		case markdoc.AttrString, markdoc.AttrNumber, markdoc.AttrBoolean,
			markdoc.AttrObject, markdoc.AttrArray, markdoc.AttrAny:
		default:
			return fmt.Errorf("attribute %q: unknown type %q", name, attr.Type)
		}
		attr.Default = frontmatter.Normalize(attr.Default)
		for i, m := range attr.Matches {
			attr.Matches[i] = frontmatter.Normalize(m)
		}
	}
	return nil
}
