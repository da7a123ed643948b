// Package page evaluates a compiled document the way its generated data
// function does at request time, and renders the result to HTML.
package page

import (
	"context"
	"encoding/json"
	"maps"

	"git.home.luguber.info/inful/mdocpack/internal/emit"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/frontmatter"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

// Input is one request against a compiled document.
type Input struct {
	Source       string
	ResourcePath string
	// Config is the runtime schema; its variables are the config variables.
	Config   *markdoc.Config
	Partials map[string]*markdoc.Node
	// Variables are supplied by the request and override config variables.
	Variables map[string]any
}

// FromResult builds an Input from a compilation result.
func FromResult(doc loader.Document, res *loader.Result, variables map[string]any) Input {
	in := Input{Source: doc.Source, ResourcePath: doc.ResourcePath, Variables: variables}
	if res != nil {
		in.Config = res.Bundle.Runtime()
		if res.Partials != nil {
			in.Partials = res.Partials.Trees
		}
	}
	return in
}

// Props returns the props object the data function resolves to:
// {markdoc: {content, frontmatter, file: {path}}}, after a JSON round trip.
func Props(ctx context.Context, in Input) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ast, err := markdoc.Parse(in.Source)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "failed to parse document").Fatal().Build()
	}
	fm := map[string]any{}
	if raw, ok := ast.Attributes["frontmatter"].(string); ok {
		if fm, err = frontmatter.Parse(raw); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryValidation, "invalid frontmatter").Fatal().Build()
		}
	}

	cfg := in.Config.WithVariables(in.Variables)
	// the frontmatter namespace cannot be overridden
	cfg = cfg.WithVariables(map[string]any{"markdoc": map[string]any{"frontmatter": fm}})
	partials := maps.Clone(cfg.Partials)
	if partials == nil {
		partials = map[string]*markdoc.Node{}
	}
	maps.Copy(partials, in.Partials)
	cfg.Partials = partials

	content, err := markdoc.Transform(ast, cfg)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryBuild, "transform failed").Fatal().Build()
	}

	file := map[string]any{}
	if p, ok := emit.PagePath(in.ResourcePath); ok {
		file["path"] = p
	}
	props := map[string]any{
		"markdoc": map[string]any{
			"content":     content,
			"frontmatter": fm,
			"file":        file,
		},
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "encode props").Fatal().Build()
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "decode props").Fatal().Build()
	}
	return out, nil
}

// Content returns the renderable tree held by props.
func Content(props map[string]any) (any, error) {
	md, _ := props["markdoc"].(map[string]any)
	raw, err := json.Marshal(md["content"])
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw []byte) (any, error) {
	v, err := markdoc.DecodeRenderable(raw)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return v, nil
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		d, err := decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Render renders props to HTML. components renames tags, page-level
// entries winning over schema ones.
func Render(props map[string]any, components map[string]string) (string, error) {
	content, err := Content(props)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryInternal, "decode content").Fatal().Build()
	}
	return markdoc.RenderHTMLString(content, components)
}
