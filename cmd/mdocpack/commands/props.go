package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/page"
)

// PropsCmd implements the 'props' command.
type PropsCmd struct {
	File string            `arg:"" type:"existingfile" help:"Document to evaluate"`
	Var  map[string]string `name:"var" help:"Request variable as key=value; values that parse as JSON are decoded"`
}

func (p *PropsCmd) Run(g *Global, root *CLI) error {
	props, err := evaluate(g, root, p.File, p.Var)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(props)
}

// PreviewCmd implements the 'preview' command.
type PreviewCmd struct {
	File      string            `arg:"" type:"existingfile" help:"Document to render"`
	Var       map[string]string `name:"var" help:"Request variable as key=value"`
	Component map[string]string `name:"component" help:"Render a tag as this element, e.g. Callout=aside"`
	Output    string            `short:"o" help:"Write HTML to this file instead of stdout"`
}

func (p *PreviewCmd) Run(g *Global, root *CLI) error {
	props, err := evaluate(g, root, p.File, p.Var)
	if err != nil {
		return err
	}
	html, err := page.Render(props, p.Component)
	if err != nil {
		return err
	}
	if p.Output == "" {
		_, err = g.Out.Write([]byte(html + "\n"))
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.Output), 0o755); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create output directory").Fatal().Build()
	}
	if err := os.WriteFile(p.Output, []byte(html), 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write preview").Fatal().Build()
	}
	return nil
}

// evaluate compiles file and runs its data function with vars.
func evaluate(g *Global, root *CLI, file string, vars map[string]string) (map[string]any, error) {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return nil, err
	}
	doc, err := document(file)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read document").Fatal().Build()
	}
	ctx := context.Background()
	res, err := loader.Compile(ctx, loader.Host{Logger: g.Logger}, doc, loaderOptions(cfg, ""))
	if err != nil {
		return nil, err
	}
	return page.Props(ctx, page.FromResult(doc, res, decodeVars(vars)))
}

func decodeVars(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
			continue
		}
		out[k] = v
	}
	return out
}
