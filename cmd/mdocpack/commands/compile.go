package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/resolve"
)

// CompileCmd implements the 'compile' command.
type CompileCmd struct {
	File   string `arg:"" type:"existingfile" help:"Document to compile"`
	Output string `short:"o" help:"Write the module to this file instead of stdout"`
	Mode   string `name:"mode" help:"Override the configured mode (static|server)"`
	Deps   bool   `name:"deps" help:"List the files and directories the module depends on"`
}

func (c *CompileCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	doc, err := document(c.File)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read document").Fatal().Build()
	}

	deps := resolve.NewDependencySet()
	res, err := loader.Compile(context.Background(), loader.Host{Tracker: deps, Logger: g.Logger}, doc, loaderOptions(cfg, c.Mode))
	if err != nil {
		return err
	}

	if c.Deps {
		for _, f := range deps.Files() {
			fmt.Fprintln(g.Err, "file", f)
		}
		for _, d := range deps.Dirs() {
			fmt.Fprintln(g.Err, "dir ", d)
		}
	}

	if c.Output == "" {
		_, err = fmt.Fprint(g.Out, res.Module)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Output), 0o755); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create output directory").Fatal().Build()
	}
	if err := os.WriteFile(c.Output, []byte(res.Module), 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write module").Fatal().Build()
	}
	g.Logger.Info("Wrote module", "output", c.Output)
	return nil
}
