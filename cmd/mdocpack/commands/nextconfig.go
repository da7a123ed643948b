package commands

import (
	"encoding/json"
	"io"
	"os"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/plugin"
)

// NextConfigCmd implements the 'next-config' command. It reads a JSON
// framework configuration, registers the loader, runs the webpack hook
// once and prints the result.
type NextConfigCmd struct {
	File        string `arg:"" optional:"" help:"JSON configuration to extend; stdin when omitted or '-'"`
	Loader      string `name:"loader" help:"Loader module the rules point at"`
	BabelLoader string `name:"babel-loader" default:"next-babel-loader" help:"Loader that precedes the document loader"`
	Runtime     string `name:"runtime" help:"Override next_runtime"`
}

func (n *NextConfigCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	raw, err := n.read()
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read configuration").Fatal().Build()
	}
	next, rules, err := decodeNextConfig(raw)
	if err != nil {
		return err
	}

	opts := plugin.Options{Extension: cfg.Extension, Mode: cfg.Mode, Loader: n.Loader}
	if cfg.SchemaCustom {
		opts.SchemaPath = cfg.SchemaPath
	}
	out, err := plugin.WithMarkdoc(opts)(next)
	if err != nil {
		return err
	}

	runtime := cfg.NextRuntime
	if n.Runtime != "" {
		runtime = n.Runtime
	}
	webpack, err := out.Webpack(&plugin.WebpackConfig{Rules: rules}, plugin.BuildContext{
		Dir:         cfg.Dir,
		NextRuntime: runtime,
		AppDir:      cfg.Path(cfg.AppDir),
		PagesDir:    cfg.Path(cfg.PagesDir),
		Babel:       plugin.RuleUse{Loader: n.BabelLoader},
	})
	if err != nil {
		return err
	}

	result := make(map[string]any, len(out.Settings)+2)
	for k, v := range out.Settings {
		result[k] = v
	}
	result["webpack"] = webpack
	if out.Turbopack != nil {
		result["turbopack"] = out.Turbopack
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (n *NextConfigCmd) read() ([]byte, error) {
	if n.File == "" || n.File == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(n.File)
}

// decodeNextConfig splits a JSON configuration into the plugin's view of
// it. An existing "webpack" object contributes its rules.
func decodeNextConfig(raw []byte) (plugin.NextConfig, []plugin.Rule, error) {
	settings := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return plugin.NextConfig{}, nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid configuration JSON").Fatal().Build()
		}
	}
	next := plugin.NextConfig{Settings: settings}
	if tp, ok := settings["turbopack"].(map[string]any); ok {
		next.Turbopack = tp
		delete(settings, "turbopack")
	}

	var rules []plugin.Rule
	if wp, ok := settings["webpack"]; ok {
		delete(settings, "webpack")
		data, err := json.Marshal(wp)
		if err != nil {
			return plugin.NextConfig{}, nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid webpack section").Fatal().Build()
		}
		var existing plugin.WebpackConfig
		if err := json.Unmarshal(data, &existing); err != nil {
			return plugin.NextConfig{}, nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid webpack section").Fatal().Build()
		}
		rules = existing.Rules
	}
	return next, rules, nil
}
