// Package plugin registers the document compiler with the host framework's
// build configuration, for both the webpack and the turbopack backends.
package plugin

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
)

// DefaultExtension matches .md and .mdoc documents.
const DefaultExtension = `\.(md|mdoc)$`

// DefaultLoader is the module the rules route matching files through.
const DefaultLoader = "mdocpack/loader"

// Options are the plugin options, forwarded to every loader invocation.
type Options struct {
	// Extension is a regular expression source; DefaultExtension when empty.
	Extension  string         `json:"extension,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	SchemaPath string         `json:"schemaPath,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	// Loader overrides DefaultLoader.
	Loader string `json:"-"`
}

func (o Options) extension() string {
	if o.Extension == "" {
		return DefaultExtension
	}
	return o.Extension
}

func (o Options) loader() string {
	if o.Loader == "" {
		return DefaultLoader
	}
	return o.Loader
}

// asMap returns the options as a JSON object, omitting unset fields.
func (o Options) asMap() map[string]any {
	out := map[string]any{}
	if o.Extension != "" {
		out["extension"] = o.Extension
	}
	if o.Mode != "" {
		out["mode"] = o.Mode
	}
	if o.SchemaPath != "" {
		out["schemaPath"] = o.SchemaPath
	}
	if o.Options != nil {
		out["options"] = maps.Clone(o.Options)
	}
	return out
}

// RuleUse is one loader in a rule's chain.
type RuleUse struct {
	Loader  string         `json:"loader"`
	Options map[string]any `json:"options,omitempty"`
}

// Rule routes files matching Test through Use, last loader first.
type Rule struct {
	Test string    `json:"test"`
	Use  []RuleUse `json:"use"`
}

// WebpackConfig is the part of the webpack configuration the hook edits.
type WebpackConfig struct {
	Rules []Rule `json:"rules"`
}

// BuildContext is what the framework passes to webpack hooks.
type BuildContext struct {
	Dir         string  `json:"dir"`
	NextRuntime string  `json:"nextRuntime,omitempty"`
	AppDir      string  `json:"appDir,omitempty"`
	PagesDir    string  `json:"pagesDir,omitempty"`
	Babel       RuleUse `json:"babel"`
}

// WebpackFunc customises the webpack configuration.
type WebpackFunc func(cfg *WebpackConfig, ctx BuildContext) (*WebpackConfig, error)

// NextConfig is a framework configuration.
type NextConfig struct {
	// Settings holds every other key, preserved untouched.
	Settings map[string]any
	Webpack  WebpackFunc
	// Turbopack is nil unless the configuration opted into turbopack.
	Turbopack map[string]any
}

// WithMarkdoc returns a configuration transformer that registers the loader.
func WithMarkdoc(opts Options) func(NextConfig) (NextConfig, error) {
	return func(next NextConfig) (NextConfig, error) {
		if _, err := regexp.Compile(opts.extension()); err != nil {
			return NextConfig{}, derrors.WrapError(err, derrors.CategoryConfig, "invalid extension pattern").
				Fatal().
				WithContext("extension", opts.extension()).
				Build()
		}

		out := NextConfig{Settings: maps.Clone(next.Settings)}
		previous := next.Webpack
		out.Webpack = func(cfg *WebpackConfig, ctx BuildContext) (*WebpackConfig, error) {
			if cfg == nil {
				cfg = &WebpackConfig{}
			}
			cfg.Rules = append(cfg.Rules, WebpackRule(opts, ctx))
			if previous != nil {
				return previous(cfg, ctx)
			}
			return cfg, nil
		}

		if next.Turbopack != nil {
			merged, err := mergeTurbopack(next.Turbopack, TurbopackRules(opts))
			if err != nil {
				return NextConfig{}, err
			}
			out.Turbopack = merged
		}
		return out, nil
	}
}

// WebpackRule is the rule the webpack hook appends: the framework's babel
// loader for fast refresh, then the document loader.
func WebpackRule(opts Options, ctx BuildContext) Rule {
	loaderOpts := map[string]any{}
	if ctx.AppDir != "" {
		loaderOpts["appDir"] = ctx.AppDir
	}
	if ctx.PagesDir != "" {
		loaderOpts["pagesDir"] = ctx.PagesDir
	}
	maps.Copy(loaderOpts, opts.asMap())
	loaderOpts["dir"] = ctx.Dir
	if ctx.NextRuntime != "" {
		loaderOpts["nextRuntime"] = ctx.NextRuntime
	}

	return Rule{
		Test: opts.extension(),
		Use: []RuleUse{
			ctx.Babel,
			{Loader: opts.loader(), Options: loaderOpts},
		},
	}
}

var extensionGroup = regexp.MustCompile(`\\\.\(([^)]+)\)\$?`)

// ExtensionGlobs translates a pattern such as `\.(md|mdoc)$` into one glob
// per alternative. Patterns of any other shape yield the default globs.
func ExtensionGlobs(pattern string) []string {
	m := extensionGroup.FindStringSubmatch(pattern)
	if m == nil {
		return []string{"*.md", "*.mdoc"}
	}
	var out []string
	for _, ext := range strings.Split(m[1], "|") {
		out = append(out, "*."+ext)
	}
	return out
}

// TurbopackRules returns the turbopack rules keyed by glob.
func TurbopackRules(opts Options) map[string]any {
	rules := map[string]any{}
	for _, glob := range ExtensionGlobs(opts.extension()) {
		rules[glob] = map[string]any{
			"loaders": []any{
				map[string]any{"loader": opts.loader(), "options": opts.asMap()},
			},
			"as": "*.js",
		}
	}
	return rules
}

// mergeTurbopack merges rules into the caller's block with a JSON merge
// patch, keeping every key the caller declared.
func mergeTurbopack(existing, rules map[string]any) (map[string]any, error) {
	doc, err := json.Marshal(existing)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "encode turbopack config").Fatal().Build()
	}
	patch, err := json.Marshal(map[string]any{"rules": rules})
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "encode turbopack rules").Fatal().Build()
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "merge turbopack config").Fatal().Build()
	}
	var out map[string]any
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("decode merged turbopack config: %w", err)
	}
	return out, nil
}
