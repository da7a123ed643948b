package build

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/mdocpack/internal/config"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/version"
)

// Discover lists every document under the pages and app directories whose
// path matches the configured extension pattern.
func Discover(cfg *config.Config) ([]string, error) {
	match, err := regexp.Compile(cfg.Extension)
	if err != nil {
		return nil, derrors.ConfigError("invalid extension pattern").WithCause(err).Build()
	}
	var files []string
	for _, root := range Roots(cfg) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if match.MatchString(filepath.ToSlash(path)) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to discover documents").Fatal().Build()
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Roots returns the directories documents are discovered in.
func Roots(cfg *config.Config) []string {
	return []string{cfg.Path(cfg.PagesDir), cfg.Path(cfg.AppDir)}
}

// OutputPath maps a document to its module path: the document's path
// relative to the project directory, under the output directory, with the
// output extension.
func OutputPath(cfg *config.Config, file string) string {
	rel, err := filepath.Rel(cfg.Dir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(file)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + cfg.Output.Extension
	return filepath.Join(cfg.Path(cfg.Output.Directory), rel)
}

// LoaderOptions derives the loader options for cfg.
func LoaderOptions(cfg *config.Config) loader.Options {
	return loader.Options{
		Mode:          cfg.Mode,
		SchemaPath:    cfg.SchemaPath,
		SchemaCustom:  cfg.SchemaCustom,
		Dir:           cfg.Dir,
		AppDir:        cfg.Path(cfg.AppDir),
		RuntimeModule: cfg.RuntimeModule,
	}
}

// cacheKey is the part of the configuration a module depends on.
type cacheKey struct {
	Mode          string `json:"mode"`
	SchemaPath    string `json:"schema_path"`
	SchemaCustom  bool   `json:"schema_custom"`
	Dir           string `json:"dir"`
	AppDir        string `json:"app_dir"`
	RuntimeModule string `json:"runtime_module"`
	Version       string `json:"version"`
}

func keyFor(opts loader.Options) cacheKey {
	return cacheKey{
		Mode:          opts.Mode,
		SchemaPath:    opts.SchemaPath,
		SchemaCustom:  opts.SchemaCustom,
		Dir:           opts.Dir,
		AppDir:        opts.AppDir,
		RuntimeModule: opts.RuntimeModule,
		Version:       version.Version,
	}
}
