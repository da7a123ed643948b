// Package config loads mdocpack.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "mdocpack.yaml"

// Config is the project configuration shared by every CLI command.
type Config struct {
	Extension     string        `yaml:"extension"`
	Mode          string        `yaml:"mode"`
	SchemaPath    string        `yaml:"schema_path"`
	PagesDir      string        `yaml:"pages_dir"`
	AppDir        string        `yaml:"app_dir"`
	Dir           string        `yaml:"dir"`
	NextRuntime   string        `yaml:"next_runtime"`
	RuntimeModule string        `yaml:"runtime_module"`
	LogLevel      LogLevel      `yaml:"log_level"`
	Output        OutputConfig  `yaml:"output"`
	Build         BuildConfig   `yaml:"build"`
	Metrics       MetricsConfig `yaml:"metrics"`
	Watch         WatchConfig   `yaml:"watch"`

	// SchemaCustom is set when schema_path was given explicitly.
	SchemaCustom bool `yaml:"-"`
	// Warnings lists the adjustments Normalize made while loading.
	Warnings []string `yaml:"-"`
}

// OutputConfig controls where build writes modules.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension"`
}

// BuildConfig controls the build command.
type BuildConfig struct {
	Workers   int    `yaml:"workers"`
	CacheFile string `yaml:"cache_file"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile is written after each build when set.
	Textfile string `yaml:"textfile"`
	// Listen serves /metrics in watch mode when set, e.g. ":9464".
	Listen string `yaml:"listen"`
}

// WatchConfig controls how watch mode retries a rebuild that failed on a
// filesystem error, typically a file caught mid-write.
type WatchConfig struct {
	RetryBackoff string        `yaml:"retry_backoff"`
	RetryInitial time.Duration `yaml:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max"`
	// MaxRetries defaults to 2; a negative value disables retrying.
	MaxRetries int `yaml:"max_retries"`
}

// Default returns the configuration used without a config file, rooted at dir.
func Default(dir string) *Config {
	cfg := &Config{Dir: dir}
	applyDefaults(cfg)
	return cfg
}

// Load reads, expands, normalizes and validates the file at path.
// Relative directories resolve against the file's directory.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, derrors.NotFoundError(fmt.Sprintf("configuration file not found: %s", path)).
				WithCause(err).
				Build()
		}
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read config file").Fatal().Build()
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes data as a configuration rooted at base.
func Parse(data []byte, base string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	cfg.SchemaCustom = cfg.SchemaPath != ""

	if cfg.Dir == "" {
		cfg.Dir = base
	} else if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(base, cfg.Dir)
	}

	res, err := Normalize(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.Warnings = res.Warnings
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if abs, err := filepath.Abs(cfg.Dir); err == nil {
		cfg.Dir = abs
	}
	if cfg.Extension == "" {
		cfg.Extension = `\.(md|mdoc)$`
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStatic
	}
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = "./markdoc"
	}
	if cfg.PagesDir == "" {
		cfg.PagesDir = "pages"
	}
	if cfg.AppDir == "" {
		cfg.AppDir = "app"
	}
	if cfg.NextRuntime == "" {
		cfg.NextRuntime = "nodejs"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogLevelInfo
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = ".mdocpack/out"
	}
	if cfg.Output.Extension == "" {
		cfg.Output.Extension = ".js"
	}
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = runtime.NumCPU()
	}
	if cfg.Build.CacheFile == "" {
		cfg.Build.CacheFile = ".mdocpack/cache.json"
	}
	if cfg.Watch.RetryBackoff == "" {
		cfg.Watch.RetryBackoff = RetryBackoffLinear
	}
}

// Path anchors p at the project directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
