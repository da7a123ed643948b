// Package commands implements the mdocpack subcommands.
package commands

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdocpack/internal/build"
	"git.home.luguber.info/inful/mdocpack/internal/config"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
)

// LogLevelEnv overrides the log level when --verbose is not given.
const LogLevelEnv = "MDOCPACK_LOG_LEVEL"

// Global is shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Level  *slog.LevelVar
	Out    io.Writer
	Err    io.Writer
}

// NewGlobal writes to the process's standard streams.
func NewGlobal() *Global {
	level := &slog.LevelVar{}
	return &Global{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		Level:  level,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mdocpack.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Compile    CompileCmd    `cmd:"" help:"Compile one document to a page module"`
	Build      BuildCmd      `cmd:"" help:"Compile every document of the project"`
	Watch      WatchCmd      `cmd:"" help:"Rebuild documents as they change"`
	Check      CheckCmd      `cmd:"" help:"Validate documents without writing modules"`
	Props      PropsCmd      `cmd:"" help:"Print the props a page's data function returns"`
	Preview    PreviewCmd    `cmd:"" help:"Render a document to HTML"`
	NextConfig NextConfigCmd `cmd:"" name:"next-config" help:"Apply the loader rules to a Next.js configuration"`
}

// AfterApply runs after flag parsing and sets the log level once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Level.Set(parseLogLevel(c.Verbose))
	slog.SetDefault(g.Logger)
	return nil
}

// parseLogLevel honours --verbose first, then MDOCPACK_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return levelFor(config.NormalizeLogLevel(os.Getenv(LogLevelEnv)))
}

func levelFor(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configuration file. A missing default file means
// the defaults rooted at the working directory; a missing explicit file is
// an error.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	path := root.Config
	if path == "" {
		path = config.DefaultFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		if path != config.DefaultFile || !missing(path) {
			return nil, err
		}
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, err
		}
		g.Logger.Debug("No configuration file, using defaults", slog.String("dir", wd))
		cfg = config.Default(wd)
	}
	if !root.Verbose && os.Getenv(LogLevelEnv) == "" {
		g.Level.Set(levelFor(cfg.LogLevel))
	}
	for _, w := range cfg.Warnings {
		g.Logger.Warn("Configuration adjusted", slog.String("detail", w), slog.String("path", path))
	}
	return cfg, nil
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// document reads file and returns it with an absolute resource path.
func document(file string) (loader.Document, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return loader.Document{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return loader.Document{}, err
	}
	return loader.Document{Source: string(data), ResourcePath: abs}, nil
}

// loaderOptions applies a per-invocation mode override.
func loaderOptions(cfg *config.Config, mode string) loader.Options {
	opts := build.LoaderOptions(cfg)
	if mode != "" {
		opts.Mode = strings.ToLower(mode)
	}
	return opts
}

func absAll(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, f)
	}
	return out
}
