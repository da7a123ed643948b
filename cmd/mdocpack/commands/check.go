package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/mdocpack/internal/build"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Files []string `arg:"" optional:"" help:"Documents to check; every document when omitted"`
	Color string   `name:"color" enum:"auto,always,never" default:"auto" help:"Colorize output (auto|always|never)"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	files := absAll(c.Files)
	if len(files) == 0 {
		if files, err = build.Discover(cfg); err != nil {
			return err
		}
	}

	p := newPrinter(g.Out, c.Color)
	opts := build.LoaderOptions(cfg)
	failed := 0
	for _, file := range files {
		doc, err := document(file)
		if err != nil {
			return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read document").Fatal().Build()
		}
		report, err := loader.Check(context.Background(), loader.Host{Logger: g.Logger}, doc, opts)
		if report == nil && err != nil {
			return err
		}
		for _, d := range report.Diagnostics {
			p.diagnostic(file, d)
		}
		if len(report.Fatal) > 0 {
			failed++
		}
	}

	if failed > 0 {
		p.summary(false, fmt.Sprintf("%d of %d documents have critical diagnostics", failed, len(files)))
		return derrors.ValidationError(fmt.Sprintf("%d documents failed validation", failed)).Build()
	}
	p.summary(true, fmt.Sprintf("%d documents ok", len(files)))
	return nil
}

type printer struct {
	out    io.Writer
	levels map[markdoc.Level]*color.Color
	ok     *color.Color
	bad    *color.Color
	dim    *color.Color
}

func newPrinter(out io.Writer, mode string) *printer {
	p := &printer{
		out: out,
		levels: map[markdoc.Level]*color.Color{
			markdoc.LevelCritical: color.New(color.FgRed, color.Bold),
			markdoc.LevelError:    color.New(color.FgRed),
			markdoc.LevelWarning:  color.New(color.FgYellow),
			markdoc.LevelInfo:     color.New(color.FgCyan),
			markdoc.LevelDebug:    color.New(color.FgHiBlack),
		},
		ok:  color.New(color.FgGreen, color.Bold),
		bad: color.New(color.FgRed, color.Bold),
		dim: color.New(color.Faint),
	}
	enable := mode == "always"
	if mode == "auto" {
		if f, ok := out.(*os.File); ok {
			enable = isatty.IsTerminal(f.Fd())
		}
	}
	for _, c := range p.all() {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) all() []*color.Color {
	out := []*color.Color{p.ok, p.bad, p.dim}
	for _, c := range p.levels {
		out = append(out, c)
	}
	return out
}

func (p *printer) diagnostic(file string, d markdoc.ValidateError) {
	level := p.levels[d.Error.Level]
	if level == nil {
		level = p.dim
	}
	pos := file
	if len(d.Lines) > 0 {
		pos = fmt.Sprintf("%s:%d", file, d.Lines[0]+1)
	}
	fmt.Fprintf(p.out, "%s %s %s %s\n", p.dim.Sprint(pos), level.Sprint(d.Error.Level), d.Error.Message, p.dim.Sprintf("(%s)", d.Error.ID))
}

func (p *printer) summary(ok bool, msg string) {
	if ok {
		fmt.Fprintln(p.out, p.ok.Sprint(msg))
		return
	}
	fmt.Fprintln(p.out, p.bad.Sprint(msg))
}
