package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/mdocpack/internal/build"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
	"git.home.luguber.info/inful/mdocpack/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Files           []string `arg:"" optional:"" help:"Documents to build; every document when omitted"`
	Force           bool     `short:"f" help:"Recompile documents the cache considers fresh"`
	Diff            bool     `help:"Print a line diff of every changed module"`
	Workers         int      `short:"j" help:"Override build.workers"`
	MetricsTextfile string   `name:"metrics-textfile" help:"Write Prometheus metrics to this file after the build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if b.Workers > 0 {
		cfg.Build.Workers = b.Workers
	}
	textfile := cfg.Metrics.Textfile
	if b.MetricsTextfile != "" {
		textfile = b.MetricsTextfile
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := build.NewBuildService().WithLogger(g.Logger).WithDiffWriter(g.Out)
	var rec *metrics.PrometheusRecorder
	if textfile != "" {
		rec = metrics.NewPrometheusRecorder(nil)
		svc = svc.WithRecorder(rec)
	}

	req := build.BuildRequest{Config: cfg, Force: b.Force, Diff: b.Diff}
	if len(b.Files) > 0 {
		req.Files = absAll(b.Files)
	}
	result, runErr := svc.Run(ctx, req)

	if rec != nil {
		if err := metrics.WriteTextfile(cfg.Path(textfile), rec.Registry()); err != nil {
			g.Logger.Warn("Failed to write metrics", logfields.Error(err))
		}
	}
	if result != nil {
		fmt.Fprintf(g.Out, "%s: %d compiled, %d cached, %d failed, %d removed in %s\n",
			result.Status, result.Compiled, result.Cached, result.Failed, result.Removed, result.Duration.Round(time.Millisecond))
	}
	return runErr
}
