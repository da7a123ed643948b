package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mdocpack/internal/build"
	"git.home.luguber.info/inful/mdocpack/internal/config"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
	"git.home.luguber.info/inful/mdocpack/internal/metrics"
	"git.home.luguber.info/inful/mdocpack/internal/retry"
	"git.home.luguber.info/inful/mdocpack/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	MetricsListen string        `name:"metrics-listen" help:"Serve Prometheus metrics on this address, e.g. :9464"`
	Quiet         time.Duration `name:"quiet" default:"200ms" help:"Wait this long after the last change before rebuilding"`
	Diff          bool          `help:"Print a line diff of every changed module"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	listen := cfg.Metrics.Listen
	if w.MetricsListen != "" {
		listen = w.MetricsListen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.NewPrometheusRecorder(nil)
	svc := build.NewBuildService().WithLogger(g.Logger).WithRecorder(rec).WithDiffWriter(g.Out)

	policy := retry.NewPolicy(retry.Backoff(cfg.Watch.RetryBackoff), cfg.Watch.RetryInitial, cfg.Watch.RetryMax, cfg.Watch.MaxRetries)
	watcher, err := newWatcher(cfg, w.Quiet, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if _, err := svc.Run(ctx, build.BuildRequest{Config: cfg, Diff: w.Diff}); err != nil {
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}

	grp, gctx := errgroup.WithContext(ctx)
	if listen != "" {
		srv := &http.Server{Addr: listen, Handler: metricsMux(rec), ReadHeaderTimeout: 5 * time.Second}
		grp.Go(func() error {
			g.Logger.Info("Serving metrics", slog.String("addr", listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return derrors.WrapError(err, derrors.CategoryInternal, "metrics server failed").Fatal().Build()
			}
			return nil
		})
		grp.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	grp.Go(func() error {
		g.Logger.Info("Watching for changes", slog.Any("roots", build.Roots(cfg)))
		return watcher.Run(gctx, func(ctx context.Context, batch watch.Batch) error {
			req := build.BuildRequest{Config: cfg, Diff: w.Diff}
			if !batch.Full {
				req.Files = batch.Files
			}
			return rebuild(ctx, svc, req, policy, g.Logger)
		})
	})
	return grp.Wait()
}

// rebuild runs req, retrying the failed documents while every failure is
// a filesystem error.
func rebuild(ctx context.Context, svc build.BuildService, req build.BuildRequest, policy retry.Policy, logger *slog.Logger) error {
	return policy.Do(ctx, transient, func(attempt int) error {
		if attempt > 0 {
			logger.Info("Retrying rebuild", slog.Int("attempt", attempt), slog.Int("documents", len(req.Files)))
		}
		res, err := svc.Run(ctx, req)
		if err != nil && res != nil {
			req.Files = failedFiles(res)
		}
		return err
	})
}

// transient reports whether every document failure in err is a
// filesystem error.
func transient(err error) bool {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return derrors.HasCategory(err, derrors.CategoryFileSystem)
	}
	for _, e := range joined.Unwrap() {
		if !derrors.HasCategory(e, derrors.CategoryFileSystem) {
			return false
		}
	}
	return true
}

func failedFiles(res *build.BuildResult) []string {
	var out []string
	for _, fr := range res.Files {
		if fr.Err != nil {
			out = append(out, fr.Path)
		}
	}
	return out
}

func newWatcher(cfg *config.Config, quiet time.Duration, logger *slog.Logger) (*watch.Watcher, error) {
	match, err := regexp.Compile(cfg.Extension)
	if err != nil {
		return nil, derrors.ConfigError("invalid extension pattern").WithCause(err).Build()
	}
	return watch.New(watch.Config{
		Roots:       build.Roots(cfg),
		ContextDirs: []string{cfg.Path(cfg.SchemaPath)},
		Match:       func(path string) bool { return match.MatchString(filepath.ToSlash(path)) },
		QuietWindow: quiet,
		Logger:      logger,
	})
}

func metricsMux(rec *metrics.PrometheusRecorder) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(rec.Registry()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
