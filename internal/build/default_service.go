package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mdocpack/internal/config"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/incremental"
	"git.home.luguber.info/inful/mdocpack/internal/loader"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
	"git.home.luguber.info/inful/mdocpack/internal/metrics"
	"git.home.luguber.info/inful/mdocpack/internal/resolve"
)

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	recorder metrics.Recorder
	logger   *slog.Logger
	resolver resolve.Resolver
	diffOut  io.Writer
}

// NewBuildService creates a DefaultBuildService with no metrics and the
// default logger.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		resolver: resolve.NewFSResolver(),
		diffOut:  io.Discard,
	}
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = metrics.Or(r)
	return s
}

// WithLogger sets a custom logger.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithResolver replaces the filesystem module resolver.
func (s *DefaultBuildService) WithResolver(r resolve.Resolver) *DefaultBuildService {
	if r != nil {
		s.resolver = r
	}
	return s
}

// WithDiffWriter sets where diffs are written when a request asks for them.
func (s *DefaultBuildService) WithDiffWriter(w io.Writer) *DefaultBuildService {
	if w != nil {
		s.diffOut = w
	}
	return s
}

// Run compiles the requested documents. The error is non-nil when any
// document failed; the result is returned in every case.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if req.Config == nil {
		return nil, derrors.ConfigError("build request has no configuration").Build()
	}
	cfg := req.Config
	result := &BuildResult{StartTime: time.Now()}

	files := req.Files
	if files == nil {
		discovered, err := Discover(cfg)
		if err != nil {
			return nil, err
		}
		files = discovered
	}

	cache := incremental.Open(cfg.Path(cfg.Build.CacheFile), s.logger)
	result.BuildID = cache.BuildID()
	logger := s.logger.With(logfields.BuildID(result.BuildID))
	logger.Info("Starting build", slog.Int("documents", len(files)), slog.Int("workers", cfg.Build.Workers))

	var (
		mu      sync.Mutex
		diffsMu sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Build.Workers, 1))
	for _, file := range files {
		g.Go(func() error {
			fr := s.buildOne(gctx, cfg, cache, logger, file, req, &diffsMu)
			mu.Lock()
			result.Files = append(result.Files, fr)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := cache.Save(); err != nil {
		logger.Warn("Failed to save build cache", logfields.Error(err))
	}

	slices.SortFunc(result.Files, func(a, b FileResult) int { return strings.Compare(a.Path, b.Path) })
	var errs []error
	for _, fr := range result.Files {
		switch {
		case fr.Removed:
			result.Removed++
		case fr.Err != nil:
			result.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", fr.Path, fr.Err))
		case fr.Outcome == metrics.OutcomeCached:
			result.Cached++
		default:
			result.Compiled++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	logger.Info("Build finished",
		slog.Int("compiled", result.Compiled),
		slog.Int("cached", result.Cached),
		slog.Int("failed", result.Failed),
		slog.Int("removed", result.Removed),
		logfields.DurationMS(float64(result.Duration.Microseconds())/1000))

	switch {
	case ctx.Err() != nil:
		result.Status = BuildStatusCancelled
		return result, ctx.Err()
	case len(errs) > 0:
		result.Status = BuildStatusFailed
		return result, derrors.BuildError(fmt.Sprintf("%d of %d documents failed", len(errs), len(files))).
			WithCause(errors.Join(errs...)).
			Build()
	}
	result.Status = BuildStatusSuccess
	return result, nil
}

func (s *DefaultBuildService) buildOne(ctx context.Context, cfg *config.Config, cache *incremental.Cache, logger *slog.Logger, file string, req BuildRequest, diffsMu *sync.Mutex) FileResult {
	fr := FileResult{Path: file, Output: OutputPath(cfg, file)}
	if err := ctx.Err(); err != nil {
		s.recorder.IncCompileOutcome(metrics.OutcomeCanceled)
		fr.Outcome, fr.Err = metrics.OutcomeCanceled, err
		return fr
	}

	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		cache.Forget(file)
		if rmErr := os.Remove(fr.Output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			fr.Err = derrors.WrapError(rmErr, derrors.CategoryFileSystem, "failed to remove stale module").Build()
			return fr
		}
		fr.Removed = true
		logger.Debug("Removed module of deleted document", logfields.File(file))
		return fr
	}
	if err != nil {
		fr.Outcome = metrics.OutcomeFailed
		fr.Err = derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read document").Fatal().Build()
		return fr
	}
	source := string(data)

	opts := LoaderOptions(cfg)
	opts.Recorder = s.recorder
	key := keyFor(opts)
	if !req.Force && cache.Fresh(file, source, key) {
		s.recorder.IncCompileOutcome(metrics.OutcomeCached)
		fr.Outcome = metrics.OutcomeCached
		logger.Debug("Document unchanged", logfields.File(file))
		return fr
	}

	deps := resolve.NewDependencySet()
	host := loader.Host{Resolver: s.resolver, Tracker: deps, Logger: logger}
	module, err := loader.Load(ctx, host, loader.Document{Source: source, ResourcePath: file}, opts)
	if err != nil {
		cache.Forget(file)
		fr.Outcome, fr.Err = metrics.OutcomeFailed, err
		logger.Error("Compilation failed", logfields.File(file), logfields.Error(err))
		return fr
	}
	fr.Outcome = metrics.OutcomeCompiled

	previous, readErr := os.ReadFile(fr.Output)
	if readErr != nil || !bytes.Equal(previous, []byte(module)) {
		if req.Diff && readErr == nil {
			diffsMu.Lock()
			_, _ = io.WriteString(s.diffOut, LineDiff(fr.Output, string(previous), module))
			diffsMu.Unlock()
		}
		if err := writeFile(fr.Output, module); err != nil {
			cache.Forget(file)
			fr.Outcome, fr.Err = metrics.OutcomeFailed, err
			return fr
		}
		fr.Changed = true
	}

	sig, err := incremental.ComputeSignature(incremental.Inputs{
		Source:  source,
		Options: key,
		Files:   deps.Files(),
		Dirs:    deps.Dirs(),
	})
	if err != nil {
		logger.Warn("Not caching document", logfields.File(file), logfields.Error(err))
		cache.Forget(file)
		return fr
	}
	cache.Record(file, fr.Output, sig)
	return fr
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create output directory").Fatal().Build()
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write module").Fatal().Build()
	}
	return nil
}
