// Package loader compiles one document into a page module: parse, locate
// the schema, validate, gather partials, emit.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdocpack/internal/emit"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
	"git.home.luguber.info/inful/mdocpack/internal/metrics"
	"git.home.luguber.info/inful/mdocpack/internal/partials"
	"git.home.luguber.info/inful/mdocpack/internal/resolve"
	"git.home.luguber.info/inful/mdocpack/internal/schema"
	"git.home.luguber.info/inful/mdocpack/internal/validation"
)

// PartialsDir is the directory under the schema directory holding partials.
const PartialsDir = "partials"

// Document is one source file being compiled.
type Document struct {
	Source       string
	ResourcePath string
}

// Host is what the bundler provides to a loader invocation.
type Host struct {
	Resolver resolve.Resolver
	Tracker  resolve.Tracker
	Logger   *slog.Logger
}

// Options configure a compilation. The zero value compiles a static pages
// module against ./markdoc in the working directory.
type Options struct {
	Mode       string
	SchemaPath string
	// SchemaCustom marks SchemaPath as explicitly configured.
	SchemaCustom bool
	// Dir is the project root; relative schema paths resolve against it.
	Dir string
	// AppDir routes documents below it to the app-router module shape.
	AppDir        string
	RuntimeModule string

	ReadFile     partials.Reader
	SchemaLoader schema.ModuleLoader
	LiveTimeout  time.Duration
	Recorder     metrics.Recorder
}

// Result carries the module text and what was learned producing it.
type Result struct {
	Module   string
	Report   *validation.Report
	Bundle   *schema.Bundle
	Partials *partials.Result
}

// Load compiles doc and returns the generated module text. Output is
// all-or-nothing: on error no module is returned.
func Load(ctx context.Context, host Host, doc Document, opts Options) (string, error) {
	res, err := Compile(ctx, host, doc, opts)
	if err != nil {
		return "", err
	}
	return res.Module, nil
}

// Run delivers the outcome of Load to callback: an error or a module,
// never both.
func Run(ctx context.Context, host Host, doc Document, opts Options, callback func(error, string)) {
	module, err := Load(ctx, host, doc, opts)
	if err != nil {
		callback(err, "")
		return
	}
	callback(nil, module)
}

// Compile is Load returning the intermediate results as well.
func Compile(ctx context.Context, host Host, doc Document, opts Options) (*Result, error) {
	start := time.Now()
	rec := metrics.Or(opts.Recorder)
	logger := host.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.File(doc.ResourcePath))
	tracker := host.Tracker
	if tracker == nil {
		tracker = resolve.Nop{}
	}

	res, err := compile(ctx, host, tracker, logger, rec, doc, opts)
	rec.ObserveCompileDuration(time.Since(start))
	switch {
	case err == nil:
		rec.IncCompileOutcome(metrics.OutcomeCompiled)
		logger.Debug("Compiled document", logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rec.IncCompileOutcome(metrics.OutcomeCanceled)
	default:
		rec.IncCompileOutcome(metrics.OutcomeFailed)
	}
	return res, err
}

func compile(ctx context.Context, host Host, tracker resolve.Tracker, logger *slog.Logger, rec metrics.Recorder, doc Document, opts Options) (*Result, error) {
	mode, err := emit.ParseMode(opts.Mode)
	if err != nil {
		logger.Warn("Unknown mode, compiling as static", logfields.Mode(opts.Mode))
	}

	var tree *markdoc.Node
	err = stage(rec, "parse", func() error {
		var perr error
		tree, perr = markdoc.Parse(doc.Source)
		if perr != nil {
			return derrors.WrapError(perr, derrors.CategoryValidation, "failed to parse document").Fatal().Build()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	schemaLoader := opts.SchemaLoader
	if schemaLoader == nil {
		schemaLoader = schema.DeclarativeLoader{}
	}
	req := schema.Request{
		BaseDir:     opts.Dir,
		SchemaPath:  opts.SchemaPath,
		Custom:      opts.SchemaCustom,
		Resolver:    host.Resolver,
		Tracker:     tracker,
		Loader:      schemaLoader,
		LiveTimeout: opts.LiveTimeout,
		Logger:      logger,
	}
	var bundle *schema.Bundle
	err = stage(rec, "schema", func() error {
		var lerr error
		bundle, lerr = schema.Locate(ctx, req)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	recordSlots(rec, bundle)

	var report *validation.Report
	err = stage(rec, "validate", func() error {
		var verr error
		report, verr = validation.Validate(tree, bundle.Config(), doc.Source, validation.NewSlogLogger(logger, doc.ResourcePath))
		return verr
	})
	if report != nil {
		for level, n := range report.Counts() {
			rec.AddDiagnostics(string(level), n)
		}
	}
	if err != nil {
		return nil, err
	}

	var gathered *partials.Result
	err = stage(rec, "partials", func() error {
		var gerr error
		gathered, gerr = partials.Gather(ctx, tree, filepath.Join(bundle.Dir, PartialsDir), opts.ReadFile)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	for _, f := range gathered.Files {
		tracker.AddDependency(f)
		logger.Debug("Gathered partial", logfields.Partial(f))
	}
	rec.ObservePartials(len(gathered.Partials))

	var module string
	err = stage(rec, "emit", func() error {
		var eerr error
		module, eerr = emit.Emit(emit.Input{
			Source:        doc.Source,
			ResourcePath:  doc.ResourcePath,
			Partials:      gathered.Partials,
			SchemaCode:    bundle.Code(filepath.Dir(doc.ResourcePath)),
			Mode:          mode,
			Router:        router(doc.ResourcePath, opts.AppDir),
			RuntimeModule: opts.RuntimeModule,
		})
		return eerr
	})
	if err != nil {
		return nil, err
	}

	return &Result{Module: module, Report: report, Bundle: bundle, Partials: gathered}, nil
}

func stage(rec metrics.Recorder, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	rec.ObserveStageDuration(name, time.Since(start))
	switch {
	case err == nil:
		rec.IncStageResult(name, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rec.IncStageResult(name, metrics.ResultCanceled)
	default:
		rec.IncStageResult(name, metrics.ResultFatal)
	}
	return err
}

func recordSlots(rec metrics.Recorder, b *schema.Bundle) {
	counts := map[schema.SlotState]int{}
	for _, name := range schema.SlotNames {
		counts[b.Slots[name].State]++
	}
	for _, state := range []schema.SlotState{schema.SlotAbsent, schema.SlotResolved, schema.SlotLive} {
		rec.SetSchemaSlots(state.String(), counts[state])
	}
}

// router picks the app-router shape for documents under appDir.
func router(resourcePath, appDir string) emit.Router {
	if appDir == "" {
		return emit.RouterPages
	}
	rel, err := filepath.Rel(appDir, resourcePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return emit.RouterPages
	}
	return emit.RouterApp
}
