// Package schema locates the optional extension schema directory of a
// document. It produces the schema-assembly block of the generated module
// and, for declarative slot modules, a live configuration for validation.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
	"git.home.luguber.info/inful/mdocpack/internal/resolve"
)

// DefaultSchemaPath is used when the caller does not configure one.
const DefaultSchemaPath = "./markdoc"

// DefaultLiveTimeout bounds how long a slot module may take to load live.
const DefaultLiveTimeout = 2 * time.Second

// SlotName names one extension point of the schema directory.
type SlotName string

const (
	SlotConfig    SlotName = "config"
	SlotTags      SlotName = "tags"
	SlotNodes     SlotName = "nodes"
	SlotFunctions SlotName = "functions"
)

// SlotNames lists the slots in the order they are resolved and emitted.
var SlotNames = []SlotName{SlotConfig, SlotTags, SlotNodes, SlotFunctions}

// SlotState describes what is known about a slot.
type SlotState int

const (
	// SlotAbsent means no module backs the slot; it defaults to empty.
	SlotAbsent SlotState = iota
	// SlotResolved means a module was found but could not be loaded live.
	SlotResolved
	// SlotLive means the module was found and decoded for validation.
	SlotLive
)

func (s SlotState) String() string {
	switch s {
	case SlotResolved:
		return "resolved"
	case SlotLive:
		return "live"
	default:
		return "absent"
	}
}

// Slot is one resolved (or absent) extension point.
type Slot struct {
	Name       SlotName
	ModulePath string
	State      SlotState
	Live       *markdoc.Config
}

// Bundle is the schema of one compiled document. It is built fresh for
// every document and never shared.
type Bundle struct {
	Dir    string
	Exists bool
	Slots  map[SlotName]*Slot
}

// ModuleLoader loads a slot module as a live configuration. Implementations
// return ErrUnavailable for modules they cannot interpret.
type ModuleLoader interface {
	LoadSlot(ctx context.Context, slot SlotName, path string) (*markdoc.Config, error)
}

// ErrUnavailable reports a slot module that cannot be loaded at build time.
var ErrUnavailable = errors.New("schema module cannot be loaded at build time")

// Request is the input of Locate.
type Request struct {
	// BaseDir anchors a relative SchemaPath, usually the project root.
	BaseDir    string
	SchemaPath string
	// Custom marks SchemaPath as explicitly configured even when it equals
	// DefaultSchemaPath.
	Custom bool

	Resolver    resolve.Resolver
	Tracker     resolve.Tracker
	Loader      ModuleLoader
	LiveTimeout time.Duration
	Logger      *slog.Logger
}

func (r Request) custom() bool {
	return r.Custom || (r.SchemaPath != "" && r.SchemaPath != DefaultSchemaPath)
}

// Dir returns the absolute schema directory for the request.
func (r Request) Dir() string {
	p := r.SchemaPath
	if p == "" {
		p = DefaultSchemaPath
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.BaseDir, p)
}

// Locate resolves the schema directory into a Bundle.
//
// A missing default directory yields a bundle with every slot absent. A
// missing custom directory is a not-found error naming the configured path.
// Slot absence is never an error.
func Locate(ctx context.Context, req Request) (*Bundle, error) {
	dir := req.Dir()
	tracker := req.Tracker
	if tracker == nil {
		tracker = resolve.Nop{}
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bundle := &Bundle{Dir: dir, Slots: make(map[SlotName]*Slot, len(SlotNames))}
	for _, name := range SlotNames {
		bundle.Slots[name] = &Slot{Name: name}
	}

	tracker.AddContextDependency(dir)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if req.custom() {
			schemaPath := req.SchemaPath
			if schemaPath == "" {
				schemaPath = DefaultSchemaPath
			}
			return nil, MissingCustomSchema(schemaPath, dir)
		}
		logger.Debug("No schema directory, using empty schema", logfields.SchemaDir(dir))
		return bundle, nil
	}
	bundle.Exists = true

	resolver := req.Resolver
	if resolver == nil {
		resolver = resolve.NewFSResolver()
	}
	for _, name := range SlotNames {
		path, ok, err := tryResolve(ctx, resolver, dir, string(name))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		slot := bundle.Slots[name]
		slot.ModulePath = path
		slot.State = SlotResolved
		tracker.AddDependency(path)
	}

	if req.Loader != nil {
		timeout := req.LiveTimeout
		if timeout <= 0 {
			timeout = DefaultLiveTimeout
		}
		for _, name := range SlotNames {
			if slot := bundle.Slots[name]; slot.State == SlotResolved {
				loadLive(ctx, req.Loader, slot, timeout, logger)
			}
		}
	}
	return bundle, nil
}

// MissingCustomSchema is the error for an explicitly configured schema
// directory that does not exist.
func MissingCustomSchema(schemaPath, dir string) error {
	return derrors.NotFoundError(fmt.Sprintf("Cannot find module '%s' at '%s'", schemaPath, dir)).
		WithContext("schema_path", schemaPath).
		WithContext("schema_dir", dir).
		Build()
}

// tryResolve prefers a relative request and falls back to a bare one.
// Only context cancellation is reported as an error.
func tryResolve(ctx context.Context, r resolve.Resolver, dir, name string) (string, bool, error) {
	for _, request := range []string{"./" + name, name} {
		path, err := r.Resolve(ctx, dir, request)
		if err == nil {
			return path, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
	}
	return "", false, nil
}

func loadLive(ctx context.Context, loader ModuleLoader, slot *Slot, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		cfg *markdoc.Config
		err error
	}
	done := make(chan result, 1)
	go func() {
		cfg, err := loader.LoadSlot(ctx, slot.Name, slot.ModulePath)
		done <- result{cfg, err}
	}()

	select {
	case r := <-done:
		switch {
		case errors.Is(r.err, ErrUnavailable):
			logger.Debug("Schema slot is not loadable at build time",
				logfields.Slot(string(slot.Name)), logfields.File(slot.ModulePath))
		case r.err != nil:
			logger.Warn("Schema slot failed to load, treating as unavailable",
				logfields.Slot(string(slot.Name)), logfields.File(slot.ModulePath), logfields.Error(r.err))
		case r.cfg != nil:
			slot.Live = r.cfg
			slot.State = SlotLive
		}
	case <-ctx.Done():
		logger.Warn("Schema slot load timed out, treating as unavailable",
			logfields.Slot(string(slot.Name)), logfields.File(slot.ModulePath),
			logfields.DurationMS(float64(timeout.Milliseconds())))
	}
}

// Code renders the schema-assembly block of the generated module. Module
// paths are written relative to importBase, the directory of the document.
func (b *Bundle) Code(importBase string) string {
	if b == nil || !b.Exists {
		return "const schema = {};"
	}
	var sb strings.Builder
	for _, name := range SlotNames {
		slot := b.Slots[name]
		if slot == nil || slot.State == SlotAbsent {
			fmt.Fprintf(&sb, "const %s = {};\n", name)
			continue
		}
		fmt.Fprintf(&sb, "import * as %s from %s;\n", name, quote(importPath(importBase, slot.ModulePath)))
	}
	sb.WriteString("const schema = {\n")
	for _, name := range []SlotName{SlotTags, SlotNodes, SlotFunctions} {
		fmt.Fprintf(&sb, "%[1]s: %[1]s ? (%[1]s.default || %[1]s) : {},\n", name)
	}
	sb.WriteString("...(config ? (config.default || config) : {}),\n};")
	return sb.String()
}

func importPath(base, target string) string {
	if base == "" {
		return filepath.ToSlash(target)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

func quote(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

// Runtime merges the live slots into the configuration a request-time
// transform would see, including config variables.
func (b *Bundle) Runtime() *markdoc.Config {
	cfg := &markdoc.Config{}
	if b == nil {
		return cfg
	}
	for _, name := range SlotNames {
		if slot := b.Slots[name]; slot != nil && slot.State == SlotLive {
			cfg = cfg.Merge(slot.Live)
		}
	}
	return cfg
}

// Config returns the configuration used for build-time validation.
//
// Functions are only treated as known when every slot able to declare them
// is absent or live. Variables are always unknown at build time because
// callers supply them per request.
func (b *Bundle) Config() *markdoc.Config {
	cfg := b.Runtime()
	cfg.Variables = nil
	if b.functionsKnown() {
		if cfg.Functions == nil {
			cfg.Functions = map[string]*markdoc.FunctionSchema{}
		}
	} else {
		cfg.Functions = nil
	}
	return cfg
}

func (b *Bundle) functionsKnown() bool {
	if b == nil {
		return true
	}
	for _, name := range []SlotName{SlotConfig, SlotFunctions} {
		if slot := b.Slots[name]; slot != nil && slot.State == SlotResolved {
			return false
		}
	}
	return true
}

// ModulePaths returns the resolved slot modules in slot order.
func (b *Bundle) ModulePaths() []string {
	var out []string
	if b == nil {
		return out
	}
	for _, name := range SlotNames {
		if slot := b.Slots[name]; slot != nil && slot.State != SlotAbsent {
			out = append(out, slot.ModulePath)
		}
	}
	return out
}
