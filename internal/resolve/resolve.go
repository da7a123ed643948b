// Package resolve provides the module-resolution and dependency-tracking
// capabilities the compilation pipeline borrows from its host bundler.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound reports that a request could not be resolved to a module.
var ErrNotFound = errors.New("module not found")

// Resolver turns a module request into a file path.
type Resolver interface {
	Resolve(ctx context.Context, dir, request string) (string, error)
}

// Tracker records build dependencies of the document being compiled.
type Tracker interface {
	AddDependency(path string)
	AddContextDependency(dir string)
}

// DefaultExtensions are probed, in order, for extensionless requests.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".ts", ".tsx", ".json", ".yaml", ".yml"}

// FSResolver resolves requests against the local filesystem the way a
// bundler does: relative requests from dir, bare requests through
// node_modules directories walking up from dir.
type FSResolver struct {
	Extensions []string
}

// NewFSResolver returns a resolver probing DefaultExtensions.
func NewFSResolver() *FSResolver {
	return &FSResolver{Extensions: slices.Clone(DefaultExtensions)}
}

// Resolve implements Resolver.
func (r *FSResolver) Resolve(ctx context.Context, dir, request string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if request == "" {
		return "", fmt.Errorf("%w: empty request", ErrNotFound)
	}

	if isRelative(request) || filepath.IsAbs(request) {
		target := request
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, request)
		}
		if p, ok := r.probe(target); ok {
			return p, nil
		}
		return "", fmt.Errorf("%w: %q from %q", ErrNotFound, request, dir)
	}

	for cur := filepath.Clean(dir); ; cur = filepath.Dir(cur) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if p, ok := r.probe(filepath.Join(cur, "node_modules", request)); ok {
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
	}
	return "", fmt.Errorf("%w: %q from %q", ErrNotFound, request, dir)
}

func isRelative(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

func (r *FSResolver) extensions() []string {
	if len(r.Extensions) == 0 {
		return DefaultExtensions
	}
	return r.Extensions
}

// probe tries target as a file, then with each extension, then as a
// directory with an index file.
func (r *FSResolver) probe(target string) (string, bool) {
	if isFile(target) {
		return target, true
	}
	for _, ext := range r.extensions() {
		if isFile(target + ext) {
			return target + ext, true
		}
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		for _, ext := range r.extensions() {
			index := filepath.Join(target, "index"+ext)
			if isFile(index) {
				return index, true
			}
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DependencySet is a Tracker that remembers what was registered.
// It is safe for concurrent use.
type DependencySet struct {
	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
}

// NewDependencySet returns an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{files: map[string]struct{}{}, dirs: map[string]struct{}{}}
}

func (d *DependencySet) AddDependency(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[filepath.Clean(path)] = struct{}{}
}

func (d *DependencySet) AddContextDependency(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirs[filepath.Clean(dir)] = struct{}{}
}

// Files returns the registered file dependencies, sorted.
func (d *DependencySet) Files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.files)
}

// Dirs returns the registered context dependencies, sorted.
func (d *DependencySet) Dirs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.dirs)
}

// Covers reports whether path is a registered file or lies inside a
// registered directory.
func (d *DependencySet) Covers(path string) bool {
	path = filepath.Clean(path)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[path]; ok {
		return true
	}
	for dir := range d.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Nop discards every registration.
type Nop struct{}

func (Nop) AddDependency(string)        {}
func (Nop) AddContextDependency(string) {}
