// Package partials collects the partial documents a page references,
// transitively, into a flat identifier-to-source mapping.
package partials

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
)

// Mapping maps a partial identifier (its file attribute) to raw source.
type Mapping map[string]string

// Reader reads partial files. os.ReadFile satisfies it.
type Reader func(name string) ([]byte, error)

// FSReader adapts an fs.FS.
func FSReader(fsys fs.FS) Reader {
	return func(name string) ([]byte, error) {
		return fs.ReadFile(fsys, filepath.ToSlash(name))
	}
}

// Result is the outcome of Gather.
type Result struct {
	Partials Mapping
	// Files lists the paths read, in discovery order.
	Files []string
	// Trees holds the parsed partials keyed like Partials.
	Trees map[string]*markdoc.Node
}

// Reference returns the file attribute of a partial tag, if n is one.
func Reference(n *markdoc.Node) (string, bool) {
	if n.Type != markdoc.TypeTag || n.Tag != "partial" {
		return "", false
	}
	file, ok := n.Attributes["file"].(string)
	return file, ok
}

// Gather walks tree in document order and loads every referenced partial
// from dir, then the partials those reference, until none are left.
//
// Each identifier is read once: the first discovery wins, so repeated,
// diamond-shaped and self-referencing inclusions terminate. Empty partials
// are read but left out of the mapping. A partial that cannot be read or
// parsed fails the whole gather.
func Gather(ctx context.Context, tree *markdoc.Node, dir string, read Reader) (*Result, error) {
	if read == nil {
		read = os.ReadFile
	}
	res := &Result{Partials: Mapping{}, Trees: map[string]*markdoc.Node{}}
	seen := map[string]bool{}

	queue := []*markdoc.Node{tree}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for n := range current.Walk() {
			file, ok := Reference(n)
			if !ok {
				continue
			}
			if seen[file] {
				continue
			}
			seen[file] = true
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			path := filepath.Join(dir, file)
			data, err := read(path)
			if err != nil {
				return nil, missingPartial(file, path, err)
			}
			res.Files = append(res.Files, path)
			if len(data) == 0 {
				continue
			}
			sub, err := markdoc.Parse(string(data))
			if err != nil {
				return nil, derrors.WrapError(err, derrors.CategoryValidation, "failed to parse partial "+file).
					Fatal().
					WithContext("partial", file).
					Build()
			}

			res.Partials[file] = string(data)
			res.Trees[file] = sub
			queue = append(queue, sub)
		}
	}
	return res, nil
}

func missingPartial(file, path string, err error) error {
	msg := "cannot read partial " + file
	if errors.Is(err, fs.ErrNotExist) {
		msg = "partial file not found: " + path
	}
	return derrors.WrapError(err, derrors.CategoryFileSystem, msg).
		Fatal().
		WithContext("partial", file).
		WithContext("path", path).
		Build()
}
