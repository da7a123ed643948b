// Package incremental skips recompiling documents whose inputs are unchanged.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/mdocpack/internal/frontmatter"
)

// Inputs are everything a compiled module depends on.
type Inputs struct {
	Source string
	// Options are hashed as JSON.
	Options any
	// Files and Dirs are the dependencies the last compilation registered.
	Files []string
	Dirs  []string
}

// DepHash is the content hash of one dependency. Missing files hash to "".
type DepHash struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Signature identifies one compilation's inputs.
type Signature struct {
	Fingerprint string    `json:"fingerprint"`
	OptionsHash string    `json:"options_hash"`
	Files       []DepHash `json:"files,omitempty"`
	Dirs        []DepHash `json:"dirs,omitempty"`
	Hash        string    `json:"hash"`
}

// ComputeSignature hashes in. The document part is the mdfp fingerprint of
// its frontmatter and body.
func ComputeSignature(in Inputs) (*Signature, error) {
	block, body, err := frontmatter.Split(in.Source)
	if err != nil {
		// an unterminated delimiter is body text
		block.Raw, body = "", in.Source
	}
	sig := &Signature{Fingerprint: mdfp.CalculateFingerprintFromParts(block.Raw, body)}

	opts, err := json.Marshal(in.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	sig.OptionsHash = sum(opts)

	for _, f := range sorted(in.Files) {
		sig.Files = append(sig.Files, DepHash{Path: f, Hash: fileHash(f)})
	}
	for _, d := range sorted(in.Dirs) {
		h, err := dirHash(d)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", d, err)
		}
		sig.Dirs = append(sig.Dirs, DepHash{Path: d, Hash: h})
	}

	normalized := struct {
		Fingerprint string    `json:"fingerprint"`
		OptionsHash string    `json:"options_hash"`
		Files       []DepHash `json:"files"`
		Dirs        []DepHash `json:"dirs"`
	}{sig.Fingerprint, sig.OptionsHash, sig.Files, sig.Dirs}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signature: %w", err)
	}
	sig.Hash = sum(data)
	return sig, nil
}

// Equals reports whether two signatures have the same hash.
func (s *Signature) Equals(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Hash == other.Hash
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func fileHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return sum(data)
}

// dirHash hashes the relative path and content of every file below dir.
// A missing directory hashes to "".
func dirHash(dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", nil
	}
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s\x00%s\n", filepath.ToSlash(rel), fileHash(path))
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
