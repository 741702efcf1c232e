package catz

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotblauer/tcxslim/params"
)

// Flat is an output directory for trimmed documents.
type Flat struct {
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// Joins returns the subdirectory of f at paths. f is not modified,
// so a shared Flat can be joined from concurrent workers.
func (f *Flat) Joins(paths ...string) *Flat {
	return &Flat{path: filepath.Join(append([]string{f.path}, paths...)...)}
}

// Exists returns true if the directory exists.
func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

// OutputName derives the trimmed document name for source:
// ride.tcx and ride.tcx.gz both become ride.slim.tcx, keeping .gz if gz is set.
func OutputName(source string, gz bool) string {
	base := filepath.Base(source)
	if IsGZ(base) {
		base = base[:len(base)-len(params.GZSuffix)]
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".tcx") {
		base = base[:len(base)-len(ext)]
	}
	name := base + params.OutputSuffix
	if gz {
		name += params.GZSuffix
	}
	return name
}

// OutputPath returns the path in f for the trimmed version of source.
func (f *Flat) OutputPath(source string, gz bool) string {
	return filepath.Join(f.path, OutputName(source, gz))
}

// WriteFor writes the trimmed version of source into f and returns its path.
func (f *Flat) WriteFor(source string, data []byte, gz bool) (string, error) {
	if err := f.MkdirAll(); err != nil {
		return "", err
	}
	out := f.OutputPath(source, gz)
	return out, WriteFile(out, data)
}
