// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bundle delivers conversion results: as files in a directory or as
// entries of a ZIP archive.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pdiddy/cvat2labelme/internal/convert"
)

// WriteDir writes every file of r into dir, creating dir and any
// sub-directories implied by names containing "/". It returns the written
// paths in result order. Names that would resolve outside dir are rejected
// before anything is written.
func WriteDir(dir string, r *convert.Result) ([]string, error) {
	files := r.Files()
	paths := make([]string, len(files))
	for i, f := range files {
		p, err := dirPath(dir, f.Name)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	written := make([]string, 0, len(files))
	for i, f := range files {
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0o755); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", f.Name, err)
		}
		if err := os.WriteFile(paths[i], f.Data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", paths[i], err)
		}
		written = append(written, paths[i])
	}
	return written, nil
}

// WriteZip writes r to w as a ZIP archive with one deflated entry per file,
// in result order.
func WriteZip(w io.Writer, r *convert.Result) error {
	files := r.Files()
	names := make([]string, len(files))
	for i, f := range files {
		name, err := entryName(f.Name)
		if err != nil {
			return err
		}
		names[i] = name
	}

	zw := zip.NewWriter(w)
	for i, f := range files {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: names[i], Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("adding %s to archive: %w", names[i], err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return fmt.Errorf("writing %s to archive: %w", names[i], err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

// Zip returns r as an in-memory ZIP archive.
func Zip(r *convert.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dirPath resolves name below dir.
func dirPath(dir, name string) (string, error) {
	p := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output name %q escapes %s", name, dir)
	}
	return p, nil
}

// entryName returns a relative, cleaned archive path for name.
func entryName(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || strings.Contains(filepath.ToSlash(name), "../") || strings.HasSuffix(name, "/..") {
		return "", fmt.Errorf("invalid archive entry name %q", name)
	}
	return clean, nil
}
