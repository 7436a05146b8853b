package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ScannedFile is one ingestible file found in a checkout.
type ScannedFile struct {
	// Path is the slash-separated path relative to the repository root.
	Path    string
	Size    int64
	Content string
}

// Scanner walks a cloned checkout and collects the files that pass the
// selection rules.
type Scanner struct {
	rules *Rules
}

// NewScanner creates a scanner with the given rules.
func NewScanner(rules *Rules) *Scanner {
	return &Scanner{rules: rules}
}

// Scan walks root depth-first in lexical order and returns the accepted
// files. Ignored directories are pruned without descending; binary,
// oversized, and blank files are skipped silently.
func (s *Scanner) Scan(root string) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p != root && s.rules.IgnoresDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.rules.WantsFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > s.rules.MaxFileSize() {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		if !s.rules.AcceptsContent(content) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("resolving relative path for %s: %w", p, err)
		}

		files = append(files, ScannedFile{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning checkout: %w", err)
	}

	return files, nil
}
