// Package ingest clones GitHub repositories and extracts their text files
// into the repository store, applying the embedded selection rules.
package ingest

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed config/rules.yaml
var rulesFile embed.FS

// Rules decides which repository files are worth ingesting.
type Rules struct {
	extensions  map[string]bool
	filenames   map[string]bool
	ignoredDirs map[string]bool
	maxFileSize int64
}

type rulesConfig struct {
	Extensions         []string `yaml:"extensions"`
	Filenames          []string `yaml:"filenames"`
	IgnoredDirectories []string `yaml:"ignored_directories"`
	MaxFileSizeBytes   int64    `yaml:"max_file_size_bytes"`
}

// LoadRules parses the embedded rules file.
func LoadRules() (*Rules, error) {
	data, err := rulesFile.ReadFile("config/rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var cfg rulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules file: %w", err)
	}
	if cfg.MaxFileSizeBytes <= 0 {
		return nil, fmt.Errorf("rules file has invalid max_file_size_bytes %d", cfg.MaxFileSizeBytes)
	}

	r := &Rules{
		extensions:  make(map[string]bool, len(cfg.Extensions)),
		filenames:   make(map[string]bool, len(cfg.Filenames)),
		ignoredDirs: make(map[string]bool, len(cfg.IgnoredDirectories)),
		maxFileSize: cfg.MaxFileSizeBytes,
	}
	for _, ext := range cfg.Extensions {
		r.extensions[ext] = true
	}
	for _, name := range cfg.Filenames {
		r.filenames[name] = true
	}
	for _, dir := range cfg.IgnoredDirectories {
		r.ignoredDirs[dir] = true
	}
	return r, nil
}

// WantsFile reports whether a file with this name is a candidate based on
// its extension or exact filename.
func (r *Rules) WantsFile(name string) bool {
	if r.filenames[name] {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	return ext != "" && r.extensions[ext]
}

// IgnoresDir reports whether a directory should be skipped entirely.
func (r *Rules) IgnoresDir(name string) bool {
	return r.ignoredDirs[name]
}

// MaxFileSize returns the size cap for ingested files, in bytes.
func (r *Rules) MaxFileSize() int64 {
	return r.maxFileSize
}

// AcceptsContent reports whether file content is ingestible text: valid
// UTF-8, under the size cap, and not blank.
func (r *Rules) AcceptsContent(content []byte) bool {
	if int64(len(content)) > r.maxFileSize {
		return false
	}
	if !utf8.Valid(content) {
		return false
	}
	for _, b := range content {
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			return true
		}
	}
	return false
}
