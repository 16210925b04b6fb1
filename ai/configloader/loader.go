// Package configloader reads the YAML rule tables that drive the
// conversation engine: principles, situations, selector rules, and the
// capture schema.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader resolves and parses YAML files below a base directory.
// Parsed files are cached by path, rule tables are immutable at runtime.
type Loader struct {
	baseDir string
	cache   sync.Map
}

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load reads a single YAML file and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.readFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}

	return nil
}

// LoadCached returns the cached parse of subPath, loading it through
// factory on first use.
func (l *Loader) LoadCached(subPath string, factory func() any) (any, error) {
	if cached, ok := l.cache.Load(subPath); ok {
		return cached, nil
	}

	target := factory()
	if err := l.Load(subPath, target); err != nil {
		return nil, err
	}

	l.cache.Store(subPath, target)
	return target, nil
}

// readFileWithFallback tries baseDir-relative first, then relative to the
// executable directory for deployed builds.
func (l *Loader) readFileWithFallback(path string) ([]byte, error) {
	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
}

// ClearCache drops all cached parses.
func (l *Loader) ClearCache() {
	l.cache = sync.Map{}
}
