package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fallbackFile lazily loads a KEY=value file so developers can run without
// Secret Manager access. Keys are secret:// references; the legacy sm://
// prefix is accepted and normalised.
type fallbackFile struct {
	path string

	once   sync.Once
	values map[string]string
	err    error
}

func (f *fallbackFile) lookup(ref parsedReference, version string) (string, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return "", false, f.err
	}
	if val, ok := f.values[cacheKey(ref.Canonical, version)]; ok {
		return val, true, nil
	}
	if val, ok := f.values[ref.Canonical]; ok {
		return val, true, nil
	}
	return "", false, nil
}

func (f *fallbackFile) load() {
	f.values = map[string]string{}

	path := strings.TrimSpace(f.path)
	if path == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.err = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawKey, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key := normaliseFallbackKey(rawKey)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		parsed, err := parseReference(key)
		if err != nil {
			f.values[key] = value
			continue
		}
		version := parsed.Version
		if version == "" {
			version = "latest"
		}
		f.values[parsed.Canonical] = value
		f.values[cacheKey(parsed.Canonical, version)] = value
	}
	if err := scanner.Err(); err != nil {
		f.err = fmt.Errorf("secrets: failed reading %s: %w", path, err)
	}
}

func normaliseFallbackKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "sm://") {
		return "secret://" + strings.TrimPrefix(key, "sm://")
	}
	return key
}
