package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Source is a flat key-value configuration store. Keys are dotted,
// e.g. "bodyflow.flow.prefetch".
type Source interface {
	Lookup(key string) (string, bool)
}

type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type env struct {
	prefix string
	lookup func(string) (string, bool)
}

// Env maps "bodyflow.flow.prefetchFactor" to BODYFLOW_FLOW_PREFETCH_FACTOR.
// The first key segment is replaced by prefix when prefix is not empty.
func Env(prefix string) Source {
	return env{prefix, os.LookupEnv}
}

func (e env) Lookup(key string) (string, bool) {
	return e.lookup(EnvName(e.prefix, key))
}

func EnvName(prefix, key string) string {
	parts := strings.Split(key, ".")
	if prefix != "" && len(parts) > 1 {
		parts[0] = prefix
	}
	for i, p := range parts {
		parts[i] = upperSnake(p)
	}
	return strings.Join(parts, "_")
}

func upperSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for _, r := range s {
		if r >= 'A' && r <= 'Z' && (prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9') {
			b.WriteByte('_')
		}
		if r == '-' {
			r = '_'
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToUpper(b.String())
}

type layered []Source

// Layered returns the value from the first source that has the key.
func Layered(sources ...Source) Source {
	ls := make(layered, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			ls = append(ls, s)
		}
	}
	return ls
}

func (l layered) Lookup(key string) (string, bool) {
	for _, s := range l {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// LoadFile reads a YAML or JSON file (by extension) into a flat Map.
// Nested objects are flattened with dots.
func LoadFile(path string) (Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		m, err := ParseYAML(b)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return m, nil
	case ".json":
		m, err := ParseJSON(b)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
