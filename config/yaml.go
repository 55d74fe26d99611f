package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func ParseYAML(b []byte) (Map, error) {
	var root map[string]any
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	m := make(Map)
	flatten(m, "", root)
	return m, nil
}

func flatten(dst Map, prefix string, v any) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(dst, join(prefix, k), child)
		}
	case nil:
	default:
		dst[prefix] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
