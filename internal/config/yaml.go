package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes converts YAML config to JSON bytes so we can re-use the strict
// JSON decoder (DisallowUnknownFields) for both formats.
//
// Returns (jsonBytes, format, err) where format is "json" or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// SaveSchedule persists a schedule block to path as YAML:
//
//	schedule:
//	  job1: {...}
//
// Used to keep dynamically applied jobs across restarts. The write is
// atomic (temp file + rename).
func SaveSchedule(path string, jobs map[string]JobRaw) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("persist path is empty")
	}
	// Round-trip through JSON so the yaml encoder sees plain maps and the
	// custom field shapes (splay scalar, single-string lists) are kept.
	jb, err := json.Marshal(map[string]map[string]JobRaw{"schedule": jobs})
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(jb, &v); err != nil {
		return err
	}
	yb, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, yb, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSchedule reads a schedule block previously written by SaveSchedule.
// A missing file is not an error; it returns an empty map.
func LoadSchedule(path string) (map[string]JobRaw, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]JobRaw{}, nil
		}
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	jb, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Schedule map[string]JobRaw `json:"schedule"`
	}
	if err := json.Unmarshal(jb, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Schedule == nil {
		wrapper.Schedule = map[string]JobRaw{}
	}
	return wrapper.Schedule, nil
}
