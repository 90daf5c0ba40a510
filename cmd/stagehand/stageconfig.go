package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Stagehand/pkg/manifest"
)

// stageConfigFlags are the ways a command receives a raw stage configuration.
// Later sources override earlier ones: manifest sample, then file, then --set.
type stageConfigFlags struct {
	manifest string
	file     string
	sets     []string
}

func (f *stageConfigFlags) load(stageID string) (map[string]interface{}, error) {
	raw := map[string]interface{}{}

	if f.manifest != "" {
		m, err := manifest.Load(f.manifest)
		if err != nil {
			return nil, err
		}
		ref, ok := m.Stage(stageID)
		if !ok {
			return nil, fmt.Errorf("manifest %s does not list stage %q", f.manifest, stageID)
		}
		for k, v := range ref.Config {
			raw[k] = v
		}
	}

	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read stage config: %w", err)
		}
		var fromFile map[string]interface{}
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse stage config %s: %w", f.file, err)
		}
		for k, v := range fromFile {
			raw[k] = v
		}
	}

	for _, set := range f.sets {
		if err := applySet(raw, set); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// applySet applies key=value. The value is read as a YAML scalar so numbers and
// booleans keep their type; a dotted key addresses a nested property.
func applySet(raw map[string]interface{}, set string) error {
	key, value, ok := strings.Cut(set, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid --set %q, want key=value", set)
	}

	var parsed interface{}
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}

	parts := strings.Split(key, ".")
	target := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = parsed
	return nil
}

// parsePairs turns key=value flags into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
