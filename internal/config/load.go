package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a pipeline config from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Defaults are applied afterwards.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	return Decode(f, ext == ".yaml" || ext == ".yml")
}

// Decode parses a pipeline from r and applies defaults.
func Decode(r io.Reader, isYAML bool) (Pipeline, error) {
	var p Pipeline

	b, err := io.ReadAll(r)
	if err != nil {
		return p, fmt.Errorf("read config: %w", err)
	}

	if isYAML {
		if err := yaml.Unmarshal(b, &p); err != nil {
			return p, fmt.Errorf("decode yaml config: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return p, fmt.Errorf("decode config: %w", err)
		}
	}

	p.ApplyDefaults()
	return p, nil
}
