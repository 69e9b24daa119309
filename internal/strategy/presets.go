package strategy

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsRaw []byte

type presetFile struct {
	Presets []Config `yaml:"presets"`
}

// Presets 返回内置示例策略（每次调用返回独立副本）。
func Presets() ([]Config, error) {
	var file presetFile
	dec := yaml.NewDecoder(bytes.NewReader(presetsRaw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse presets failed: %w", err)
	}
	out := make([]Config, len(file.Presets))
	for i, p := range file.Presets {
		out[i] = p.Clone()
	}
	return out, nil
}
