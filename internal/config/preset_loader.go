package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SessionPreset describes a pre-configured debate that can be started without
// waiting for the user to supply a topic.
type SessionPreset struct {
	Name     string          `yaml:"name"`
	Topic    string          `yaml:"topic"`
	Genders  []string        `yaml:"genders"`
	Personas []PersonaPreset `yaml:"personas"`
}

// PersonaPreset is a fully specified debate participant.
type PersonaPreset struct {
	Name        string `yaml:"name"`
	Prompt      string `yaml:"prompt"`
	Gender      string `yaml:"gender"`
	Description string `yaml:"description"`
}

// PresetLoader loads debate session presets from a YAML file.
type PresetLoader struct {
	path string
}

// NewPresetLoader creates a loader for the given file path.
func NewPresetLoader(path string) *PresetLoader {
	return &PresetLoader{path: path}
}

// Load reads and validates the preset file.
func (l *PresetLoader) Load() ([]SessionPreset, error) {
	if l.path == "" {
		return nil, fmt.Errorf("preset path is required")
	}
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("preset file does not exist: %s", l.path)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var file struct {
		Presets []SessionPreset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse preset file: %w", err)
	}

	for i := range file.Presets {
		if err := validatePreset(&file.Presets[i]); err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
	}
	return file.Presets, nil
}

func validatePreset(p *SessionPreset) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	for i, persona := range p.Personas {
		if strings.TrimSpace(persona.Name) == "" {
			return fmt.Errorf("persona %d: name is required", i)
		}
		if persona.Gender != "male" && persona.Gender != "female" {
			return fmt.Errorf("persona %d: gender must be male or female", i)
		}
	}
	return nil
}
