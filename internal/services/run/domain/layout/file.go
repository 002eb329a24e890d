package layout

import (
	_ "embed"
	"fmt"

	"github.com/louisbranch/dungeonrun/internal/platform/config"
)

// File is the on-disk shape of a layout.
type File struct {
	Name     string          `yaml:"name" toml:"name" validate:"required"`
	Snapback []SnapbackEntry `yaml:"snapback" toml:"snapback" validate:"required,min=1,dive"`
	Waves    []Wave          `yaml:"waves" toml:"waves" validate:"required,min=1,dive"`
	Groups   []GroupWindow   `yaml:"groups" toml:"groups" validate:"dive"`
}

// SnapbackEntry is the key actor position for one phase.
type SnapbackEntry struct {
	Phase string  `yaml:"phase" toml:"phase" validate:"required"`
	X     float64 `yaml:"x" toml:"x"`
	Y     float64 `yaml:"y" toml:"y"`
	Z     float64 `yaml:"z" toml:"z"`
	O     float64 `yaml:"o" toml:"o" validate:"gte=0,lt=6.2832"`
}

// Wave is a named batch of roster members.
type Wave struct {
	Name    string       `yaml:"name" toml:"name" validate:"required"`
	Members []WaveMember `yaml:"members" toml:"members" validate:"required,min=1,dive"`
}

// WaveMember is one creature of a wave.
type WaveMember struct {
	ID   string `yaml:"id" toml:"id" validate:"required"`
	Boss string `yaml:"boss,omitempty" toml:"boss,omitempty"`
}

// GroupWindow declares the phases during which an actor group is present.
type GroupWindow struct {
	Group string `yaml:"group" toml:"group" validate:"required"`
	From  string `yaml:"from" toml:"from" validate:"required"`
	To    string `yaml:"to" toml:"to" validate:"required"`
}

//go:embed default.yaml
var defaultLayout []byte

// Default returns the built-in Culling of Stratholme layout.
func Default() (*Layout, error) {
	var f File
	if err := config.Decode(config.FormatYAML, defaultLayout, &f); err != nil {
		return nil, fmt.Errorf("decode default layout: %w", err)
	}
	return New(f)
}
