package sumi

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds host-side startup parameters for the demo application.
// Engine state proper travels through the JSON settings document; this file
// only decides what the app boots with.
type Config struct {
	Window WindowConfig  `yaml:"window"`
	Debug  bool          `yaml:"debug"`
	Rng    RngConfig     `yaml:"rng"`
	Layers []LayerConfig `yaml:"layers"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type RngConfig struct {
	Mode string `yaml:"mode"` // "entropy" or "seeded"
	Seed uint64 `yaml:"seed"`
}

type LayerConfig struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	Color       string  `yaml:"color"` // SVG color name or #rrggbb
	Opacity     float32 `yaml:"opacity"`
}

// LoadConfig parses the embedded defaults and, when path is non-empty,
// overlays the user file on top.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Apply configures an engine from the config: RNG mode and the initial layer
// stack. The engine's default layer is replaced when the config names its
// own layers.
func (c *Config) Apply(e *Engine) error {
	if strings.EqualFold(c.Rng.Mode, "seeded") {
		e.UseSeededRandom(c.Rng.Seed)
	}
	if len(c.Layers) == 0 {
		return nil
	}
	for _, name := range e.Layers().Names() {
		e.RemoveLayer(name)
	}
	for _, lc := range c.Layers {
		rgb, err := ParseColor(lc.Color)
		if err != nil {
			return fmt.Errorf("layer %q: %w", lc.Name, err)
		}
		display := lc.DisplayName
		if display == "" {
			display = lc.Name
		}
		l, err := e.AddLayer(lc.Name, display)
		if err != nil {
			return err
		}
		l.Rendering.Color = rgb
		if lc.Opacity > 0 {
			l.Rendering.Opacity = clamp01(lc.Opacity)
		}
	}
	return nil
}

// ParseColor resolves an SVG 1.1 color name (via x/image/colornames) or a
// #rrggbb hex triplet into linear-ish [0,1] RGB.
func ParseColor(s string) ([3]float32, error) {
	var rgb [3]float32
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return rgb, fmt.Errorf("empty color")
	}
	if strings.HasPrefix(s, "#") {
		hex := strings.TrimPrefix(s, "#")
		if len(hex) != 6 {
			return rgb, fmt.Errorf("color %q: want #rrggbb", s)
		}
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return rgb, fmt.Errorf("color %q: %w", s, err)
			}
			rgb[i] = float32(v) / 255
		}
		return rgb, nil
	}
	c, ok := colornames.Map[s]
	if !ok {
		return rgb, fmt.Errorf("unknown color name %q", s)
	}
	rgb[0] = float32(c.R) / 255
	rgb[1] = float32(c.G) / 255
	rgb[2] = float32(c.B) / 255
	return rgb, nil
}
