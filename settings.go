package sumi

import (
	"encoding/json"
	"fmt"
)

// SettingsSchemaVersion is written into every exported document. Import
// refuses documents from a newer schema so hosts can detect forward
// incompatibility instead of silently dropping fields.
const SettingsSchemaVersion = 3

const (
	rngModeEntropy = "entropy"
	rngModeSeeded  = "seeded"
)

// Optional fields are pointers: absent fields keep the engine's prior value
// on import instead of resetting to zero.
type settingsDoc struct {
	SchemaVersion int             `json:"schemaVersion"`
	RngMode       *string         `json:"rngMode,omitempty"`
	RngSeed       *uint64         `json:"rngSeed,omitempty"`
	Layers        []layerSettings `json:"layers,omitempty"`
}

type layerSettings struct {
	Name        string                 `json:"name"`
	DisplayName *string                `json:"displayName,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty"`
	Color       *[3]float32            `json:"color,omitempty"`
	Opacity     *float32               `json:"opacity,omitempty"`
	Visible     *[]string              `json:"visibleTypes,omitempty"`
	Dots        map[string]dotSettings `json:"dots,omitempty"`
	Physics     *physicsSettings       `json:"physics,omitempty"`
}

type dotSettings struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	Count       *int     `json:"count,omitempty"`
	RadiusMin   *float32 `json:"radiusMin,omitempty"`
	RadiusMax   *float32 `json:"radiusMax,omitempty"`
	MaxDistance *float32 `json:"maxDistance,omitempty"`
}

type physicsSettings struct {
	VelocityX          *float32 `json:"velocityX,omitempty"`
	VelocityY          *float32 `json:"velocityY,omitempty"`
	Force              *float32 `json:"force,omitempty"`
	CentralElongation  *float32 `json:"centralElongation,omitempty"`
	ParticleElongation *float32 `json:"particleElongation,omitempty"`
	TimeElongation     *float32 `json:"timeElongation,omitempty"`
	NoiseAmplitude     *float32 `json:"noiseAmplitude,omitempty"`
	NoiseFrequency     *float32 `json:"noiseFrequency,omitempty"`
	VelocityRoughness  *float32 `json:"velocityRoughness,omitempty"`
}

// ExportSettings serializes the engine's current RNG mode and per-layer
// styling/generation parameters.
func (e *Engine) ExportSettings() ([]byte, error) {
	mode := rngModeEntropy
	if e.seeded {
		mode = rngModeSeeded
	}
	seed := e.seed
	doc := settingsDoc{
		SchemaVersion: SettingsSchemaVersion,
		RngMode:       &mode,
		RngSeed:       &seed,
	}
	e.layers.Each(func(l *Layer) bool {
		doc.Layers = append(doc.Layers, exportLayer(l))
		return true
	})
	return json.MarshalIndent(doc, "", "  ")
}

func exportLayer(l *Layer) layerSettings {
	displayName := l.DisplayName
	enabled := l.Rendering.Enabled
	color := l.Rendering.Color
	opacity := l.Rendering.Opacity
	var visible []string
	for t := DotType(0); t < DotTypeCount; t++ {
		if l.Rendering.Visible.Has(t) {
			visible = append(visible, t.String())
		}
	}
	dots := make(map[string]dotSettings, DotTypeCount)
	for t := DotType(0); t < DotTypeCount; t++ {
		cfg := l.Dots[t]
		en, count := cfg.Enabled, cfg.Count
		rmin, rmax, dist := cfg.RadiusMin, cfg.RadiusMax, cfg.MaxDistance
		dots[t.String()] = dotSettings{
			Enabled:     &en,
			Count:       &count,
			RadiusMin:   &rmin,
			RadiusMax:   &rmax,
			MaxDistance: &dist,
		}
	}
	ph := l.Physics
	return layerSettings{
		Name:        l.Name,
		DisplayName: &displayName,
		Enabled:     &enabled,
		Color:       &color,
		Opacity:     &opacity,
		Visible:     &visible,
		Dots:        dots,
		Physics: &physicsSettings{
			VelocityX:          &ph.VelocityX,
			VelocityY:          &ph.VelocityY,
			Force:              &ph.Force,
			CentralElongation:  &ph.CentralElongation,
			ParticleElongation: &ph.ParticleElongation,
			TimeElongation:     &ph.TimeElongation,
			NoiseAmplitude:     &ph.NoiseAmplitude,
			NoiseFrequency:     &ph.NoiseFrequency,
			VelocityRoughness:  &ph.VelocityRoughness,
		},
	}
}

// ImportSettings applies a settings document field by field. Decode or
// version failure returns an error with all engine state untouched. Unknown
// layer names and dot types are skipped; absent fields keep prior values.
func (e *Engine) ImportSettings(data []byte) error {
	var doc settingsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	if doc.SchemaVersion > SettingsSchemaVersion {
		return fmt.Errorf("settings schema %d is newer than supported %d",
			doc.SchemaVersion, SettingsSchemaVersion)
	}

	if doc.RngMode != nil {
		switch *doc.RngMode {
		case rngModeSeeded:
			seed := uint64(0)
			if doc.RngSeed != nil {
				seed = *doc.RngSeed
			}
			e.UseSeededRandom(seed)
		case rngModeEntropy:
			e.UseEntropyRandom()
		default:
			e.log.Warnf("settings: unknown rng mode %q ignored", *doc.RngMode)
		}
	}

	for _, ls := range doc.Layers {
		l, ok := e.layers.Get(ls.Name)
		if !ok {
			e.log.Warnf("settings: unknown layer %q skipped", ls.Name)
			continue
		}
		applyLayerSettings(l, ls, e.log)
	}

	e.MarkVisualsChanged()
	return nil
}

func applyLayerSettings(l *Layer, ls layerSettings, log Logger) {
	if ls.DisplayName != nil {
		l.DisplayName = *ls.DisplayName
	}
	if ls.Enabled != nil {
		l.Rendering.Enabled = *ls.Enabled
	}
	if ls.Color != nil {
		for i, c := range ls.Color {
			l.Rendering.Color[i] = clamp01(c)
		}
	}
	if ls.Opacity != nil {
		l.Rendering.Opacity = clamp01(*ls.Opacity)
	}
	if ls.Visible != nil {
		mask := VisibilityMask(0)
		for _, name := range *ls.Visible {
			t, ok := ParseDotType(name)
			if !ok {
				log.Warnf("settings: unknown dot type %q skipped", name)
				continue
			}
			mask = mask.With(t)
		}
		l.Rendering.Visible = mask
	}
	for name, ds := range ls.Dots {
		t, ok := ParseDotType(name)
		if !ok {
			log.Warnf("settings: unknown dot type %q skipped", name)
			continue
		}
		cfg := &l.Dots[t]
		if ds.Enabled != nil {
			cfg.Enabled = *ds.Enabled
		}
		if ds.Count != nil && *ds.Count >= 0 {
			cfg.Count = *ds.Count
		}
		if ds.RadiusMin != nil {
			cfg.RadiusMin = *ds.RadiusMin
		}
		if ds.RadiusMax != nil {
			cfg.RadiusMax = *ds.RadiusMax
		}
		if ds.MaxDistance != nil {
			cfg.MaxDistance = *ds.MaxDistance
		}
	}
	if ps := ls.Physics; ps != nil {
		applyPhysicsSettings(&l.Physics, ps)
	}
}

func applyPhysicsSettings(ph *LayerPhysics, ps *physicsSettings) {
	set := func(dst *float32, src *float32) {
		if src != nil {
			*dst = *src
		}
	}
	set(&ph.VelocityX, ps.VelocityX)
	set(&ph.VelocityY, ps.VelocityY)
	if ps.Force != nil {
		ph.Force = clamp01(*ps.Force)
	}
	set(&ph.CentralElongation, ps.CentralElongation)
	set(&ph.ParticleElongation, ps.ParticleElongation)
	set(&ph.TimeElongation, ps.TimeElongation)
	set(&ph.NoiseAmplitude, ps.NoiseAmplitude)
	set(&ph.NoiseFrequency, ps.NoiseFrequency)
	set(&ph.VelocityRoughness, ps.VelocityRoughness)
}
