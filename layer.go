package sumi

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// LayerId is a stable identifier assigned when a layer is created. Names can
// be edited by the host UI; the id never changes.
type LayerId string

// LayerPhysics bundles the per-layer generation parameters. The elongation
// and noise coefficients are an empirically tuned "look" contract; see
// SplatGenerator for how each one enters the formulas.
type LayerPhysics struct {
	VelocityX          float32
	VelocityY          float32
	Force              float32 // impact force scalar in [0,1]
	CentralElongation  float32
	ParticleElongation float32
	TimeElongation     float32
	NoiseAmplitude     float32
	NoiseFrequency     float32
	VelocityRoughness  float32
}

// LayerRendering controls how a layer is composited.
type LayerRendering struct {
	Enabled bool
	Color   [3]float32 // linear RGB
	Opacity float32    // [0,1]
	Visible VisibilityMask
}

// DotClassConfig sets count and size ranges for one dot class.
// MaxDistance scales how far satellites of this class can travel from the
// impact point, in screen-normalized units.
type DotClassConfig struct {
	Enabled     bool
	Count       int
	RadiusMin   float32
	RadiusMax   float32
	MaxDistance float32
}

// Layer is the unit of independent styling and compositing: its own physics,
// its own dot classes, its own color and blend pass.
type Layer struct {
	Id          LayerId
	Name        string
	DisplayName string
	Physics     LayerPhysics
	Rendering   LayerRendering
	Dots        [DotTypeCount]DotClassConfig
	ZIndex      float64
}

// NewLayer builds a layer with the default ink look.
func NewLayer(name, displayName string) *Layer {
	return &Layer{
		Id:          LayerId(uuid.NewString()),
		Name:        name,
		DisplayName: displayName,
		Physics: LayerPhysics{
			VelocityX:          0.3,
			VelocityY:          0.2,
			Force:              0.6,
			CentralElongation:  0.5,
			ParticleElongation: 0.8,
			TimeElongation:     0.4,
			NoiseAmplitude:     0.35,
			NoiseFrequency:     18.0,
			VelocityRoughness:  0.55,
		},
		Rendering: LayerRendering{
			Enabled: true,
			Color:   [3]float32{0.05, 0.05, 0.08},
			Opacity: 1.0,
			Visible: AllDotsVisible,
		},
		Dots: [DotTypeCount]DotClassConfig{
			DotCentral: {Enabled: true, Count: 1, RadiusMin: 0.04, RadiusMax: 0.09},
			DotLarge:   {Enabled: true, Count: 7, RadiusMin: 0.012, RadiusMax: 0.03, MaxDistance: 0.18},
			DotMedium:  {Enabled: true, Count: 16, RadiusMin: 0.006, RadiusMax: 0.014, MaxDistance: 0.3},
			DotSmall:   {Enabled: true, Count: 36, RadiusMin: 0.003, RadiusMax: 0.008, MaxDistance: 0.42},
			DotMicro:   {Enabled: true, Count: 80, RadiusMin: 0.0015, RadiusMax: 0.004, MaxDistance: 0.55},
		},
	}
}

// dotBudget is the number of particles one impact would generate on this
// layer, counting only enabled classes.
func (l *Layer) dotBudget() int {
	total := 0
	for t := DotType(0); t < DotTypeCount; t++ {
		cfg := l.Dots[t]
		if !cfg.Enabled {
			continue
		}
		if t == DotCentral {
			total++
		} else {
			total += cfg.Count
		}
	}
	return total
}

// LayerSet is an ordered collection of layers keyed by name. Array order is
// the host's list order; ZIndex determines compositing order and is kept a
// contiguous permutation of 0..N-1 by every mutation.
type LayerSet struct {
	layers []*Layer
	byName map[string]*Layer
}

func NewLayerSet() *LayerSet {
	return &LayerSet{byName: make(map[string]*Layer)}
}

func (s *LayerSet) Len() int { return len(s.layers) }

func (s *LayerSet) Get(name string) (*Layer, bool) {
	l, ok := s.byName[name]
	return l, ok
}

// At returns the layer at list position i.
func (s *LayerSet) At(i int) *Layer { return s.layers[i] }

// Names returns layer names in list order.
func (s *LayerSet) Names() []string {
	names := make([]string, len(s.layers))
	for i, l := range s.layers {
		names[i] = l.Name
	}
	return names
}

// Add appends a layer on top (highest ZIndex). Names must be unique.
func (s *LayerSet) Add(l *Layer) error {
	if l.Name == "" {
		return fmt.Errorf("layer name must not be empty")
	}
	if _, exists := s.byName[l.Name]; exists {
		return fmt.Errorf("layer %q already exists", l.Name)
	}
	l.ZIndex = float64(len(s.layers))
	s.layers = append(s.layers, l)
	s.byName[l.Name] = l
	s.resequence()
	return nil
}

// Remove deletes a layer by name. Remaining layers keep their relative order
// and are reindexed to 0..N-2.
func (s *LayerSet) Remove(name string) bool {
	l, ok := s.byName[name]
	if !ok {
		return false
	}
	delete(s.byName, name)
	for i, cur := range s.layers {
		if cur == l {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			break
		}
	}
	s.resequence()
	return true
}

// Move shifts the named layer to compositing position target, clamped to
// the valid range. List (iteration) order is untouched; only ZIndex moves.
func (s *LayerSet) Move(name string, target int) bool {
	l, ok := s.byName[name]
	if !ok {
		return false
	}
	if target < 0 {
		target = 0
	}
	if target >= len(s.layers) {
		target = len(s.layers) - 1
	}
	cur := int(l.ZIndex)
	if cur == target {
		return false
	}
	// Park between the occupant and its neighbor; resequence snaps back to
	// integers.
	if target > cur {
		l.ZIndex = float64(target) + 0.5
	} else {
		l.ZIndex = float64(target) - 0.5
	}
	s.resequence()
	return true
}

// ByZIndex returns layers in ascending compositing order.
func (s *LayerSet) ByZIndex() []*Layer {
	out := make([]*Layer, len(s.layers))
	copy(out, s.layers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Each visits layers in list order; the visitor returning false stops the walk.
func (s *LayerSet) Each(fn func(*Layer) bool) {
	for _, l := range s.layers {
		if !fn(l) {
			return
		}
	}
}

// resequence rewrites ZIndex values to a contiguous 0..N-1 run, preserving
// the current compositing order. Ties (fresh layers share ZIndex 0) resolve
// by list order.
func (s *LayerSet) resequence() {
	ordered := make([]*Layer, len(s.layers))
	copy(ordered, s.layers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })
	for i, l := range ordered {
		l.ZIndex = float64(i)
	}
}
