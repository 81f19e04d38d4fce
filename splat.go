package sumi

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Impact is a single splatter trigger. Position is screen-normalized;
// velocity and force are derived from the layer's physics, not from the
// input event. Impacts are consumed synchronously and never stored.
type Impact struct {
	Pos       mgl32.Vec2
	Vel       mgl32.Vec2
	Force     float32
	Timestamp time.Time
}

// Safety ceilings. A generator refuses work past these rather than
// truncating mid-splat; dropping a splat under load is an accepted degrade.
const (
	MaxTotalParticles = 50000
	MaxSplatParticles = 1000
)

// Trajectory constants. These are an opaque "look" contract tuned by eye,
// not physics; visual-parity tests pin them exactly.
const (
	splatGravityY   = 0.3
	splatTimeMin    = 0.1
	splatTimeMax    = 0.5
	splatSpeedMin   = 0.5
	splatSpeedMax   = 1.2
	splatVelJitter  = 0.3
	surfaceTension  = 0.3
	tensionStrength = 0.2
)

// SplatGenerator converts impacts into particle batches. All randomness
// flows through the single RandomSource, so a seeded source replays
// byte-identical batches. Not safe for concurrent use.
type SplatGenerator struct {
	rng RandomSource
	log Logger

	maxPerSplat int
	maxTotal    int
}

func NewSplatGenerator(rng RandomSource, log Logger) *SplatGenerator {
	if log == nil {
		log = NewNopLogger()
	}
	return &SplatGenerator{
		rng:         rng,
		log:         log,
		maxPerSplat: MaxSplatParticles,
		maxTotal:    MaxTotalParticles,
	}
}

// SetRandomSource swaps the randomness backing future splats.
func (g *SplatGenerator) SetRandomSource(rng RandomSource) { g.rng = rng }

// NewImpact normalizes a pixel-space tap into an Impact carrying the layer's
// configured velocity and force.
func NewImpact(layer *Layer, px, py, screenW, screenH float32) Impact {
	if screenW <= 0 {
		screenW = 1
	}
	if screenH <= 0 {
		screenH = 1
	}
	return Impact{
		Pos:       mgl32.Vec2{px / screenW, py / screenH},
		Vel:       mgl32.Vec2{layer.Physics.VelocityX, layer.Physics.VelocityY},
		Force:     layer.Physics.Force,
		Timestamp: time.Now(),
	}
}

// Generate produces one splat batch for a layer. currentTotal is the number
// of particles already held across all layers; if this splat would exceed
// either ceiling the call yields nothing and logs a warning. The check runs
// before any draw from the RandomSource so a refused splat leaves the
// sequence untouched too.
func (g *SplatGenerator) Generate(layer *Layer, imp Impact, currentTotal int) []Particle {
	budget := layer.dotBudget()
	if budget == 0 {
		return nil
	}
	if budget > g.maxPerSplat {
		g.log.Warnf("splat on layer %q refused: %d dots exceeds per-splat ceiling %d",
			layer.Name, budget, g.maxPerSplat)
		return nil
	}
	if currentTotal+budget > g.maxTotal {
		g.log.Warnf("splat on layer %q refused: %d+%d dots exceeds global ceiling %d",
			layer.Name, currentTotal, budget, g.maxTotal)
		return nil
	}

	out := make([]Particle, 0, budget)

	if cfg := layer.Dots[DotCentral]; cfg.Enabled {
		out = append(out, g.centralDot(layer, imp, cfg))
	}
	for t := DotLarge; t < DotTypeCount; t++ {
		cfg := layer.Dots[t]
		if !cfg.Enabled {
			continue
		}
		for i := 0; i < cfg.Count; i++ {
			out = append(out, g.satelliteDot(layer, imp, t, cfg))
		}
	}
	return out
}

func (g *SplatGenerator) centralDot(layer *Layer, imp Impact, cfg DotClassConfig) Particle {
	lo, hi := orderedRange(cfg.RadiusMin, cfg.RadiusMax)
	radius := g.rng.Float32(lo, hi)
	elong := 1 + imp.Vel.Len()*imp.Force*layer.Physics.CentralElongation
	return Particle{
		Pos:        imp.Pos,
		Radius:     radius,
		Type:       DotCentral,
		Vel:        imp.Vel,
		Elongation: elong,
	}
}

// satelliteDot launches one dot along a closed-form parabolic arc. The
// constant-gravity integral is evaluated directly instead of stepping, which
// keeps a full batch cheap; finalPos = p + v·t + ½·g·t².
func (g *SplatGenerator) satelliteDot(layer *Layer, imp Impact, t DotType, cfg DotClassConfig) Particle {
	speed := g.rng.Float32(splatSpeedMin, splatSpeedMax)
	jx := g.rng.Float32(-splatVelJitter, splatVelJitter)
	jy := g.rng.Float32(-splatVelJitter, splatVelJitter)
	v := mgl32.Vec2{imp.Vel.X()*speed + jx, imp.Vel.Y()*speed + jy}

	ft := g.rng.Float32(splatTimeMin, splatTimeMax)

	disp := mgl32.Vec2{
		v.X() * ft,
		v.Y()*ft + 0.5*splatGravityY*ft*ft,
	}
	pos := imp.Pos.Add(disp.Mul(cfg.MaxDistance))
	pos = mgl32.Vec2{clamp01(pos.X()), clamp01(pos.Y())}

	lo, hi := orderedRange(cfg.RadiusMin, cfg.RadiusMax)
	radius := g.rng.Float32(lo, hi)
	if cfg.RadiusMax > 0 {
		// Surface tension rounds small dots up more than large ones.
		radius *= 1 + (1-radius/cfg.RadiusMax)*surfaceTension*tensionStrength
	}

	finalVel := mgl32.Vec2{v.X(), v.Y() + splatGravityY*ft*ft}
	elong := 1 + finalVel.Len()*imp.Force*layer.Physics.ParticleElongation +
		ft*layer.Physics.TimeElongation

	return Particle{
		Pos:        pos,
		Radius:     radius,
		Type:       t,
		Vel:        finalVel,
		Elongation: elong,
	}
}

func orderedRange(a, b float32) (float32, float32) {
	if a <= b {
		return a, b
	}
	return b, a
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
