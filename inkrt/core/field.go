// Package core holds the field math shared between the WGSL shader and its
// CPU mirror. The mirror exists so tests (and host-side hit testing) can
// evaluate the exact accumulation the fragment stage performs; both sides
// use the same constants and the same hash, so they agree up to float
// rounding. Bit-exactness across GPUs is not promised.
package core

import (
	"math"
)

// Shader contract constants. field.wgsl carries the same literals; change
// them in both places or visual-parity tests break.
const (
	// Summed field below ThresholdLo is fully transparent; above
	// ThresholdHi fully opaque (scaled by layer opacity).
	FieldThresholdLo = 0.7
	FieldThresholdHi = 1.0

	// Feather of the per-particle falloff in radius-normalized distance
	// units, widened with particle speed.
	FeatherBase      = 1.25
	FeatherSpeedGain = 0.35

	// Particles beyond CullRadiusScale × radius contribute nothing.
	CullRadiusScale = 2.0

	// Offset applied to the noise domain per unit of particle velocity, so
	// dots moving differently get decorrelated edges.
	NoiseVelocitySeed = 7.0

	NoiseOctaves = 4
)

// Hash21 is the shader's 2D→1D hash: fract(sin(dot(p, k)) * 43758.5453123).
func Hash21(x, y float32) float32 {
	h := float64(x)*127.1 + float64(y)*311.7
	s := math.Sin(h) * 43758.5453123
	return float32(s - math.Floor(s))
}

// ValueNoise is bilinear value noise over the integer lattice with
// Hermite-smoothed interpolants.
func ValueNoise(x, y float32) float32 {
	ix := float32(math.Floor(float64(x)))
	iy := float32(math.Floor(float64(y)))
	fx := x - ix
	fy := y - iy
	ux := fx * fx * (3 - 2*fx)
	uy := fy * fy * (3 - 2*fy)

	a := Hash21(ix, iy)
	b := Hash21(ix+1, iy)
	c := Hash21(ix, iy+1)
	d := Hash21(ix+1, iy+1)

	return mix(mix(a, b, ux), mix(c, d, ux), uy)
}

// Fbm sums NoiseOctaves of ValueNoise, each octave doubling frequency and
// scaling amplitude by roughness, normalized back to [0,1].
func Fbm(x, y, roughness float32) float32 {
	amp := float32(0.5)
	var sum, norm float32
	for i := 0; i < NoiseOctaves; i++ {
		sum += amp * ValueNoise(x, y)
		norm += amp
		x *= 2
		y *= 2
		amp *= roughness
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// FieldParams is the CPU-side view of the per-layer uniforms that shape
// field evaluation.
type FieldParams struct {
	Visibility     uint32
	Aspect         float32 // width / height
	NoiseAmplitude float32
	NoiseFrequency float32
	NoiseRoughness float32
}

// FieldAt sums the radial influence of count particles at screen-normalized
// (uvx, uvy). This is the accumulation loop of fs_main, step for step.
func FieldAt(ps []FieldParticle, count int, uvx, uvy float32, fp FieldParams) float32 {
	if count > len(ps) {
		count = len(ps)
	}
	aspect := fp.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	var total float32
	for i := 0; i < count; i++ {
		p := ps[i]
		if fp.Visibility&(1<<p.Kind) == 0 {
			continue
		}
		if p.Radius <= 0 {
			continue
		}

		// Width-normalized offset so circles stay round: radius is
		// normalized to screen width, y spans 1/aspect of a width.
		ox := uvx - p.Pos[0]
		oy := (uvy - p.Pos[1]) / aspect

		speed := float32(math.Hypot(float64(p.Vel[0]), float64(p.Vel[1])))
		d := elongatedDistance(ox, oy, p, speed)

		if d > CullRadiusScale*p.Radius {
			continue
		}

		nd := d / p.Radius
		if fp.NoiseAmplitude > 0 {
			n := Fbm(
				uvx*fp.NoiseFrequency+p.Vel[0]*NoiseVelocitySeed,
				uvy*fp.NoiseFrequency+p.Vel[1]*NoiseVelocitySeed,
				fp.NoiseRoughness,
			)
			nd += (n - 0.5) * fp.NoiseAmplitude
		}

		feather := FeatherBase + speed*FeatherSpeedGain
		total += 1 - smoothstep(0, feather, nd)
	}
	return total
}

// AlphaAt thresholds the summed field into the layer's alpha.
func AlphaAt(ps []FieldParticle, count int, uvx, uvy float32, fp FieldParams) float32 {
	return smoothstep(FieldThresholdLo, FieldThresholdHi, FieldAt(ps, count, uvx, uvy, fp))
}

// elongatedDistance rotates the offset into the particle's velocity frame
// and divides the along-velocity component by elongation, stretching the
// influence region into a streak.
func elongatedDistance(ox, oy float32, p FieldParticle, speed float32) float32 {
	if speed < 1e-5 || p.Elongation <= 1 {
		return float32(math.Hypot(float64(ox), float64(oy)))
	}
	dx := p.Vel[0] / speed
	dy := p.Vel[1] / speed
	along := ox*dx + oy*dy
	perpX := ox - along*dx
	perpY := oy - along*dy
	along /= p.Elongation
	perp := float32(math.Hypot(float64(perpX), float64(perpY)))
	return float32(math.Hypot(float64(along), float64(perp)))
}

func smoothstep(e0, e1, x float32) float32 {
	if e1 == e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := (x - e0) / (e1 - e0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

func mix(a, b, t float32) float32 { return a + (b-a)*t }
