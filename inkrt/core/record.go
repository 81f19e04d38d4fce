package core

import (
	"encoding/binary"
	"math"
)

// FieldParticle matches the WGSL layout in field.wgsl:
//
//	struct FieldParticle { pos: vec2<f32>, radius: f32, kind: u32,
//	                       vel: vec2<f32>, elongation: f32, pad: f32 }
//
// 32 bytes, storage-buffer array stride 32.
type FieldParticle struct {
	Pos        [2]float32
	Radius     float32
	Kind       uint32
	Vel        [2]float32
	Elongation float32
	Pad        float32
}

const FieldParticleStride = 32

// FieldUniforms matches the per-layer uniform block in field.wgsl. Color
// carries opacity in the fourth component.
type FieldUniforms struct {
	Color          [4]float32
	Count          uint32
	Visibility     uint32
	Threshold      float32
	Aspect         float32
	NoiseAmplitude float32
	NoiseFrequency float32
	NoiseRoughness float32
	FeatherBase    float32
}

const FieldUniformsSize = 48

// AppendParticle serializes one record in the shader's layout.
func AppendParticle(dst []byte, p FieldParticle) []byte {
	buf := make([]byte, FieldParticleStride)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	putF32(0, p.Pos[0])
	putF32(4, p.Pos[1])
	putF32(8, p.Radius)
	binary.LittleEndian.PutUint32(buf[12:], p.Kind)
	putF32(16, p.Vel[0])
	putF32(20, p.Vel[1])
	putF32(24, p.Elongation)
	putF32(28, p.Pad)
	return append(dst, buf...)
}

// PackParticles serializes a slice of records.
func PackParticles(ps []FieldParticle) []byte {
	out := make([]byte, 0, len(ps)*FieldParticleStride)
	for _, p := range ps {
		out = AppendParticle(out, p)
	}
	return out
}

// Bytes serializes the uniform block.
func (u *FieldUniforms) Bytes() []byte {
	buf := make([]byte, FieldUniformsSize)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	putF32(0, u.Color[0])
	putF32(4, u.Color[1])
	putF32(8, u.Color[2])
	putF32(12, u.Color[3])
	binary.LittleEndian.PutUint32(buf[16:], u.Count)
	binary.LittleEndian.PutUint32(buf[20:], u.Visibility)
	putF32(24, u.Threshold)
	putF32(28, u.Aspect)
	putF32(32, u.NoiseAmplitude)
	putF32(36, u.NoiseFrequency)
	putF32(40, u.NoiseRoughness)
	putF32(44, u.FeatherBase)
	return buf
}
