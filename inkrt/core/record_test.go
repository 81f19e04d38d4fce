package core

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackParticles_StrideAndFieldOffsets(t *testing.T) {
	ps := []FieldParticle{
		{Pos: [2]float32{0.25, 0.75}, Radius: 0.05, Kind: 3, Vel: [2]float32{0.3, -0.2}, Elongation: 1.4},
		{Pos: [2]float32{0.1, 0.2}, Radius: 0.01, Kind: 4},
	}
	data := PackParticles(ps)
	require.Len(t, data, 2*FieldParticleStride)

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	// First record, offsets per the WGSL struct.
	assert.Equal(t, float32(0.25), f32(0))
	assert.Equal(t, float32(0.75), f32(4))
	assert.Equal(t, float32(0.05), f32(8))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[12:]))
	assert.Equal(t, float32(0.3), f32(16))
	assert.Equal(t, float32(-0.2), f32(20))
	assert.Equal(t, float32(1.4), f32(24))
	assert.Equal(t, float32(0), f32(28)) // pad

	// Second record starts at one stride.
	assert.Equal(t, float32(0.1), f32(FieldParticleStride))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[FieldParticleStride+12:]))
}

func TestFieldUniforms_BytesLayout(t *testing.T) {
	u := FieldUniforms{
		Color:          [4]float32{0.1, 0.2, 0.3, 0.9},
		Count:          140,
		Visibility:     0x1F,
		Threshold:      FieldThresholdLo,
		Aspect:         16.0 / 9.0,
		NoiseAmplitude: 0.35,
		NoiseFrequency: 18,
		NoiseRoughness: 0.55,
		FeatherBase:    FeatherBase,
	}
	data := u.Bytes()
	require.Len(t, data, FieldUniformsSize)

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	assert.Equal(t, float32(0.9), f32(12)) // opacity rides in color.a
	assert.Equal(t, uint32(140), binary.LittleEndian.Uint32(data[16:]))
	assert.Equal(t, uint32(0x1F), binary.LittleEndian.Uint32(data[20:]))
	assert.Equal(t, float32(FieldThresholdLo), f32(24))
	assert.Equal(t, float32(FeatherBase), f32(44))
}
