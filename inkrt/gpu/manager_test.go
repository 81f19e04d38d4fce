package gpu

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumi3d/sumi"
	"github.com/sumi3d/sumi/inkrt/core"
)

func TestSnapshotRecords_PacksLivePrefixOnly(t *testing.T) {
	snap := &sumi.RenderSnapshot{
		Particles: make([]sumi.Particle, sumi.SnapshotCapacity),
		Count:     2,
	}
	snap.Particles[0] = sumi.Particle{
		Pos:        mgl32.Vec2{0.2, 0.8},
		Radius:     0.05,
		Type:       sumi.DotLarge,
		Vel:        mgl32.Vec2{0.3, -0.1},
		Elongation: 1.2,
	}
	snap.Particles[1] = sumi.Particle{Pos: mgl32.Vec2{0.5, 0.5}, Radius: 0.01, Type: sumi.DotMicro}

	records := SnapshotRecords(snap)
	require.Len(t, records, 2)
	assert.Equal(t, [2]float32{0.2, 0.8}, records[0].Pos)
	assert.Equal(t, float32(0.05), records[0].Radius)
	assert.Equal(t, uint32(sumi.DotLarge), records[0].Kind)
	assert.Equal(t, [2]float32{0.3, -0.1}, records[0].Vel)
	assert.Equal(t, float32(1.2), records[0].Elongation)
	assert.Equal(t, uint32(sumi.DotMicro), records[1].Kind)
}

func TestLayerUniforms_CarriesLayerLook(t *testing.T) {
	l := sumi.NewLayer("ink", "Ink")
	l.Rendering.Color = [3]float32{0.1, 0.2, 0.3}
	l.Rendering.Opacity = 0.8
	snap := &sumi.RenderSnapshot{
		Particles:  make([]sumi.Particle, sumi.SnapshotCapacity),
		Count:      7,
		Visibility: sumi.AllDotsVisible.Without(sumi.DotMicro),
	}

	u := LayerUniforms(l, snap, 16.0/9.0)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.8}, u.Color)
	assert.Equal(t, uint32(7), u.Count)
	assert.Equal(t, uint32(snap.Visibility), u.Visibility)
	assert.Equal(t, float32(core.FieldThresholdLo), u.Threshold)
	assert.InDelta(t, 16.0/9.0, float64(u.Aspect), 1e-6)
	assert.Equal(t, l.Physics.NoiseAmplitude, u.NoiseAmplitude)
	assert.Equal(t, l.Physics.NoiseFrequency, u.NoiseFrequency)
	assert.Equal(t, l.Physics.VelocityRoughness, u.NoiseRoughness)
	assert.Equal(t, float32(core.FeatherBase), u.FeatherBase)
}
