package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sumi3d/sumi"
	"github.com/sumi3d/sumi/inkrt/core"
)

// Context is the explicitly constructed renderer context: device, queue and
// swapchain format. Passing it around (instead of a shared global) is what
// lets tests run the pool and packing against doubles and lets two engines
// render side by side.
type Context struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	Format wgpu.TextureFormat
}

// LayerUpload holds one layer's frame resources: the two leased buffers and
// the bind group tying them to the field pipeline. Release after submit.
type LayerUpload struct {
	Count     uint32
	BindGroup *wgpu.BindGroup

	uniforms  *Lease
	particles *Lease
}

// Release returns the leases to the pool and drops the bind group. Safe to
// call once per upload; the leases themselves shrug off double returns.
func (u *LayerUpload) Release() {
	if u.BindGroup != nil {
		u.BindGroup.Release()
		u.BindGroup = nil
	}
	if u.uniforms != nil {
		u.uniforms.Release()
	}
	if u.particles != nil {
		u.particles.Release()
	}
}

// FieldBufferManager packs layer snapshots into pooled GPU buffers.
type FieldBufferManager struct {
	ctx  *Context
	pool *BufferPool
}

func NewFieldBufferManager(ctx *Context, pool *BufferPool) *FieldBufferManager {
	return &FieldBufferManager{ctx: ctx, pool: pool}
}

// SnapshotRecords converts the live prefix of a snapshot into the shader's
// record layout.
func SnapshotRecords(snap *sumi.RenderSnapshot) []core.FieldParticle {
	records := make([]core.FieldParticle, snap.Count)
	for i := 0; i < snap.Count; i++ {
		p := snap.Particles[i]
		records[i] = core.FieldParticle{
			Pos:        [2]float32{p.Pos.X(), p.Pos.Y()},
			Radius:     p.Radius,
			Kind:       uint32(p.Type),
			Vel:        [2]float32{p.Vel.X(), p.Vel.Y()},
			Elongation: p.Elongation,
		}
	}
	return records
}

// LayerUniforms assembles the per-layer uniform block.
func LayerUniforms(l *sumi.Layer, snap *sumi.RenderSnapshot, aspect float32) core.FieldUniforms {
	return core.FieldUniforms{
		Color: [4]float32{
			l.Rendering.Color[0],
			l.Rendering.Color[1],
			l.Rendering.Color[2],
			l.Rendering.Opacity,
		},
		Count:          uint32(snap.Count),
		Visibility:     uint32(snap.Visibility),
		Threshold:      core.FieldThresholdLo,
		Aspect:         aspect,
		NoiseAmplitude: l.Physics.NoiseAmplitude,
		NoiseFrequency: l.Physics.NoiseFrequency,
		NoiseRoughness: l.Physics.VelocityRoughness,
		FeatherBase:    core.FeatherBase,
	}
}

// Upload borrows pooled buffers for one layer's frame, writes the packed
// snapshot and uniforms, and binds them to the pipeline's group 0. A nil
// error guarantees a usable upload; on any failure partial leases are
// returned before the error surfaces.
func (m *FieldBufferManager) Upload(l *sumi.Layer, snap *sumi.RenderSnapshot, aspect float32, pipeline *wgpu.RenderPipeline) (*LayerUpload, error) {
	particleData := core.PackParticles(SnapshotRecords(snap))
	uniforms := LayerUniforms(l, snap, aspect)

	particleLease, err := m.pool.Borrow(uint64(len(particleData)), wgpu.BufferUsageStorage)
	if err != nil {
		return nil, fmt.Errorf("borrow particle buffer: %w", err)
	}
	uniformLease, err := m.pool.Borrow(core.FieldUniformsSize, wgpu.BufferUsageUniform)
	if err != nil {
		particleLease.Release()
		return nil, fmt.Errorf("borrow uniform buffer: %w", err)
	}

	particleBuf := particleLease.Buffer().(*DeviceBuffer).Raw()
	uniformBuf := uniformLease.Buffer().(*DeviceBuffer).Raw()
	m.ctx.Queue.WriteBuffer(particleBuf, 0, particleData)
	m.ctx.Queue.WriteBuffer(uniformBuf, 0, uniforms.Bytes())

	layout := pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bindGroup, err := m.ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniformBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: particleBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		particleLease.Release()
		uniformLease.Release()
		return nil, fmt.Errorf("create field bind group: %w", err)
	}

	return &LayerUpload{
		Count:     uint32(snap.Count),
		BindGroup: bindGroup,
		uniforms:  uniformLease,
		particles: particleLease,
	}, nil
}
