package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sumi3d/sumi"
	"github.com/sumi3d/sumi/inkrt/shaders"
)

// paperClear is the background the layers composite over.
var paperClear = wgpu.Color{R: 0.97, G: 0.96, B: 0.93, A: 1}

// FieldRenderer draws every enabled layer's particle field, one alpha-
// blended fullscreen pass per layer in ascending zIndex. Pipeline health is
// decided once at construction: if the shader or pipeline fails to build,
// the renderer stays alive as a no-op and every frame logs nothing and
// draws nothing while the host keeps running.
type FieldRenderer struct {
	ctx  *Context
	pool *BufferPool
	mgr  *FieldBufferManager
	log  sumi.Logger

	pipeline *wgpu.RenderPipeline
	ready    bool
}

func NewFieldRenderer(ctx *Context, pool *BufferPool, log sumi.Logger) *FieldRenderer {
	if log == nil {
		log = sumi.NewNopLogger()
	}
	r := &FieldRenderer{
		ctx:  ctx,
		pool: pool,
		mgr:  NewFieldBufferManager(ctx, pool),
		log:  log,
	}
	pipeline, err := buildFieldPipeline(ctx)
	if err != nil {
		// Degrade, do not crash: frames render as bare paper.
		log.Errorf("field pipeline unavailable, rendering disabled: %v", err)
		return r
	}
	r.pipeline = pipeline
	r.ready = true
	return r
}

// Ready reports whether the pipeline built. Cached from construction,
// never re-checked per frame.
func (r *FieldRenderer) Ready() bool { return r.ready }

// RenderFrame composites all enabled layers into view. Layer failures are
// soft: a layer that cannot upload is skipped for this frame.
func (r *FieldRenderer) RenderFrame(view *wgpu.TextureView, eng *sumi.Engine, width, height uint32) error {
	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}

	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}

	var uploads []*LayerUpload
	if r.ready {
		eng.Coordinator().Rebuild()
		for _, l := range eng.Layers().ByZIndex() {
			if !l.Rendering.Enabled {
				continue
			}
			snap := eng.Coordinator().Snapshot(l.Name)
			if snap == nil || snap.Count == 0 {
				continue
			}
			upload, err := r.mgr.Upload(l, snap, aspect, r.pipeline)
			if err != nil {
				r.log.Warnf("layer %q skipped this frame: %v", l.Name, err)
				continue
			}
			uploads = append(uploads, upload)
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: paperClear,
		}},
	})
	if r.ready {
		pass.SetPipeline(r.pipeline)
		for _, upload := range uploads {
			pass.SetBindGroup(0, upload.BindGroup, nil)
			pass.Draw(3, 1, 0, 0)
		}
	}
	if err := pass.End(); err != nil {
		r.log.Errorf("field pass end failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		for _, upload := range uploads {
			upload.Release()
		}
		return fmt.Errorf("encoder finish: %w", err)
	}
	r.ctx.Queue.Submit(cmd)

	for _, upload := range uploads {
		upload.Release()
	}
	return nil
}

// Shutdown drops the pipeline and drains the pool.
func (r *FieldRenderer) Shutdown() {
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	r.ready = false
	r.pool.Drain()
}

func buildFieldPipeline(ctx *Context) (*wgpu.RenderPipeline, error) {
	shader, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Field Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FieldWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("create field shader module: %w", err)
	}
	defer shader.Release()

	pipeline, err := ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Field Pipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: ctx.Format,
				// Premultiplied-alpha compositing of layer passes.
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create field pipeline: %w", err)
	}
	return pipeline, nil
}
