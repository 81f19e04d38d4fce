// Package app hosts the ink field in a glfw window: it owns the wgpu
// surface, feeds mouse input to the engine as impacts, and runs a
// demand-driven redraw loop (frames render only while something changed).
package app

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/sumi3d/sumi"
	"github.com/sumi3d/sumi/inkrt/gpu"
)

// settingsFile is where S/L store and recall the engine settings document.
const settingsFile = "sumi_settings.json"

// dragStride is the minimum cursor travel, in pixels, between two impacts
// of one drag. Keeps a slow drag from piling splats onto one spot.
const dragStride = 14.0

type App struct {
	Window *glfw.Window
	Engine *sumi.Engine
	Log    sumi.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	config   *wgpu.SurfaceConfiguration

	ctx      *gpu.Context
	pool     *gpu.BufferPool
	renderer *gpu.FieldRenderer

	needsRedraw bool
	dragging    bool
	lastDragX   float64
	lastDragY   float64

	frameCount uint64
}

func New(window *glfw.Window, engine *sumi.Engine, log sumi.Logger) *App {
	if log == nil {
		log = sumi.NewNopLogger()
	}
	return &App{Window: window, Engine: engine, Log: log}
}

// Init brings up the wgpu device and the field renderer. A GPU that cannot
// provide a device is a hard init error; a pipeline that fails to build is
// not, the renderer degrades to bare paper.
func (a *App) Init() error {
	a.instance = wgpu.CreateInstance(nil)

	a.surface = a.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.adapter = adapter

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.surface.GetCapabilities(adapter)
	a.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.surface.Configure(adapter, device, a.config)

	a.ctx = &gpu.Context{
		Device: device,
		Queue:  device.GetQueue(),
		Format: a.config.Format,
	}
	a.pool = gpu.NewBufferPool(&gpu.DeviceAllocator{Device: device}, a.Log)
	a.renderer = gpu.NewFieldRenderer(a.ctx, a.pool, a.Log)

	a.Engine.SetChangedCallback(a.RequestRedraw)
	a.installCallbacks()
	a.needsRedraw = true
	return nil
}

// RequestRedraw marks the next loop iteration as needing a frame. Redraw
// requests coalesce; many mutations between frames cost one render.
func (a *App) RequestRedraw() { a.needsRedraw = true }

func (a *App) installCallbacks() {
	a.Window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		switch action {
		case glfw.Press:
			x, y := w.GetCursorPos()
			a.dragging = true
			a.lastDragX, a.lastDragY = x, y
			a.splatAt(x, y)
		case glfw.Release:
			a.dragging = false
		}
	})

	a.Window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if !a.dragging {
			return
		}
		dx := x - a.lastDragX
		dy := y - a.lastDragY
		if dx*dx+dy*dy < dragStride*dragStride {
			return
		}
		a.lastDragX, a.lastDragY = x, y
		a.splatAt(x, y)
	})

	a.Window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyC:
			a.Engine.Clear()
		case glfw.KeyS:
			a.saveSettings()
		case glfw.KeyL:
			a.loadSettings()
		case glfw.KeyD:
			a.Log.SetDebug(!a.Log.DebugEnabled())
			a.Log.Infof("debug %v", a.Log.DebugEnabled())
		}
	})

	a.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		a.Resize(width, height)
	})
}

func (a *App) splatAt(x, y float64) {
	w, h := a.Window.GetFramebufferSize()
	added := a.Engine.AddImpact(float32(x), float32(y), float32(w), float32(h))
	a.Log.Debugf("impact (%.0f, %.0f): %d particles, %d total", x, y, added, a.Engine.TotalParticles())
}

func (a *App) saveSettings() {
	data, err := a.Engine.ExportSettings()
	if err != nil {
		a.Log.Errorf("export settings: %v", err)
		return
	}
	if err := os.WriteFile(settingsFile, data, 0644); err != nil {
		a.Log.Errorf("write %s: %v", settingsFile, err)
		return
	}
	a.Log.Infof("settings saved to %s", settingsFile)
}

func (a *App) loadSettings() {
	data, err := os.ReadFile(settingsFile)
	if err != nil {
		a.Log.Errorf("read %s: %v", settingsFile, err)
		return
	}
	if err := a.Engine.ImportSettings(data); err != nil {
		a.Log.Errorf("import settings: %v", err)
		return
	}
	a.Log.Infof("settings loaded from %s", settingsFile)
}

func (a *App) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	a.config.Width = uint32(width)
	a.config.Height = uint32(height)
	a.surface.Configure(a.adapter, a.ctx.Device, a.config)
	a.RequestRedraw()
}

// Run is the demand-driven frame loop: render when flagged, otherwise sleep
// on events. Present blocks to the display's refresh, which is all the
// frame pacing this needs.
func (a *App) Run() {
	for !a.Window.ShouldClose() {
		if a.needsRedraw {
			glfw.PollEvents()
			a.needsRedraw = false
			a.renderFrame()
		} else {
			glfw.WaitEventsTimeout(0.25)
		}
	}
	a.renderer.Shutdown()
}

func (a *App) renderFrame() {
	texture, err := a.surface.GetCurrentTexture()
	if err != nil {
		// Soft failure: skip this frame, retry on the next request.
		a.Log.Warnf("get current texture: %v", err)
		a.needsRedraw = true
		return
	}
	defer texture.Release()

	view, err := texture.CreateView(nil)
	if err != nil {
		a.Log.Warnf("create view: %v", err)
		return
	}
	defer view.Release()

	if err := a.renderer.RenderFrame(view, a.Engine, a.config.Width, a.config.Height); err != nil {
		a.Log.Warnf("render frame: %v", err)
		return
	}
	a.surface.Present()

	a.frameCount++
	if a.frameCount%120 == 0 && a.Log.DebugEnabled() {
		m := a.pool.Metrics()
		a.Log.Debugf("pool: hit rate %.2f, outstanding %d, pooled %d KiB",
			m.HitRate(), m.Outstanding, m.PooledBytes/1024)
	}
}
