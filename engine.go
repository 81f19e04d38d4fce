package sumi

// Engine is the facade the host binds to: impacts in, snapshots out. It owns
// the layer set, the particle store, the splat generator and the frame
// coordinator. There is no reactive-property layer — the host mutates layer
// fields directly and calls MarkVisualsChanged, and observes the engine
// through the changed callback.
//
// All mutation entry points are expected on the host's input thread;
// snapshot reads are safe from the render thread (see FrameCoordinator).
type Engine struct {
	log    Logger
	rng    RandomSource
	gen    *SplatGenerator
	layers *LayerSet
	store  *ParticleStore
	coord  *FrameCoordinator

	onChange func()

	seeded bool
	seed   uint64
}

// NewEngine builds an engine with system-entropy randomness and a single
// default ink layer.
func NewEngine(log Logger) *Engine {
	if log == nil {
		log = NewNopLogger()
	}
	rng := RandomSource(NewEntropySource())
	e := &Engine{
		log:    log,
		rng:    rng,
		gen:    NewSplatGenerator(rng, log),
		layers: NewLayerSet(),
		store:  NewParticleStore(),
	}
	e.coord = NewFrameCoordinator(e.store, e.layers)
	if err := e.layers.Add(NewLayer("ink", "Ink")); err != nil {
		panic(err)
	}
	return e
}

// SetChangedCallback registers the host's redraw trigger. Called after every
// mutation that affects rendering; the host coalesces bursts (debounce) on
// its side.
func (e *Engine) SetChangedCallback(fn func()) { e.onChange = fn }

func (e *Engine) notifyChanged() {
	if e.onChange != nil {
		e.onChange()
	}
}

// UseSeededRandom switches generation to the reproducible LCG stream.
func (e *Engine) UseSeededRandom(seed uint64) {
	e.seeded = true
	e.seed = seed
	e.rng = NewSeededSource(seed)
	e.gen.SetRandomSource(e.rng)
}

// UseEntropyRandom switches generation back to system entropy.
func (e *Engine) UseEntropyRandom() {
	e.seeded = false
	e.seed = 0
	e.rng = NewEntropySource()
	e.gen.SetRandomSource(e.rng)
}

// Layers exposes the ordered layer collection. Hosts edit layer fields in
// place and then call MarkVisualsChanged.
func (e *Engine) Layers() *LayerSet { return e.layers }

// Coordinator exposes the frame coordinator for render-side wiring.
func (e *Engine) Coordinator() *FrameCoordinator { return e.coord }

// AddLayer creates and registers a new layer on top.
func (e *Engine) AddLayer(name, displayName string) (*Layer, error) {
	l := NewLayer(name, displayName)
	if err := e.layers.Add(l); err != nil {
		return nil, err
	}
	e.coord.MarkDirty()
	e.notifyChanged()
	return l, nil
}

// RemoveLayer drops a layer and its particles. Remaining layers are
// reindexed to a contiguous zIndex run.
func (e *Engine) RemoveLayer(name string) bool {
	if !e.layers.Remove(name) {
		return false
	}
	e.store.DropLayer(name)
	e.coord.MarkDirty()
	e.notifyChanged()
	return true
}

// AddImpact converts one tap at pixel (px, py) into splats on every enabled
// layer. Returns the number of particles added; zero can mean ceilings
// refused the work (already logged).
func (e *Engine) AddImpact(px, py, screenW, screenH float32) int {
	added := 0
	e.layers.Each(func(l *Layer) bool {
		if !l.Rendering.Enabled {
			return true
		}
		imp := NewImpact(l, px, py, screenW, screenH)
		batch := e.gen.Generate(l, imp, e.store.Total())
		if len(batch) > 0 {
			e.store.Append(l.Name, batch)
			added += len(batch)
		}
		return true
	})
	if added > 0 {
		e.notifyChanged()
	}
	return added
}

// Clear empties every layer's particles.
func (e *Engine) Clear() {
	e.store.Clear()
	e.notifyChanged()
}

// TotalParticles reports the store's particle count across layers.
func (e *Engine) TotalParticles() int { return e.store.Total() }

// MarkVisualsChanged flags snapshot-affecting layer edits (visibility masks,
// dot toggles). Color and opacity edits do not need it; they flow through
// uniforms every frame.
func (e *Engine) MarkVisualsChanged() {
	e.coord.MarkDirty()
	e.notifyChanged()
}

// RenderSnapshot lazily rebuilds and returns the GPU-ready snapshot for one
// layer. Pull-based and read-only.
func (e *Engine) RenderSnapshot(layerName string) *RenderSnapshot {
	e.coord.Rebuild()
	return e.coord.Snapshot(layerName)
}
