package sumi

import (
	"sync"
	"sync/atomic"
)

// SnapshotCapacity is the fixed per-layer particle capacity of a render
// snapshot. The GPU storage buffer is sized for exactly this many records;
// overflow truncates, shortfall pads with zero records (zero radius
// contributes nothing to the field).
const SnapshotCapacity = 16384

// RenderSnapshot is the GPU-ready view of one layer. Particles always has
// SnapshotCapacity entries; Count says how many are live. Snapshots are
// immutable once published.
type RenderSnapshot struct {
	Particles  []Particle
	Count      int
	Visibility VisibilityMask
}

// ParticleStore owns the accumulated particle batches, one append-only
// sequence per layer name. Mutations notify the FrameCoordinator through
// the onMutate hook.
type ParticleStore struct {
	mu       sync.Mutex
	batches  map[string][]Particle
	total    int
	onMutate func()
}

func NewParticleStore() *ParticleStore {
	return &ParticleStore{batches: make(map[string][]Particle)}
}

// Append adds a generated batch to a layer. Empty batches are ignored and
// do not dirty the frame.
func (s *ParticleStore) Append(layerName string, batch []Particle) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	s.batches[layerName] = append(s.batches[layerName], batch...)
	s.total += len(batch)
	hook := s.onMutate
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Clear empties every layer.
func (s *ParticleStore) Clear() {
	s.mu.Lock()
	changed := s.total > 0
	s.batches = make(map[string][]Particle)
	s.total = 0
	hook := s.onMutate
	s.mu.Unlock()
	if changed && hook != nil {
		hook()
	}
}

// DropLayer discards the particles of a removed layer.
func (s *ParticleStore) DropLayer(layerName string) {
	s.mu.Lock()
	n := len(s.batches[layerName])
	delete(s.batches, layerName)
	s.total -= n
	hook := s.onMutate
	s.mu.Unlock()
	if n > 0 && hook != nil {
		hook()
	}
}

// Total is the particle count across all layers.
func (s *ParticleStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Count returns one layer's particle count.
func (s *ParticleStore) Count(layerName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches[layerName])
}

// copyLayer snapshots one layer's particles under the lock.
func (s *ParticleStore) copyLayer(layerName string) []Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.batches[layerName]
	out := make([]Particle, len(src))
	copy(out, src)
	return out
}

// FrameCoordinator caches GPU-ready snapshots behind a single dirty flag.
// Store mutations and visibility edits mark it dirty; Rebuild is a no-op
// otherwise, so a burst of mutations costs one assembly on the next frame.
// Published snapshots are swapped in atomically; a renderer mid-frame
// either sees the old set or the new set, never a half-built one.
type FrameCoordinator struct {
	store  *ParticleStore
	layers *LayerSet

	dirty     atomic.Bool
	rebuildMu sync.Mutex
	published atomic.Pointer[map[string]*RenderSnapshot]
}

func NewFrameCoordinator(store *ParticleStore, layers *LayerSet) *FrameCoordinator {
	c := &FrameCoordinator{store: store, layers: layers}
	empty := map[string]*RenderSnapshot{}
	c.published.Store(&empty)
	store.mu.Lock()
	store.onMutate = c.MarkDirty
	store.mu.Unlock()
	c.dirty.Store(true)
	return c
}

// MarkDirty flags the snapshot set stale. Cheap; callable from any thread.
func (c *FrameCoordinator) MarkDirty() { c.dirty.Store(true) }

// Dirty reports whether a Rebuild would do work.
func (c *FrameCoordinator) Dirty() bool { return c.dirty.Load() }

// Rebuild reassembles and publishes all layer snapshots if dirty. Returns
// whether anything was rebuilt.
func (c *FrameCoordinator) Rebuild() bool {
	if !c.dirty.Swap(false) {
		return false
	}
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	next := make(map[string]*RenderSnapshot, c.layers.Len())
	c.layers.Each(func(l *Layer) bool {
		next[l.Name] = c.assemble(l)
		return true
	})
	c.published.Store(&next)
	return true
}

// Snapshot returns the published snapshot for a layer, or nil if the layer
// is unknown. Read-only.
func (c *FrameCoordinator) Snapshot(layerName string) *RenderSnapshot {
	return (*c.published.Load())[layerName]
}

func (c *FrameCoordinator) assemble(l *Layer) *RenderSnapshot {
	particles := c.store.copyLayer(l.Name)
	count := len(particles)
	if count > SnapshotCapacity {
		particles = particles[:SnapshotCapacity]
		count = SnapshotCapacity
	}
	padded := make([]Particle, SnapshotCapacity)
	copy(padded, particles)
	return &RenderSnapshot{
		Particles:  padded,
		Count:      count,
		Visibility: l.Rendering.Visible,
	}
}
