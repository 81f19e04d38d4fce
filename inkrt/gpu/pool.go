// Package gpu drives the wgpu side of the ink field: a bucketed buffer
// pool, byte packing of snapshots, and the per-layer render pass.
package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sumi3d/sumi"
)

// PooledBuffer is the minimal handle surface the pool tracks. The real
// implementation wraps *wgpu.Buffer; tests substitute doubles.
type PooledBuffer interface {
	Size() uint64
	Release()
}

// BufferAllocator abstracts device buffer creation so the pool works
// against an injected context instead of a global device.
type BufferAllocator interface {
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (PooledBuffer, error)
}

// DeviceBuffer wraps a live wgpu buffer for pooling.
type DeviceBuffer struct {
	buf *wgpu.Buffer
}

func (b *DeviceBuffer) Size() uint64      { return b.buf.GetSize() }
func (b *DeviceBuffer) Release()          { b.buf.Release() }
func (b *DeviceBuffer) Raw() *wgpu.Buffer { return b.buf }

// DeviceAllocator creates buffers on a wgpu device.
type DeviceAllocator struct {
	Device *wgpu.Device
}

func (a *DeviceAllocator) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (PooledBuffer, error) {
	buf, err := a.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer (%d bytes): %w", label, size, err)
	}
	return &DeviceBuffer{buf: buf}, nil
}

// PressureLevel is the host's memory-pressure signal.
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureWarning
	PressureCritical
)

// bufferAlignment rounds requested sizes up to wgpu's uniform-offset
// alignment so size classes stay coarse and reuse stays high.
const bufferAlignment = 256

type bucketSpec struct {
	name   string
	max    uint64 // largest request this bucket serves
	retain int    // free buffers kept under normal pressure
}

// Size classes tuned to the three upload shapes of the field renderer:
// uniform blocks every layer every frame, small batches while a splat is
// young, full-capacity batches for mature stains. Uniforms recycle far more
// often, so they keep the deepest free list.
var bucketSpecs = []bucketSpec{
	{name: "uniform", max: 1 << 10, retain: 32},
	{name: "small-batch", max: 64 << 10, retain: 16},
	{name: "large-batch", max: 2 << 20, retain: 4},
}

type bucket struct {
	spec      bucketSpec
	retainCap int
	free      map[wgpu.BufferUsage][]PooledBuffer
}

func (b *bucket) freeCount() int {
	n := 0
	for _, list := range b.free {
		n += len(list)
	}
	return n
}

// PoolMetrics is a point-in-time snapshot of pool counters, safe to read
// from a monitoring goroutine.
type PoolMetrics struct {
	Hits        uint64
	Misses      uint64
	Outstanding int
	PooledBytes uint64
	BucketFree  map[string]int
}

func (m PoolMetrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// BufferPool recycles GPU buffers by size class. All bucket state is
// serialized through one mutex; every critical section is a few list
// operations, so the render thread never waits long. Buffers are allocated
// at their bucket's max size so any request in the class can reuse them.
type BufferPool struct {
	alloc BufferAllocator
	log   sumi.Logger

	mu          sync.Mutex
	buckets     []bucket
	hits        uint64
	misses      uint64
	outstanding int
	pressure    PressureLevel
}

func NewBufferPool(alloc BufferAllocator, log sumi.Logger) *BufferPool {
	if log == nil {
		log = sumi.NewNopLogger()
	}
	p := &BufferPool{alloc: alloc, log: log}
	p.buckets = make([]bucket, len(bucketSpecs))
	for i, spec := range bucketSpecs {
		p.buckets[i] = bucket{
			spec:      spec,
			retainCap: spec.retain,
			free:      make(map[wgpu.BufferUsage][]PooledBuffer),
		}
	}
	return p
}

// Lease is a borrowed buffer with return-once semantics: the first Release
// hands the buffer back to the pool, every later Release is a logged no-op,
// and Buffer panics after return so use-after-return fails loudly in tests
// rather than corrupting a frame.
type Lease struct {
	pool     *BufferPool
	buf      PooledBuffer
	bucket   int // -1 for oversize, unbucketed allocations
	usage    wgpu.BufferUsage
	returned bool
}

// Buffer exposes the leased handle.
func (l *Lease) Buffer() PooledBuffer {
	if l.returned {
		panic("gpu: use of buffer lease after return")
	}
	return l.buf
}

// Release returns the buffer to the pool. Safe to call more than once; only
// the first call has an effect.
func (l *Lease) Release() {
	l.pool.returnLease(l)
}

// Borrow acquires a buffer of at least size bytes with the given usage.
// The size is rounded up to the pool alignment and matched to a size-class
// bucket; requests beyond the largest class are allocated exactly and not
// retained on return.
func (p *BufferPool) Borrow(size uint64, usage wgpu.BufferUsage) (*Lease, error) {
	if size == 0 {
		size = bufferAlignment
	}
	size = (size + bufferAlignment - 1) &^ uint64(bufferAlignment-1)

	p.mu.Lock()
	idx := p.bucketFor(size)
	if idx >= 0 {
		b := &p.buckets[idx]
		if list := b.free[usage]; len(list) > 0 {
			buf := list[len(list)-1]
			b.free[usage] = list[:len(list)-1]
			p.hits++
			p.outstanding++
			p.mu.Unlock()
			return &Lease{pool: p, buf: buf, bucket: idx, usage: usage}, nil
		}
	}
	p.misses++
	p.mu.Unlock()

	allocSize := size
	label := "ink-oversize"
	if idx >= 0 {
		allocSize = p.buckets[idx].spec.max
		label = "ink-" + p.buckets[idx].spec.name
	}
	buf, err := p.alloc.CreateBuffer(label, allocSize, usage)
	if err != nil {
		// Soft failure: the caller skips this layer's draw and the frame
		// goes on.
		p.log.Warnf("buffer pool: allocation failed (%d bytes): %v", allocSize, err)
		return nil, err
	}

	p.mu.Lock()
	p.outstanding++
	p.mu.Unlock()
	return &Lease{pool: p, buf: buf, bucket: idx, usage: usage}, nil
}

func (p *BufferPool) bucketFor(size uint64) int {
	for i := range p.buckets {
		if size <= p.buckets[i].spec.max {
			return i
		}
	}
	return -1
}

func (p *BufferPool) returnLease(l *Lease) {
	p.mu.Lock()
	if l.returned {
		p.mu.Unlock()
		p.log.Debugf("buffer pool: double return ignored")
		return
	}
	l.returned = true
	p.outstanding--

	var release PooledBuffer
	if l.bucket < 0 {
		release = l.buf
	} else {
		b := &p.buckets[l.bucket]
		if b.freeCount() >= b.retainCap {
			release = l.buf
		} else {
			b.free[l.usage] = append(b.free[l.usage], l.buf)
		}
	}
	p.mu.Unlock()

	if release != nil {
		release.Release()
	}
}

// SetPressure applies a memory-pressure level. The trim itself runs on a
// separate goroutine so the caller (often a platform memory-warning
// callback) never waits on pool bookkeeping.
func (p *BufferPool) SetPressure(level PressureLevel) {
	p.mu.Lock()
	p.pressure = level
	p.mu.Unlock()
	go p.trim(level)
}

// trim enforces a pressure level: warning halves every bucket's retained
// buffers, critical drops them all. Outstanding leases are untouched; they
// re-enter (or bypass) the shrunken free lists on return.
func (p *BufferPool) trim(level PressureLevel) {
	var victims []PooledBuffer

	p.mu.Lock()
	for i := range p.buckets {
		b := &p.buckets[i]
		switch level {
		case PressureNormal:
			b.retainCap = b.spec.retain
			continue
		case PressureWarning:
			b.retainCap = b.spec.retain / 2
		case PressureCritical:
			b.retainCap = 0
		}
		for usage, list := range b.free {
			keep := b.retainCap
			if keep > len(list) {
				keep = len(list)
			}
			victims = append(victims, list[keep:]...)
			b.free[usage] = list[:keep]
		}
	}
	p.mu.Unlock()

	for _, buf := range victims {
		buf.Release()
	}
	if len(victims) > 0 {
		p.log.Debugf("buffer pool: pressure %d released %d buffers", level, len(victims))
	}
}

// Metrics snapshots the pool counters.
func (p *BufferPool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := PoolMetrics{
		Hits:        p.hits,
		Misses:      p.misses,
		Outstanding: p.outstanding,
		BucketFree:  make(map[string]int, len(p.buckets)),
	}
	for i := range p.buckets {
		b := &p.buckets[i]
		n := b.freeCount()
		m.BucketFree[b.spec.name] = n
		m.PooledBytes += uint64(n) * b.spec.max
	}
	return m
}

// Drain empties every bucket; called on renderer shutdown.
func (p *BufferPool) Drain() {
	p.trim(PressureCritical)
	p.mu.Lock()
	for i := range p.buckets {
		p.buckets[i].retainCap = p.buckets[i].spec.retain
	}
	p.mu.Unlock()
}
