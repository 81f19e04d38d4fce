package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	size     uint64
	released bool
}

func (b *fakeBuffer) Size() uint64 { return b.size }
func (b *fakeBuffer) Release()     { b.released = true }

type fakeAllocator struct {
	created []*fakeBuffer
	fail    bool
}

func (a *fakeAllocator) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (PooledBuffer, error) {
	if a.fail {
		return nil, assert.AnError
	}
	buf := &fakeBuffer{size: size}
	a.created = append(a.created, buf)
	return buf, nil
}

func newTestPool() (*BufferPool, *fakeAllocator) {
	alloc := &fakeAllocator{}
	return NewBufferPool(alloc, nil), alloc
}

func TestBufferPool_BorrowReturnReuse(t *testing.T) {
	pool, alloc := newTestPool()

	lease, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	first := lease.Buffer()
	lease.Release()

	lease2, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	assert.Same(t, first, lease2.Buffer())
	assert.Len(t, alloc.created, 1)

	m := pool.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, 1, m.Outstanding)
}

func TestBufferPool_BucketsAllocateAtClassMax(t *testing.T) {
	pool, alloc := newTestPool()

	// A 300-byte request lands in the uniform class and allocates its max,
	// so any later request in the class can reuse the buffer.
	lease, err := pool.Borrow(300, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<10), lease.Buffer().Size())
	lease.Release()

	lease, err = pool.Borrow(1024, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	assert.Len(t, alloc.created, 1)
	lease.Release()

	// 40 KiB is the small-batch class.
	lease, err = pool.Borrow(40<<10, wgpu.BufferUsageStorage)
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<10), lease.Buffer().Size())
	lease.Release()
}

func TestBufferPool_UsageSegregatesFreeLists(t *testing.T) {
	pool, alloc := newTestPool()

	a, _ := pool.Borrow(512, wgpu.BufferUsageUniform)
	a.Release()

	b, err := pool.Borrow(512, wgpu.BufferUsageStorage)
	require.NoError(t, err)
	// Different usage must not reuse the uniform buffer.
	assert.Len(t, alloc.created, 2)
	b.Release()
}

func TestBufferPool_OversizeIsExactAndNotRetained(t *testing.T) {
	pool, alloc := newTestPool()

	lease, err := pool.Borrow(3<<20, wgpu.BufferUsageStorage)
	require.NoError(t, err)
	buf := lease.Buffer().(*fakeBuffer)
	assert.Equal(t, uint64(3<<20), buf.size)
	lease.Release()
	assert.True(t, buf.released, "oversize buffers are freed on return")

	lease, err = pool.Borrow(3<<20, wgpu.BufferUsageStorage)
	require.NoError(t, err)
	assert.Len(t, alloc.created, 2)
	lease.Release()
}

func TestBufferPool_ZeroSizeRoundsToAlignment(t *testing.T) {
	pool, _ := newTestPool()
	lease, err := pool.Borrow(0, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	defer lease.Release()
	assert.Equal(t, uint64(1<<10), lease.Buffer().Size())
}

func TestLease_DoubleReleaseIsNoOp(t *testing.T) {
	pool, _ := newTestPool()

	lease, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	m := pool.Metrics()
	assert.Equal(t, 0, m.Outstanding)
	assert.Equal(t, 1, m.BucketFree["uniform"])
}

func TestLease_BufferPanicsAfterReturn(t *testing.T) {
	pool, _ := newTestPool()
	lease, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	lease.Release()
	assert.Panics(t, func() { lease.Buffer() })
}

func TestBufferPool_AllocationFailureIsSoft(t *testing.T) {
	alloc := &fakeAllocator{fail: true}
	pool := NewBufferPool(alloc, nil)

	lease, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	assert.Error(t, err)
	assert.Nil(t, lease)
	assert.Equal(t, 0, pool.Metrics().Outstanding)
}

func TestBufferPool_RetainCapBoundsFreeList(t *testing.T) {
	pool, _ := newTestPool()

	var leases []*Lease
	for i := 0; i < 40; i++ {
		l, err := pool.Borrow(512, wgpu.BufferUsageUniform)
		require.NoError(t, err)
		leases = append(leases, l)
	}
	for _, l := range leases {
		l.Release()
	}
	// The uniform class retains 32 under normal pressure; the rest are freed.
	assert.Equal(t, 32, pool.Metrics().BucketFree["uniform"])
}

func TestBufferPool_PressureTrimsFreeLists(t *testing.T) {
	pool, _ := newTestPool()

	var leases []*Lease
	for i := 0; i < 32; i++ {
		l, err := pool.Borrow(512, wgpu.BufferUsageUniform)
		require.NoError(t, err)
		leases = append(leases, l)
	}
	for _, l := range leases {
		l.Release()
	}
	require.Equal(t, 32, pool.Metrics().BucketFree["uniform"])

	pool.trim(PressureWarning)
	assert.Equal(t, 16, pool.Metrics().BucketFree["uniform"])

	pool.trim(PressureCritical)
	assert.Equal(t, 0, pool.Metrics().BucketFree["uniform"])

	// Normal pressure restores the retain caps for future returns.
	pool.trim(PressureNormal)
	l, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	l.Release()
	assert.Equal(t, 1, pool.Metrics().BucketFree["uniform"])
}

func TestBufferPool_OutstandingLeasesSurvivePressure(t *testing.T) {
	pool, _ := newTestPool()
	lease, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)

	pool.trim(PressureCritical)
	buf := lease.Buffer().(*fakeBuffer)
	assert.False(t, buf.released)

	// Returned under critical pressure the buffer bypasses the free list.
	lease.Release()
	assert.True(t, buf.released)
	assert.Equal(t, 0, pool.Metrics().BucketFree["uniform"])
}

func TestBufferPool_DrainFreesEverythingAndResets(t *testing.T) {
	pool, alloc := newTestPool()

	a, _ := pool.Borrow(512, wgpu.BufferUsageUniform)
	b, _ := pool.Borrow(40<<10, wgpu.BufferUsageStorage)
	a.Release()
	b.Release()

	pool.Drain()
	for _, buf := range alloc.created {
		assert.True(t, buf.released)
	}
	m := pool.Metrics()
	assert.Equal(t, uint64(0), m.PooledBytes)

	// Drain resets retain caps; the pool keeps working afterwards.
	l, err := pool.Borrow(512, wgpu.BufferUsageUniform)
	require.NoError(t, err)
	l.Release()
	assert.Equal(t, 1, pool.Metrics().BucketFree["uniform"])
}

func TestPoolMetrics_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, PoolMetrics{}.HitRate())
	assert.Equal(t, 0.75, PoolMetrics{Hits: 3, Misses: 1}.HitRate())
}
