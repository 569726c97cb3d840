package heap

import (
	"errors"
	"testing"

	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumInvariant checks that the block table's sizes always sum to the full
// arena and that blocks are strictly address-ordered with no two adjacent
// free blocks (the invariant coalesce is supposed to maintain).
func sumInvariant(t *testing.T, h *Table) {
	t.Helper()
	var sum uint32
	prevAddr := uint32(0)
	prevFree := false
	for i := 0; i < h.BlockCount(); i++ {
		addr, size, free := h.BlockAt(i)
		if i > 0 {
			assert.Greater(t, addr, prevAddr, "blocks must be address-ordered")
			assert.False(t, free && prevFree, "no two adjacent blocks may both be free")
		}
		sum += size
		prevAddr, prevFree = addr, free
	}
	assert.Equal(t, Size, sum, "block sizes must always sum to the full arena")
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	h := New(nil)
	addr, ok := h.Allocate(1024)
	require.True(t, ok)
	sumInvariant(t, h)

	h.Free(addr)
	sumInvariant(t, h)
	assert.Equal(t, 1, h.BlockCount(), "freeing the only allocation restores a single free block")
}

func TestAllocateZeroFails(t *testing.T) {
	h := New(nil)
	_, ok := h.Allocate(0)
	assert.False(t, ok)
}

func TestAllocateEntireHeapSucceedsOnce(t *testing.T) {
	h := New(nil)
	addr, ok := h.Allocate(Size)
	require.True(t, ok)
	assert.Equal(t, Start, addr)

	_, ok = h.Allocate(1)
	assert.False(t, ok, "no space left after allocating the entire heap")
}

func TestAllocateOversizeFails(t *testing.T) {
	h := New(nil)
	_, ok := h.Allocate(Size + 1)
	assert.False(t, ok)
}

func TestDoubleFreeIsRejected(t *testing.T) {
	h := New(nil)
	addr, ok := h.Allocate(64)
	require.True(t, ok)

	h.Free(addr)
	sumInvariant(t, h)
	h.Free(addr) // logged, must not corrupt the table or panic
	sumInvariant(t, h)

	var kerr *kernelerr.Error
	require.True(t, errors.As(h.Err(), &kerr))
	assert.Equal(t, kernelerr.DoubleFree, kerr.Kind)
}

func TestFreeInvalidAddressIsIgnored(t *testing.T) {
	h := New(nil)
	h.Free(Start + 999999)
	sumInvariant(t, h)
	assert.Equal(t, 1, h.BlockCount())

	var kerr *kernelerr.Error
	require.True(t, errors.As(h.Err(), &kerr))
	assert.Equal(t, kernelerr.InvalidAddress, kerr.Kind)
}

func TestAllocateOutOfMemorySetsErr(t *testing.T) {
	h := New(nil)
	_, ok := h.Allocate(Size + 1)
	require.False(t, ok)

	var kerr *kernelerr.Error
	require.True(t, errors.As(h.Err(), &kerr))
	assert.Equal(t, kernelerr.OutOfMemory, kerr.Kind)
}

func TestErrClearsAfterSuccessfulAllocate(t *testing.T) {
	h := New(nil)
	h.Free(Start + 999999)
	require.Error(t, h.Err())

	_, ok := h.Allocate(64)
	require.True(t, ok)
	assert.NoError(t, h.Err())
}

// TestCoalescingScenario exercises the allocator-coalescing walkthrough:
// three allocations of different sizes, free the middle one, allocate a
// smaller block that reuses its address, then free everything and confirm
// the heap returns to a single free block spanning the whole arena.
func TestCoalescingScenario(t *testing.T) {
	h := New(nil)

	a, ok := h.Allocate(512)
	require.True(t, ok)
	b, ok := h.Allocate(2048)
	require.True(t, ok)
	c, ok := h.Allocate(256)
	require.True(t, ok)
	sumInvariant(t, h)

	h.Free(b)
	sumInvariant(t, h)

	d, ok := h.Allocate(1024)
	require.True(t, ok)
	assert.Equal(t, b, d, "a smaller allocation should reuse the freed block's address")

	h.Free(a)
	h.Free(c)
	h.Free(d)
	sumInvariant(t, h)

	assert.Equal(t, 1, h.BlockCount())
	addr, size, free := h.BlockAt(0)
	assert.Equal(t, Start, addr)
	assert.Equal(t, Size, size)
	assert.True(t, free)
}

func TestReallocateGrowsAndPreservesData(t *testing.T) {
	h := New(nil)
	addr, ok := h.Allocate(16)
	require.True(t, ok)
	h.Write(addr, []byte("hello world12345"))

	newAddr, ok := h.Reallocate(addr, 64)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world12345"), h.Read(newAddr, 16))
	sumInvariant(t, h)
}

func TestReallocateNullIsAllocate(t *testing.T) {
	h := New(nil)
	addr, ok := h.Reallocate(0, 32)
	require.True(t, ok)
	assert.NotZero(t, addr)
}

func TestReallocateZeroSizeFrees(t *testing.T) {
	h := New(nil)
	addr, ok := h.Allocate(32)
	require.True(t, ok)

	_, ok = h.Reallocate(addr, 0)
	require.True(t, ok)
	assert.Equal(t, 1, h.BlockCount())
}

func TestCallocZeroesMemory(t *testing.T) {
	h := New(nil)
	addr, ok := h.Calloc(4, 8)
	require.True(t, ok)
	for _, b := range h.Read(addr, 32) {
		assert.Zero(t, b)
	}
}

func TestStatsAccounting(t *testing.T) {
	h := New(nil)
	a, _ := h.Allocate(100)
	_, _ = h.Allocate(200)
	h.Free(a)

	s := h.Stats()
	assert.Equal(t, Size, s.TotalBytes)
	assert.Equal(t, 1, s.NumAllocs)
	assert.Equal(t, s.TotalBytes-s.UsedBytes, s.FreeBytes)
}
