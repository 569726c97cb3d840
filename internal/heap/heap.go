// Package heap implements the kernel's bump-arena allocator: first-fit
// placement over a fixed-capacity block table, splitting on oversized
// fits, and exhaustive adjacent-free coalescing. Grounded directly on
// original_source/memory.c's kmalloc/kfree/krealloc/kcalloc.
package heap

import (
	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/gokacchi/kernel/internal/kernlog"
)

const (
	// Start is the arena's base address (spec.md §6 HEAP_START).
	Start uint32 = 0x200000
	// Size is the arena's total byte length (spec.md §6 HEAP_SIZE, 30MiB).
	Size uint32 = 0x1E00000
	// MaxBlocks bounds the block-record table (spec.md §6 MAX_BLOCKS).
	MaxBlocks = 1024
	// Alignment is the allocation granularity in bytes.
	Alignment uint32 = 4
	// splitThreshold is the minimum splinter size worth recording as its
	// own block (spec.md §4.1 splitting policy).
	splitThreshold uint32 = 32
)

// block is one record in the address-ordered block table. The "successor
// link" of spec.md §3 is realized as plain array adjacency: blocks[i] and
// blocks[i+1] are always address-adjacent, maintained by Split/coalesce.
type block struct {
	addr uint32
	size uint32
	free bool
}

// Table is the heap's metadata table plus its backing arena. Metadata is
// kept out-of-band from the arena bytes, per spec.md §4.1.
type Table struct {
	arena   []byte
	blocks  [MaxBlocks]block
	n       int
	log     *kernlog.Logger
	lastErr *kernelerr.Error
}

// Err returns the structured detail behind the most recent failed
// operation (nil if the most recent call succeeded), so a caller that
// wants more than a log line can recover it via errors.As.
func (t *Table) Err() error {
	if t.lastErr == nil {
		return nil
	}
	return t.lastErr
}

// New constructs a Table covering a virgin [Start, Start+Size) arena.
func New(log *kernlog.Logger) *Table {
	if log == nil {
		log = kernlog.Discard()
	}
	t := &Table{arena: make([]byte, Size), log: log}
	t.blocks[0] = block{addr: Start, size: Size, free: true}
	t.n = 1
	return t
}

func roundUp(size, unit uint32) uint32 {
	return (size + unit - 1) &^ (unit - 1)
}

// index returns the block-table index whose addr equals addr, or -1.
func (t *Table) index(addr uint32) int {
	for i := 0; i < t.n; i++ {
		if t.blocks[i].addr == addr {
			return i
		}
	}
	return -1
}

func (t *Table) findFreeFit(size uint32) int {
	for i := 0; i < t.n; i++ {
		if t.blocks[i].free && t.blocks[i].size >= size {
			return i
		}
	}
	return -1
}

// split, if the remainder exceeds splitThreshold and the table has room,
// truncates blocks[i] to size and inserts a new free record for the
// remainder immediately after it. Otherwise blocks[i] is left intact at its
// full size.
func (t *Table) split(i int, size uint32) {
	b := &t.blocks[i]
	remainder := b.size - size
	if remainder <= splitThreshold || t.n >= MaxBlocks {
		return
	}
	// shift everything after i one slot to the right to make room for the
	// new record directly following blocks[i]
	copy(t.blocks[i+2:t.n+1], t.blocks[i+1:t.n])
	t.blocks[i+1] = block{addr: b.addr + size, size: remainder, free: true}
	b.size = size
	t.n++
}

// coalesce performs one exhaustive pass merging every pair of
// address-adjacent free blocks, until no such pair remains.
func (t *Table) coalesce() {
	for i := 0; i < t.n-1; i++ {
		if !t.blocks[i].free {
			continue
		}
		for j := i + 1; j < t.n; {
			end := t.blocks[i].addr + t.blocks[i].size
			if t.blocks[j].free && t.blocks[j].addr == end {
				t.blocks[i].size += t.blocks[j].size
				copy(t.blocks[j:t.n-1], t.blocks[j+1:t.n])
				t.n--
				continue // rescan from the same j, the merged block may
				// now be adjacent to what used to be j+1
			}
			j++
		}
	}
}

func (t *Table) zero(addr, size uint32) {
	off := addr - Start
	for i := uint32(0); i < size; i++ {
		t.arena[off+i] = 0
	}
}

// Allocate returns the start address of a newly allocated block of at
// least round_up(size, Alignment) bytes, or (0, false) if no fit exists
// even after coalescing. size == 0 always fails.
func (t *Table) Allocate(size uint32) (uint32, bool) {
	t.lastErr = nil
	if size == 0 {
		return 0, false
	}
	size = roundUp(size, Alignment)

	i := t.findFreeFit(size)
	if i < 0 {
		t.coalesce()
		i = t.findFreeFit(size)
		if i < 0 {
			t.lastErr = kernelerr.New(kernelerr.OutOfMemory, "no fit for requested size")
			t.log.Error("kmalloc failed: out of memory", kernlog.Size(size), kernlog.Kind(kernelerr.OutOfMemory))
			return 0, false
		}
	}

	t.split(i, size)
	t.blocks[i].free = false
	return t.blocks[i].addr, true
}

// Free marks the block starting at addr free, then coalesces exhaustively.
// Freeing 0 (null) is a no-op. Freeing an unknown address or an
// already-free block is reported and ignored.
func (t *Table) Free(addr uint32) {
	t.lastErr = nil
	if addr == 0 {
		return
	}
	i := t.index(addr)
	if i < 0 {
		t.lastErr = kernelerr.New(kernelerr.InvalidAddress, "free of unknown pointer")
		t.log.Warn("attempt to free invalid pointer", kernlog.Addr(addr), kernlog.Kind(kernelerr.InvalidAddress))
		return
	}
	if t.blocks[i].free {
		t.lastErr = kernelerr.New(kernelerr.DoubleFree, "free of already-free block")
		t.log.Warn("double free detected", kernlog.Addr(addr), kernlog.Kind(kernelerr.DoubleFree))
		return
	}
	t.blocks[i].free = true
	t.coalesce()
}

// Reallocate implements the realloc semantics of spec.md §4.1.
func (t *Table) Reallocate(addr, newSize uint32) (uint32, bool) {
	t.lastErr = nil
	if addr == 0 {
		return t.Allocate(newSize)
	}
	if newSize == 0 {
		t.Free(addr)
		return 0, true
	}
	i := t.index(addr)
	if i < 0 {
		t.lastErr = kernelerr.New(kernelerr.InvalidAddress, "realloc of unknown pointer")
		t.log.Warn("attempt to realloc invalid pointer", kernlog.Addr(addr), kernlog.Kind(kernelerr.InvalidAddress))
		return 0, false
	}
	old := t.blocks[i]
	rounded := roundUp(newSize, Alignment)
	if old.size >= rounded {
		return addr, true
	}

	newAddr, ok := t.Allocate(newSize)
	if !ok {
		return 0, false
	}
	n := old.size
	if rounded < n {
		n = rounded
	}
	copy(t.arena[newAddr-Start:newAddr-Start+n], t.arena[addr-Start:addr-Start+n])
	t.Free(addr)
	return newAddr, true
}

// Calloc allocates n*size bytes and zero-fills them on success.
func (t *Table) Calloc(n, size uint32) (uint32, bool) {
	total := n * size
	addr, ok := t.Allocate(total)
	if !ok {
		return 0, false
	}
	t.zero(addr, roundUp(total, Alignment))
	return addr, true
}

// Read returns a copy of size bytes starting at addr, for test and
// diagnostic use.
func (t *Table) Read(addr, size uint32) []byte {
	off := addr - Start
	out := make([]byte, size)
	copy(out, t.arena[off:off+size])
	return out
}

// Write copies data into the arena starting at addr, for test use.
func (t *Table) Write(addr uint32, data []byte) {
	off := addr - Start
	copy(t.arena[off:off+uint32(len(data))], data)
}

// Stats summarizes the heap for the memstats command.
type Stats struct {
	TotalBytes  uint32
	UsedBytes   uint32
	FreeBytes   uint32
	NumBlocks   int
	NumAllocs   int
}

func (t *Table) Stats() Stats {
	s := Stats{TotalBytes: Size, NumBlocks: t.n}
	for i := 0; i < t.n; i++ {
		if t.blocks[i].free {
			s.FreeBytes += t.blocks[i].size
		} else {
			s.UsedBytes += t.blocks[i].size
			s.NumAllocs++
		}
	}
	return s
}

// BlockCount reports the number of live block records, for invariant tests.
func (t *Table) BlockCount() int {
	return t.n
}

// BlockAt exposes the i'th block record (addr, size, free) for invariant
// tests; callers must only use this for read-only inspection.
func (t *Table) BlockAt(i int) (addr, size uint32, free bool) {
	b := t.blocks[i]
	return b.addr, b.size, b.free
}
