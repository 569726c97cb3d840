// Package stack implements the fixed-slot stack allocator: STACK_SIZE
// slabs laid out contiguously immediately after the heap arena, indexed by
// owning process id. Grounded on original_source/memory.c's
// stack_alloc/stack_free/stack_get_base/stack_get_top.
package stack

import (
	"github.com/gokacchi/kernel/internal/heap"
	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/gokacchi/kernel/internal/kernlog"
)

const (
	// Size is the per-process stack slab size (spec.md §6 STACK_SIZE, 16KiB).
	Size uint32 = 0x4000
	// MaxStacks bounds the slot table (spec.md §6 MAX_PROCESS_STACKS).
	MaxStacks = 32
	// regionStart is the first byte after the heap arena.
	regionStart = heap.Start + heap.Size
)

type slot struct {
	pid  uint32
	free bool
}

// Table is the fixed slot table, one slab per slot, indexed by slot
// position, never reordered.
type Table struct {
	slots   [MaxStacks]slot
	log     *kernlog.Logger
	lastErr *kernelerr.Error
}

// Err returns the structured detail behind the most recent failed
// operation (nil if the most recent call succeeded).
func (t *Table) Err() error {
	if t.lastErr == nil {
		return nil
	}
	return t.lastErr
}

// New constructs a Table with every slot free.
func New(log *kernlog.Logger) *Table {
	if log == nil {
		log = kernlog.Discard()
	}
	t := &Table{log: log}
	for i := range t.slots {
		t.slots[i] = slot{free: true}
	}
	return t
}

func slotBase(i int) uint32 {
	return regionStart + uint32(i)*Size
}

// Allocate binds the lowest-index free slot to pid and returns the slot's
// top address (stacks grow downward), or (0, false) on exhaustion. Unlike
// original_source/memory.c's stack_alloc, this does not zero-fill the
// slab: the slot table models descriptors only (base/top/pid/free), with
// no backing byte arena of its own to zero (heap.Table owns the only real
// arena in this port).
func (t *Table) Allocate(pid uint32) (top uint32, ok bool) {
	t.lastErr = nil
	for i := range t.slots {
		if t.slots[i].free {
			t.slots[i] = slot{pid: pid, free: false}
			return slotBase(i) + Size, true
		}
	}
	t.lastErr = kernelerr.New(kernelerr.StackExhausted, "no free stack slots")
	t.log.Error("stack_alloc failed: no free stack slots", kernlog.PID(pid), kernlog.Kind(kernelerr.StackExhausted))
	return 0, false
}

// Free releases the slot owned by pid, if any.
func (t *Table) Free(pid uint32) {
	for i := range t.slots {
		if !t.slots[i].free && t.slots[i].pid == pid {
			t.slots[i] = slot{free: true}
			return
		}
	}
}

func (t *Table) find(pid uint32) int {
	for i := range t.slots {
		if !t.slots[i].free && t.slots[i].pid == pid {
			return i
		}
	}
	return -1
}

// Base returns the slot's base address for pid, or (0, false).
func (t *Table) Base(pid uint32) (uint32, bool) {
	i := t.find(pid)
	if i < 0 {
		return 0, false
	}
	return slotBase(i), true
}

// Top returns the slot's top address for pid, or (0, false).
func (t *Table) Top(pid uint32) (uint32, bool) {
	i := t.find(pid)
	if i < 0 {
		return 0, false
	}
	return slotBase(i) + Size, true
}

// Count reports the number of currently allocated slots.
func (t *Table) Count() int {
	n := 0
	for i := range t.slots {
		if !t.slots[i].free {
			n++
		}
	}
	return n
}
