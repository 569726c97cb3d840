package process

import (
	"github.com/gokacchi/kernel/internal/heap"
	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/gokacchi/kernel/internal/kernlog"
	"github.com/gokacchi/kernel/internal/ring"
	"github.com/gokacchi/kernel/internal/stack"
)

// MaxProcesses bounds the live process table (spec.md §6).
const MaxProcesses = 32

// pcbRecordSize is the nominal size, in heap bytes, a PCB's bookkeeping
// record consumes. The PCB itself lives as an ordinary Go value; this
// constant exists so creation still exercises (and can fail against) the
// heap allocator, matching spec.md §3's "heap-allocated on creation" and
// §7's "OutOfMemory during PCB/stack allocation rolls back any partial
// state" contract.
const pcbRecordSize uint32 = 128

// Table is the process table and its associated priority-ordered ready
// queue, IPC mailboxes, and current-process pointer (spec.md §4.3).
type Table struct {
	slots      [MaxProcesses]*PCB
	count      int
	nextPID    uint32
	currentPID uint32
	readyHead  uint32
	readyTail  uint32

	heap   *heap.Table
	stacks *stack.Table
	log    *kernlog.Logger

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

// New constructs an empty Table backed by the given heap and stack
// allocators.
func New(h *heap.Table, s *stack.Table, log *kernlog.Logger) *Table {
	if log == nil {
		log = kernlog.Discard()
	}
	return &Table{heap: h, stacks: s, log: log}
}

func (t *Table) findSlot(pid uint32) int {
	for i, p := range t.slots {
		if p != nil && p.PID == pid {
			return i
		}
	}
	return -1
}

func (t *Table) findFreeSlot() int {
	for i, p := range t.slots {
		if p == nil {
			return i
		}
	}
	return -1
}

// Get returns the live PCB for pid, if any.
func (t *Table) Get(pid uint32) (*PCB, bool) {
	i := t.findSlot(pid)
	if i < 0 {
		return nil, false
	}
	return t.slots[i], true
}

// Current returns the PCB currently in state Current, if any.
func (t *Table) Current() (*PCB, bool) {
	if t.currentPID == 0 {
		return nil, false
	}
	return t.Get(t.currentPID)
}

// CurrentPID returns the current process id, or 0 if none.
func (t *Table) CurrentPID() uint32 {
	return t.currentPID
}

// Count returns the number of live PCBs.
func (t *Table) Count() int {
	return t.count
}

// CountByState returns the number of live PCBs in the given state.
func (t *Table) CountByState(s State) int {
	n := 0
	for _, p := range t.slots {
		if p != nil && p.State == s {
			n++
		}
	}
	return n
}

// PIDs returns every live process id, in table order, for `ps`.
func (t *Table) PIDs() []uint32 {
	out := make([]uint32, 0, t.count)
	for _, p := range t.slots {
		if p != nil {
			out = append(out, p.PID)
		}
	}
	return out
}

// Create spawns a new PCB per spec.md §4.3, with priority and an optional
// required CPU time (0 meaning unbounded). entry is the initial
// instruction-pointer value synthesized into the process's context frame.
// tick is the current global scheduler tick, recorded as the creation
// time. Failure of any resource allocation rolls back fully and returns
// (nil, false); the PID counter is only advanced on success (see
// SPEC_FULL.md's Open Question decision).
func (t *Table) Create(name string, entry uint32, priority Priority, requiredTime, quantum, tick uint32) (*PCB, bool) {
	t.lastErr = nil
	if t.count >= MaxProcesses {
		t.lastErr = kernelerr.New(kernelerr.TableFull, "process table full")
		t.log.Warn("process table full", kernlog.Str("name", name), kernlog.Kind(kernelerr.TableFull))
		return nil, false
	}

	addr, ok := t.heap.Allocate(pcbRecordSize)
	if !ok {
		t.lastErr = kernelerr.New(kernelerr.OutOfMemory, "process creation: no heap space for PCB record")
		t.log.Error("process creation failed: out of memory", kernlog.Str("name", name), kernlog.Kind(kernelerr.OutOfMemory))
		return nil, false
	}

	pid := t.nextPID + 1

	top, ok := t.stacks.Allocate(pid)
	if !ok {
		t.heap.Free(addr)
		t.lastErr = kernelerr.New(kernelerr.StackExhausted, "process creation: no free stack slot")
		t.log.Error("process creation failed: stack exhausted", kernlog.Str("name", name), kernlog.Kind(kernelerr.StackExhausted))
		return nil, false
	}
	base, _ := t.stacks.Base(pid)

	slotIdx := t.findFreeSlot()
	if slotIdx < 0 {
		// unreachable: count < MaxProcesses guarantees a free slot
		t.stacks.Free(pid)
		t.heap.Free(addr)
		return nil, false
	}

	p := &PCB{
		PID:               pid,
		Name:              truncateName(name),
		Priority:          priority,
		StackBase:         base,
		StackTop:          top,
		StackSize:         stack.Size,
		Context:           Context{IP: entry, SP: top, Flags: flagsInterruptsEnabled},
		Quantum:           quantum,
		Remaining:         quantum,
		CreatedAt:         tick,
		RequiredTime:      requiredTime,
		RemainingRequired: requiredTime,
		Mailbox:           ring.New[uint32](MailboxCapacity),
		ParentPID:         t.currentPID,
		heapAddr:          addr,
	}

	t.slots[slotIdx] = p
	t.count++
	t.nextPID = pid

	t.insertReady(pid)

	t.log.Info("process created",
		kernlog.PID(pid), kernlog.Str("name", p.Name), kernlog.Int("priority", int(priority)))

	return p, true
}

// Terminate destroys the PCB for pid: unlinks it from the ready queue if
// present, clears the current pointer if it was current, releases its
// stack slot, removes its table entry, and frees its heap storage, in
// that order (spec.md §4.3 Termination).
func (t *Table) Terminate(pid uint32) bool {
	t.lastErr = nil
	i := t.findSlot(pid)
	if i < 0 {
		t.lastErr = kernelerr.New(kernelerr.UnknownProcess, "terminate of unknown pid")
		t.log.Warn("terminate: unknown process", kernlog.PID(pid), kernlog.Kind(kernelerr.UnknownProcess))
		return false
	}
	p := t.slots[i]

	if p.State == Ready {
		t.removeReady(pid)
	}
	if t.currentPID == pid {
		t.currentPID = 0
	}
	p.State = Terminated

	t.stacks.Free(pid)
	t.slots[i] = nil
	t.count--
	t.heap.Free(p.heapAddr)

	t.log.Info("process terminated", kernlog.PID(pid))
	return true
}

// SetState transitions pid to newState and reconciles ready-queue
// membership and the current-process pointer (spec.md §4.3 State
// transitions). Making pid Current while another process is Current
// returns that other process to Ready first.
func (t *Table) SetState(pid uint32, newState State) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	if newState == Current && t.currentPID != 0 && t.currentPID != pid {
		t.SetState(t.currentPID, Ready)
	}
	wasReady := p.State == Ready
	wasCurrent := p.State == Current

	p.State = newState

	if wasReady && newState != Ready {
		t.removeReady(pid)
	}
	if !wasReady && newState == Ready {
		t.insertReady(pid)
	}

	if newState == Current {
		t.currentPID = pid
	} else if wasCurrent {
		t.currentPID = 0
	}
	return true
}

// SetPriority updates pid's priority, re-inserting it into the ready
// queue if it is currently queued (spec.md §4.3 Priority management).
func (t *Table) SetPriority(pid uint32, priority Priority) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	inReady := p.State == Ready
	if inReady {
		t.removeReady(pid)
	}
	p.Priority = priority
	if inReady {
		t.insertReady(pid)
	}
	return true
}

// BoostPriority raises pid's priority by one step, unless it is already
// Critical.
func (t *Table) BoostPriority(pid uint32) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	if p.Priority >= Critical {
		return false
	}
	return t.SetPriority(pid, p.Priority+1)
}

// ResetAge zeroes pid's aging counter.
func (t *Table) ResetAge(pid uint32) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	p.Age = 0
	return true
}

// Stats summarizes the table for the `ps`/`schedstats` style commands.
type Stats struct {
	Total      int
	Ready      int
	Current    int
	Blocked    int
	Terminated int
}

func (t *Table) Stats() Stats {
	return Stats{
		Total:   t.count,
		Ready:   t.CountByState(Ready),
		Current: t.CountByState(Current),
		Blocked: t.CountByState(Blocked) + t.CountByState(Sleeping) + t.CountByState(Waiting),
	}
}
