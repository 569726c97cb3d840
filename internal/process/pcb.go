// Package process implements the process control block, its state
// machine, the priority-ordered ready queue, and the IPC mailbox.
// Grounded on original_source/process.c and process.h.
package process

import "github.com/gokacchi/kernel/internal/ring"

// State is one of the process states of spec.md §3.
type State int

const (
	Ready State = iota
	Current
	Blocked
	Waiting
	Sleeping
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Current:
		return "CURRENT"
	case Blocked:
		return "BLOCKED"
	case Waiting:
		return "WAITING"
	case Sleeping:
		return "SLEEPING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Priority is one of the four priority levels of spec.md §3.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "LOW"
	case Normal:
		return "NORMAL"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParsePriority maps a name or its initial letter ("critical"/"c",
// "high"/"h", "normal"/"n", "low"/"l") to a Priority, for the REPL's
// `create` binding (spec.md §6).
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "critical", "c", "C":
		return Critical, true
	case "high", "h", "H":
		return High, true
	case "normal", "n", "N":
		return Normal, true
	case "low", "l", "L":
		return Low, true
	default:
		return 0, false
	}
}

const (
	// MaxNameLen is the bound on a process name, excluding the terminator
	// (spec.md §6).
	MaxNameLen = 31
	// MailboxCapacity is the fixed mailbox size (spec.md §6).
	MailboxCapacity = 16
	// DefaultQuantum is the default time slice in ticks (spec.md §6).
	DefaultQuantum uint32 = 100
	// flagsInterruptsEnabled is the initial context flags value
	// (spec.md §4.3 Creation: "flags = interrupts-enabled").
	flagsInterruptsEnabled uint32 = 1
)

// Context models the opaque per-process CPU register frame (spec.md §3,
// §4.4 context-switch contract). The only contract: whatever was stored at
// save-time is observable on the next restore of the same process. IP/SP
// are tracked fields solely because creation must synthesize an initial
// frame (instruction pointer = entry, stack pointer = stack top); the rest
// of the frame is opaque scratch bytes a real architecture-specific port
// would replace with actual register save/restore.
type Context struct {
	IP, SP uint32
	Flags  uint32
	Scratch [16]byte
}

// PCB is the process control block (spec.md §3).
type PCB struct {
	PID      uint32
	Name     string
	State    State
	Priority Priority

	StackBase uint32
	StackTop  uint32
	StackSize uint32

	Context Context

	Quantum   uint32
	Remaining uint32

	CPUTime  uint32
	WaitTime uint32

	CreatedAt uint32

	RequiredTime      uint32
	RemainingRequired uint32

	Mailbox       *ring.Buffer[uint32]
	WaitingForMsg bool

	ParentPID uint32
	ExitCode  int32

	Age uint32

	// prev/next are ready-queue links, expressed as PID handles (0 means
	// "none") rather than pointers, per the Design Notes' "Ownership of
	// PCBs" guidance.
	prev, next uint32

	// heapAddr is the address this PCB's own storage was allocated at,
	// via the heap table, so Terminate can release it in the spec's
	// mandated order (stack, table slot, heap storage).
	heapAddr uint32
}

func truncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	return name[:MaxNameLen]
}
