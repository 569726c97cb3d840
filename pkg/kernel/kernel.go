// Package kernel is the composition root: it owns one heap, one stack
// allocator, one process table and one scheduler, and is the single lock
// owner the Design Notes (spec.md §9, SPEC_FULL.md §5) require for any port
// of this single-threaded core to a concurrent runtime. Every exported
// method takes Kernel's mutex for its entire body; the inner packages stay
// unsynchronized, each assuming (correctly, once wrapped here) a single
// caller.
package kernel

import (
	"fmt"
	"io"
	"sync"

	"github.com/gokacchi/kernel/internal/heap"
	"github.com/gokacchi/kernel/internal/kernlog"
	"github.com/gokacchi/kernel/internal/process"
	"github.com/gokacchi/kernel/internal/scheduler"
	"github.com/gokacchi/kernel/internal/stack"
)

// Kernel is the external-facing core, driven by the REPL bindings of
// spec.md §6.
type Kernel struct {
	mu sync.Mutex

	heap   *heap.Table
	stacks *stack.Table
	procs  *process.Table
	sched  *scheduler.Scheduler
	log    *kernlog.Logger
}

// Option configures a Kernel at construction time.
type Option func(*config)

type config struct {
	log            io.Writer
	policy         scheduler.Policy
	defaultQuantum uint32
	schedOpts      []scheduler.Option
}

// WithLogWriter directs diagnostics to w instead of the default discard
// sink.
func WithLogWriter(w io.Writer) Option {
	return func(c *config) { c.log = w }
}

// WithPolicy overrides the scheduler's policy (default Priority).
func WithPolicy(p scheduler.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithDefaultQuantum overrides the default time quantum (default 100).
func WithDefaultQuantum(q uint32) Option {
	return func(c *config) { c.defaultQuantum = q }
}

// WithSchedulerOptions passes additional options through to
// scheduler.New.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *config) { c.schedOpts = append(c.schedOpts, opts...) }
}

// New constructs a Kernel with a virgin heap, a fully-free stack table, an
// empty process table, and a scheduler configured per opts.
func New(opts ...Option) *Kernel {
	c := &config{policy: scheduler.PriorityPolicy, defaultQuantum: process.DefaultQuantum}
	for _, o := range opts {
		o(c)
	}

	log := kernlog.Discard()
	if c.log != nil {
		log = kernlog.New(c.log)
	}

	h := heap.New(log)
	st := stack.New(log)
	pt := process.New(h, st, log)
	sc := scheduler.New(c.policy, c.defaultQuantum, pt, append([]scheduler.Option{scheduler.WithLogger(log)}, c.schedOpts...)...)

	return &Kernel{heap: h, stacks: st, procs: pt, sched: sc, log: log}
}

// Create spawns a process, returning its PID. entry is the simulated
// instruction-pointer value the process's initial context frame carries.
func (k *Kernel) Create(name string, entry uint32, priority process.Priority, requiredTime uint32) (uint32, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.sched.CreateProcess(name, entry, priority, requiredTime)
	if !ok {
		return 0, false
	}
	return p.PID, true
}

// Kill terminates pid.
func (k *Kernel) Kill(pid uint32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sched.Terminate(pid)
}

// Tick advances the scheduler by n ticks (n < 1 is treated as 1).
func (k *Kernel) Tick(n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		k.sched.Tick()
	}
}

// Yield voluntarily relinquishes the CPU for the current process.
func (k *Kernel) Yield() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.Yield()
}

// Send delivers word to destPID's mailbox.
func (k *Kernel) Send(destPID uint32, word uint32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.procs.Send(destPID, word)
}

// Receive pops the current process's oldest mailbox message.
func (k *Kernel) Receive() (uint32, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.procs.Receive()
}

// Info formats a human-readable dump of pid's PCB, for the `info` command.
func (k *Kernel) Info(pid uint32) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs.Get(pid)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(
		"PID %d (%s)\n  state:        %s\n  priority:     %s\n  stack:        0x%X - 0x%X (%d bytes)\n"+
			"  quantum:      %d (remaining %d)\n  cpu time:     %d\n  wait time:    %d\n  created at:   tick %d\n"+
			"  required:     %d (remaining %d)\n  mailbox:      %d message(s)\n  parent:       %d\n  age:          %d\n",
		p.PID, p.Name, p.State, p.Priority, p.StackBase, p.StackTop, p.StackSize,
		p.Quantum, p.Remaining, p.CPUTime, p.WaitTime, p.CreatedAt,
		p.RequiredTime, p.RemainingRequired, p.Mailbox.Len(), p.ParentPID, p.Age,
	), true
}

// PS formats a tabular listing of all live PCBs, for the `ps` command.
func (k *Kernel) PS() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := "PID  NAME                            STATE       PRIORITY  CPU   AGE\n"
	for _, pid := range k.procs.PIDs() {
		p, ok := k.procs.Get(pid)
		if !ok {
			continue
		}
		out += fmt.Sprintf("%-4d %-31s %-11s %-9s %-5d %-5d\n",
			p.PID, p.Name, p.State, p.Priority, p.CPUTime, p.Age)
	}
	return out
}

// MemStats returns the heap's usage statistics, for the `memstats`
// command.
func (k *Kernel) MemStats() heap.Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.heap.Stats()
}

// SchedStats returns the scheduler's running counters, for the
// `schedstats` command.
func (k *Kernel) SchedStats() scheduler.Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sched.Stats()
}

// SchedConfig formats the scheduler's current configuration, for the
// `schedconf` command.
func (k *Kernel) SchedConfig() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	min, max := k.sched.QuantumBounds()
	return fmt.Sprintf(
		"policy:            %s\ndefault quantum:   %d\nquantum bounds:    [%d, %d]\n"+
			"aging:             enabled=%t threshold=%d interval=%d\npreemption:        enabled=%t\n",
		k.sched.Policy(), k.sched.DefaultQuantum(), min, max,
		k.sched.AgingEnabled(), k.sched.AgingThreshold(), k.sched.AgingInterval(),
		k.sched.PreemptionEnabled(),
	)
}

// ProcessCount returns the number of live PCBs.
func (k *Kernel) ProcessCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.procs.Count()
}

// LastError returns the structured detail (a *kernelerr.Error, recoverable
// via errors.As) behind the most recent failed operation on any of the
// Kernel's subsystems, or nil if the most recent call to touch a subsystem
// succeeded. Process-table failures take precedence over stack failures,
// which take precedence over heap failures, since a single Kernel method
// call almost never fails more than one subsystem at once; callers after a
// specific operation's failure should call this immediately rather than
// after further calls.
func (k *Kernel) LastError() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.procs.Err(); err != nil {
		return err
	}
	if err := k.stacks.Err(); err != nil {
		return err
	}
	return k.heap.Err()
}
