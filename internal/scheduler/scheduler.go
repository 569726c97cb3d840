// Package scheduler implements the tick-driven priority-preemptive
// scheduler: selection by policy, time-slice accounting, preemption on
// quantum expiry and on higher-priority arrival, aging, required-time
// completion, and the opaque context-switch contract. Grounded on
// original_source/scheduler.c and scheduler.h.
package scheduler

import (
	"github.com/gokacchi/kernel/internal/kernlog"
	"github.com/gokacchi/kernel/internal/process"
)

// Scheduler owns no allocators of its own; it drives a *process.Table's
// enqueue/dequeue primitives and current-process pointer (spec.md §4.4).
type Scheduler struct {
	table *process.Table
	log   *kernlog.Logger

	// cpu is the single simulated hardware register file: it holds the
	// live register state of whichever process is currently dispatched.
	// Code simulating execution on behalf of the current process (e.g. an
	// interrupt handler touching registers) must mutate through CPU(),
	// never through a PCB's Context field directly — the PCB's Context is
	// only the saved/backing copy, authoritative while that process is
	// *not* the one running. switchContext flushes cpu into the outgoing
	// PCB's Context before loading the incoming PCB's Context into cpu,
	// so a process's frame always survives a switch-away-and-back.
	cpu process.Context

	policy         Policy
	defaultQuantum uint32
	minQuantum     uint32
	maxQuantum     uint32

	agingEnabled   bool
	agingThreshold uint32
	agingInterval  uint32

	preemptionEnabled bool

	currentTick uint32

	stats Stats
}

// New constructs a Scheduler over table, applying opts after the defaults
// (spec.md §6: min=10, max=1000, aging threshold=100, interval=50).
func New(policy Policy, defaultQuantum uint32, table *process.Table, opts ...Option) *Scheduler {
	s := &Scheduler{
		table:             table,
		log:               kernlog.Discard(),
		policy:            policy,
		minQuantum:        10,
		maxQuantum:        1000,
		agingEnabled:      true,
		agingThreshold:    100,
		agingInterval:     50,
		preemptionEnabled: true,
	}
	for _, o := range opts {
		o(s)
	}
	s.defaultQuantum = clamp(defaultQuantum, s.minQuantum, s.maxQuantum)
	return s
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CreateProcess spawns a process through the underlying table using the
// scheduler's clamped default quantum, then — per spec.md §4.4's
// "Preemption on arrival" — triggers Schedule if the newcomer outranks the
// currently-running process and preemption is enabled, so it is dispatched
// promptly rather than waiting for the next tick.
func (s *Scheduler) CreateProcess(name string, entry uint32, priority process.Priority, requiredTime uint32) (*process.PCB, bool) {
	cur, hasCur := s.table.Current()

	pcb, ok := s.table.Create(name, entry, priority, requiredTime, s.defaultQuantum, s.currentTick)
	if !ok {
		return nil, false
	}

	if s.preemptionEnabled && hasCur && priority > cur.Priority {
		s.Schedule()
	}
	return pcb, true
}

// Terminate destroys pid via the underlying table and, if it was the
// process that just ran, dispatches a replacement.
func (s *Scheduler) Terminate(pid uint32) bool {
	wasCurrent := s.table.CurrentPID() == pid
	ok := s.table.Terminate(pid)
	if ok && wasCurrent {
		s.Schedule()
	}
	return ok
}

// Tick advances simulated time by one unit (spec.md §4.4 Tick algorithm).
// Every ready PCB's age advances once per tick regardless of what happens to
// the current process; the periodic aging pass (every agingInterval ticks)
// only evaluates the threshold and performs the boost, so the age recorded
// on a PCB always reflects real ticks waited rather than check counts.
func (s *Scheduler) Tick() {
	s.currentTick++
	s.stats.TotalTicks++

	defer func() {
		if s.agingEnabled {
			s.ageReadyProcesses()
			if s.agingInterval > 0 && s.currentTick%s.agingInterval == 0 {
				s.checkAging()
			}
		}
	}()

	cur, ok := s.table.Current()
	if !ok {
		s.stats.IdleTicks++
		s.Schedule()
		return
	}

	cur.CPUTime++
	if cur.RequiredTime > 0 {
		if cur.CPUTime >= cur.RequiredTime {
			s.log.Info("process completed required time",
				kernlog.PID(cur.PID), kernlog.Int("cpu_time", int(cur.CPUTime)))
			s.table.Terminate(cur.PID)
			s.Schedule()
			return
		}
		cur.RemainingRequired = cur.RequiredTime - cur.CPUTime
	}

	if cur.Remaining > 0 {
		cur.Remaining--
	}
	if s.preemptionEnabled && cur.Remaining == 0 {
		s.stats.Preemptions++
		s.log.Info("time quantum expired", kernlog.PID(cur.PID))
		s.Schedule()
	}
}

// Schedule makes a dispatch decision (spec.md §4.4 Schedule algorithm). If
// a current process exists and is still Current, it is returned to Ready
// (re-inserted by priority). The next process is selected per policy; if
// none is available, Schedule is a no-op (the re-insertion above
// guarantees this only happens when no process was Current and none is
// Ready; blocked processes may still exist). Selecting the same PCB that just ran counts as a dispatch but
// performs no context switch.
func (s *Scheduler) Schedule() {
	curPID := s.table.CurrentPID()
	if curPID != 0 {
		if p, ok := s.table.Get(curPID); ok && p.State == process.Current {
			s.table.SetState(curPID, process.Ready)
		}
	}

	nextPID, ok := s.selectNext()
	if !ok {
		return
	}

	next, ok := s.table.Get(nextPID)
	if !ok {
		return
	}

	if nextPID != curPID {
		s.switchContext(curPID, nextPID)
		s.stats.ContextSwitches++
	}

	next.Remaining = next.Quantum
	s.table.SetState(nextPID, process.Current)
	s.stats.Dispatches++
}

// Yield voluntarily relinquishes the CPU (spec.md §4.4 Yield).
func (s *Scheduler) Yield() {
	s.stats.VoluntaryYields++
	s.Schedule()
}

// CPU returns the live register file of whichever process is currently
// dispatched. Anything simulating execution on the current process's
// behalf must mutate registers through this, not through a PCB's Context
// field: only the current process's frame lives in cpu at any given
// moment, and switchContext is what moves it back into the PCB's Context
// when that process stops being current.
func (s *Scheduler) CPU() *process.Context {
	return &s.cpu
}

// switchContext implements the opaque context-switch contract: save
// from's frame (if any), restore to's (spec.md §4.4).
func (s *Scheduler) switchContext(fromPID, toPID uint32) {
	if fromPID != 0 {
		if p, ok := s.table.Get(fromPID); ok {
			p.Context = s.cpu
		}
	}
	if toPID != 0 {
		if p, ok := s.table.Get(toPID); ok {
			s.cpu = p.Context
		}
	}
}

// ageReadyProcesses increments the aging counter of every ready PCB by one
// tick (spec.md §4.4 Aging: "increment its age").
func (s *Scheduler) ageReadyProcesses() {
	for _, pid := range s.table.ReadySnapshot() {
		if p, ok := s.table.Get(pid); ok {
			p.Age++
		}
	}
}

// checkAging evaluates every ready PCB's age against the threshold,
// boosting and resetting any that crossed it (spec.md §4.4 Aging). Run
// periodically, every agingInterval ticks.
func (s *Scheduler) checkAging() {
	for _, pid := range s.table.ReadySnapshot() {
		p, ok := s.table.Get(pid)
		if !ok {
			continue
		}
		if p.Age >= s.agingThreshold && p.Priority < process.Critical {
			s.table.BoostPriority(pid)
			s.table.ResetAge(pid)
			s.stats.AgingBoosts++
			s.log.Info("aging: boosted priority", kernlog.PID(pid))
		}
	}
}

// SetProcessQuantum clamps quantum to [min,max] and assigns it to pid.
func (s *Scheduler) SetProcessQuantum(pid uint32, quantum uint32) bool {
	p, ok := s.table.Get(pid)
	if !ok {
		return false
	}
	p.Quantum = clamp(quantum, s.minQuantum, s.maxQuantum)
	return true
}

// ProcessQuantum returns pid's configured quantum.
func (s *Scheduler) ProcessQuantum(pid uint32) (uint32, bool) {
	p, ok := s.table.Get(pid)
	if !ok {
		return 0, false
	}
	return p.Quantum, true
}

// CurrentTick returns the scheduler's global tick counter.
func (s *Scheduler) CurrentTick() uint32 { return s.currentTick }
