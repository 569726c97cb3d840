package scheduler

import "github.com/gokacchi/kernel/internal/kernlog"

// Policy selects how the scheduler picks the next process. Per spec.md
// §4.4 and §9, all four policies dequeue the priority-ordered ready-queue
// head — Priority's ordering does the work for every one of them. The
// distinct named policies are kept for the selection functions below
// (selectRoundRobin/selectPriority/selectPriorityRR/selectFCFS) purely to
// mirror the original's structure; RoundRobin and FCFS are only
// well-defined for same-priority workloads (spec.md §9 Open Questions).
type Policy int

const (
	RoundRobin Policy = iota
	PriorityPolicy
	PriorityRR
	FCFS
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "ROUND_ROBIN"
	case PriorityPolicy:
		return "PRIORITY"
	case PriorityRR:
		return "PRIORITY_RR"
	case FCFS:
		return "FCFS"
	default:
		return "UNKNOWN"
	}
}

func (s *Scheduler) selectNext() (uint32, bool) {
	switch s.policy {
	case RoundRobin:
		return s.selectRoundRobin()
	case PriorityPolicy:
		return s.selectPriority()
	case PriorityRR:
		return s.selectPriorityRR()
	case FCFS:
		return s.selectFCFS()
	default:
		return s.selectRoundRobin()
	}
}

func (s *Scheduler) selectRoundRobin() (uint32, bool) { return s.table.DequeueReady() }
func (s *Scheduler) selectPriority() (uint32, bool)   { return s.table.DequeueReady() }
func (s *Scheduler) selectPriorityRR() (uint32, bool) { return s.table.DequeueReady() }
func (s *Scheduler) selectFCFS() (uint32, bool)       { return s.table.DequeueReady() }

// Policy returns the scheduler's current policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// SetPolicy changes the scheduler's policy.
func (s *Scheduler) SetPolicy(p Policy) { s.policy = p }

// DefaultQuantum returns the scheduler's clamped default quantum.
func (s *Scheduler) DefaultQuantum() uint32 { return s.defaultQuantum }

// SetDefaultQuantum clamps and assigns the default quantum new processes
// are created with.
func (s *Scheduler) SetDefaultQuantum(q uint32) {
	s.defaultQuantum = clamp(q, s.minQuantum, s.maxQuantum)
}

// QuantumBounds returns the configured [min,max] quantum clamp range.
func (s *Scheduler) QuantumBounds() (min, max uint32) { return s.minQuantum, s.maxQuantum }

// AgingEnabled reports whether aging is active.
func (s *Scheduler) AgingEnabled() bool { return s.agingEnabled }

// SetAgingEnabled toggles aging.
func (s *Scheduler) SetAgingEnabled(enabled bool) { s.agingEnabled = enabled }

// AgingThreshold returns the ticks of ready-wait before a boost.
func (s *Scheduler) AgingThreshold() uint32 { return s.agingThreshold }

// SetAgingThreshold sets the ticks of ready-wait before a boost.
func (s *Scheduler) SetAgingThreshold(threshold uint32) { s.agingThreshold = threshold }

// AgingInterval returns how often (in ticks) aging is checked.
func (s *Scheduler) AgingInterval() uint32 { return s.agingInterval }

// SetAgingInterval sets how often (in ticks) aging is checked.
func (s *Scheduler) SetAgingInterval(interval uint32) { s.agingInterval = interval }

// PreemptionEnabled reports whether quantum-expiry preemption is active.
func (s *Scheduler) PreemptionEnabled() bool { return s.preemptionEnabled }

// SetPreemptionEnabled toggles preemption.
func (s *Scheduler) SetPreemptionEnabled(enabled bool) { s.preemptionEnabled = enabled }

// Stats holds the scheduler's running counters (spec.md §4.4
// Configuration). Dispatches and ContextSwitches are tracked separately
// per the Design Notes' §9 observation that a no-op re-selection of the
// same process still counts as a dispatch.
type Stats struct {
	TotalTicks      uint32
	IdleTicks       uint32
	Dispatches      uint32
	ContextSwitches uint32
	Preemptions     uint32
	VoluntaryYields uint32
	AgingBoosts     uint32
}

// Stats returns a copy of the running statistics.
func (s *Scheduler) Stats() Stats { return s.stats }

// ResetStats zeroes the running statistics.
func (s *Scheduler) ResetStats() { s.stats = Stats{} }

// Option configures a Scheduler at construction time, following the
// functional-options idiom the teacher uses throughout (e.g.
// logiface.Option[E]).
type Option func(*Scheduler)

// WithQuantumBounds overrides the [min,max] quantum clamp range.
func WithQuantumBounds(min, max uint32) Option {
	return func(s *Scheduler) { s.minQuantum, s.maxQuantum = min, max }
}

// WithAging overrides the aging threshold and check interval.
func WithAging(threshold, interval uint32) Option {
	return func(s *Scheduler) { s.agingThreshold, s.agingInterval = threshold, interval }
}

// WithAgingEnabled overrides whether aging is active.
func WithAgingEnabled(enabled bool) Option {
	return func(s *Scheduler) { s.agingEnabled = enabled }
}

// WithPreemption overrides whether quantum-expiry preemption is active.
func WithPreemption(enabled bool) Option {
	return func(s *Scheduler) { s.preemptionEnabled = enabled }
}

// WithLogger overrides the scheduler's diagnostic sink.
func WithLogger(log *kernlog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}
