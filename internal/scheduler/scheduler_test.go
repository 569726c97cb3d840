package scheduler

import (
	"testing"

	"github.com/gokacchi/kernel/internal/heap"
	"github.com/gokacchi/kernel/internal/process"
	"github.com/gokacchi/kernel/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, opts ...Option) (*Scheduler, *process.Table) {
	t.Helper()
	tbl := process.New(heap.New(nil), stack.New(nil), nil)
	return New(PriorityPolicy, 300, tbl, opts...), tbl
}

func TestPriorityPreemptionOnArrival(t *testing.T) {
	s, tbl := newScheduler(t)

	p1, ok := s.CreateProcess("p1", 0, process.Normal, 300)
	require.True(t, ok)
	s.Schedule()
	require.Equal(t, p1.PID, tbl.CurrentPID())

	for i := 0; i < 50; i++ {
		s.Tick()
	}
	require.Equal(t, uint32(50), p1.CPUTime)

	p2, ok := s.CreateProcess("p2", 0, process.High, 100)
	require.True(t, ok)
	assert.Equal(t, p2.PID, tbl.CurrentPID(), "a higher-priority arrival must preempt immediately")

	s.Tick()
	assert.Equal(t, p2.PID, tbl.CurrentPID())

	for i := 0; i < 100; i++ {
		s.Tick()
		if tbl.CurrentPID() == p1.PID {
			break
		}
	}

	assert.Equal(t, uint32(100), p2.CPUTime)
	assert.Equal(t, p1.PID, tbl.CurrentPID(), "p1 must resume once p2 completes its required time")

	for tbl.CurrentPID() == p1.PID && p1.CPUTime < 300 {
		s.Tick()
	}
	assert.Equal(t, uint32(300), p1.CPUTime)
}

func TestAgingBoostsStarvedLowPriorityProcess(t *testing.T) {
	s, tbl := newScheduler(t, WithAging(100, 50))

	_, ok := s.CreateProcess("critical", 0, process.Critical, 10000)
	require.True(t, ok)
	low, ok := s.CreateProcess("low", 0, process.Low, 200)
	require.True(t, ok)
	s.Schedule()

	for i := 0; i < 150; i++ {
		s.Tick()
	}

	boosted, ok := tbl.Get(low.PID)
	require.True(t, ok)
	assert.Greater(t, boosted.Priority, process.Low, "low-priority process must have been boosted at least once")
	assert.Greater(t, s.Stats().AgingBoosts, uint32(0))
}

func TestQuantumIsClampedToBounds(t *testing.T) {
	s, _ := newScheduler(t, WithQuantumBounds(10, 1000))

	s.SetDefaultQuantum(1)
	assert.Equal(t, uint32(10), s.DefaultQuantum())

	s.SetDefaultQuantum(5000)
	assert.Equal(t, uint32(1000), s.DefaultQuantum())
}

func TestNewClampsDefaultQuantumAtConstruction(t *testing.T) {
	tbl := process.New(heap.New(nil), stack.New(nil), nil)
	s := New(PriorityPolicy, 5000, tbl, WithQuantumBounds(10, 1000))
	assert.Equal(t, uint32(1000), s.DefaultQuantum())
}

func TestYieldWithoutCompetitionRedispatchesSameProcess(t *testing.T) {
	s, tbl := newScheduler(t)

	p, ok := s.CreateProcess("solo", 0, process.Normal, 0)
	require.True(t, ok)
	s.Schedule()
	require.Equal(t, p.PID, tbl.CurrentPID())

	before := s.Stats()
	s.Yield()
	after := s.Stats()

	assert.Equal(t, p.PID, tbl.CurrentPID())
	assert.Equal(t, before.Dispatches+1, after.Dispatches, "re-selecting the same process still counts as a dispatch")
	assert.Equal(t, before.ContextSwitches, after.ContextSwitches, "no context switch occurs when the same process is re-selected")
}

func TestContextSwitchRoundTripPreservesState(t *testing.T) {
	s, tbl := newScheduler(t)

	a, ok := s.CreateProcess("a", 111, process.Normal, 0)
	require.True(t, ok)
	s.Schedule()
	require.Equal(t, a.PID, tbl.CurrentPID())

	b, ok := s.CreateProcess("b", 222, process.Normal, 0)
	require.True(t, ok)

	// a is the dispatched process, so its live register state lives in
	// s.cpu, not a.Context directly — mutate through CPU() the way
	// simulated execution would.
	s.CPU().Scratch[0] = 0xAB
	s.switchContext(a.PID, b.PID)
	assert.Equal(t, uint8(0xAB), a.Context.Scratch[0], "switching away from a must save its live register state")

	s.switchContext(b.PID, a.PID)
	assert.Equal(t, uint8(0xAB), s.CPU().Scratch[0], "restoring a's context must observe what was saved for it")
}

func TestRequiredTimeZeroRunsUnbounded(t *testing.T) {
	s, tbl := newScheduler(t)
	p, ok := s.CreateProcess("unbounded", 0, process.Normal, 0)
	require.True(t, ok)
	s.Schedule()

	for i := 0; i < 500; i++ {
		s.Tick()
	}
	_, found := tbl.Get(p.PID)
	assert.True(t, found, "a process with RequiredTime=0 must never auto-terminate")
}
