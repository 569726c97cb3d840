package kernel

import (
	"errors"
	"testing"

	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/gokacchi/kernel/internal/process"
	"github.com/gokacchi/kernel/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTickAndInfo(t *testing.T) {
	k := New()
	pid, ok := k.Create("worker", 0, process.Normal, 10)
	require.True(t, ok)

	k.Tick(1)
	info, ok := k.Info(pid)
	require.True(t, ok)
	assert.Contains(t, info, "worker")
}

func TestKillRemovesProcess(t *testing.T) {
	k := New()
	pid, _ := k.Create("temp", 0, process.Normal, 0)
	assert.True(t, k.Kill(pid))
	assert.Equal(t, 0, k.ProcessCount())
}

func TestSendReceiveRoundTrip(t *testing.T) {
	k := New()
	pid, _ := k.Create("mailbox-owner", 0, process.Normal, 0)
	k.Tick(1) // dispatch it to Current

	require.True(t, k.Send(pid, 99))
	word, ok := k.Receive()
	require.True(t, ok)
	assert.Equal(t, uint32(99), word)
}

func TestMemStatsReflectAllocations(t *testing.T) {
	k := New()
	before := k.MemStats()
	_, ok := k.Create("a", 0, process.Normal, 0)
	require.True(t, ok)
	after := k.MemStats()

	assert.Greater(t, after.UsedBytes, before.UsedBytes)
}

func TestSchedConfigReportsPolicy(t *testing.T) {
	k := New(WithPolicy(scheduler.FCFS))
	assert.Contains(t, k.SchedConfig(), "policy:")
}

func TestLastErrorSurfacesUnknownProcessKill(t *testing.T) {
	k := New()
	assert.False(t, k.Kill(999))

	var kerr *kernelerr.Error
	require.True(t, errors.As(k.LastError(), &kerr))
	assert.Equal(t, kernelerr.UnknownProcess, kerr.Kind)
}
