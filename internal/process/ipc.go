package process

import (
	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/gokacchi/kernel/internal/kernlog"
)

// Send delivers word to destPID's mailbox (spec.md §4.3 IPC mailbox). It
// fails if destPID is unknown or its mailbox already holds
// MailboxCapacity messages. If the destination was blocked waiting for a
// message, it is unblocked.
func (t *Table) Send(destPID uint32, word uint32) bool {
	t.lastErr = nil
	dest, ok := t.Get(destPID)
	if !ok {
		t.lastErr = kernelerr.New(kernelerr.UnknownProcess, "ipc send to unknown pid")
		t.log.Warn("ipc send: destination process not found", kernlog.PID(destPID), kernlog.Kind(kernelerr.UnknownProcess))
		return false
	}
	if dest.Mailbox.Full() {
		t.lastErr = kernelerr.New(kernelerr.MailboxFull, "ipc send: mailbox full")
		t.log.Warn("ipc send: message queue full", kernlog.PID(destPID), kernlog.Kind(kernelerr.MailboxFull))
		return false
	}
	dest.Mailbox.Push(word)

	if dest.WaitingForMsg {
		dest.WaitingForMsg = false
		t.SetState(destPID, Ready)
	}
	return true
}

// Receive pops the current process's oldest mailbox message. If the
// mailbox is empty, it sets waiting_for_msg, blocks the current process,
// and reports failure (spec.md §4.3).
func (t *Table) Receive() (uint32, bool) {
	t.lastErr = nil
	cur, ok := t.Current()
	if !ok {
		t.lastErr = kernelerr.New(kernelerr.UnknownProcess, "ipc receive: no current process")
		t.log.Warn("ipc receive: no current process", kernlog.Kind(kernelerr.UnknownProcess))
		return 0, false
	}
	if msg, ok := cur.Mailbox.Pop(); ok {
		return msg, true
	}

	cur.WaitingForMsg = true
	t.SetState(cur.PID, Blocked)
	t.lastErr = kernelerr.New(kernelerr.NoMessage, "ipc receive: mailbox empty")
	t.log.Info("ipc receive: no message, blocking", kernlog.PID(cur.PID), kernlog.Kind(kernelerr.NoMessage))
	return 0, false
}

// HasMessage is a non-blocking predicate over pid's mailbox.
func (t *Table) HasMessage(pid uint32) bool {
	p, ok := t.Get(pid)
	if !ok {
		return false
	}
	return p.Mailbox.Len() > 0
}
