package process

// insertReady walks from the head and places pid before the first PCB of
// strictly lower priority, preserving ordering with respect to
// equal-priority predecessors (FIFO ties), or appends at the tail if none
// found. Grounded on original_source/process.c's
// process_add_to_ready_queue.
func (t *Table) insertReady(pid uint32) {
	p, ok := t.Get(pid)
	if !ok {
		return
	}
	p.State = Ready

	if t.readyHead == 0 {
		t.readyHead, t.readyTail = pid, pid
		p.prev, p.next = 0, 0
		return
	}

	head, _ := t.Get(t.readyHead)
	if p.Priority > head.Priority {
		p.next = t.readyHead
		p.prev = 0
		head.prev = pid
		t.readyHead = pid
		return
	}

	cur := head
	for cur.next != 0 {
		nxt, _ := t.Get(cur.next)
		if nxt.Priority >= p.Priority {
			cur = nxt
			continue
		}
		break
	}

	p.next = cur.next
	p.prev = cur.PID
	if cur.next != 0 {
		if n, ok := t.Get(cur.next); ok {
			n.prev = pid
		}
	} else {
		t.readyTail = pid
	}
	cur.next = pid
}

// removeReady unlinks pid from the ready queue in O(1) via its prev/next
// handles.
func (t *Table) removeReady(pid uint32) {
	p, ok := t.Get(pid)
	if !ok {
		return
	}

	if p.prev != 0 {
		if prev, ok := t.Get(p.prev); ok {
			prev.next = p.next
		}
	} else {
		t.readyHead = p.next
	}

	if p.next != 0 {
		if next, ok := t.Get(p.next); ok {
			next.prev = p.prev
		}
	} else {
		t.readyTail = p.prev
	}

	p.prev, p.next = 0, 0
}

// EnqueueReady transitions pid to Ready and inserts it into the priority-
// ordered ready queue. It is the primitive the scheduler drives directly
// (spec.md §4.3's "process table exports enqueue/dequeue primitives").
func (t *Table) EnqueueReady(pid uint32) bool {
	p, ok := t.Get(pid)
	if !ok || p.State == Ready {
		return false
	}
	t.insertReady(pid)
	return true
}

// DequeueReady always removes and returns the ready-queue head.
func (t *Table) DequeueReady() (uint32, bool) {
	if t.readyHead == 0 {
		return 0, false
	}
	pid := t.readyHead
	t.removeReady(pid)
	return pid, true
}

// ReadySnapshot returns the PIDs currently in the ready queue, head to
// tail, as a stable copy callers may iterate over while mutating priority
// or age (used by the scheduler's aging pass).
func (t *Table) ReadySnapshot() []uint32 {
	out := make([]uint32, 0, t.CountByState(Ready))
	for pid := t.readyHead; pid != 0; {
		out = append(out, pid)
		p, ok := t.Get(pid)
		if !ok {
			break
		}
		pid = p.next
	}
	return out
}
