// Package priority implements the Priority Queue scheduling policy: an
// aging priority ladder layered over round-robin semantics. The ready set
// is partitioned into FIFO queues, one per priority level; dispatch always
// picks from the highest non-empty level.
package priority

import (
	"procsched/internal/pcb"
	"procsched/internal/sched"
)

const maxLevels = 128 // priority is an int8; levels 0..127 cover every non-negative priority a Fork can request

// PriorityQueue is a Scheduler implementing priority-ladder dispatch with aging.
type PriorityQueue struct {
	levels  [maxLevels][]*pcb.PCB // FIFO within each level, highest index dispatched first
	waiting []*pcb.PCB
	current *pcb.PCB

	nextPid sched.Pid

	timeslice        int
	minimumRemaining int
	remaining        int
	sleepBudget      int
	panicked         bool
}

// New creates a PriorityQueue scheduler. Pid 1 is installed at priority 0
// on the first Fork.
func New(timeslice, minimumRemaining int) *PriorityQueue {
	return &PriorityQueue{
		waiting:          []*pcb.PCB{},
		nextPid:          1,
		timeslice:        timeslice,
		minimumRemaining: minimumRemaining,
		remaining:        timeslice,
	}
}

func clampLevel(p int8) int8 {
	if p < 0 {
		return 0
	}
	if int(p) >= maxLevels {
		return maxLevels - 1
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (q *PriorityQueue) pushReady(p *pcb.PCB) {
	lvl := clampLevel(p.Priority)
	q.levels[lvl] = append(q.levels[lvl], p)
}

// pushReadyFront enqueues p at the front of its level, used for the RR
// "continuation" re-dispatch so it doesn't count as a fresh arrival behind
// same-level peers.
func (q *PriorityQueue) pushReadyFront(p *pcb.PCB) {
	lvl := clampLevel(p.Priority)
	q.levels[lvl] = append([]*pcb.PCB{p}, q.levels[lvl]...)
}

func (q *PriorityQueue) readyEmpty() bool {
	for _, lvl := range q.levels {
		if len(lvl) > 0 {
			return false
		}
	}
	return true
}

func (q *PriorityQueue) readyLen() int {
	n := 0
	for _, lvl := range q.levels {
		n += len(lvl)
	}
	return n
}

// popHighest removes and returns the front of the highest non-empty level.
func (q *PriorityQueue) popHighest() *pcb.PCB {
	for lvl := maxLevels - 1; lvl >= 0; lvl-- {
		if len(q.levels[lvl]) > 0 {
			p := q.levels[lvl][0]
			q.levels[lvl] = q.levels[lvl][1:]
			return p
		}
	}
	return nil
}

func (q *PriorityQueue) forEachReady(fn func(*pcb.PCB)) {
	for _, lvl := range q.levels {
		for _, p := range lvl {
			fn(p)
		}
	}
}

// age bumps priority up by one, capped at MaxPriority. Applied whenever a
// process transitions into Ready from Waiting, or yields voluntarily.
func age(p *pcb.PCB) {
	if p.Priority < p.MaxPriority {
		p.Priority++
	}
}

// expireDecay decreases priority by one on timeslice expiry, floored at 0.
func expireDecay(p *pcb.PCB) {
	if p.Priority > 0 {
		p.Priority--
	}
}

// bookkeep applies a uniform time charge to every process in the ready
// levels and the waiting queue, mirroring roundrobin's shared arithmetic.
func (q *PriorityQueue) bookkeep(units int) {
	q.forEachReady(func(p *pcb.PCB) { p.Timings.Total += units })
	for _, p := range q.waiting {
		p.Timings.Total += units
		if p.IsEventWaiting() {
			continue
		}
		p.SleepRemaining = maxInt(0, p.SleepRemaining-units)
	}
}

// minSleepRemaining returns the smallest SleepRemaining among the
// non-event waiters in waiting, mirroring the original scheduler's
// waiting_queue.sort_by_key(sleep) before it reads the front entry — done
// here as a scan instead of an in-place sort so waiting-queue insertion
// order survives for List().
func minSleepRemaining(waiting []*pcb.PCB) (int, bool) {
	amount := 0
	found := false
	for _, p := range waiting {
		if p.IsEventWaiting() {
			continue
		}
		if !found || p.SleepRemaining < amount {
			amount = p.SleepRemaining
			found = true
		}
	}
	return amount, found
}

func (q *PriorityQueue) wake() {
	kept := q.waiting[:0:0]
	for _, p := range q.waiting {
		if p.IsEventWaiting() {
			kept = append(kept, p)
			continue
		}
		if p.SleepRemaining <= 0 {
			age(p)
			p.State = sched.ReadyState()
			q.pushReady(p)
			continue
		}
		kept = append(kept, p)
	}
	q.waiting = kept
}

// reschedule re-queues the just-stopped current process, applying the RR
// continuation rule within its (already aged) priority level.
func (q *PriorityQueue) reschedule(remaining int, p *pcb.PCB) {
	if remaining >= q.minimumRemaining {
		q.pushReadyFront(p)
		q.remaining = remaining
	} else {
		q.pushReady(p)
		q.remaining = q.timeslice
	}
}

// Next implements sched.Scheduler.
func (q *PriorityQueue) Next() sched.SchedulingDecision {
	if q.panicked {
		return sched.PanicDecision()
	}

	if q.sleepBudget != 0 {
		amount := q.sleepBudget
		q.sleepBudget = 0
		q.bookkeep(amount)
	}

	q.wake()

	if q.current == nil && q.readyEmpty() && len(q.waiting) != 0 {
		amount, ok := minSleepRemaining(q.waiting)
		if !ok || amount == 0 {
			return sched.DeadlockDecision()
		}
		q.sleepBudget = amount
		return sched.SleepDecision(amount)
	}

	if q.current != nil {
		return sched.RunDecision(q.current.Pid, q.remaining)
	}

	if !q.readyEmpty() {
		p := q.popHighest()
		p.State = sched.RunningState()
		q.current = p
		return sched.RunDecision(p.Pid, q.remaining)
	}

	return sched.DoneDecision()
}

// Stop implements sched.Scheduler.
func (q *PriorityQueue) Stop(reason sched.StopReason) sched.SyscallResult {
	if q.panicked {
		return sched.NoRunningProcess()
	}
	if q.current == nil && (reason.Expired || q.nextPid != 1 || reason.Syscall.Kind != sched.Fork) {
		return sched.NoRunningProcess()
	}
	if reason.Expired {
		return q.stopExpired()
	}
	return q.stopSyscall(reason.Syscall, reason.Remaining)
}

func (q *PriorityQueue) stopSyscall(call sched.Syscall, remaining int) sched.SyscallResult {
	switch call.Kind {
	case sched.Fork:
		child := pcb.New(q.nextPid, call.Priority)
		child.MaxPriority = call.Priority
		q.nextPid++

		if q.current != nil {
			cur := q.current
			q.current = nil
			elapsed := q.remaining - remaining
			q.bookkeep(elapsed)
			q.bookkeep(1)
			q.wake()

			cur.Timings.Execution += elapsed
			cur.Timings.Total += elapsed + 1
			cur.Timings.SyscallCount++
			cur.State = sched.ReadyState()
			age(cur)

			q.pushReady(child)
			q.reschedule(remaining, cur)
		} else {
			q.pushReady(child)
			q.wake()
		}
		return sched.PidResult(child.Pid)

	case sched.Sleep:
		cur := q.current
		q.current = nil
		elapsed := q.remaining - remaining
		q.bookkeep(elapsed)
		q.bookkeep(1)
		q.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.SleepState()
		cur.SleepRemaining = call.Units

		q.waiting = append(q.waiting, cur)
		q.remaining = q.timeslice
		q.wake()
		return sched.Success()

	case sched.Wait:
		cur := q.current
		q.current = nil
		elapsed := q.remaining - remaining
		q.bookkeep(elapsed)
		q.bookkeep(1)
		q.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.EventState(call.Event)

		q.waiting = append(q.waiting, cur)
		q.remaining = q.timeslice
		return sched.Success()

	case sched.Signal:
		cur := q.current
		q.current = nil
		elapsed := q.remaining - remaining
		q.bookkeep(elapsed)
		q.bookkeep(1)

		kept := q.waiting[:0:0]
		for _, p := range q.waiting {
			if p.IsEventWaiting() && *p.State.Event == call.Event {
				age(p)
				p.State = sched.ReadyState()
				q.pushReady(p)
				continue
			}
			kept = append(kept, p)
		}
		q.waiting = kept
		q.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.ReadyState()
		age(cur)

		q.reschedule(remaining, cur)
		return sched.Success()

	case sched.Empty:
		cur := q.current
		q.current = nil
		elapsed := q.remaining - remaining
		q.bookkeep(elapsed)
		q.bookkeep(1)
		q.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.ReadyState()
		age(cur)

		q.reschedule(remaining, cur)
		return sched.Success()

	case sched.Exit:
		cur := q.current
		if cur.Pid == 1 && (!q.readyEmpty() || len(q.waiting) != 0) {
			q.panicked = true
		}
		q.current = nil
		elapsed := q.remaining - remaining
		q.bookkeep(elapsed)
		q.bookkeep(1)
		q.wake()

		q.remaining = q.timeslice
		return sched.Success()
	}
	return sched.Success()
}

func (q *PriorityQueue) stopExpired() sched.SyscallResult {
	p := q.current
	elapsed := q.remaining

	p.Timings.Execution += elapsed
	p.Timings.Total += elapsed
	p.State = sched.ReadyState()
	expireDecay(p)

	q.bookkeep(elapsed)
	q.wake()

	q.remaining = q.timeslice
	q.pushReady(p)
	q.current = nil
	return sched.Success()
}

// List implements sched.Scheduler.
func (q *PriorityQueue) List() []sched.Process {
	out := make([]sched.Process, 0, q.readyLen()+len(q.waiting)+1)
	if q.current != nil {
		out = append(out, pcb.View{P: q.current})
	}
	for lvl := maxLevels - 1; lvl >= 0; lvl-- {
		for _, p := range q.levels[lvl] {
			out = append(out, pcb.View{P: p})
		}
	}
	for _, p := range q.waiting {
		out = append(out, pcb.View{P: p})
	}
	return out
}
