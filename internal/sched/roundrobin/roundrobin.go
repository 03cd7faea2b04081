// Package roundrobin implements the plain FIFO round-robin scheduling
// policy: every ready process gets timeslice units of CPU time before
// being preempted to the back of the queue.
package roundrobin

import (
	"procsched/internal/pcb"
	"procsched/internal/sched"
)

// RoundRobin is a Scheduler implementing FIFO round-robin dispatch.
type RoundRobin struct {
	ready   []*pcb.PCB
	waiting []*pcb.PCB
	current *pcb.PCB

	nextPid sched.Pid

	timeslice        int
	minimumRemaining int
	remaining        int
	sleepBudget      int
	panicked         bool
}

// New creates a RoundRobin scheduler with the given timeslice and minimum
// remaining timeslice for continuation. Pid 1 is installed on the first
// Fork, matching the original harness's bootstrap sequence.
func New(timeslice, minimumRemaining int) *RoundRobin {
	return &RoundRobin{
		ready:            []*pcb.PCB{},
		waiting:          []*pcb.PCB{},
		nextPid:          1,
		timeslice:        timeslice,
		minimumRemaining: minimumRemaining,
		remaining:        timeslice,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// bookkeep applies a uniform time charge to every process still sitting in
// the ready or waiting queues: their total lifetime advances by units, and
// sleepers count down by the same amount. It is called once with the
// elapsed run time and once with 1 for the syscall's own unit cost, per
// the shared bookkeeping rules (spec step 3 and step 4).
func (r *RoundRobin) bookkeep(units int) {
	for _, p := range r.ready {
		p.Timings.Total += units
	}
	for _, p := range r.waiting {
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

// wake promotes every sleeper whose timer has reached zero into the ready
// queue, preserving waiting-queue insertion order for everyone left.
func (r *RoundRobin) wake() {
	kept := r.waiting[:0:0]
	for _, p := range r.waiting {
		if p.IsEventWaiting() {
			kept = append(kept, p)
			continue
		}
		if p.SleepRemaining <= 0 {
			p.State = sched.ReadyState()
			r.ready = append(r.ready, p)
			continue
		}
		kept = append(kept, p)
	}
	r.waiting = kept
}

// reschedule re-queues a process that just gave up the CPU voluntarily
// (fork, signal). If enough of its quantum remains it is re-dispatched
// immediately (front of queue, reduced timeslice); otherwise it waits its
// turn with a fresh full timeslice.
func (r *RoundRobin) reschedule(remaining int, p *pcb.PCB) {
	if remaining >= r.minimumRemaining {
		r.ready = append([]*pcb.PCB{p}, r.ready...)
		r.remaining = remaining
	} else {
		r.ready = append(r.ready, p)
		r.remaining = r.timeslice
	}
}

// Next implements sched.Scheduler.
func (r *RoundRobin) Next() sched.SchedulingDecision {
	if r.panicked {
		return sched.PanicDecision()
	}

	if r.sleepBudget != 0 {
		amount := r.sleepBudget
		r.sleepBudget = 0
		r.bookkeep(amount)
	}

	r.wake()

	if r.current == nil && len(r.ready) == 0 && len(r.waiting) != 0 {
		amount, ok := minSleepRemaining(r.waiting)
		if !ok || amount == 0 {
			return sched.DeadlockDecision()
		}
		r.sleepBudget = amount
		return sched.SleepDecision(amount)
	}

	if r.current != nil {
		return sched.RunDecision(r.current.Pid, r.remaining)
	}

	if len(r.ready) > 0 {
		p := r.ready[0]
		r.ready = r.ready[1:]
		p.State = sched.RunningState()
		r.current = p
		return sched.RunDecision(p.Pid, r.remaining)
	}

	return sched.DoneDecision()
}

// Stop implements sched.Scheduler.
func (r *RoundRobin) Stop(reason sched.StopReason) sched.SyscallResult {
	if r.panicked {
		return sched.NoRunningProcess()
	}
	if r.current == nil && (reason.Expired || r.nextPid != 1 || reason.Syscall.Kind != sched.Fork) {
		return sched.NoRunningProcess()
	}
	if reason.Expired {
		return r.stopExpired()
	}
	return r.stopSyscall(reason.Syscall, reason.Remaining)
}

func (r *RoundRobin) stopSyscall(call sched.Syscall, remaining int) sched.SyscallResult {
	switch call.Kind {
	case sched.Fork:
		child := pcb.New(r.nextPid, call.Priority)
		r.nextPid++

		if r.current != nil {
			cur := r.current
			r.current = nil
			elapsed := r.remaining - remaining
			r.bookkeep(elapsed)
			r.bookkeep(1)
			r.wake()

			cur.Timings.Execution += elapsed
			cur.Timings.Total += elapsed + 1
			cur.Timings.SyscallCount++
			cur.State = sched.ReadyState()

			r.ready = append(r.ready, child)
			r.reschedule(remaining, cur)
		} else {
			r.ready = append(r.ready, child)
			r.wake()
		}
		return sched.PidResult(child.Pid)

	case sched.Sleep:
		cur := r.current
		r.current = nil
		elapsed := r.remaining - remaining
		r.bookkeep(elapsed)
		r.bookkeep(1)
		r.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.SleepState()
		cur.SleepRemaining = call.Units

		r.waiting = append(r.waiting, cur)
		r.remaining = r.timeslice
		r.wake()
		return sched.Success()

	case sched.Wait:
		cur := r.current
		r.current = nil
		elapsed := r.remaining - remaining
		r.bookkeep(elapsed)
		r.bookkeep(1)
		r.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.EventState(call.Event)

		r.waiting = append(r.waiting, cur)
		r.remaining = r.timeslice
		return sched.Success()

	case sched.Signal:
		cur := r.current
		r.current = nil
		elapsed := r.remaining - remaining
		r.bookkeep(elapsed)
		r.bookkeep(1)

		kept := r.waiting[:0:0]
		for _, p := range r.waiting {
			if p.IsEventWaiting() && *p.State.Event == call.Event {
				p.State = sched.ReadyState()
				r.ready = append(r.ready, p)
				continue
			}
			kept = append(kept, p)
		}
		r.waiting = kept
		r.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.ReadyState()

		r.reschedule(remaining, cur)
		return sched.Success()

	case sched.Empty:
		cur := r.current
		r.current = nil
		elapsed := r.remaining - remaining
		r.bookkeep(elapsed)
		r.bookkeep(1)
		r.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.State = sched.ReadyState()

		r.reschedule(remaining, cur)
		return sched.Success()

	case sched.Exit:
		cur := r.current
		if cur.Pid == 1 && (len(r.ready) != 0 || len(r.waiting) != 0) {
			r.panicked = true
		}
		r.current = nil
		elapsed := r.remaining - remaining
		r.bookkeep(elapsed)
		r.bookkeep(1)
		r.wake()

		r.remaining = r.timeslice
		return sched.Success()
	}
	return sched.Success()
}

func (r *RoundRobin) stopExpired() sched.SyscallResult {
	p := r.current
	elapsed := r.remaining

	p.Timings.Execution += elapsed
	p.Timings.Total += elapsed
	p.State = sched.ReadyState()

	r.bookkeep(elapsed)
	r.wake()

	r.remaining = r.timeslice
	r.ready = append(r.ready, p)
	r.current = nil
	return sched.Success()
}

// List implements sched.Scheduler.
func (r *RoundRobin) List() []sched.Process {
	out := make([]sched.Process, 0, len(r.ready)+len(r.waiting)+1)
	if r.current != nil {
		out = append(out, pcb.View{P: r.current})
	}
	for _, p := range r.ready {
		out = append(out, pcb.View{P: p})
	}
	for _, p := range r.waiting {
		out = append(out, pcb.View{P: p})
	}
	return out
}
