// Package cfs implements a simplified Completely Fair Scheduler: the
// ready process with the smallest accumulated vruntime is always
// dispatched next, and the timeslice handed to each process shrinks or
// grows with the number of currently runnable processes.
package cfs

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"procsched/internal/pcb"
	"procsched/internal/sched"
)

// nodeKey orders the ready tree by (vruntime, insertion sequence), the
// sequence breaking ties in favor of whoever became ready earlier —
// mirrors the teacher's (vruntime, TaskID) red-black tree key.
type nodeKey struct {
	vruntime int
	seq      uint64
}

func cmpKey(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.vruntime < kb.vruntime:
		return -1
	case ka.vruntime > kb.vruntime:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// CFS is a Scheduler implementing min-vruntime dispatch with a dynamic
// timeslice.
type CFS struct {
	ready   *redblacktree.Tree // key nodeKey, value *pcb.PCB
	waiting []*pcb.PCB
	current *pcb.PCB

	nextPid sched.Pid
	seq     uint64

	cpuTime          int
	minimumRemaining int
	remaining        int
	timeslice        int
	minVruntime      int
	sleepBudget      int
	panicked         bool
}

// New creates a CFS scheduler with the given total CPU budget per
// rebalancing round and minimum remaining timeslice for continuation.
func New(cpuTime, minimumRemaining int) *CFS {
	return &CFS{
		ready:            redblacktree.NewWith(cmpKey),
		waiting:          []*pcb.PCB{},
		nextPid:          1,
		cpuTime:          cpuTime,
		minimumRemaining: minimumRemaining,
		timeslice:        cpuTime,
		remaining:        cpuTime,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c *CFS) nextSeq() uint64 {
	c.seq++
	return c.seq
}

// insertReady inserts p into the ready tree. When clamp is true (a fork or
// a wake from Waiting), the process's vruntime is first raised to
// minVruntime if it lags behind, per the CFS fairness-after-sleep rule.
func (c *CFS) insertReady(p *pcb.PCB, clamp bool) {
	if clamp && p.Vruntime < c.minVruntime {
		p.Vruntime = c.minVruntime
	}
	c.ready.Put(nodeKey{p.Vruntime, c.nextSeq()}, p)
}

func (c *CFS) readyLen() int { return c.ready.Size() }

func (c *CFS) popMin() *pcb.PCB {
	node := c.ready.Left()
	if node == nil {
		return nil
	}
	c.ready.Remove(node.Key)
	return node.Value.(*pcb.PCB)
}

func (c *CFS) peekMinVruntime() (int, bool) {
	node := c.ready.Left()
	if node == nil {
		return 0, false
	}
	return node.Value.(*pcb.PCB).Vruntime, true
}

func (c *CFS) forEachReady(fn func(*pcb.PCB)) {
	for _, v := range c.ready.Values() {
		fn(v.(*pcb.PCB))
	}
}

// recomputeTimeslice implements: n = |ready| + (current ? 1 : 0);
// timeslice = max(minimumRemaining, cpuTime/n). A zero n leaves the
// timeslice at whatever it was — it is meaningless until something is
// runnable.
func (c *CFS) recomputeTimeslice() {
	n := c.readyLen()
	if c.current != nil {
		n++
	}
	if n == 0 {
		return
	}
	c.timeslice = maxInt(c.minimumRemaining, c.cpuTime/n)
}

// recomputeMinVruntime sets minVruntime to the minimum vruntime over ready
// ∪ {current}, leaving it unchanged when that set is empty.
func (c *CFS) recomputeMinVruntime() {
	min, ok := c.peekMinVruntime()
	if c.current != nil {
		if !ok || c.current.Vruntime < min {
			min = c.current.Vruntime
			ok = true
		}
	}
	if ok {
		c.minVruntime = min
	}
}

func (c *CFS) bookkeep(units int) {
	c.forEachReady(func(p *pcb.PCB) { p.Timings.Total += units })
	for _, p := range c.waiting {
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
// tree, clamping its vruntime up to minVruntime so a long sleep cannot buy
// it a run of uninterrupted CPU at the other processes' expense.
func (c *CFS) wake() {
	kept := c.waiting[:0:0]
	for _, p := range c.waiting {
		if p.IsEventWaiting() {
			kept = append(kept, p)
			continue
		}
		if p.SleepRemaining <= 0 {
			p.State = sched.ReadyState()
			c.insertReady(p, true)
			continue
		}
		kept = append(kept, p)
	}
	c.waiting = kept
}

// requeueOrContinue implements the CFS reschedule-continuation rule: if
// the stopped process still has enough quantum left and no ready process
// has a strictly lower vruntime, it keeps running with the reduced
// remaining; otherwise it is requeued by vruntime and a fresh process will
// be dispatched on the next Next call.
func (c *CFS) requeueOrContinue(remaining int, p *pcb.PCB) {
	canContinue := remaining >= c.minimumRemaining
	if canContinue {
		if minV, ok := c.peekMinVruntime(); ok && minV < p.Vruntime {
			canContinue = false
		}
	}
	if canContinue {
		p.State = sched.RunningState()
		c.current = p
		c.remaining = remaining
	} else {
		c.current = nil
		c.insertReady(p, false)
	}
	c.recomputeMinVruntime()
	c.recomputeTimeslice()
}

// Next implements sched.Scheduler.
func (c *CFS) Next() sched.SchedulingDecision {
	if c.panicked {
		return sched.PanicDecision()
	}

	if c.sleepBudget != 0 {
		amount := c.sleepBudget
		c.sleepBudget = 0
		c.bookkeep(amount)
	}

	c.wake()

	if c.current == nil && c.readyLen() == 0 && len(c.waiting) != 0 {
		amount, ok := minSleepRemaining(c.waiting)
		if !ok || amount == 0 {
			return sched.DeadlockDecision()
		}
		c.sleepBudget = amount
		return sched.SleepDecision(amount)
	}

	if c.current != nil {
		return sched.RunDecision(c.current.Pid, c.remaining)
	}

	if c.readyLen() > 0 {
		p := c.popMin()
		p.State = sched.RunningState()
		c.current = p
		c.recomputeMinVruntime()
		c.recomputeTimeslice()
		c.remaining = c.timeslice
		return sched.RunDecision(p.Pid, c.remaining)
	}

	return sched.DoneDecision()
}

// Stop implements sched.Scheduler.
func (c *CFS) Stop(reason sched.StopReason) sched.SyscallResult {
	if c.panicked {
		return sched.NoRunningProcess()
	}
	if c.current == nil && (reason.Expired || c.nextPid != 1 || reason.Syscall.Kind != sched.Fork) {
		return sched.NoRunningProcess()
	}
	if reason.Expired {
		return c.stopExpired()
	}
	return c.stopSyscall(reason.Syscall, reason.Remaining)
}

func (c *CFS) stopSyscall(call sched.Syscall, remaining int) sched.SyscallResult {
	switch call.Kind {
	case sched.Fork:
		child := pcb.New(c.nextPid, call.Priority)
		c.nextPid++

		if c.current != nil {
			cur := c.current
			c.current = nil
			elapsed := c.remaining - remaining
			c.bookkeep(elapsed)
			c.bookkeep(1)
			c.wake()

			cur.Timings.Execution += elapsed
			cur.Timings.Total += elapsed + 1
			cur.Timings.SyscallCount++
			cur.Vruntime += elapsed + 1
			cur.State = sched.ReadyState()

			c.insertReady(child, true)
			c.requeueOrContinue(remaining, cur)
		} else {
			c.insertReady(child, true)
			c.wake()
			c.recomputeMinVruntime()
			c.recomputeTimeslice()
		}
		return sched.PidResult(child.Pid)

	case sched.Sleep:
		cur := c.current
		c.current = nil
		elapsed := c.remaining - remaining
		c.bookkeep(elapsed)
		c.bookkeep(1)
		c.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.Vruntime += elapsed + 1
		cur.State = sched.SleepState()
		cur.SleepRemaining = call.Units

		c.waiting = append(c.waiting, cur)
		c.wake()
		c.recomputeMinVruntime()
		c.recomputeTimeslice()
		c.remaining = c.timeslice
		return sched.Success()

	case sched.Wait:
		cur := c.current
		c.current = nil
		elapsed := c.remaining - remaining
		c.bookkeep(elapsed)
		c.bookkeep(1)
		c.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.Vruntime += elapsed + 1
		cur.State = sched.EventState(call.Event)

		c.waiting = append(c.waiting, cur)
		c.recomputeMinVruntime()
		c.recomputeTimeslice()
		c.remaining = c.timeslice
		return sched.Success()

	case sched.Signal:
		cur := c.current
		c.current = nil
		elapsed := c.remaining - remaining
		c.bookkeep(elapsed)
		c.bookkeep(1)

		kept := c.waiting[:0:0]
		for _, p := range c.waiting {
			if p.IsEventWaiting() && *p.State.Event == call.Event {
				p.State = sched.ReadyState()
				c.insertReady(p, true)
				continue
			}
			kept = append(kept, p)
		}
		c.waiting = kept
		c.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.Vruntime += elapsed + 1
		cur.State = sched.ReadyState()

		c.requeueOrContinue(remaining, cur)
		return sched.Success()

	case sched.Empty:
		cur := c.current
		c.current = nil
		elapsed := c.remaining - remaining
		c.bookkeep(elapsed)
		c.bookkeep(1)
		c.wake()

		cur.Timings.Execution += elapsed
		cur.Timings.Total += elapsed + 1
		cur.Timings.SyscallCount++
		cur.Vruntime += elapsed + 1
		cur.State = sched.ReadyState()

		c.requeueOrContinue(remaining, cur)
		return sched.Success()

	case sched.Exit:
		cur := c.current
		if cur.Pid == 1 && (c.readyLen() != 0 || len(c.waiting) != 0) {
			c.panicked = true
		}
		c.current = nil
		elapsed := c.remaining - remaining
		c.bookkeep(elapsed)
		c.bookkeep(1)
		c.wake()

		c.recomputeMinVruntime()
		c.recomputeTimeslice()
		c.remaining = c.timeslice
		return sched.Success()
	}
	return sched.Success()
}

func (c *CFS) stopExpired() sched.SyscallResult {
	p := c.current
	elapsed := c.remaining

	p.Timings.Execution += elapsed
	p.Timings.Total += elapsed
	p.Vruntime += elapsed
	p.State = sched.ReadyState()

	c.bookkeep(elapsed)
	c.wake()

	c.current = nil
	c.insertReady(p, false)
	c.recomputeMinVruntime()
	c.recomputeTimeslice()
	c.remaining = c.timeslice
	return sched.Success()
}

// List implements sched.Scheduler.
func (c *CFS) List() []sched.Process {
	out := make([]sched.Process, 0, c.readyLen()+len(c.waiting)+1)
	if c.current != nil {
		out = append(out, pcb.View{P: c.current, ExtraFn: pcb.VruntimeExtra})
	}
	for _, v := range c.ready.Values() {
		out = append(out, pcb.View{P: v.(*pcb.PCB), ExtraFn: pcb.VruntimeExtra})
	}
	for _, p := range c.waiting {
		out = append(out, pcb.View{P: p, ExtraFn: pcb.VruntimeExtra})
	}
	return out
}
