package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsched/internal/pcb"
	"procsched/internal/sched"
)

func bootstrap(t *testing.T, q *PriorityQueue) {
	t.Helper()
	result := q.Stop(sched.SyscallReason(sched.ForkCall(0), 0))
	require.Equal(t, sched.ResultPid, result.Kind)
	require.Equal(t, sched.Pid(1), result.Pid)
}

// assertTimingsInvariant checks spec's total >= execution + syscall_count
// bound holds for every process, catching any accounting that double-counts
// or drops a syscall's own unit cost.
func assertTimingsInvariant(t *testing.T, procs []sched.Process) {
	t.Helper()
	for _, p := range procs {
		timings := p.Timings()
		assert.GreaterOrEqual(t, timings.Total, timings.Execution+timings.SyscallCount,
			"pid %d: total must be >= execution + syscall_count", p.Pid())
	}
}

func TestAgeCapsAtMaxPriority(t *testing.T) {
	p := &pcb.PCB{Priority: 3, MaxPriority: 5}
	age(p)
	assert.Equal(t, int8(4), p.Priority)
	age(p)
	assert.Equal(t, int8(5), p.Priority)
	age(p)
	assert.Equal(t, int8(5), p.Priority, "age never lifts priority above its fork-time ceiling")
}

func TestExpireDecayFloorsAtZero(t *testing.T) {
	p := &pcb.PCB{Priority: 1}
	expireDecay(p)
	assert.Equal(t, int8(0), p.Priority)
	expireDecay(p)
	assert.Equal(t, int8(0), p.Priority, "decay never drops priority below zero")
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, int8(0), clampLevel(-1))
	assert.Equal(t, int8(maxLevels-1), clampLevel(127))
	assert.Equal(t, int8(50), clampLevel(50))
}

func TestPriorityQueueDispatchesHighestLevelFirst(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next() // pid 1 running at priority 0

	result := q.Stop(sched.SyscallReason(sched.ForkCall(5), 3))
	require.Equal(t, sched.Pid(2), result.Pid)

	d := q.Next()
	require.Equal(t, sched.DecisionRun, d.Kind)
	assert.Equal(t, sched.Pid(2), d.Pid, "pid 2 forked at priority 5 preempts pid 1's priority-0 level")
}

func TestPriorityQueueForkInheritsRequestedPriorityAsCeiling(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next()

	q.Stop(sched.SyscallReason(sched.ForkCall(5), 3))

	var child sched.Process
	for _, p := range q.List() {
		if p.Pid() == 2 {
			child = p
		}
	}
	require.NotNil(t, child)
	assert.Equal(t, int8(5), child.Priority())
	assertTimingsInvariant(t, q.List())
}

func TestPriorityQueueDecaysOnExpiry(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next()

	q.Stop(sched.SyscallReason(sched.ForkCall(5), 3))
	d := q.Next()
	require.Equal(t, sched.Pid(2), d.Pid)

	q.Stop(sched.ExpiredReason())

	var child sched.Process
	for _, p := range q.List() {
		if p.Pid() == 2 {
			child = p
		}
	}
	require.NotNil(t, child)
	assert.Equal(t, int8(4), child.Priority(), "a full timeslice expiry decays priority by one")
	assertTimingsInvariant(t, q.List())
}

func TestPriorityQueueSleepDecisionUsesMinimumAcrossSleepers(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next() // pid 1 running

	q.Stop(sched.SyscallReason(sched.ForkCall(0), 3)) // pid 1 forks pid 2, continues

	d := q.Next()
	require.Equal(t, sched.Pid(1), d.Pid)
	q.Stop(sched.SyscallReason(sched.SleepCall(10), 3)) // pid 1 (inserted first) sleeps for 10

	d2 := q.Next()
	require.Equal(t, sched.DecisionRun, d2.Kind)
	assert.Equal(t, sched.Pid(2), d2.Pid)
	q.Stop(sched.SyscallReason(sched.SleepCall(3), 3)) // pid 2 sleeps for a much shorter 3

	d3 := q.Next()
	require.Equal(t, sched.DecisionSleep, d3.Kind)
	assert.Equal(t, 3, d3.Sleep, "Sleep must report the smallest SleepRemaining among sleepers, not the first in insertion order")
	assertTimingsInvariant(t, q.List())
}

func TestPriorityQueueAgesOnEmptySyscall(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next() // pid 1 running at priority 0

	// pid 2 forked at priority 5 (max_priority 5) preempts pid 1 and then
	// expires once, decaying from 5 to 4.
	q.Stop(sched.SyscallReason(sched.ForkCall(5), 3))
	d := q.Next()
	require.Equal(t, sched.Pid(2), d.Pid)
	q.Stop(sched.ExpiredReason())

	d2 := q.Next()
	require.Equal(t, sched.Pid(2), d2.Pid)

	// An Empty syscall is a voluntary yield: it ages pid 2's priority back
	// up toward its max_priority ceiling, same as any other push to Ready.
	result := q.Stop(sched.SyscallReason(sched.EmptyCall(), 2))
	assert.Equal(t, sched.ResultSuccess, result.Kind)

	var pid2 sched.Process
	for _, p := range q.List() {
		if p.Pid() == 2 {
			pid2 = p
		}
	}
	require.NotNil(t, pid2)
	assert.Equal(t, int8(5), pid2.Priority(), "aging restores the priority the expiry decay had taken")
	assertTimingsInvariant(t, q.List())
}

func TestPriorityQueueDeadlockOnUnsignaledWait(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next()

	q.Stop(sched.SyscallReason(sched.WaitCall(9), 3))

	d := q.Next()
	assert.Equal(t, sched.DecisionDeadlock, d.Kind)
}

func TestPriorityQueueDoneWhenAllProcessesExit(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next()

	q.Stop(sched.SyscallReason(sched.ExitCall(), 3))

	d := q.Next()
	assert.Equal(t, sched.DecisionDone, d.Kind)
}

func TestPriorityQueueNextIsIdempotentWithoutStop(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)

	d1 := q.Next()
	d2 := q.Next()
	assert.Equal(t, d1, d2)
}

func TestPriorityQueueNextIsIdempotentWithMultipleReady(t *testing.T) {
	q := New(3, 1)
	bootstrap(t, q)
	q.Next() // pid 1 running

	// pid 1 forks pid 2 at the same level and reports enough remaining to
	// continue; both now sit in the ready levels with no current process.
	q.Stop(sched.SyscallReason(sched.ForkCall(0), 2))

	d1 := q.Next()
	d2 := q.Next()
	assert.Equal(t, d1, d2, "a second ready process must not be popped by a repeated Next")
	require.Equal(t, sched.DecisionRun, d1.Kind)

	running := 0
	for _, p := range q.List() {
		if p.State() == sched.RunningState() {
			running++
		}
	}
	assert.Equal(t, 1, running, "at most one process may be Running")
}
