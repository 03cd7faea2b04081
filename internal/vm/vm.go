// Package vm is the host "processor" harness that drives a scheduler to
// completion: it replays a scripted Program of syscalls against the
// scheduler's next/stop contract and records one deterministic Log per
// next() call, exactly the role original_source/processor plays for the
// Rust scheduler crate. It sits outside the scheduler core on purpose
// (spec §1 excludes "the test runner that feeds events" from the core)
// but is the integration surface that actually exercises the three
// policies end to end.
package vm

import (
	"fmt"
	"strings"

	"procsched/internal/sched"
)

// ProcessSnapshot is a stable, detached copy of a sched.Process view taken
// at List() time. Log holds these rather than the live sched.Process
// interface so a Log entry keeps reporting what the scheduler looked like
// at the moment it was produced, even after later bookkeeping mutates the
// underlying PCBs.
type ProcessSnapshot struct {
	Pid      sched.Pid
	State    sched.ProcessState
	Timings  sched.Timings
	Priority int8
	Extra    string
}

func snapshot(procs []sched.Process) []ProcessSnapshot {
	out := make([]ProcessSnapshot, len(procs))
	for i, p := range procs {
		out[i] = ProcessSnapshot{
			Pid:      p.Pid(),
			State:    p.State(),
			Timings:  p.Timings(),
			Priority: p.Priority(),
			Extra:    p.Extra(),
		}
	}
	return out
}

// Log is one next() iteration: the decision the scheduler made, the
// process snapshot immediately after that decision, and — for Run
// decisions — the reason and result of the stop() call that ended the
// run. StopReason/StopResult are nil for Sleep/Deadlock/Panic/Done, which
// have no associated run. Grounded on original_source/processor::Log,
// collapsed so a run's outcome lives on the same entry as its dispatch
// rather than being patched in on the following iteration.
type Log struct {
	Decision   sched.SchedulingDecision
	StopReason *sched.StopReason
	StopResult *sched.SyscallResult
	Processes  []ProcessSnapshot
}

// String renders a Log the way original_source/processor's Display impl
// does: the decision, a tab-separated process table, then the stop outcome.
func (l Log) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", l.Decision)
	fmt.Fprintf(&b, "PID\tSTATE\t\tPRI\tTOTAL\tSYSCALL\tEXECUTE\tEXTRA\n")
	for _, p := range l.Processes {
		fmt.Fprintf(&b, "%d\t%s\t\t%d\t%d\t%d\t%d\t%s\n",
			uint64(p.Pid), p.State, p.Priority, p.Timings.Total, p.Timings.SyscallCount, p.Timings.Execution, p.Extra)
	}
	if l.StopReason != nil {
		fmt.Fprintf(&b, "%s -> %s\n", l.StopReason, describeResult(*l.StopResult))
	}
	return b.String()
}

func describeResult(r sched.SyscallResult) string {
	switch r.Kind {
	case sched.ResultPid:
		return fmt.Sprintf("Pid(%d)", uint64(r.Pid))
	case sched.ResultNoRunningProcess:
		return "NoRunningProcess"
	default:
		return "Success"
	}
}

// procCursor tracks one simulated process's position in its Program.
type procCursor struct {
	program Program
	pos     int
}

func (c *procCursor) next() (Action, bool) {
	if c.pos >= len(c.program) {
		return Action{}, false
	}
	return c.program[c.pos], true
}

// Bootstrap issues the hardcoded Fork(0) that installs pid 1, mirroring
// original_source/processor::Processor::run's first syscall. Every fresh
// Scheduler needs exactly one of these before its first Next() call.
func Bootstrap(scheduler sched.Scheduler) sched.SyscallResult {
	return scheduler.Stop(sched.SyscallReason(sched.ForkCall(0), 0))
}

// Run drives scheduler to completion (Done, Panic, or Deadlock), replaying
// program as the life of pid 1, and returns every Log produced along the
// way. Forked children replay their own Program from the Fork action that
// spawned them.
func Run(scheduler sched.Scheduler, program Program) []Log {
	var logs []Log
	run(scheduler, program, -1, func(l Log) { logs = append(logs, l) })
	return logs
}

// RunLimit behaves like Run but stops after at most maxIterations next()
// calls even if the scheduler has not reached a terminal decision,
// guarding test and demo code against a Program that never exits.
func RunLimit(scheduler sched.Scheduler, program Program, maxIterations int) []Log {
	var logs []Log
	run(scheduler, program, maxIterations, func(l Log) { logs = append(logs, l) })
	return logs
}

// RunStreaming runs the deterministic core synchronously on its own
// goroutine but publishes each Log onto a buffered channel as it is
// produced, mirroring the teacher's StatusChannel producer/consumer split
// without introducing any concurrency into the scheduler itself. The
// channel is closed once the run reaches a terminal decision.
func RunStreaming(scheduler sched.Scheduler, program Program, bufferSize int) <-chan Log {
	ch := make(chan Log, bufferSize)
	go func() {
		defer close(ch)
		run(scheduler, program, -1, func(l Log) { ch <- l })
	}()
	return ch
}

// run is the shared driver behind Run, RunLimit, and RunStreaming: it
// issues the hardcoded bootstrap Fork(0) that installs pid 1 (mirroring
// original_source/processor::Processor::run's hardcoded first syscall),
// then alternates next()/stop() until a terminal decision or the
// iteration cap, emitting one Log per next() call via emit.
func run(scheduler sched.Scheduler, program Program, maxIterations int, emit func(Log)) {
	cursors := map[sched.Pid]*procCursor{}

	boot := Bootstrap(scheduler)
	if boot.Kind != sched.ResultPid {
		return
	}
	cursors[boot.Pid] = &procCursor{program: program}

	for iteration := 0; maxIterations < 0 || iteration < maxIterations; iteration++ {
		decision := scheduler.Next()
		entry := Log{Decision: decision, Processes: snapshot(scheduler.List())}

		if decision.Kind == sched.DecisionRun {
			reason, result := stepProcess(scheduler, cursors, decision.Pid, decision.Timeslice)
			entry.StopReason = &reason
			entry.StopResult = &result
		}

		emit(entry)

		switch decision.Kind {
		case sched.DecisionDeadlock, sched.DecisionPanic, sched.DecisionDone:
			return
		}
	}
}

// stepProcess replays decision.Pid's Program until it issues a syscall or
// exhausts its timeslice, calling scheduler.Stop exactly once to report
// the outcome. A process that runs out of scripted actions implicitly
// exits, matching the Action doc comment's "implicit Exit" rule.
func stepProcess(scheduler sched.Scheduler, cursors map[sched.Pid]*procCursor, pid sched.Pid, timeslice int) (sched.StopReason, sched.SyscallResult) {
	cur := cursors[pid]
	remaining := timeslice

	for {
		if remaining <= 0 {
			reason := sched.ExpiredReason()
			return reason, scheduler.Stop(reason)
		}

		action, ok := cur.next()
		if !ok {
			reason := sched.SyscallReason(sched.ExitCall(), remaining)
			result := scheduler.Stop(reason)
			delete(cursors, pid)
			return reason, result
		}

		if action.Kind == ActionExec {
			cur.pos++
			remaining--
			continue
		}

		cur.pos++
		switch action.Kind {
		case ActionFork:
			reason := sched.SyscallReason(sched.ForkCall(action.ForkPriority), remaining)
			result := scheduler.Stop(reason)
			if result.Kind == sched.ResultPid {
				cursors[result.Pid] = &procCursor{program: action.ForkChild}
			}
			return reason, result
		case ActionSleep:
			reason := sched.SyscallReason(sched.SleepCall(action.SleepUnits), remaining)
			return reason, scheduler.Stop(reason)
		case ActionWait:
			reason := sched.SyscallReason(sched.WaitCall(action.Event), remaining)
			return reason, scheduler.Stop(reason)
		case ActionSignal:
			reason := sched.SyscallReason(sched.SignalCall(action.Event), remaining)
			return reason, scheduler.Stop(reason)
		case ActionEmpty:
			reason := sched.SyscallReason(sched.EmptyCall(), remaining)
			return reason, scheduler.Stop(reason)
		default:
			reason := sched.SyscallReason(sched.ExitCall(), remaining)
			result := scheduler.Stop(reason)
			delete(cursors, pid)
			return reason, result
		}
	}
}

// FormatLogs renders a full trace as numbered iterations, grounded on
// original_source/processor::format_logs.
func FormatLogs(logs []Log) string {
	var b strings.Builder
	for i, l := range logs {
		fmt.Fprintf(&b, "===== Iteration: %d =====\n%s\n", i+1, l)
	}
	return b.String()
}
