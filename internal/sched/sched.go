// Package sched defines the contract shared by every scheduling policy:
// the PID type, the syscall/stop-reason protocol, the scheduling decision
// sum type, and the Scheduler and Process interfaces that a policy (round
// robin, priority queue, CFS) must implement.
package sched

import "fmt"

// Pid identifies a process. Pids start at 1 and are never reused.
type Pid uint64

func (p Pid) String() string {
	return fmt.Sprintf("%d", uint64(p))
}

// ProcessState is the state of a process as seen by the scheduler.
type ProcessState struct {
	Kind  StateKind
	Event *uint64 // non-nil only when Kind == Waiting and the process waits on an event (nil = sleeping)
}

// StateKind enumerates the possible process states.
type StateKind int

const (
	Ready StateKind = iota
	Running
	Waiting
)

func (s ProcessState) String() string {
	switch s.Kind {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Waiting:
		if s.Event != nil {
			return fmt.Sprintf("EVENT %d", *s.Event)
		}
		return "SLEEP"
	default:
		return "UNKNOWN"
	}
}

// ReadyState returns the Ready process state.
func ReadyState() ProcessState { return ProcessState{Kind: Ready} }

// RunningState returns the Running process state.
func RunningState() ProcessState { return ProcessState{Kind: Running} }

// SleepState returns a Waiting state with no event (a sleeper).
func SleepState() ProcessState { return ProcessState{Kind: Waiting} }

// EventState returns a Waiting state blocked on the given event id.
func EventState(event uint64) ProcessState {
	e := event
	return ProcessState{Kind: Waiting, Event: &e}
}

// Timings is the (total, syscallCount, execution) triple tracked per process.
type Timings struct {
	Total        int
	SyscallCount int
	Execution    int
}

// Process is the read-only view exposed by Scheduler.List.
type Process interface {
	Pid() Pid
	State() ProcessState
	Timings() Timings
	Priority() int8
	// Extra returns policy-specific supplementary details (e.g. "vruntime=12").
	Extra() string
}

// SyscallKind enumerates the syscalls a process may issue.
type SyscallKind int

const (
	Fork SyscallKind = iota
	Sleep
	Wait
	Signal
	Exit
	Empty
)

// Syscall is a syscall issued by the running process, captured with its argument.
type Syscall struct {
	Kind     SyscallKind
	Priority int8   // Fork
	Units    int    // Sleep
	Event    uint64 // Wait, Signal
}

func ForkCall(priority int8) Syscall  { return Syscall{Kind: Fork, Priority: priority} }
func SleepCall(units int) Syscall     { return Syscall{Kind: Sleep, Units: units} }
func WaitCall(event uint64) Syscall   { return Syscall{Kind: Wait, Event: event} }
func SignalCall(event uint64) Syscall { return Syscall{Kind: Signal, Event: event} }
func ExitCall() Syscall               { return Syscall{Kind: Exit} }
func EmptyCall() Syscall              { return Syscall{Kind: Empty} }

// StopReason is why the OS handed control back to the scheduler.
type StopReason struct {
	Expired   bool
	Syscall   Syscall
	Remaining int // timeslice left when the syscall was issued; meaningless if Expired
}

func ExpiredReason() StopReason { return StopReason{Expired: true} }

func SyscallReason(call Syscall, remaining int) StopReason {
	return StopReason{Syscall: call, Remaining: remaining}
}

func (r StopReason) String() string {
	if r.Expired {
		return "Expired"
	}
	return fmt.Sprintf("Syscall %+v, remaining %d", r.Syscall, r.Remaining)
}

// SyscallResultKind enumerates the possible outcomes of Scheduler.Stop.
type SyscallResultKind int

const (
	ResultSuccess SyscallResultKind = iota
	ResultPid
	ResultNoRunningProcess
)

// SyscallResult is returned by Scheduler.Stop.
type SyscallResult struct {
	Kind SyscallResultKind
	Pid  Pid // valid only when Kind == ResultPid
}

func Success() SyscallResult             { return SyscallResult{Kind: ResultSuccess} }
func NoRunningProcess() SyscallResult    { return SyscallResult{Kind: ResultNoRunningProcess} }
func PidResult(pid Pid) SyscallResult    { return SyscallResult{Kind: ResultPid, Pid: pid} }

// DecisionKind enumerates the possible scheduling decisions.
type DecisionKind int

const (
	DecisionRun DecisionKind = iota
	DecisionSleep
	DecisionDeadlock
	DecisionPanic
	DecisionDone
)

// SchedulingDecision is what the scheduler asks the host to do next.
type SchedulingDecision struct {
	Kind      DecisionKind
	Pid       Pid // DecisionRun
	Timeslice int // DecisionRun
	Sleep     int // DecisionSleep
}

func RunDecision(pid Pid, timeslice int) SchedulingDecision {
	return SchedulingDecision{Kind: DecisionRun, Pid: pid, Timeslice: timeslice}
}

func SleepDecision(units int) SchedulingDecision {
	return SchedulingDecision{Kind: DecisionSleep, Sleep: units}
}

func DeadlockDecision() SchedulingDecision { return SchedulingDecision{Kind: DecisionDeadlock} }
func PanicDecision() SchedulingDecision    { return SchedulingDecision{Kind: DecisionPanic} }
func DoneDecision() SchedulingDecision     { return SchedulingDecision{Kind: DecisionDone} }

func (d SchedulingDecision) String() string {
	switch d.Kind {
	case DecisionRun:
		return fmt.Sprintf("Run %s for %d slices", d.Pid, d.Timeslice)
	case DecisionSleep:
		return fmt.Sprintf("Sleep for %d slices", d.Sleep)
	case DecisionDeadlock:
		return "Deadlock, unable to schedule anymore processes"
	case DecisionPanic:
		return "Panic, process 1 has stopped"
	case DecisionDone:
		return "Done, no more processes"
	default:
		return "Unknown"
	}
}

// Scheduler is the contract every scheduling policy implements.
type Scheduler interface {
	// Next returns the action the host should take. Calling Next twice
	// without an intervening Stop returns the same decision, except after
	// a Sleep decision: the following Next call charges the reported sleep
	// units to every waiting process, wakes the sleepers whose timers reach
	// zero, and decides afresh.
	Next() SchedulingDecision

	// Stop informs the scheduler that the current process stopped running,
	// either voluntarily (via Syscall) or because its timeslice expired.
	Stop(reason StopReason) SyscallResult

	// List returns a deterministic snapshot: current process first (if
	// any), then the ready queue in policy order, then the waiting queue
	// in insertion order.
	List() []Process
}
