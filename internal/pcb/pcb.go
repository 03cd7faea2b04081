// Package pcb implements the Process Control Block shared by every
// scheduling policy: per-process state, timings, and the policy-specific
// fields (max priority for PQ, vruntime for CFS) each core attaches to it.
package pcb

import (
	"fmt"

	"procsched/internal/sched"
)

// PCB is the bookkeeping record for a single simulated process.
type PCB struct {
	Pid     sched.Pid
	State   sched.ProcessState
	Timings sched.Timings

	Priority    int8
	MaxPriority int8 // PQ only: upper bound for aging, fixed at fork time

	SleepRemaining int // units remaining until a sleeping process wakes
	Vruntime       int // CFS only: accumulated virtual runtime
}

// New creates a Ready PCB with zeroed timings.
func New(pid sched.Pid, priority int8) *PCB {
	return &PCB{
		Pid:         pid,
		State:       sched.ReadyState(),
		Priority:    priority,
		MaxPriority: priority,
	}
}

// Clone returns a shallow copy. The schedulers themselves do not clone:
// their queues hold *PCB pointers and move the same record between them.
func (p *PCB) Clone() *PCB {
	c := *p
	return &c
}

// View adapts a *PCB to the read-only sched.Process interface with a
// caller-supplied Extra formatter, so each policy package can report its
// own supplementary fields without pcb importing them.
type View struct {
	P       *PCB
	ExtraFn func(*PCB) string
}

func (v View) Pid() sched.Pid            { return v.P.Pid }
func (v View) State() sched.ProcessState { return v.P.State }
func (v View) Timings() sched.Timings    { return v.P.Timings }
func (v View) Priority() int8            { return v.P.Priority }
func (v View) Extra() string {
	if v.ExtraFn == nil {
		return ""
	}
	return v.ExtraFn(v.P)
}

// NoExtra formats no supplementary detail.
func NoExtra(*PCB) string { return "" }

// VruntimeExtra formats the CFS vruntime field, matching the teacher/
// original_source's "vruntime=N" extra detail string.
func VruntimeExtra(p *PCB) string { return fmt.Sprintf("vruntime=%d", p.Vruntime) }

// IsSleeping reports whether the PCB is waiting on a timer rather than an event.
func (p *PCB) IsSleeping() bool {
	return p.State.Kind == sched.Waiting && p.State.Event == nil
}

// IsEventWaiting reports whether the PCB is waiting on an event.
func (p *PCB) IsEventWaiting() bool {
	return p.State.Kind == sched.Waiting && p.State.Event != nil
}
