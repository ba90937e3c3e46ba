// Package exec implements C4: the executor. It owns the virtual file
// descriptor stacks, the pipe stack, process creation/wait, and the job
// table, grounded on the Executor design in
// _examples/original_source/src/exec.rs, adapted from real fork() (which Go
// cannot safely continue running in) to os/exec.Cmd for external commands
// plus goroutine-driven logical processes for shell-internal background
// work, unified under one Job abstraction.
package exec

import "os"

// VFile is a reference-counted file handle: pushing the same *os.File onto
// a second vfd shares one underlying OS file, and the file is only closed
// when the last reference drops. See spec.md §9 "Shared ownership".
type VFile struct {
	File *os.File
	refs *int
}

func newVFile(f *os.File) VFile {
	n := 1
	return VFile{File: f, refs: &n}
}

func (v VFile) retain() VFile {
	if v.refs != nil {
		*v.refs++
	}
	return v
}

func (v VFile) release() {
	if v.refs == nil {
		return
	}
	*v.refs--
	if *v.refs <= 0 && v.File != nil {
		v.File.Close()
	}
}

// vfdStack is the stack of files backing one logical fd number. Only the
// top is visible to the program; an optional saved baseline preserves the
// initial file across redirection for restoration, per spec.md §3.
type vfdStack struct {
	stack []VFile
	saved *VFile
}

// Executor owns the vfd stacks (indexed by logical fd number), the pipe
// stack, and job state for one shell (or subshell).
type Executor struct {
	vfds    map[int]*vfdStack
	pipes   []Pipe
	jobs    *JobTable
	monitor bool

	// procs maps real/logical pid to the live Process, so job-control
	// built-ins (fg/bg/wait/jobs) can wait on a process by pid without
	// threading the original *Process value through the job table.
	procs map[int]*Process

	// state is a two-entry-deep-or-more stack tracking whether execution is
	// currently inside a freshly created process (InNewProcess) or still the
	// interpreter loop (InInterpreter), per spec.md §4.4.
	state []State
}

// State is the executor's process-context state machine.
type State int

const (
	InInterpreter State = iota
	InNewProcess
)

// New creates an Executor with stdio attached to vfd 0,1,2 as saved
// baselines, per spec.md §6 "the shell attaches initial files to vfd 0,1,2
// before running".
func New(stdin, stdout, stderr *os.File, monitor bool) *Executor {
	e := &Executor{
		vfds:    make(map[int]*vfdStack),
		jobs:    NewJobTable(),
		monitor: monitor,
		state:   []State{InInterpreter},
		procs:   make(map[int]*Process),
	}
	e.PushFileAndSetSaved(0, stdin)
	e.PushFileAndSetSaved(1, stdout)
	e.PushFileAndSetSaved(2, stderr)
	return e
}

func (e *Executor) stackFor(vfd int) *vfdStack {
	s, ok := e.vfds[vfd]
	if !ok {
		s = &vfdStack{}
		e.vfds[vfd] = s
	}
	return s
}

// PushFile installs a new file as the top of vfd's stack.
func (e *Executor) PushFile(vfd int, f *os.File) {
	s := e.stackFor(vfd)
	if f != nil {
		for _, other := range e.vfds {
			for _, vf := range other.stack {
				if vf.File == f {
					s.stack = append(s.stack, vf.retain())
					return
				}
			}
		}
	}
	s.stack = append(s.stack, newVFile(f))
}

// PushFileAndSetSaved seeds the saved baseline for vfd, used when the shell
// first attaches stdio.
func (e *Executor) PushFileAndSetSaved(vfd int, f *os.File) {
	if f == nil {
		return
	}
	s := e.stackFor(vfd)
	vf := newVFile(f)
	saved := vf.retain()
	s.saved = &saved
	s.stack = append(s.stack, vf)
}

// PopFile restores the previous file on vfd's stack, closing the popped
// reference if it was the last one.
func (e *Executor) PopFile(vfd int) {
	s, ok := e.vfds[vfd]
	if !ok || len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	top.release()
}

// Top returns the file currently visible on vfd, or nil if the vfd is not
// active.
func (e *Executor) Top(vfd int) *os.File {
	s, ok := e.vfds[vfd]
	if !ok || len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1].File
}

// Active reports whether vfd currently has an open file. A pushed nil file
// (from "N>&-"/"N<&-" closing the fd) counts as inactive even though the
// stack entry itself is nonempty, so it can still be popped to restore
// whatever was shadowed.
func (e *Executor) Active(vfd int) bool {
	s, ok := e.vfds[vfd]
	return ok && len(s.stack) > 0 && s.stack[len(s.stack)-1].File != nil
}

// ActiveVfds returns every vfd number with a nonempty stack, used when
// flattening for exec.
func (e *Executor) ActiveVfds() []int {
	var out []int
	for vfd, s := range e.vfds {
		if len(s.stack) > 0 {
			out = append(out, vfd)
		}
	}
	return out
}

// PushState enters a new process context, e.g. a subshell.
func (e *Executor) PushState(s State) { e.state = append(e.state, s) }

// PopState leaves the most recent process context.
func (e *Executor) PopState() {
	if len(e.state) > 1 {
		e.state = e.state[:len(e.state)-1]
	}
}

// CurrentState reports the executor's current process context.
func (e *Executor) CurrentState() State { return e.state[len(e.state)-1] }

// Monitor reports whether job control (process groups, foreground
// terminal handoff) is enabled.
func (e *Executor) Monitor() bool { return e.monitor }

// SetMonitor toggles job control, mirroring "set -m".
func (e *Executor) SetMonitor(v bool) { e.monitor = v }

// Jobs exposes the job table.
func (e *Executor) Jobs() *JobTable { return e.jobs }
