package exec

import (
	"os"
	osexec "os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/posh-shell/posh/internal/shellerr"
)

// Process is one running or finished child, either a real OS process
// (External) or a goroutine-backed logical process used for shell-internal
// backgrounded work that Go cannot safely fork, such as `(list) &` or a
// backgrounded function call. Both are tracked under the same Job
// abstraction; see SPEC_FULL.md §3 and §4.
type Process struct {
	Pid  int // real OS pid, or a negative synthetic id for logical processes
	cmd  *osexec.Cmd

	done   chan struct{}
	status Status
	mu     sync.Mutex
}

var nextLogicalPid int64 = -1

func allocLogicalPid() int {
	return int(atomic.AddInt64(&nextLogicalPid, -1))
}

// StartExternal starts a real child process for a command that will
// execve, per spec.md §4.4 "create_process". When monitor is on, the child
// joins pgid (0 means "start a new group using the child's own pid", as
// with POSIX setpgid(0,0) for the first process in a pipeline).
func (e *Executor) StartExternal(cmd *osexec.Cmd, pgid int, foreground bool) (*Process, error) {
	if e.monitor {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{Pid: cmd.Process.Pid, cmd: cmd, done: make(chan struct{})}
	e.TrackProcess(p)
	if e.monitor && foreground {
		e.SetForegroundForProcess(p.Pid)
	}
	return p, nil
}

// TrackProcess registers p under its pid so WaitForPid can find it later,
// e.g. from the fg/bg/wait/jobs built-ins which only have a job's pid list.
func (e *Executor) TrackProcess(p *Process) {
	if e.procs == nil {
		e.procs = make(map[int]*Process)
	}
	e.procs[p.Pid] = p
}

// LookupProcess finds a previously tracked process by pid.
func (e *Executor) LookupProcess(pid int) (*Process, bool) {
	p, ok := e.procs[pid]
	return p, ok
}

// ForgetProcess drops a finished process from the registry.
func (e *Executor) ForgetProcess(pid int) { delete(e.procs, pid) }

// WaitForPid is a convenience wrapper over WaitForProcess for callers
// (fg/bg/wait/jobs built-ins) that only have a pid, not the original
// *Process value.
func (e *Executor) WaitForPid(pid int, hang bool) (Status, bool, error) {
	p, ok := e.procs[pid]
	if !ok {
		return Status{}, false, shellerr.New(shellerr.NotFound, strconv.Itoa(pid), "no such process")
	}
	st, done, err := e.WaitForProcess(p, hang)
	if done {
		e.ForgetProcess(pid)
	}
	return st, done, err
}

// StartLogical starts a shell-internal goroutine process. fn computes the
// resulting Status; it must not panic.
func (e *Executor) StartLogical(fn func() Status) *Process {
	p := &Process{Pid: allocLogicalPid(), done: make(chan struct{})}
	e.TrackProcess(p)
	go func() {
		st := fn()
		p.mu.Lock()
		p.status = st
		p.mu.Unlock()
		close(p.done)
	}()
	return p
}

// WaitForProcess blocks (when hang) or polls for a process's termination,
// mapping the raw wait status to Status, per spec.md §4.4. A real OS
// process is only collected by a blocking call: until then a polling call
// reports it as Running, and afterwards either form returns the collected
// status.
func (e *Executor) WaitForProcess(p *Process, hang bool) (Status, bool, error) {
	if p.cmd == nil {
		// Logical process: wait on the done channel.
		if hang {
			<-p.done
		} else {
			select {
			case <-p.done:
			default:
				return Status{Kind: Running}, false, nil
			}
		}
		p.mu.Lock()
		st := p.status
		p.mu.Unlock()
		return st, true, nil
	}

	select {
	case <-p.done:
		p.mu.Lock()
		st := p.status
		p.mu.Unlock()
		return st, true, nil
	default:
	}
	if !hang {
		return Status{Kind: Running}, false, nil
	}
	err := p.cmd.Wait()
	st := statusFromError(p.cmd, err)
	p.mu.Lock()
	p.status = st
	p.mu.Unlock()
	close(p.done)
	return st, true, nil
}

func statusFromError(cmd *osexec.Cmd, err error) Status {
	if err == nil {
		return Status{Kind: Exited, Code: 0}
	}
	if exitErr, ok := err.(*osexec.ExitError); ok {
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok {
			if ws.Signaled() {
				return Status{Kind: Signaled, Signal: ws.Signal(), CoreDump: ws.CoreDump()}
			}
			if ws.Stopped() {
				return Status{Kind: Stopped, Signal: ws.StopSignal()}
			}
			return Status{Kind: Exited, Code: ws.ExitStatus()}
		}
		return Status{Kind: Exited, Code: exitErr.ExitCode()}
	}
	// Failed to even start/exec: POSIX "not found"/"not executable".
	return Status{Kind: Exited, Code: 127}
}

// SetForegroundForProcess gives the controlling terminal to pid's process
// group, a no-op when monitor is off, per spec.md §4.4.
func (e *Executor) SetForegroundForProcess(pid int) {
	if !e.monitor {
		return
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return
	}
	defer tty.Close()
	unix.IoctlSetPointerInt(int(tty.Fd()), unix.TIOCSPGRP, pid)
}

// SetForegroundForShell returns the controlling terminal to the shell's own
// process group.
func (e *Executor) SetForegroundForShell() {
	e.SetForegroundForProcess(os.Getpgrp())
}

// CloseAndMoveFilesForExecute prepares the process's fd table for execve:
// drops saved baselines and the pipe stack, renumbers each vfd's top file
// to live at fd == vfd via dup2, and clears close-on-exec on those fds, per
// spec.md §4.4. It returns the first dup2 error, if any.
func (e *Executor) CloseAndMoveFilesForExecute() error {
	for _, s := range e.vfds {
		s.saved = nil
	}
	e.ClearPipes()
	for vfd, s := range e.vfds {
		if len(s.stack) == 0 {
			continue
		}
		top := s.stack[len(s.stack)-1].File
		if int(top.Fd()) == vfd {
			clearCloseOnExec(vfd)
			continue
		}
		if err := unix.Dup2(int(top.Fd()), vfd); err != nil {
			return err
		}
		clearCloseOnExec(vfd)
	}
	return nil
}

func clearCloseOnExec(fd int) {
	fl, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return
	}
	unix.FcntlInt(uintptr(fd), unix.F_SETFD, fl&^unix.FD_CLOEXEC)
}
