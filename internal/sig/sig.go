// Package sig implements C3: signal installation/restoration, a
// checkpointed pending-signal bitmap polled between commands, and trap
// action storage. Grounded on the signal set and set_signal/has_signal/
// clear_signal/get_sigaction/set_sigaction contract in
// _examples/original_source/src/signals.rs, using os/signal for delivery
// (the only correct Go integration point; golang.org/x/sys/unix supplies the
// signal name/number table and process-group kill primitives).
package sig

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Names lists every signal name recognized by the shell, per spec.md §6,
// in the fixed order used for "kill -l"-style listings. EXIT is a
// synthetic pseudo-signal with no OS counterpart.
var Names = []string{
	"EXIT", "ABRT", "ALRM", "BUS", "CHLD", "CONT", "FPE", "HUP", "ILL",
	"INT", "KILL", "PIPE", "QUIT", "SEGV", "STOP", "TERM", "TSTP", "TTIN",
	"TTOU", "USR1", "USR2", "PROF", "SYS", "TRAP", "URG", "VTALRM", "XCPU",
	"XFSZ",
}

var byName = map[string]syscall.Signal{
	"ABRT": unix.SIGABRT, "ALRM": unix.SIGALRM, "BUS": unix.SIGBUS,
	"CHLD": unix.SIGCHLD, "CONT": unix.SIGCONT, "FPE": unix.SIGFPE,
	"HUP": unix.SIGHUP, "ILL": unix.SIGILL, "INT": unix.SIGINT,
	"KILL": unix.SIGKILL, "PIPE": unix.SIGPIPE, "QUIT": unix.SIGQUIT,
	"SEGV": unix.SIGSEGV, "STOP": unix.SIGSTOP, "TERM": unix.SIGTERM,
	"TSTP": unix.SIGTSTP, "TTIN": unix.SIGTTIN, "TTOU": unix.SIGTTOU,
	"USR1": unix.SIGUSR1, "USR2": unix.SIGUSR2, "PROF": unix.SIGPROF,
	"SYS": unix.SIGSYS, "TRAP": unix.SIGTRAP, "URG": unix.SIGURG,
	"VTALRM": unix.SIGVTALRM, "XCPU": unix.SIGXCPU, "XFSZ": unix.SIGXFSZ,
}

// ByName resolves a signal name (with or without "SIG" prefix) to a
// syscall.Signal. EXIT is not an OS signal and is reported as ok=false.
func ByName(name string) (syscall.Signal, bool) {
	name = trimSigPrefix(name)
	s, ok := byName[name]
	return s, ok
}

func trimSigPrefix(name string) string {
	if len(name) > 3 && name[:3] == "SIG" {
		return name[3:]
	}
	return name
}

// Facility tracks pending signals and trap actions for one shell. It is not
// safe for concurrent use from multiple goroutines beyond the one
// background notifier goroutine it starts itself.
type Facility struct {
	mu      sync.Mutex
	pending map[string]bool
	traps   map[string]string // signal name (or "EXIT") -> action source; "" means ignore

	ch   chan os.Signal
	stop chan struct{}
}

// New creates a Facility and starts listening for every named OS signal.
func New() *Facility {
	f := &Facility{
		pending: make(map[string]bool),
		traps:   make(map[string]string),
		ch:      make(chan os.Signal, 64),
		stop:    make(chan struct{}),
	}
	var all []os.Signal
	for _, n := range Names {
		if n == "EXIT" {
			continue
		}
		s, ok := byName[n]
		if !ok {
			continue
		}
		all = append(all, s)
	}
	signal.Notify(f.ch, all...)
	go f.loop()
	return f
}

func (f *Facility) loop() {
	for {
		select {
		case s := <-f.ch:
			f.mark(s)
		case <-f.stop:
			return
		}
	}
}

func (f *Facility) mark(s os.Signal) {
	sig, ok := s.(syscall.Signal)
	if !ok {
		return
	}
	for name, n := range byName {
		if n == sig {
			f.mu.Lock()
			f.pending[name] = true
			f.mu.Unlock()
			return
		}
	}
}

// Close stops the background notifier goroutine.
func (f *Facility) Close() {
	signal.Stop(f.ch)
	close(f.stop)
}

// HasSignal reports and does not clear whether name is pending.
func (f *Facility) HasSignal(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[name]
}

// ClearSignal clears the pending flag for name.
func (f *Facility) ClearSignal(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, name)
}

// Drain returns the names of every currently pending signal and clears
// them, in the fixed Names order, for the interpreter's between-command
// poll (spec.md §4.7 "Signal delivery & traps").
func (f *Facility) Drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range Names {
		if f.pending[n] {
			out = append(out, n)
			delete(f.pending, n)
		}
	}
	return out
}

// SetTrap installs a trap action for a signal name ("" action means ignore,
// see Trap below for "restore default").
func (f *Facility) SetTrap(name, action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traps[name] = action
}

// ClearTrap restores default handling for a signal name ("trap - SIG").
func (f *Facility) ClearTrap(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.traps, name)
}

// Trap returns the action source for name and whether one is installed.
func (f *Facility) Trap(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.traps[name]
	return a, ok
}

// Traps returns a snapshot of every installed trap, for "trap -p".
func (f *Facility) Traps() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.traps))
	for k, v := range f.traps {
		out[k] = v
	}
	return out
}

// SetSignal installs or restores a signal's disposition for the shell
// process itself. When interactive is true, SIGINT/SIGTTIN/SIGTTOU are
// ignored at the OS level (job
// control relies on this so the shell itself is immune to terminal signals
// caused by its own children), per spec.md §4.3. Otherwise the signal is
// reset to its default and delivered to the pending-signal channel again.
func (f *Facility) SetSignal(name string, interactive bool) {
	s, ok := ByName(name)
	if !ok {
		return
	}
	switch name {
	case "INT", "TTIN", "TTOU":
		if interactive {
			signal.Ignore(s)
			return
		}
	}
	signal.Reset(s)
	signal.Notify(f.ch, s)
}

// Sigaction is an opaque snapshot used by GetSigaction/SetSigaction to
// temporarily override a signal's disposition, e.g. while waiting on a
// foreground child.
type Sigaction struct {
	Name    string
	Ignored bool
}

// GetSigaction snapshots whether name is currently set to be ignored.
func (f *Facility) GetSigaction(name string) Sigaction {
	s, ok := ByName(name)
	return Sigaction{Name: name, Ignored: ok && signal.Ignored(s)}
}

// SetSigaction restores a previously captured disposition.
func (f *Facility) SetSigaction(a Sigaction) {
	s, ok := ByName(a.Name)
	if !ok {
		return
	}
	if a.Ignored {
		signal.Ignore(s)
		return
	}
	signal.Reset(s)
	signal.Notify(f.ch, s)
}

// Kill sends a signal to a process group (negative pid) or process.
func Kill(pid int, s syscall.Signal) error {
	return unix.Kill(pid, s)
}
