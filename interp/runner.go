// Package interp implements C7: the command interpreter that drives a
// parsed mvdan.cc/sh/v3/syntax tree, consulting C1/C2 for state, orchestrating
// C5 to materialize argument vectors, C6 to set up file descriptors, and C4
// to fork and wait. Grounded on the Runner/exitStatus/overlayEnviron idiom of
// _examples/mvdan-sh/interp/api.go and runner.go, rebuilt end to end against
// this repository's own env/settings/sig/exec/expand/redirect packages
// instead of mvdan.cc/sh/v3/expand and mvdan.cc/sh/v3/interp.
package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/expand"
	"github.com/posh-shell/posh/internal/builtin"
	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/sig"
	"github.com/posh-shell/posh/internal/trace"
)

// ctrlKind tags the control-flow signal a statement left behind, generalized
// from the exitStatus.returning/exiting pair in
// _examples/mvdan-sh/interp/api.go into a single tagged state so break/
// continue can be represented alongside return/exit without extra booleans.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
	ctrlExit
)

// Runner interprets a parsed shell program. It is not safe for concurrent
// use; pipeline stages and background jobs each get their own Runner via
// subshell, sharing only the signal facility (process-wide); variables,
// aliases, functions and settings are cloned.
type Runner struct {
	env   *env.Store
	set   *settings.Settings
	sigs  *sig.Facility
	ex    *exec.Executor
	ec    *expand.Expander
	trace *trace.Tracer

	dir string

	status    int // $?
	lastBgPid int

	ctrl       ctrlKind
	ctrlLevels int
	exitCode   int

	inFunc    bool
	loopDepth int
	nonSimple int // >0 suppresses errexit, per spec.md §4.7 "Errexit"

	aliasStack map[string]bool // cycle guard for the alias substitution in progress

	// pendingAssigns carries a statement's assignment prefix from
	// execStmtSync (which has the *syntax.Stmt) to execSimple (which only
	// sees the syntax.Command), since assignment-prefix scoping depends on
	// how the command word resolves, per spec.md §4.7.
	pendingAssigns []*syntax.Assign

	// permanentRedirs is set by the "exec" built-in (no-args form) to tell
	// execStmtSync to leave the current statement's redirections in place
	// instead of popping them once it returns, per spec.md §4.8.
	permanentRedirs bool

	interactive bool

	// ownsSigs is false for subshells, which share the parent's Facility
	// rather than starting a second OS signal listener.
	ownsSigs bool
}

// New creates a top-level Runner. name becomes $0; args become the initial
// positional parameters ($1..). stdin/stdout/stderr seed vfd 0/1/2.
func New(name string, args []string, stdin, stdout, stderr *os.File) *Runner {
	r := &Runner{
		env:      env.New(),
		set:      settings.New(name, args),
		sigs:     sig.New(),
		ownsSigs: true,
	}
	r.ex = exec.New(stdin, stdout, stderr, false)
	r.trace = trace.New(stderr, r.ps4)
	r.buildExpander()
	r.seedDefaults()
	return r
}

func (r *Runner) seedDefaults() {
	if !r.env.Get("PATH").Set {
		r.env.SetVar("PATH", "/bin:/usr/bin")
		r.env.SetExported("PATH", true)
	}
	if !r.env.Get("IFS").Set {
		r.env.SetVar("IFS", " \t\n")
	}
	if !r.env.Get("PWD").Set {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		r.dir = wd
		r.env.SetVar("PWD", wd)
		r.env.SetExported("PWD", true)
	} else {
		r.dir = r.env.Get("PWD").Str
	}
	if !r.env.Get("HOME").Set {
		if h, err := os.UserHomeDir(); err == nil {
			r.env.SetVar("HOME", h)
			r.env.SetExported("HOME", true)
		}
	}
	r.env.SetVar("PPID", strconv.Itoa(os.Getppid()))
	r.env.SetExported("PPID", true)
	r.env.SetVar("OPTIND", "1")
	if !r.env.Get("PS4").Set {
		r.env.SetVar("PS4", "+ ")
	}
}

func (r *Runner) buildExpander() {
	r.ec = expand.New(expand.Config{
		Env:        r.env,
		Settings:   r.set,
		CmdSubst:   r.runCmdSubst,
		LastStatus: func() int { return r.status },
		LastBgPid:  func() int { return r.lastBgPid },
		Dollar:     os.Getpid(),
	})
}

func (r *Runner) ps4() string {
	v := r.env.Get("PS4")
	if v.Set {
		return v.Str
	}
	return "+ "
}

// SetInteractive marks the shell as interactive, enabling job-control signal
// dispositions (SIGINT/SIGTTIN/SIGTTOU ignored in the shell itself).
func (r *Runner) SetInteractive(v bool) {
	r.interactive = v
	r.set.SetOpt(settings.Interactive, v)
	for _, n := range []string{"INT", "TTIN", "TTOU"} {
		r.sigs.SetSignal(n, v)
	}
}

// SetMonitor enables job control ("set -m"): children get their own process
// groups and the controlling terminal is handed to the foreground job.
func (r *Runner) SetMonitor(v bool) {
	r.set.SetOpt(settings.Monitor, v)
	r.ex.SetMonitor(v)
}

// Settings exposes the option/positional-parameter state, e.g. for cmd/posh
// to apply "-c"/"-s" command-line option letters before running.
func (r *Runner) Settings() *settings.Settings { return r.set }

// Env exposes the variable/alias/function table, e.g. for cmd/posh to seed
// the inherited process environment before the first run.
func (r *Runner) Env() *env.Store { return r.env }

// Close releases the signal facility's background listener goroutine.
func (r *Runner) Close() {
	if r.ownsSigs {
		r.sigs.Close()
	}
}

// stop reports whether statement execution at any nesting level should halt
// immediately. Every ctrlKind other than ctrlNone halts further statements:
// break/continue still have to unwind out through any enclosing blocks
// before runLoopBody (the only place that clears or re-levels them) can
// catch them at the right loop.
func (r *Runner) stop() bool {
	return r.ctrl != ctrlNone
}

// Run executes a parsed statement list as the top level of the shell (or of
// a ".'"/"eval" reinvocation) and returns the resulting exit status.
func (r *Runner) Run(stmts []*syntax.Stmt) int {
	r.execList(stmts)
	if r.ctrl == ctrlReturn {
		// "return" outside any function, e.g. from a sourced script: treat
		// like falling off the end of the list, per spec.md §4.8.
		r.ctrl = ctrlNone
	}
	return r.status
}

// Exited reports whether the "exit" built-in (or a fatal special-builtin
// error) has set the shell's terminating control state, for callers that
// drive multiple Run calls over one Runner (an interactive read-eval loop)
// and need to know when to stop reading and fire the EXIT trap.
func (r *Runner) Exited() bool {
	return r.ctrl == ctrlExit
}

// FireExitTrap runs the EXIT pseudo-signal trap action, if one is
// installed, exactly once. Safe to call unconditionally at shell
// termination; a no-op if no EXIT trap was ever set.
func (r *Runner) FireExitTrap() {
	if action, ok := r.sigs.Trap("EXIT"); ok && action != "" {
		r.runTrapAction(action, "EXIT")
	}
}

// RunAndTrapExit is Run plus firing the EXIT pseudo-signal trap exactly once,
// used by the top-level shell (not by "." or "eval", which must not trigger
// it), per spec.md §4.7.
func (r *Runner) RunAndTrapExit(stmts []*syntax.Stmt) int {
	r.Run(stmts)
	r.FireExitTrap()
	return r.status
}

func (r *Runner) execList(stmts []*syntax.Stmt) {
	for _, st := range stmts {
		if r.stop() {
			return
		}
		r.pollTraps()
		if r.stop() {
			return
		}
		r.execStmt(st)
	}
}

// pollTraps drains pending signals and runs any installed trap action for
// each, between statements only, per spec.md §4.7.
func (r *Runner) pollTraps() {
	for _, name := range r.sigs.Drain() {
		action, ok := r.sigs.Trap(name)
		if !ok || action == "" {
			continue
		}
		r.runTrapAction(action, name)
	}
}

func (r *Runner) runTrapAction(src, name string) {
	file, err := syntax.Parse([]byte(src), name+" trap", syntax.PosixConformant)
	if err != nil {
		fmt.Fprintf(r.Stderr(), "trap: %s: %s\n", name, err)
		return
	}
	savedStatus := r.status
	r.execList(file.Stmts)
	r.status = savedStatus
}

// parseSource parses src under name using POSIX-conformant mode, the mode
// every entry point into new source (".", "eval", trap actions, alias
// re-substitution) uses.
func parseSource(src, name string) ([]*syntax.Stmt, error) {
	file, err := syntax.Parse([]byte(src), name, syntax.PosixConformant)
	if err != nil {
		return nil, err
	}
	return file.Stmts, nil
}

// subshell builds a Runner that shares the process-wide signal facility but
// has its own cloned variable/alias/function table, option/positional state,
// and virtual-fd stack seeded with the given stdio, per spec.md §5 "Subshell
// semantics".
func (r *Runner) subshell(stdin, stdout, stderr *os.File) *Runner {
	r2 := &Runner{
		env:         r.env.Clone(),
		set:         r.set.Clone(),
		sigs:        r.sigs,
		dir:         r.dir,
		status:      r.status,
		inFunc:      r.inFunc,
		interactive: r.interactive,
	}
	r2.ex = exec.New(stdin, stdout, stderr, r.ex.Monitor())
	r2.trace = trace.New(stderr, r2.ps4)
	r2.buildExpander()
	return r2
}

var _ builtin.Host = (*Runner)(nil)

func absPath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
