package interp

import (
	"io"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/sig"
)

// The methods in this file satisfy builtin.Host (asserted in runner.go),
// the narrow surface internal/builtin uses to read and mutate shell state
// without importing this package.

func (r *Runner) Sig() *sig.Facility   { return r.sigs }
func (r *Runner) Exec() *exec.Executor { return r.ex }

func (r *Runner) ExpandLiteral(w *syntax.Word) (string, error) { return r.ec.Literal(w) }
func (r *Runner) ExpandFields(ws []syntax.Word) ([]string, error) {
	return r.ec.FieldsOfWords(ws)
}

func (r *Runner) Stdin() io.Reader { return r.ex.Top(0) }
func (r *Runner) Stdout() io.Writer {
	if f := r.ex.Top(1); f != nil {
		return f
	}
	return io.Discard
}
func (r *Runner) Stderr() io.Writer {
	if f := r.ex.Top(2); f != nil {
		return f
	}
	return io.Discard
}

func (r *Runner) LastStatus() int { return r.status }

func (r *Runner) InFunction() bool { return r.inFunc }
func (r *Runner) LoopDepth() int   { return r.loopDepth }

func (r *Runner) SetReturn(code int) {
	r.ctrl = ctrlReturn
	r.status = code
}

func (r *Runner) SetBreak(levels int) {
	if levels < 1 {
		levels = 1
	}
	r.ctrl = ctrlBreak
	r.ctrlLevels = levels
}

func (r *Runner) SetContinue(levels int) {
	if levels < 1 {
		levels = 1
	}
	r.ctrl = ctrlContinue
	r.ctrlLevels = levels
}

func (r *Runner) SetExit(code int) {
	r.ctrl = ctrlExit
	r.exitCode = code
	r.status = code
}

// RunSource parses and runs src as a new statement list in the current
// shell, used by "." and "eval": neither introduces a subshell or clears
// $?/control-flow state on its own, per spec.md §4.8.
func (r *Runner) RunSource(src, name string) (int, error) {
	stmts, err := parseSource(src, name)
	if err != nil {
		return 2, err
	}
	return r.Run(stmts), nil
}

// ExecReplace implements the "exec prog args..." form: flatten the vfd
// stack onto fds 0..N via dup2, then replace this process image entirely.
// On success it never returns.
func (r *Runner) ExecReplace(args []string) error {
	return r.execReplace(args)
}

// MakePermanent implements the no-args "exec" form: the calling command's
// in-progress redirections must outlive the statement instead of being
// popped when it finishes.
func (r *Runner) MakePermanent() { r.permanentRedirs = true }

// RunCommand runs args as a simple command using the interpreter's normal
// resolution order, optionally skipping function lookup (the "command"
// built-in's reason for existing).
func (r *Runner) RunCommand(args []string, skipFunctions bool) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return r.invoke(args, skipFunctions)
}

func (r *Runner) Interactive() bool { return r.interactive }
