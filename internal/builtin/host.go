// Package builtin implements C8: the built-in commands whose semantics
// touch control flow (spec.md §4.8) plus the supplemented utility
// built-ins from SPEC_FULL.md §12 (fg/bg/jobs/wait/getopts/umask/times/
// alias/unalias). Grounded on the dispatch-table idiom of
// _examples/mvdan-sh/interp/builtin.go's Runner.builtin switch and the
// matching Rust sources under _examples/original_source/src/builtins/.
//
// Builtins never import interp directly (interp imports builtin): a
// Host interface carries exactly the operations a builtin needs to touch
// shell state, the same separation mvdan-sh gets via HandlerContext/
// CallHandlerFunc for injected behavior.
package builtin

import (
	"io"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/sig"
)

// Host is the shell-state surface a built-in may read or mutate. interp.Runner
// implements it.
type Host interface {
	Env() *env.Store
	Settings() *settings.Settings
	Sig() *sig.Facility
	Exec() *exec.Executor

	ExpandLiteral(w *syntax.Word) (string, error)
	ExpandFields(ws []syntax.Word) ([]string, error)

	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer

	LastStatus() int

	// InFunction reports whether the call site is inside a function body,
	// for "return outside a function" / loop-depth checks.
	InFunction() bool
	LoopDepth() int

	// Control-flow signals the interpreter must propagate upward, per
	// spec.md §3's return_state and §9's tagged-state design.
	SetReturn(code int)
	SetBreak(levels int)
	SetContinue(levels int)
	SetExit(code int)

	// RunSource parses and runs src as a new statement list in the current
	// shell (used by "." and "eval"), returning the resulting status.
	RunSource(src, name string) (int, error)

	// ExecReplace performs the flatten/renumber step and replaces the
	// current process (the no-args-less "exec" form).
	ExecReplace(args []string) error
	// MakePermanent makes the in-progress redirections of the calling
	// command permanent for the shell (the no-args "exec" form).
	MakePermanent()

	// RunCommand runs args as a simple command using the interpreter's own
	// resolution order, but skipping function lookup when skipFunctions is
	// set (the "command" built-in's purpose: fall through to a regular
	// built-in or a PATH executable even when a function shadows the name).
	RunCommand(args []string, skipFunctions bool) (int, error)

	Interactive() bool
}

// IsSpecial reports whether name is one of the special built-ins named in
// spec.md's glossary: their argument errors terminate a non-interactive
// shell, and an assignment prefix on their command line persists in shell
// state rather than scoping to the command.
func IsSpecial(name string) bool {
	switch name {
	case ":", ".", "exec", "exit", "return", "readonly", "export", "set",
		"shift", "trap", "times", "break", "continue":
		return true
	}
	return false
}

// Names lists every built-in this package implements, for "command -v"/
// "type" resolution.
var Names = []string{
	":", ".", "eval", "exec", "exit", "return", "break", "continue",
	"readonly", "export", "unset", "set", "shift", "trap", "times",
	"read", "cd", "pwd", "echo", "true", "false",
	"alias", "unalias", "jobs", "fg", "bg", "wait", "getopts", "umask",
	"command", "type",
}

func IsBuiltin(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
