// Statement and command dispatch: the tree-walking core of C7, grounded on
// _examples/mvdan-sh/interp/interp.go's stmt/stmtSync/cmd trio, adapted to
// this repository's vfd-stack redirections (internal/redirect) and
// goroutine-backed logical processes (internal/exec) instead of mvdan-sh's
// mutable stdin/stdout/stderr fields and io.Pipe.
package interp

import (
	"fmt"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/redirect"
	"github.com/posh-shell/posh/internal/settings"
)

// execStmt runs one statement, handling "&" by forking it off into its own
// job and returning immediately, per spec.md §4.7.
func (r *Runner) execStmt(st *syntax.Stmt) {
	if r.stop() {
		return
	}
	if st.Background {
		r.execBackground(st)
		return
	}
	r.execStmtSync(st)
}

// execStmtSync applies a statement's redirections, runs its command, pops
// the redirections (unless "exec" made them permanent), and applies the
// Negated/errexit rules, per spec.md §4.6/§4.7.
func (r *Runner) execStmtSync(st *syntax.Stmt) {
	ops, err := redirect.Plan(r.ec, st.Redirs)
	if err != nil {
		fmt.Fprintln(r.Stderr(), err)
		r.status = 1
		return
	}

	pending := &redirect.Pending{}
	pushed := make([]int, 0, len(ops))
	r.permanentRedirs = false
	ok := true
	for _, op := range ops {
		if err := redirect.Apply(r.ex, op, r.set.Opt(settings.NoClobber), pending); err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			ok = false
			break
		}
		pushed = append(pushed, op.Vfd)
	}

	if ok && st.Cmd != nil {
		r.pendingAssigns = st.Assigns
		if st.Negated {
			r.withNoErrExit(func() { r.execCmd(st.Cmd) })
		} else {
			r.execCmd(st.Cmd)
		}
		r.pendingAssigns = nil
	}

	if !r.permanentRedirs {
		for i := len(pushed) - 1; i >= 0; i-- {
			r.ex.PopFile(pushed[i])
		}
	}

	if err := pending.Reap(); err != nil {
		fmt.Fprintln(r.Stderr(), err)
	}

	if st.Negated {
		if r.status == 0 {
			r.status = 1
		} else {
			r.status = 0
		}
	} else {
		r.checkErrExit(st.Cmd)
	}
}

// checkErrExit implements "set -e", per spec.md §4.7: a nonzero status
// exits a non-interactive shell unless it came from a condition, a
// pipeline/AND-OR component that already handled its own suppression, or a
// compound command whose last simple command already triggered it.
func (r *Runner) checkErrExit(cmd syntax.Command) {
	if r.ctrl != ctrlNone || r.status == 0 || r.nonSimple > 0 {
		return
	}
	if !r.set.Opt(settings.ErrExit) {
		return
	}
	if bc, ok := cmd.(*syntax.BinaryCmd); ok && (bc.Op == syntax.AndStmt || bc.Op == syntax.OrStmt) {
		return
	}
	r.ctrl = ctrlExit
	r.exitCode = r.status
}

// withNoErrExit suppresses errexit for the duration of fn, for condition
// contexts (if/while/until conditions, the left side of &&/||), per
// spec.md §4.7 "non_simple_command_count".
func (r *Runner) withNoErrExit(fn func()) {
	r.nonSimple++
	fn()
	r.nonSimple--
}

// execBackground forks st off as its own job: a cloned Runner runs it on a
// goroutine-backed logical process, and the parent continues without
// waiting or touching $?, per spec.md §4.4/§4.7.
func (r *Runner) execBackground(st *syntax.Stmt) {
	r2 := r.subshell(r.ex.Top(0), r.ex.Top(1), r.ex.Top(2))
	fg := *st
	fg.Background = false

	proc := r.ex.StartLogical(func() exec.Status {
		r2.execStmtSync(&fg)
		return exec.Status{Kind: exec.Exited, Code: r2.status}
	})
	r.lastBgPid = proc.Pid
	job := r.ex.Jobs().AddJob(0, []int{proc.Pid}, sourceName(st))
	go func() {
		st, _, _ := r.ex.WaitForProcess(proc, true)
		r.ex.Jobs().SetJobLastStatus(job.ID, st)
	}()
}

// execCmd dispatches on the concrete command node, per spec.md §4.8.
func (r *Runner) execCmd(cmd syntax.Command) {
	if r.stop() {
		return
	}
	switch cm := cmd.(type) {
	case *syntax.CallExpr:
		r.execSimple(cm)

	case *syntax.Block:
		r.execList(cm.Stmts)

	case *syntax.Subshell:
		r.execSubshell(cm.Stmts)

	case *syntax.BinaryCmd:
		r.execBinary(cm)

	case *syntax.IfClause:
		r.execIf(cm)

	case *syntax.WhileClause:
		r.execWhile(cm)

	case *syntax.UntilClause:
		r.execUntil(cm)

	case *syntax.ForClause:
		r.execFor(cm)

	case *syntax.CaseClause:
		r.execCase(cm)

	case *syntax.FuncDecl:
		r.env.SetFunc(cm.Name.Value, cm.Body)
		r.status = 0

	case *syntax.ArithmCmd:
		v, err := r.ec.Arithm(cm.X)
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		r.status = boolStatus(v != 0)

	default:
		// Bash extensions (TestClause, LetClause, DeclClause, ...) never
		// appear under the POSIX-conformant grammar this interpreter parses
		// with; a stray one (e.g. from a trap action) is a syntax error.
		fmt.Fprintf(r.Stderr(), "posh: unsupported construct\n")
		r.status = 2
	}
}

func (r *Runner) execBinary(cm *syntax.BinaryCmd) {
	switch cm.Op {
	case syntax.AndStmt, syntax.OrStmt:
		r.withNoErrExit(func() { r.execStmt(cm.X) })
		if r.stop() {
			return
		}
		if (r.status == 0) == (cm.Op == syntax.AndStmt) {
			r.execStmt(cm.Y)
		}
	case syntax.Pipe, syntax.PipeAll:
		r.execPipeline(cm)
	}
}

func (r *Runner) execSubshell(stmts []*syntax.Stmt) {
	r2 := r.subshell(r.ex.Top(0), r.ex.Top(1), r.ex.Top(2))
	proc := r.ex.StartLogical(func() exec.Status {
		r2.execList(stmts)
		return exec.Status{Kind: exec.Exited, Code: r2.status}
	})
	st, _, _ := r.ex.WaitForProcess(proc, true)
	r.ex.ForgetProcess(proc.Pid)
	r.status = st.Code
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

// sourceName renders a short label for a job table entry ("jobs"/"fg"/"bg"
// display), a best effort since this repository does not carry a printer.
func sourceName(st *syntax.Stmt) string {
	if ce, ok := st.Cmd.(*syntax.CallExpr); ok && len(ce.Args) > 0 {
		return ce.Args[0].Lit()
	}
	return "..."
}
