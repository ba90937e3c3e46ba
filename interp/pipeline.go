// Pipeline execution, grounded on _examples/mvdan-sh/interp/interp.go's
// recursive two-stage io.Pipe handling for syntax.BinaryCmd{Op: Pipe},
// generalized here into an n-stage flatten/fork/wait so the shell's Job
// table (internal/exec) gets one entry per pipeline with every stage's pid,
// per spec.md §4.7 "Pipeline". Waiting on every stage concurrently is
// delegated to internal/exec's errgroup-based WaitAll, per SPEC_FULL.md §11.
package interp

import (
	"fmt"
	"os"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/exec"
)

// flattenPipeline unrolls the left-recursive chain of Pipe/PipeAll
// BinaryCmds mvdan-sh's parser produces for "a | b | c" into an ordered
// stage list, plus whether each boundary also routes the left stage's
// stderr into the pipe ("|&").
func flattenPipeline(bc *syntax.BinaryCmd) (stages []*syntax.Stmt, pipeAll []bool) {
	var walk func(st *syntax.Stmt)
	walk = func(st *syntax.Stmt) {
		if inner, ok := st.Cmd.(*syntax.BinaryCmd); ok &&
			(inner.Op == syntax.Pipe || inner.Op == syntax.PipeAll) {
			walk(inner.X)
			stages = append(stages, inner.Y)
			pipeAll = append(pipeAll, inner.Op == syntax.PipeAll)
			return
		}
		stages = append(stages, st)
	}
	walk(bc.X)
	stages = append(stages, bc.Y)
	pipeAll = append(pipeAll, bc.Op == syntax.PipeAll)
	return stages, pipeAll
}

// execPipeline runs every stage of a pipeline concurrently, wiring each
// adjacent pair through a pipe. Every stage (whether a plain external
// command, a builtin, or a compound command) runs as a goroutine-backed
// logical process driving its own cloned Runner, since Go cannot fork this
// process while keeping it able to run arbitrary interpreter code; a stage
// that itself resolves to an external program still forks a real OS
// process from inside that goroutine via execSimple/runExternal.
func (r *Runner) execPipeline(bc *syntax.BinaryCmd) {
	stages, pipeAll := flattenPipeline(bc)
	n := len(stages)

	pipes := make([]exec.Pipe, n-1)
	for i := range pipes {
		p, err := exec.NewPipe()
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		pipes[i] = p
	}

	procs := make([]*exec.Process, n)
	pids := make([]int, n)
	var toClose []*os.File

	for i, stage := range stages {
		stdin, err := r.dupStageFile(i, n, pipes, false)
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		stdout, err := r.dupStageFile(i, n, pipes, true)
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		stderr := r.ex.Top(2)
		if i < n-1 && pipeAll[i] {
			stderr, err = exec.DupFile(pipes[i].Writing)
			if err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
			toClose = append(toClose, stderr)
		} else {
			stderr, err = exec.DupFile(stderr)
			if err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
			toClose = append(toClose, stderr)
		}
		toClose = append(toClose, stdin, stdout)

		r2 := r.subshell(stdin, stdout, stderr)
		st := stage
		own := stdin
		ownOut := stdout
		ownErr := stderr
		procs[i] = r.ex.StartLogical(func() exec.Status {
			defer own.Close()
			defer ownOut.Close()
			defer ownErr.Close()
			r2.execStmt(st)
			return exec.Status{Kind: exec.Exited, Code: r2.status}
		})
		pids[i] = procs[i].Pid
	}

	// The orchestrator's own references to the pipe template files are no
	// longer needed once every stage holds its own
	// dup'd descriptor; closing them here lets EOF propagate correctly
	// without touching the fds each goroutine is actually using.
	for _, p := range pipes {
		p.Reading.Close()
		p.Writing.Close()
	}

	job := r.ex.Jobs().AddJob(0, pids, sourceName(stages[0]))
	statuses, _ := r.ex.WaitAll(procs)
	for i, st := range statuses {
		job.Statuses[i] = st
		r.ex.ForgetProcess(procs[i].Pid)
	}
	_ = toClose

	last := statuses[len(statuses)-1]
	switch last.Kind {
	case exec.Signaled:
		r.status = 128 + int(last.Signal)
	default:
		r.status = last.Code
	}
}

// dupStageFile resolves and duplicates the file stage i of n should use for
// stdin (want=false) or stdout (want=true): the shell's own stdio at the
// pipeline's open ends, or a pipe's read/write end in between.
func (r *Runner) dupStageFile(i, n int, pipes []exec.Pipe, want bool) (*os.File, error) {
	if !want {
		if i == 0 {
			return exec.DupFile(r.ex.Top(0))
		}
		return exec.DupFile(pipes[i-1].Reading)
	}
	if i == n-1 {
		return exec.DupFile(r.ex.Top(1))
	}
	return exec.DupFile(pipes[i].Writing)
}
