package interp

import (
	"fmt"

	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/expand"
)

func (r *Runner) execIf(cm *syntax.IfClause) {
	r.withNoErrExit(func() { r.execList(cm.CondStmts) })
	if r.stop() {
		return
	}
	if r.status == 0 {
		r.execList(cm.ThenStmts)
		return
	}
	r.status = 0
	for _, elif := range cm.Elifs {
		r.withNoErrExit(func() { r.execList(elif.CondStmts) })
		if r.stop() {
			return
		}
		if r.status == 0 {
			r.execList(elif.ThenStmts)
			return
		}
		r.status = 0
	}
	r.execList(cm.ElseStmts)
}

func (r *Runner) execWhile(cm *syntax.WhileClause) {
	r.loopDepth++
	defer func() { r.loopDepth-- }()
	for !r.stop() {
		r.withNoErrExit(func() { r.execList(cm.CondStmts) })
		if r.stop() {
			return
		}
		stop := r.status != 0
		r.status = 0
		if stop {
			return
		}
		if r.runLoopBody(cm.DoStmts) {
			return
		}
	}
}

func (r *Runner) execUntil(cm *syntax.UntilClause) {
	r.loopDepth++
	defer func() { r.loopDepth-- }()
	for !r.stop() {
		r.withNoErrExit(func() { r.execList(cm.CondStmts) })
		if r.stop() {
			return
		}
		stop := r.status == 0
		r.status = 0
		if stop {
			return
		}
		if r.runLoopBody(cm.DoStmts) {
			return
		}
	}
}

func (r *Runner) execFor(cm *syntax.ForClause) {
	r.loopDepth++
	defer func() { r.loopDepth-- }()

	switch loop := cm.Loop.(type) {
	case *syntax.WordIter:
		items := r.set.Args()
		if loop.List != nil {
			var err error
			items, err = r.ec.FieldsOfWords(loop.List)
			if err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
		}
		for _, it := range items {
			if r.stop() {
				return
			}
			if err := r.env.SetVar(loop.Name.Value, it); err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
			if r.runLoopBody(cm.DoStmts) {
				return
			}
		}

	case *syntax.CStyleLoop:
		// Bash extension, never produced by the POSIX-conformant parser
		// this interpreter uses; handled for completeness of the dispatch.
		if _, err := r.ec.Arithm(loop.Init); err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		for {
			cond, err := r.ec.Arithm(loop.Cond)
			if err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
			if cond == 0 {
				return
			}
			if r.stop() || r.runLoopBody(cm.DoStmts) {
				return
			}
			if _, err := r.ec.Arithm(loop.Post); err != nil {
				fmt.Fprintln(r.Stderr(), err)
				r.status = 1
				return
			}
		}
	}
}

// runLoopBody runs a loop's body once and reports whether the enclosing Go
// loop must stop. It is the only place that consumes a pending ctrlBreak/
// ctrlContinue signal, decrementing its level count so "break 2" unwinds
// exactly two loop frames, per spec.md §4.8.
func (r *Runner) runLoopBody(stmts []*syntax.Stmt) (stopLoop bool) {
	r.execList(stmts)
	// r.loopDepth <= 1 means this frame is the outermost enclosing loop: a
	// count that still has levels left to unwind past this point has no
	// further loop to catch it, so it clamps here instead of leaking out as
	// an undischarged ctrlBreak/ctrlContinue that would halt every statement
	// after the loop, per spec.md §4.8.
	switch r.ctrl {
	case ctrlContinue:
		r.ctrlLevels--
		if r.ctrlLevels <= 0 || r.loopDepth <= 1 {
			r.ctrl = ctrlNone
			return false
		}
		return true
	case ctrlBreak:
		r.ctrlLevels--
		if r.ctrlLevels <= 0 || r.loopDepth <= 1 {
			r.ctrl = ctrlNone
		}
		return true
	}
	return false
}

func (r *Runner) execCase(cm *syntax.CaseClause) {
	val, err := r.ec.Literal(&cm.Word)
	if err != nil {
		fmt.Fprintln(r.Stderr(), err)
		r.status = 1
		return
	}
	r.status = 0
	for _, item := range cm.List {
		if r.matchCaseItem(item, val) {
			r.execList(item.Stmts)
			return
		}
	}
}

func (r *Runner) matchCaseItem(item *syntax.PatternList, val string) bool {
	for i := range item.Patterns {
		pat, err := r.ec.Literal(&item.Patterns[i])
		if err != nil {
			continue
		}
		if expand.MatchPattern(pat, val) {
			return true
		}
	}
	return false
}
