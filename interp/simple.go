// Simple-command execution: alias substitution, assignment-prefix handling,
// and the special-builtin/function/builtin/external resolution order, per
// spec.md §4.7 "Simple command". Grounded on _examples/mvdan-sh/interp/
// runner.go's cmd()/call() pair (alias splicing, the fork/exec split for
// external programs) and interp/vars.go's overlayEnviron idiom (temporary
// assignment-prefix scoping), rebuilt against this repository's own
// internal/env, internal/exec, and internal/builtin packages.
package interp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/builtin"
	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/shellerr"
)

// traceAssigns emits one xtrace line per assignment, in name-sorted order
// for deterministic output, when "set -x" is active.
func (r *Runner) traceAssigns(vals map[string]string) {
	if !r.trace.Enabled() || len(vals) == 0 {
		return
	}
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.trace.Assign(name, vals[name])
	}
}

// soleLit reports the literal text of w when it consists of exactly one
// unquoted *syntax.Lit part, the shape a command word or alias name must
// have to be eligible for alias lookup.
func soleLit(w *syntax.Word) (string, bool) {
	if len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

// expandAliases substitutes a leading alias name with its stored expansion,
// repeating while the result's own leading word is itself an unexpanded
// alias, per spec.md §6 "Alias substitution rules". Grounded on
// _examples/mvdan-sh/interp/runner.go's cmd(), simplified to re-parse the
// alias value on each substitution instead of caching a pre-parsed word
// list; aliasStack guards against a cycle (e.g. alias ls=ls).
func (r *Runner) expandAliases(args []syntax.Word) []syntax.Word {
	if len(args) == 0 {
		return args
	}
	name, ok := soleLit(&args[0])
	if !ok {
		return args
	}
	val, ok := r.env.Alias(name)
	if !ok {
		return args
	}
	if r.aliasStack == nil {
		r.aliasStack = make(map[string]bool)
	}
	if r.aliasStack[name] {
		return args
	}

	file, err := syntax.Parse([]byte(val), "alias "+name, syntax.PosixConformant)
	if err != nil || len(file.Stmts) == 0 {
		return args
	}
	ce, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok || len(ce.Args) == 0 {
		return args
	}

	r.aliasStack[name] = true
	defer delete(r.aliasStack, name)

	replaced := append(append([]syntax.Word{}, ce.Args...), args[1:]...)
	return r.expandAliases(replaced)
}

// evalAssigns expands the value side of each assignment prefix, in order,
// keyed by name.
func (r *Runner) evalAssigns(assigns []*syntax.Assign) (map[string]string, error) {
	if len(assigns) == 0 {
		return nil, nil
	}
	vals := make(map[string]string, len(assigns))
	for _, a := range assigns {
		v, err := r.ec.AssignWord(a.Value)
		if err != nil {
			return nil, err
		}
		vals[a.Name.Value] = v
	}
	return vals, nil
}

// applyAssignsPermanent assigns vals directly into shell state, used for a
// bare assignment (no command word) and for assignment prefixes on a
// special built-in, both of which persist after the command finishes, per
// spec.md §4.7.
func (r *Runner) applyAssignsPermanent(vals map[string]string) error {
	for name, v := range vals {
		if err := r.env.SetVar(name, v); err != nil {
			return err
		}
	}
	return nil
}

// applyAssignsTemp assigns vals for the duration of a function/builtin/
// external command invocation and returns a closure that restores each
// name's prior value (or unsets it if it was previously unset), per
// spec.md §4.7 "assignment-prefix scoping".
func (r *Runner) applyAssignsTemp(vals map[string]string) (func(), error) {
	if len(vals) == 0 {
		return func() {}, nil
	}
	prior := make(map[string]env.Variable, len(vals))
	for name := range vals {
		prior[name] = r.env.Get(name)
	}
	for name, v := range vals {
		if err := r.env.SetVar(name, v); err != nil {
			return nil, err
		}
	}
	return func() {
		for name, old := range prior {
			if !old.Set {
				r.env.UnsetVar(name)
				continue
			}
			r.env.SetVar(name, old.Str)
			r.env.SetExported(name, old.Exported)
		}
	}, nil
}

// execSimple runs one parsed simple command: alias substitution on the
// command word, then field expansion of the remaining words, then
// resolution and dispatch, per spec.md §4.7.
func (r *Runner) execSimple(cm *syntax.CallExpr) {
	assigns := r.pendingAssigns
	r.pendingAssigns = nil

	words := r.expandAliases(cm.Args)
	r.trace.SetEnabled(r.set.Opt(settings.XTrace))
	r.ec.ResetCmdSubstStatus()

	if len(words) == 0 {
		vals, err := r.evalAssigns(assigns)
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		r.traceAssigns(vals)
		if err := r.applyAssignsPermanent(vals); err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		r.status = r.bareStatementStatus()
		return
	}

	args, err := r.ec.FieldsOfWords(words)
	if err != nil {
		fmt.Fprintln(r.Stderr(), err)
		r.status = 1
		return
	}
	if len(args) == 0 {
		// The command word expanded away entirely (e.g. an unset "$empty"
		// with no other words); assignments still apply permanently, since
		// POSIX treats this the same as a command-word-less statement.
		vals, err := r.evalAssigns(assigns)
		if err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		if err := r.applyAssignsPermanent(vals); err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		r.status = r.bareStatementStatus()
		return
	}

	if r.set.Opt(settings.NoExec) {
		// "set -n": words and the assignment prefix still get expanded for
		// their side effects on $?, but the resolved command itself is never
		// dispatched, per spec.md §4.7.
		if _, err := r.evalAssigns(assigns); err != nil {
			fmt.Fprintln(r.Stderr(), err)
			r.status = 1
			return
		}
		r.status = r.bareStatementStatus()
		return
	}

	status, err := r.runSimple(args, assigns, false)
	if err != nil {
		fmt.Fprintln(r.Stderr(), err)
		if status == 0 {
			status = 1
		}
	}
	r.status = status
}

// bareStatementStatus reports the status a statement with no command to run
// takes on: the most recent command substitution's exit status if one ran
// during this statement's expansion, or 0 otherwise, per spec.md §4.7.
func (r *Runner) bareStatementStatus() int {
	if status, ok := r.ec.LastCmdSubstStatus(); ok {
		return status
	}
	return 0
}

// runSimple resolves args[0] through the special-builtin/function/builtin/
// external-program order and runs it, applying assigns with the scoping
// POSIX gives each case, per spec.md §4.7 "Simple command".
func (r *Runner) runSimple(args []string, assigns []*syntax.Assign, skipFunctions bool) (int, error) {
	name := args[0]

	vals, err := r.evalAssigns(assigns)
	if err != nil {
		return 1, err
	}
	r.trace.SetEnabled(r.set.Opt(settings.XTrace))
	r.traceAssigns(vals)
	r.trace.Command(args)

	if builtin.IsSpecial(name) {
		if err := r.applyAssignsPermanent(vals); err != nil {
			return 1, err
		}
		return builtin.Run(r, name, args[1:])
	}

	if !skipFunctions {
		if body, ok := r.env.Func(name); ok {
			return r.callFunction(name, body, args, vals)
		}
	}

	if builtin.IsBuiltin(name) {
		restore, err := r.applyAssignsTemp(vals)
		if err != nil {
			return 1, err
		}
		defer restore()
		return builtin.Run(r, name, args[1:])
	}

	return r.runExternal(args, vals)
}

// callFunction invokes a shell function: assignments scope to the call,
// $0/$1.. get a fresh frame, and the body's own ctrlReturn signal is
// absorbed here rather than propagating past the call, per spec.md §4.8
// "return".
func (r *Runner) callFunction(name string, body *syntax.Stmt, args []string, vals map[string]string) (int, error) {
	restore, err := r.applyAssignsTemp(vals)
	if err != nil {
		return 1, err
	}
	defer restore()

	r.set.PushFrame(name, args[1:])
	defer r.set.PopFrame()

	wasInFunc := r.inFunc
	r.inFunc = true
	defer func() { r.inFunc = wasInFunc }()

	r.execStmt(body)
	if r.ctrl == ctrlReturn {
		r.ctrl = ctrlNone
	}
	return r.status, nil
}

// invoke runs args as a simple command using the shared resolution
// machinery, used by the "command" built-in (RunCommand) which may skip the
// function-lookup step.
func (r *Runner) invoke(args []string, skipFunctions bool) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return r.runSimple(args, nil, skipFunctions)
}

// lookPath resolves name against the shell's own $PATH (not the ambient
// process environment), per spec.md §4.7 "PATH search".
func lookPath(pathVar, name string) (string, error) {
	if strings.ContainsRune(name, '/') {
		if st, err := os.Stat(name); err == nil && !st.IsDir() && isExecutable(st) {
			return name, nil
		}
		return "", shellerr.New(shellerr.NotFound, name, name+": not found")
	}
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() && isExecutable(st) {
			return candidate, nil
		}
	}
	return "", shellerr.New(shellerr.NotFound, name, name+": not found")
}

func isExecutable(st os.FileInfo) bool {
	return st.Mode()&0o111 != 0
}

// runExternal forks a real OS process for args[0], waits for it, and maps
// its wait status to an exit code, per spec.md §4.4/§4.7.
func (r *Runner) runExternal(args []string, vals map[string]string) (int, error) {
	path, err := lookPath(r.env.Get("PATH").Str, args[0])
	if err != nil {
		fmt.Fprintf(r.Stderr(), "posh: %s: not found\n", args[0])
		return 127, nil
	}

	cmd := osexec.Command(path, args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Stdin = r.ex.Top(0)
	cmd.Stdout = r.ex.Top(1)
	cmd.Stderr = r.ex.Top(2)
	cmd.Dir = r.dir
	cmd.Env = mergeEnv(r.env.Environ(), vals)

	proc, err := r.ex.StartExternal(cmd, 0, true)
	if err != nil {
		fmt.Fprintf(r.Stderr(), "posh: %s: %s\n", args[0], err)
		return 126, nil
	}
	job := r.ex.Jobs().AddJob(proc.Pid, []int{proc.Pid}, args[0])

	st, _, err := r.ex.WaitForProcess(proc, true)
	r.ex.ForgetProcess(proc.Pid)
	r.ex.Jobs().SetJobLastStatus(job.ID, st)
	if r.ex.Monitor() {
		r.ex.SetForegroundForShell()
	}
	if err != nil {
		return 1, err
	}
	switch st.Kind {
	case exec.Signaled:
		return 128 + int(st.Signal), nil
	default:
		return st.Code, nil
	}
}

// mergeEnv overlays a command's temporary assignment-prefix values onto the
// shell's exported environment, for the child's envp, per spec.md §4.7.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	seen := make(map[string]bool, len(overlay))
	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		if v, ok := overlay[name]; ok {
			out = append(out, name+"="+v)
			seen[name] = true
			continue
		}
		out = append(out, kv)
	}
	for name, v := range overlay {
		if !seen[name] {
			out = append(out, name+"="+v)
		}
	}
	return out
}

// execReplace implements the no-fork "exec prog args..." form: the vfd
// stack is flattened onto real fds 0..N, then the process image is replaced
// entirely via execve. On success it never returns, per spec.md §4.4/§4.8.
func (r *Runner) execReplace(args []string) error {
	if len(args) == 0 {
		return nil
	}
	path, err := lookPath(r.env.Get("PATH").Str, args[0])
	if err != nil {
		return shellerr.New(shellerr.NotFound, args[0], args[0]+": not found")
	}
	if err := r.ex.CloseAndMoveFilesForExecute(); err != nil {
		return shellerr.Wrap(shellerr.IoError, args[0], err)
	}
	argv := append([]string{args[0]}, args[1:]...)
	return unix.Exec(path, argv, r.env.Environ())
}

// runCmdSubst implements $(...)/`...`: stmts run in a subshell whose stdout
// is captured through a pipe, per spec.md §4.5 phase 3 "Command
// substitution". Trailing-newline trimming happens one layer up, in
// expand.Expander.runCmdSubst.
func (r *Runner) runCmdSubst(stmts []*syntax.Stmt) (string, int, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", 1, shellerr.Wrap(shellerr.IoError, "", err)
	}

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, cerr := io.Copy(&buf, pr)
		pr.Close()
		done <- cerr
	}()

	r2 := r.subshell(r.ex.Top(0), pw, r.ex.Top(2))
	proc := r.ex.StartLogical(func() exec.Status {
		defer pw.Close()
		r2.execList(stmts)
		return exec.Status{Kind: exec.Exited, Code: r2.status}
	})
	st, _, _ := r.ex.WaitForProcess(proc, true)
	r.ex.ForgetProcess(proc.Pid)
	<-done

	return buf.String(), st.Code, nil
}
