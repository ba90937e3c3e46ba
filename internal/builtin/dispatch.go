package builtin

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/shellerr"
	"github.com/posh-shell/posh/internal/sig"
)

// Run dispatches one built-in invocation, per spec.md §4.8. It returns the
// command's exit status, plus a Go error for an unknown built-in name
// (status 127), for I/O failures, and for parse errors of source run by
// "." or "eval" (the status already reflects built-in-level failures, per
// spec.md §7: "regular built-ins only set $?").
func Run(h Host, name string, args []string) (int, error) {
	switch name {
	case ":", "true":
		return 0, nil
	case "false":
		return 1, nil
	case "exit":
		return doExit(h, args)
	case "return":
		return doReturn(h, args)
	case "break":
		return doBreakContinue(h, args, h.SetBreak)
	case "continue":
		return doBreakContinue(h, args, h.SetContinue)
	case "shift":
		return doShift(h, args)
	case "set":
		return doSet(h, args)
	case "readonly":
		return doReadonly(h, args)
	case "export":
		return doExport(h, args)
	case "unset":
		return doUnset(h, args)
	case "trap":
		return doTrap(h, args)
	case "times":
		fmt.Fprintln(h.Stdout(), "0m0.000s 0m0.000s")
		fmt.Fprintln(h.Stdout(), "0m0.000s 0m0.000s")
		return 0, nil
	case ".":
		return doDot(h, args)
	case "eval":
		return doEval(h, args)
	case "exec":
		return doExec(h, args)
	case "read":
		return doRead(h, args)
	case "cd":
		return doCd(h, args)
	case "pwd":
		return doPwd(h, args)
	case "echo":
		return doEcho(h, args)
	case "alias":
		return doAlias(h, args)
	case "unalias":
		return doUnalias(h, args)
	case "jobs":
		return doJobs(h, args)
	case "fg":
		return doFgBg(h, args, true)
	case "bg":
		return doFgBg(h, args, false)
	case "wait":
		return doWait(h, args)
	case "getopts":
		return doGetopts(h, args)
	case "umask":
		return doUmask(h, args)
	case "command":
		return doCommand(h, args)
	case "type":
		return doType(h, args)
	}
	return 127, shellerr.New(shellerr.NotFound, name, name+": not a built-in")
}

func doExit(h Host, args []string) (int, error) {
	code := h.LastStatus()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(h.Stderr(), "exit: %s: numeric argument required\n", args[0])
			code = 2
		} else {
			code = n
		}
	}
	h.SetExit(code & 0xff)
	return code & 0xff, nil
}

func doReturn(h Host, args []string) (int, error) {
	if !h.InFunction() {
		fmt.Fprintln(h.Stderr(), "return: can only `return' from a function or sourced script")
		return 1, nil
	}
	code := h.LastStatus()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 2, nil
		}
		code = n
	}
	h.SetReturn(code & 0xff)
	return code & 0xff, nil
}

func doBreakContinue(h Host, args []string, set func(int)) (int, error) {
	if h.LoopDepth() == 0 {
		fmt.Fprintln(h.Stderr(), "only meaningful in a `for', `while', or `until' loop")
		return 1, nil
	}
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err == nil && v > 0 {
			n = v
		}
	}
	set(n)
	return 0, nil
}

func doShift(h Host, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			fmt.Fprintln(h.Stderr(), "shift: numeric argument required")
			return 1, nil
		}
		n = v
	}
	h.Settings().Shift(n)
	return 0, nil
}

func doSet(h Host, args []string) (int, error) {
	s := h.Settings()
	res, err := s.ParseOptions(args, nil)
	if err != nil {
		fmt.Fprintf(h.Stderr(), "set: %s\n", err)
		return 1, nil
	}
	rest := args[res.Index:]
	if res.SawDoubleDash || len(rest) > 0 || res.Index == len(args) && len(args) > 0 {
		s.SetArgs(rest)
	}
	// ParseOptions only flips the bitmap; allexport and monitor each mirror
	// their bit into another subsystem's own state, so that mirror has to be
	// refreshed here on every "set" call.
	h.Env().SetAllExport(s.Opt(settings.AllExport))
	h.Exec().SetMonitor(s.Opt(settings.Monitor))
	return 0, nil
}

func doReadonly(h Host, args []string) (int, error) {
	if len(args) == 0 {
		for _, n := range h.Env().Names() {
			if h.Env().HasReadOnlyAttr(n) {
				fmt.Fprintf(h.Stdout(), "readonly %s=%s\n", n, h.Env().Get(n).Str)
			}
		}
		return 0, nil
	}
	status := 0
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := h.Env().SetVar(name, val); err != nil {
				fmt.Fprintf(h.Stderr(), "readonly: %s\n", err)
				status = 1
				continue
			}
		}
		if err := h.Env().SetReadOnlyAttr(name); err != nil {
			fmt.Fprintf(h.Stderr(), "readonly: %s\n", err)
			status = 1
		}
	}
	return status, nil
}

func doExport(h Host, args []string) (int, error) {
	if len(args) == 0 {
		for _, n := range h.Env().Names() {
			if h.Env().Get(n).Exported {
				fmt.Fprintf(h.Stdout(), "export %s=%s\n", n, h.Env().Get(n).Str)
			}
		}
		return 0, nil
	}
	status := 0
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := h.Env().SetVar(name, val); err != nil {
				fmt.Fprintf(h.Stderr(), "export: %s\n", err)
				status = 1
				continue
			}
		}
		if err := h.Env().SetExported(name, true); err != nil {
			fmt.Fprintf(h.Stderr(), "export: %s\n", err)
			status = 1
		}
	}
	return status, nil
}

func doUnset(h Host, args []string) (int, error) {
	status := 0
	for _, a := range args {
		if a == "-v" || a == "-f" {
			continue
		}
		if err := h.Env().UnsetVar(a); err != nil {
			fmt.Fprintf(h.Stderr(), "unset: %s\n", err)
			status = 1
		}
	}
	return status, nil
}

func doTrap(h Host, args []string) (int, error) {
	f := h.Sig()
	if len(args) == 0 {
		for name, action := range f.Traps() {
			fmt.Fprintf(h.Stdout(), "trap -- %q %s\n", action, name)
		}
		return 0, nil
	}
	if args[0] == "-l" {
		for _, n := range sig.Names {
			fmt.Fprintln(h.Stdout(), n)
		}
		return 0, nil
	}
	if args[0] == "-p" {
		for _, name := range args[1:] {
			if a, ok := f.Trap(name); ok {
				fmt.Fprintf(h.Stdout(), "trap -- %q %s\n", a, name)
			}
		}
		return 0, nil
	}
	if args[0] == "-" {
		for _, name := range args[1:] {
			f.ClearTrap(name)
		}
		return 0, nil
	}
	action := args[0]
	for _, name := range args[1:] {
		f.SetTrap(strings.TrimPrefix(name, "SIG"), action)
	}
	return 0, nil
}

func doDot(h Host, args []string) (int, error) {
	if len(args) == 0 {
		fmt.Fprintln(h.Stderr(), ".: filename argument required")
		return 2, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(h.Stderr(), ".: %s: %s\n", args[0], err)
		return 1, nil
	}
	status, err := h.RunSource(string(data), args[0])
	return status, err
}

func doEval(h Host, args []string) (int, error) {
	src := strings.Join(args, " ")
	if src == "" {
		return 0, nil
	}
	return h.RunSource(src, "eval")
}

func doExec(h Host, args []string) (int, error) {
	if len(args) == 0 {
		h.MakePermanent()
		return 0, nil
	}
	if err := h.ExecReplace(args); err != nil {
		if os.IsNotExist(err) || shellerr.Is(err, shellerr.NotFound) {
			fmt.Fprintf(h.Stderr(), "exec: %s: not found\n", args[0])
			return 127, nil
		}
		fmt.Fprintf(h.Stderr(), "exec: %s: %s\n", args[0], err)
		return 126, nil
	}
	panic("unreachable: ExecReplace only returns on error")
}

func doRead(h Host, args []string) (int, error) {
	raw := false
	var names []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-r" {
			raw = true
			continue
		}
		names = append(names, args[i])
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	br := bufio.NewReader(h.Stdin())
	var line strings.Builder
	sawAny := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			if line.Len() == 0 && !sawAny {
				return 1, nil
			}
			break
		}
		sawAny = true
		if b == '\n' {
			break
		}
		if b == '\\' && !raw {
			nb, err2 := br.ReadByte()
			if err2 != nil {
				break
			}
			if nb == '\n' {
				continue
			}
			line.WriteByte(nb)
			continue
		}
		line.WriteByte(b)
	}
	fields := splitFieldsIFS(h, line.String())
	for i, name := range names {
		var val string
		switch {
		case i == len(names)-1 && len(fields) > i:
			val = strings.Join(fields[i:], " ")
		case i < len(fields):
			val = fields[i]
		}
		if err := h.Env().SetVar(name, val); err != nil {
			fmt.Fprintf(h.Stderr(), "read: %s\n", err)
			return 1, nil
		}
	}
	return 0, nil
}

func splitFieldsIFS(h Host, s string) []string {
	ifs := h.Env().Get("IFS")
	sep := " \t\n"
	if ifs.Set {
		sep = ifs.Str
	}
	if sep == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(sep, r) })
}

func doCd(h Host, args []string) (int, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		home := h.Env().Get("HOME")
		dir = home.Str
	}
	if dir == "-" {
		old := h.Env().Get("OLDPWD")
		if !old.Set {
			fmt.Fprintln(h.Stderr(), "cd: OLDPWD not set")
			return 1, nil
		}
		dir = old.Str
		fmt.Fprintln(h.Stdout(), dir)
	}
	cur, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(h.Stderr(), "cd: %s: %s\n", dir, err)
		return 1, nil
	}
	h.Env().SetVar("OLDPWD", cur)
	newwd, _ := os.Getwd()
	h.Env().SetVar("PWD", newwd)
	return 0, nil
}

func doPwd(h Host, args []string) (int, error) {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(h.Stderr(), "pwd: %s\n", err)
		return 1, nil
	}
	fmt.Fprintln(h.Stdout(), wd)
	return 0, nil
}

func doEcho(h Host, args []string) (int, error) {
	nflag := false
	for len(args) > 0 && args[0] == "-n" {
		nflag = true
		args = args[1:]
	}
	fmt.Fprint(h.Stdout(), strings.Join(args, " "))
	if !nflag {
		fmt.Fprintln(h.Stdout())
	}
	return 0, nil
}

func doAlias(h Host, args []string) (int, error) {
	if len(args) == 0 {
		for _, n := range h.Env().AliasNames() {
			v, _ := h.Env().Alias(n)
			fmt.Fprintf(h.Stdout(), "alias %s=%q\n", n, v)
		}
		return 0, nil
	}
	status := 0
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if !hasVal {
			v, ok := h.Env().Alias(name)
			if !ok {
				fmt.Fprintf(h.Stderr(), "alias: %s: not found\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(h.Stdout(), "alias %s=%q\n", name, v)
			continue
		}
		h.Env().SetAlias(name, val)
	}
	return status, nil
}

func doUnalias(h Host, args []string) (int, error) {
	for _, a := range args {
		h.Env().UnsetAlias(a)
	}
	return 0, nil
}

func doJobs(h Host, args []string) (int, error) {
	jobs := h.Exec().Jobs().All()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	for _, j := range jobs {
		state := "Running"
		if j.IsDone() {
			state = j.LastStatus().String()
		}
		fmt.Fprintf(h.Stdout(), "[%d]  %s    %s\n", j.ID, state, j.Name)
	}
	return 0, nil
}

func doFgBg(h Host, args []string, foreground bool) (int, error) {
	jt := h.Exec().Jobs()
	var job *exec.Job
	var err error
	if len(args) > 0 {
		job, err = jt.ParseJobID(args[0])
	} else {
		job, err = currentJobOr(jt)
	}
	if err != nil {
		fmt.Fprintf(h.Stderr(), "%s\n", err)
		return 1, nil
	}
	fmt.Fprintf(h.Stdout(), "%s\n", job.Name)
	if foreground {
		h.Exec().SetForegroundForProcess(job.Pgid)
		for i, pid := range job.Pids {
			if job.Statuses[i].Done() {
				continue
			}
			if st, ok, _ := h.Exec().WaitForPid(pid, true); ok {
				jt.SetJobStatus(job.ID, i, st)
			}
		}
		h.Exec().SetForegroundForShell()
		if job.IsDone() {
			return job.LastStatus().Code, nil
		}
		return 0, nil
	}
	for _, pid := range job.Pids {
		sig.Kill(pid, 18) // SIGCONT
	}
	return 0, nil
}

func currentJobOr(jt *exec.JobTable) (*exec.Job, error) {
	j, ok := jt.CurrentJob()
	if !ok {
		return nil, shellerr.New(shellerr.NotFound, "", "no current job")
	}
	return j, nil
}

func doWait(h Host, args []string) (int, error) {
	jt := h.Exec().Jobs()
	if len(args) == 0 {
		for _, j := range jt.All() {
			for i, pid := range j.Pids {
				if !j.Statuses[i].Done() {
					if st, ok, _ := h.Exec().WaitForPid(pid, true); ok {
						jt.SetJobStatus(j.ID, i, st)
					}
				}
			}
		}
		return 0, nil
	}
	var status int
	for _, spec := range args {
		j, err := jt.ParseJobID(spec)
		if err != nil {
			fmt.Fprintf(h.Stderr(), "wait: %s\n", err)
			status = 127
			continue
		}
		for i, pid := range j.Pids {
			if !j.Statuses[i].Done() {
				if st, ok, _ := h.Exec().WaitForPid(pid, true); ok {
					jt.SetJobStatus(j.ID, i, st)
				}
			}
		}
		status = j.LastStatus().Code
	}
	return status, nil
}

func doGetopts(h Host, args []string) (int, error) {
	if len(args) < 2 {
		fmt.Fprintln(h.Stderr(), "getopts: usage: getopts optstring name [args]")
		return 2, nil
	}
	optstring, name := args[0], args[1]
	rest := args[2:]
	if len(rest) == 0 {
		rest = h.Settings().Args()
	}
	optindVar := h.Env().Get("OPTIND")
	optind := 1
	if optindVar.Set {
		if n, err := strconv.Atoi(optindVar.Str); err == nil {
			optind = n
		}
	}
	if optind-1 >= len(rest) {
		h.Env().SetVar(name, "?")
		return 1, nil
	}
	arg := rest[optind-1]
	if len(arg) < 2 || arg[0] != '-' {
		h.Env().SetVar(name, "?")
		return 1, nil
	}
	opt := arg[1]
	idx := strings.IndexByte(optstring, opt)
	if idx < 0 {
		h.Env().SetVar(name, "?")
		h.Env().SetVar("OPTARG", string(opt))
		h.Env().SetVar("OPTIND", strconv.Itoa(optind+1))
		return 0, nil
	}
	h.Env().SetVar(name, string(opt))
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if len(arg) > 2 {
			h.Env().SetVar("OPTARG", arg[2:])
		} else if optind < len(rest) {
			h.Env().SetVar("OPTARG", rest[optind])
			optind++
		}
	}
	h.Env().SetVar("OPTIND", strconv.Itoa(optind+1))
	return 0, nil
}

func doUmask(h Host, args []string) (int, error) {
	if len(args) == 0 {
		old := unixUmask(0)
		unixUmask(old)
		fmt.Fprintf(h.Stdout(), "%04o\n", old)
		return 0, nil
	}
	n, err := strconv.ParseInt(args[0], 8, 32)
	if err != nil {
		fmt.Fprintf(h.Stderr(), "umask: %s: invalid mode\n", args[0])
		return 1, nil
	}
	unixUmask(int(n))
	return 0, nil
}

func doCommand(h Host, args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	if args[0] == "-v" && len(args) > 1 {
		if IsBuiltin(args[1]) {
			fmt.Fprintln(h.Stdout(), args[1])
			return 0, nil
		}
		if p, err := lookPath(h, args[1]); err == nil {
			fmt.Fprintln(h.Stdout(), p)
			return 0, nil
		}
		return 1, nil
	}
	if args[0] == "-p" && len(args) > 1 {
		args = args[1:]
	}
	return h.RunCommand(args, true)
}

func doType(h Host, args []string) (int, error) {
	status := 0
	for _, name := range args {
		switch {
		case IsSpecial(name) || IsBuiltin(name):
			fmt.Fprintf(h.Stdout(), "%s is a shell builtin\n", name)
		default:
			if p, err := lookPath(h, name); err == nil {
				fmt.Fprintf(h.Stdout(), "%s is %s\n", name, p)
			} else {
				fmt.Fprintf(h.Stderr(), "type: %s: not found\n", name)
				status = 1
			}
		}
	}
	return status, nil
}

func lookPath(h Host, name string) (string, error) {
	pathVar := h.Env().Get("PATH")
	path := pathVar.Str
	if !pathVar.Set {
		path = "/bin:/usr/bin"
	}
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		full := dir + "/" + name
		if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
			return full, nil
		}
	}
	return "", shellerr.New(shellerr.NotFound, name, "not found")
}
