// Package redirect implements C6: translating a list of syntax.Redirect
// nodes into a plan of typed fd operations against the executor's virtual
// fd stack, including the here-document pump. Grounded on
// _examples/mvdan-sh/interp/runner.go's redir/doRedirect handling for the
// operation taxonomy, generalized from mvdan-sh's single mutable
// stdin/stdout/stderr fields to this repository's full vfd-stack model
// (spec.md §4.6). Here-doc writers are goroutines that are always reaped
// before the owning statement's status is final; the reaping happens after
// the command has returned, not before its own wait completes.
package redirect

import (
	"io"
	"os"
	"strconv"

	"github.com/google/renameio/v2"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/expand"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/shellerr"
)

// Kind classifies one redirection operation, per spec.md §4.6.
type Kind int

const (
	Input Kind = iota
	Output
	InputOutput
	Append
	Dup
	HereDoc
)

// Op is one resolved redirection operation.
type Op struct {
	Kind    Kind
	Vfd     int
	Path    string
	Clobber bool // Output only: true for ">|", bypassing noclobber
	OldVfd  int  // Dup only
	Close   bool // Dup only: "N>&-"/"N<&-" closes Vfd instead of duplicating
	Bytes   []byte
}

// Plan expands and classifies every redirection on a command, in source
// order, per spec.md §4.6. Paths are expanded via the given Expander in
// string mode.
func Plan(ex *expand.Expander, rds []*syntax.Redirect) ([]Op, error) {
	ops := make([]Op, 0, len(rds))
	for _, rd := range rds {
		op, err := planOne(ex, rd)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func vfdOf(rd *syntax.Redirect, def int) (int, error) {
	if rd.N == nil {
		return def, nil
	}
	n, err := strconv.Atoi(rd.N.Value)
	if err != nil {
		return 0, shellerr.New(shellerr.BadFdNumber, rd.N.Value, "not a file descriptor number")
	}
	return n, nil
}

func planOne(ex *expand.Expander, rd *syntax.Redirect) (Op, error) {
	if rd.Op == syntax.Hdoc || rd.Op == syntax.DashHdoc {
		body, err := hereDocBody(ex, rd)
		if err != nil {
			return Op{}, err
		}
		vfd, err := vfdOf(rd, 0)
		if err != nil {
			return Op{}, err
		}
		return Op{Kind: HereDoc, Vfd: vfd, Bytes: []byte(body)}, nil
	}

	switch rd.Op {
	case syntax.DplIn, syntax.DplOut:
		vfd, err := vfdOf(rd, defaultVfd(rd.Op))
		if err != nil {
			return Op{}, err
		}
		arg, err := ex.Literal(&rd.Word)
		if err != nil {
			return Op{}, err
		}
		if arg == "-" {
			return Op{Kind: Dup, Vfd: vfd, Close: true}, nil
		}
		old, err := strconv.Atoi(arg)
		if err != nil {
			return Op{}, shellerr.New(shellerr.BadFdNumber, arg, "not a file descriptor number")
		}
		return Op{Kind: Dup, Vfd: vfd, OldVfd: old}, nil
	}

	vfd, err := vfdOf(rd, defaultVfd(rd.Op))
	if err != nil {
		return Op{}, err
	}
	path, err := ex.Literal(&rd.Word)
	if err != nil {
		return Op{}, err
	}
	switch rd.Op {
	case syntax.RdrIn, syntax.WordHdoc:
		if rd.Op == syntax.WordHdoc {
			return Op{Kind: HereDoc, Vfd: vfd, Bytes: []byte(path + "\n")}, nil
		}
		return Op{Kind: Input, Vfd: vfd, Path: path}, nil
	case syntax.RdrOut, syntax.RdrAll:
		return Op{Kind: Output, Vfd: vfd, Path: path}, nil
	case syntax.ClbOut:
		return Op{Kind: Output, Vfd: vfd, Path: path, Clobber: true}, nil
	case syntax.AppOut, syntax.AppAll:
		return Op{Kind: Append, Vfd: vfd, Path: path}, nil
	case syntax.RdrInOut:
		return Op{Kind: InputOutput, Vfd: vfd, Path: path}, nil
	}
	return Op{}, shellerr.New(shellerr.Syntax, path, "unsupported redirection operator")
}

func defaultVfd(op syntax.RedirOperator) int {
	switch op {
	case syntax.RdrIn, syntax.RdrInOut, syntax.DplIn:
		return 0
	default:
		return 1
	}
}

// hereDocBody expands a <<//<<- document's contents: quoted delimiters
// (DashHdoc trims leading tabs from every body line, like "<<-") suppress
// expansion, unquoted delimiters allow parameter/command/arithmetic
// expansion, matching the delimiter's own quoting, per spec.md §6
// "Here-document".
func hereDocBody(ex *expand.Expander, rd *syntax.Redirect) (string, error) {
	body := rd.Hdoc
	if rd.Op == syntax.DashHdoc {
		return ex.Literal(trimHdocTabs(&body))
	}
	return ex.Literal(&body)
}

// trimHdocTabs strips leading tab runs from every literal line of a <<-
// here-document body, operating on the *syntax.Lit parts directly since
// the word has not been expanded yet.
func trimHdocTabs(w *syntax.Word) *syntax.Word {
	out := *w
	out.Parts = append([]syntax.WordPart(nil), w.Parts...)
	atLineStart := true
	for i, p := range out.Parts {
		lit, ok := p.(*syntax.Lit)
		if !ok {
			atLineStart = false
			continue
		}
		v := lit.Value
		var b []byte
		for j := 0; j < len(v); j++ {
			if atLineStart {
				for j < len(v) && v[j] == '\t' {
					j++
				}
				atLineStart = false
				if j >= len(v) {
					break
				}
			}
			b = append(b, v[j])
			if v[j] == '\n' {
				atLineStart = true
			}
		}
		nl := *lit
		nl.Value = string(b)
		out.Parts[i] = &nl
	}
	return &out
}

// Pending tracks here-document writer goroutines started by Apply, so the
// interpreter can reap them once the command has returned and the
// statement's redirections have been popped (closing the shell's copy of the
// read end), before the statement's status is final.
type Pending struct {
	writers []chan error
}

// Reap blocks until every tracked writer has finished. A closed-pipe error
// (the command read less than the full document) is not surfaced: a
// short-reading consumer breaking the pipe is not a failure of the
// redirection itself.
func (p *Pending) Reap() error {
	var first error
	for _, ch := range p.writers {
		if err := <-ch; err != nil && err != io.ErrClosedPipe && first == nil {
			if pe, ok := err.(*os.PathError); !ok || pe.Err.Error() != "broken pipe" {
				first = err
			}
		}
	}
	p.writers = nil
	return first
}

// Apply performs one redirection operation against the executor's vfd
// stack, pushing the resulting file per spec.md §4.6's Input/Output/
// InputOutput/Append/Dup/HereDoc taxonomy. noclobber is honored for Output
// without the force-clobber (">|") form.
func Apply(ex *exec.Executor, op Op, noclobber bool, pending *Pending) error {
	switch op.Kind {
	case Input:
		f, err := os.Open(op.Path)
		if err != nil {
			return shellerr.Wrap(shellerr.IoError, op.Path, err)
		}
		ex.PushFile(op.Vfd, f)

	case Output:
		if noclobber && !op.Clobber {
			if err := createNew(op.Path); err != nil {
				return err
			}
			f, err := os.OpenFile(op.Path, os.O_WRONLY, 0o644)
			if err != nil {
				return shellerr.Wrap(shellerr.IoError, op.Path, err)
			}
			ex.PushFile(op.Vfd, f)
			return nil
		}
		f, err := os.OpenFile(op.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return shellerr.Wrap(shellerr.IoError, op.Path, err)
		}
		ex.PushFile(op.Vfd, f)

	case Append:
		f, err := os.OpenFile(op.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return shellerr.Wrap(shellerr.IoError, op.Path, err)
		}
		ex.PushFile(op.Vfd, f)

	case InputOutput:
		f, err := os.OpenFile(op.Path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return shellerr.Wrap(shellerr.IoError, op.Path, err)
		}
		ex.PushFile(op.Vfd, f)

	case Dup:
		if op.Close {
			ex.PushFile(op.Vfd, nil)
			return nil
		}
		if !ex.Active(op.OldVfd) {
			return shellerr.New(shellerr.BadFdNumber, strconv.Itoa(op.OldVfd), "bad file descriptor")
		}
		ex.PushFile(op.Vfd, ex.Top(op.OldVfd))

	case HereDoc:
		if err := applyHereDoc(ex, op, pending); err != nil {
			return err
		}
	}
	return nil
}

// createNew refuses to overwrite an existing regular file, per noclobber
// policy (spec.md §4.6); an existing non-regular file (a device such as
// /dev/null) is left for the caller to open. A missing path is created
// using renameio's create-new-then-rename-into-place
// pattern so the refusal is atomic with respect to concurrent writers.
func createNew(path string) error {
	if _, err := os.Lstat(path); err == nil {
		if fi, err := os.Stat(path); err == nil && !fi.Mode().IsRegular() {
			return nil
		}
		return shellerr.New(shellerr.IoError, path, path+": cannot overwrite existing file")
	} else if !os.IsNotExist(err) {
		return shellerr.Wrap(shellerr.IoError, path, err)
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return shellerr.Wrap(shellerr.IoError, path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return shellerr.Wrap(shellerr.IoError, path, err)
	}
	return nil
}

// applyHereDoc opens a close-on-exec pipe, spawns a goroutine writer, and
// pushes the read end on Vfd immediately so the command can start reading
// concurrently with the write (the document may exceed the pipe buffer).
// The writer's completion channel is recorded on pending; the caller must
// call pending.Reap() after the command runs but before finalizing its
// status, per spec.md §9.
func applyHereDoc(ex *exec.Executor, op Op, pending *Pending) error {
	p, err := exec.NewPipe()
	if err != nil {
		return shellerr.Wrap(shellerr.IoError, "", err)
	}
	done := make(chan error, 1)
	go func() {
		_, werr := p.Writing.Write(op.Bytes)
		cerr := p.Writing.Close()
		if werr == nil {
			werr = cerr
		}
		done <- werr
	}()
	if pending != nil {
		pending.writers = append(pending.writers, done)
	}
	ex.PushFile(op.Vfd, p.Reading)
	return nil
}
