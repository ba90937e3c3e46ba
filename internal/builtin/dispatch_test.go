package builtin

import (
	"bytes"
	"io"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
	"github.com/posh-shell/posh/internal/sig"
)

// fakeHost is a minimal Host for exercising the dispatch table directly,
// without pulling in the interp package (which imports this one).
type fakeHost struct {
	env      *env.Store
	set      *settings.Settings
	ex       *exec.Executor
	in       io.Reader
	out, err bytes.Buffer

	lastStatus int
	inFunction bool
	loopDepth  int

	returned, broke, continued, exited bool
	returnCode, breakLevels, contLevels, exitCode int
}

func newFakeHost(stdin string) *fakeHost {
	return &fakeHost{
		env: env.New(),
		set: settings.New("test", nil),
		ex:  exec.New(nil, nil, nil, false),
		in:  strings.NewReader(stdin),
	}
}

func (f *fakeHost) Env() *env.Store             { return f.env }
func (f *fakeHost) Settings() *settings.Settings { return f.set }
func (f *fakeHost) Sig() *sig.Facility           { return nil }
func (f *fakeHost) Exec() *exec.Executor         { return f.ex }

func (f *fakeHost) ExpandLiteral(w *syntax.Word) (string, error)  { return "", nil }
func (f *fakeHost) ExpandFields(ws []syntax.Word) ([]string, error) { return nil, nil }

func (f *fakeHost) Stdin() io.Reader  { return f.in }
func (f *fakeHost) Stdout() io.Writer { return &f.out }
func (f *fakeHost) Stderr() io.Writer { return &f.err }

func (f *fakeHost) LastStatus() int { return f.lastStatus }

func (f *fakeHost) InFunction() bool { return f.inFunction }
func (f *fakeHost) LoopDepth() int   { return f.loopDepth }

func (f *fakeHost) SetReturn(code int)   { f.returned = true; f.returnCode = code }
func (f *fakeHost) SetBreak(levels int)  { f.broke = true; f.breakLevels = levels }
func (f *fakeHost) SetContinue(levels int) { f.continued = true; f.contLevels = levels }
func (f *fakeHost) SetExit(code int)     { f.exited = true; f.exitCode = code }

func (f *fakeHost) RunSource(src, name string) (int, error) { return 0, nil }
func (f *fakeHost) ExecReplace(args []string) error         { return nil }
func (f *fakeHost) MakePermanent()                          {}
func (f *fakeHost) RunCommand(args []string, skipFunctions bool) (int, error) { return 0, nil }
func (f *fakeHost) Interactive() bool                        { return false }

func TestRunTrueFalseColon(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, err := Run(h, "true", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)

	st, err = Run(h, "false", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 1)

	st, err = Run(h, ":", []string{"ignored", "args"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
}

func TestRunEcho(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, err := Run(h, "echo", []string{"hello", "world"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.out.String(), qt.Equals, "hello world\n")
}

func TestRunEchoDashN(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	_, err := Run(h, "echo", []string{"-n", "hi"})
	c.Assert(err, qt.IsNil)
	c.Assert(h.out.String(), qt.Equals, "hi")
}

func TestRunUnknownBuiltin(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, err := Run(h, "nosuchbuiltin", nil)
	c.Assert(err, qt.IsNotNil)
	c.Assert(st, qt.Equals, 127)
}

func TestRunShift(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	h.set.SetArgs([]string{"a", "b", "c"})
	st, err := Run(h, "shift", []string{"2"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.set.Args(), qt.DeepEquals, []string{"c"})
}

func TestRunShiftInvalidArgument(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, _ := Run(h, "shift", []string{"-1"})
	c.Assert(st, qt.Equals, 1)
}

func TestRunReadonlyAssignAndReject(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, err := Run(h, "readonly", []string{"X=5"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.env.HasReadOnlyAttr("X"), qt.Equals, true)

	st, err = Run(h, "readonly", []string{"X=6"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 1)
}

func TestRunRead(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("hello world\n")
	st, err := Run(h, "read", []string{"a", "b"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.env.Get("a").Str, qt.Equals, "hello")
	c.Assert(h.env.Get("b").Str, qt.Equals, "world")
}

func TestRunReadEOFWithNoInput(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, _ := Run(h, "read", []string{"x"})
	c.Assert(st, qt.Equals, 1)
}

func TestRunGetoptsBasic(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	h.set.SetArgs([]string{"-a", "val"})
	st, err := Run(h, "getopts", []string{"a:", "opt"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.env.Get("opt").Str, qt.Equals, "a")
}

func TestRunSetParsesOptions(t *testing.T) {
	c := qt.New(t)
	h := newFakeHost("")
	st, err := Run(h, "set", []string{"-e"})
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, 0)
	c.Assert(h.set.Opt(settings.ErrExit), qt.Equals, true)
}

func TestIsSpecialAndIsBuiltin(t *testing.T) {
	c := qt.New(t)
	c.Assert(IsSpecial("export"), qt.Equals, true)
	c.Assert(IsSpecial("echo"), qt.Equals, false)
	c.Assert(IsBuiltin("echo"), qt.Equals, true)
	c.Assert(IsBuiltin("nope"), qt.Equals, false)
}
