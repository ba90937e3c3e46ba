package interp

import (
	"io"
	"os"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"mvdan.cc/sh/v3/syntax"
)

// captureRunner builds a Runner whose stdout/stderr are backed by os.Pipe
// so the test can read back what the interpreter wrote, since the executor
// works with *os.File rather than arbitrary io.Writers.
func captureRunner(c *qt.C) (r *Runner, readOut func() string) {
	outR, outW, err := os.Pipe()
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { outR.Close() })

	r = New("test", nil, nil, outW, outW)

	return r, func() string {
		outW.Close()
		b, err := io.ReadAll(outR)
		c.Assert(err, qt.IsNil)
		return string(b)
	}
}

func parseStmts(c *qt.C, src string) []*syntax.Stmt {
	file, err := syntax.Parse([]byte(src), "test", syntax.PosixConformant)
	c.Assert(err, qt.IsNil)
	return file.Stmts
}

func TestRunEchoSimpleCommand(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "echo hello"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "hello\n")
}

func TestRunVariableAssignmentAndExpansion(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "x=5; echo $x"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "5\n")
}

func TestRunFunctionDefinitionAndCall(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, `greet() { echo "hi $1"; }; greet there`))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "hi there\n")
}

func TestRunFunctionReturnStopsBody(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, `f() { echo a; return 3; echo b; }; f; echo $?`))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "a\n3\n")
}

func TestRunExitStopsExecList(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "echo before; exit 7; echo after"))
	c.Assert(status, qt.Equals, 7)
	c.Assert(readOut(), qt.Equals, "before\n")
}

func TestRunAndTrapExitFiresExitTrap(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.RunAndTrapExit(parseStmts(c, `trap 'echo bye' EXIT; echo main`))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "main\nbye\n")
}

func TestRunIfElse(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "if false; then echo yes; else echo no; fi"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "no\n")
}

func TestRunAndOrShortCircuit(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "false && echo nope; true || echo nope2; echo done"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "done\n")
}

func TestRunPipeline(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "echo hi | cat"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "hi\n")
}

func TestRunXtraceEmitsCommandLines(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "set -x; echo hi"))
	c.Assert(status, qt.Equals, 0)
	out := readOut()
	c.Assert(strings.Contains(out, "+ echo hi\n"), qt.Equals, true)
	c.Assert(strings.Contains(out, "hi\n"), qt.Equals, true)
}

func TestRunCommandSubstitution(t *testing.T) {
	c := qt.New(t)
	r, readOut := captureRunner(c)
	status := r.Run(parseStmts(c, "echo $(echo inner)"))
	c.Assert(status, qt.Equals, 0)
	c.Assert(readOut(), qt.Equals, "inner\n")
}
