package exec

import (
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPushPopFile(t *testing.T) {
	c := qt.New(t)
	e := New(os.Stdin, os.Stdout, os.Stderr, false)

	c.Assert(e.Top(0), qt.Equals, os.Stdin)

	r, w, err := os.Pipe()
	c.Assert(err, qt.IsNil)
	defer r.Close()

	e.PushFile(0, r)
	c.Assert(e.Top(0), qt.Equals, r)

	e.PopFile(0)
	c.Assert(e.Top(0), qt.Equals, os.Stdin)

	w.Close()
}

func TestActiveVfds(t *testing.T) {
	c := qt.New(t)
	e := New(os.Stdin, os.Stdout, os.Stderr, false)
	vfds := e.ActiveVfds()
	c.Assert(len(vfds), qt.Equals, 3)
}

func TestCurrentState(t *testing.T) {
	c := qt.New(t)
	e := New(os.Stdin, os.Stdout, os.Stderr, false)
	c.Assert(e.CurrentState(), qt.Equals, InInterpreter)
	e.PushState(InNewProcess)
	c.Assert(e.CurrentState(), qt.Equals, InNewProcess)
	e.PopState()
	c.Assert(e.CurrentState(), qt.Equals, InInterpreter)
}
