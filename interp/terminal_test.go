//go:build unix

// Exercises stdio over a real pseudo-terminal rather than a plain pipe,
// grounded on _examples/mvdan-sh/interp/terminal_test.go's "Pseudo" case:
// a pty echoes "\n" back as "\r\n" and is a tty to isatty(3) in a way a
// pipe never is, so commands relying on real terminal semantics need this
// to be exercised at all.
package interp

import (
	"bufio"
	"testing"

	"github.com/creack/pty"
	qt "github.com/frankban/quicktest"
)

func TestRunOverPseudoTerminal(t *testing.T) {
	c := qt.New(t)
	ptmx, tty, err := pty.Open()
	c.Assert(err, qt.IsNil)
	defer ptmx.Close()
	defer tty.Close()

	r := New("test", nil, tty, tty, tty)
	go r.Run(parseStmts(c, "echo hello"))

	got, err := bufio.NewReader(ptmx).ReadString('\n')
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "hello\r\n")
}
