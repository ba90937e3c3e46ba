package redirect

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/expand"
	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/exec"
	"github.com/posh-shell/posh/internal/settings"
)

func newTestExpander() *expand.Expander {
	return expand.New(expand.Config{
		Env:        env.New(),
		Settings:   settings.New("test", nil),
		LastStatus: func() int { return 0 },
		LastBgPid:  func() int { return 0 },
		Dollar:     1,
	})
}

// redirsOf parses src as a single simple command and returns its redirects.
func redirsOf(c *qt.C, src string) []*syntax.Redirect {
	file, err := syntax.Parse([]byte(src), "test", syntax.PosixConformant)
	c.Assert(err, qt.IsNil)
	if len(file.Stmts) == 0 {
		c.Fatal("no statements parsed")
	}
	return file.Stmts[0].Redirs
}

func TestPlanOutputRedirect(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "echo hi > out.txt")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops, qt.HasLen, 1)
	c.Assert(ops[0].Kind, qt.Equals, Output)
	c.Assert(ops[0].Vfd, qt.Equals, 1)
	c.Assert(ops[0].Path, qt.Equals, "out.txt")
}

func TestPlanAppendRedirect(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "echo hi >> out.txt")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Kind, qt.Equals, Append)
}

func TestPlanInputRedirect(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "cat < in.txt")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Kind, qt.Equals, Input)
	c.Assert(ops[0].Vfd, qt.Equals, 0)
}

func TestPlanExplicitVfd(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "echo hi 2> err.txt")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Vfd, qt.Equals, 2)
	c.Assert(ops[0].Kind, qt.Equals, Output)
}

func TestPlanDupOut(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "echo hi 2>&1")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Kind, qt.Equals, Dup)
	c.Assert(ops[0].Vfd, qt.Equals, 2)
	c.Assert(ops[0].OldVfd, qt.Equals, 1)
}

func TestPlanDupClose(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "echo hi 2>&-")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Kind, qt.Equals, Dup)
	c.Assert(ops[0].Close, qt.Equals, true)
}

func TestPlanHereDoc(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "cat <<EOF\nhello\nEOF\n")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(ops[0].Kind, qt.Equals, HereDoc)
	c.Assert(string(ops[0].Bytes), qt.Equals, "hello\n")
}

func TestPlanHereDocDashTrimsTabs(t *testing.T) {
	c := qt.New(t)
	rds := redirsOf(c, "cat <<-EOF\n\t\thello\n\tEOF\n")
	ops, err := Plan(newTestExpander(), rds)
	c.Assert(err, qt.IsNil)
	c.Assert(string(ops[0].Bytes), qt.Equals, "hello\n")
}

func TestApplyOutputWritesFile(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	path := filepath.Join(dir, "out.txt")

	ex := exec.New(os.Stdin, os.Stdout, os.Stderr, false)
	err := Apply(ex, Op{Kind: Output, Vfd: 1, Path: path}, false, nil)
	c.Assert(err, qt.IsNil)
	f := ex.Top(1)
	_, err = f.WriteString("hello\n")
	c.Assert(err, qt.IsNil)
	f.Close()

	got, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "hello\n")
}

func TestApplyOutputNoClobberRefusesExisting(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	path := filepath.Join(dir, "out.txt")
	c.Assert(os.WriteFile(path, []byte("existing"), 0o644), qt.IsNil)

	ex := exec.New(os.Stdin, os.Stdout, os.Stderr, false)
	err := Apply(ex, Op{Kind: Output, Vfd: 1, Path: path}, true, nil)
	c.Assert(err, qt.IsNotNil)
}

func TestApplyDupCloseSetsNilFile(t *testing.T) {
	c := qt.New(t)
	ex := exec.New(os.Stdin, os.Stdout, os.Stderr, false)
	err := Apply(ex, Op{Kind: Dup, Vfd: 2, Close: true}, false, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(ex.Active(2), qt.Equals, false)
}

func TestApplyHereDocPendingReap(t *testing.T) {
	c := qt.New(t)
	ex := exec.New(os.Stdin, os.Stdout, os.Stderr, false)
	var pending Pending
	err := Apply(ex, Op{Kind: HereDoc, Vfd: 0, Bytes: []byte("data\n")}, false, &pending)
	c.Assert(err, qt.IsNil)

	buf := make([]byte, 16)
	n, err := ex.Top(0).Read(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf[:n]), qt.Equals, "data\n")

	c.Assert(pending.Reap(), qt.IsNil)
}
