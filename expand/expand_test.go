package expand

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/posh-shell/posh/internal/env"
	"github.com/posh-shell/posh/internal/settings"
)

// wordOf parses src as a single simple command and returns its i'th word,
// a convenient way to build real *syntax.Word values for expander tests
// without hand-assembling the AST.
func wordOf(c *qt.C, src string, i int) *syntax.Word {
	file, err := syntax.Parse([]byte(src), "test", syntax.PosixConformant)
	c.Assert(err, qt.IsNil)
	if len(file.Stmts) == 0 {
		c.Fatal("no statements parsed")
	}
	ce, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	c.Assert(ok, qt.Equals, true)
	return &ce.Args[i]
}

func newTestExpander(vars map[string]string, args []string) *Expander {
	st := env.New()
	for k, v := range vars {
		st.SetVar(k, v)
	}
	set := settings.New("test", args)
	return New(Config{
		Env:        st,
		Settings:   set,
		LastStatus: func() int { return 0 },
		LastBgPid:  func() int { return 0 },
		Dollar:     1234,
	})
}

func TestLiteralPlainWord(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(nil, nil)
	w := wordOf(c, "echo hello", 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "hello")
}

func TestParamExpansionPlain(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"foo": "bar"}, nil)
	w := wordOf(c, `echo "$foo"`, 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "bar")
}

func TestParamDefaultValue(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(nil, nil)
	w := wordOf(c, `echo ${missing:-fallback}`, 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "fallback")
}

func TestFieldSplitting(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"list": "a  b   c"}, nil)
	w := wordOf(c, "echo $list", 1)
	got, err := e.Fields(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a", "b", "c"})
}

func TestFieldSplittingQuotedPreserved(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"list": "a  b   c"}, nil)
	w := wordOf(c, `echo "$list"`, 1)
	got, err := e.Fields(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a  b   c"})
}

func TestPositionalAtSplitsFields(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(nil, []string{"one", "two", "three"})
	w := wordOf(c, `echo "$@"`, 1)
	got, err := e.Fields(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one", "two", "three"})
}

func TestParamLength(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"foo": "hello"}, nil)
	w := wordOf(c, "echo ${#foo}", 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "5")
}

func TestNoUnsetErrors(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(nil, nil)
	e.cfg.Settings.SetOpt(settings.NoUnset, true)
	w := wordOf(c, "echo $missing", 1)
	_, err := e.Literal(w)
	c.Assert(err, qt.IsNotNil)
}

func TestTildeExpansion(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"HOME": "/home/tester"}, nil)
	w := wordOf(c, "echo ~/bin", 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "/home/tester/bin")
}

// TestFieldVectorMultipleParams exercises a multi-field expansion vector
// wide enough that a mismatch is easier to read as a structural diff than
// as a flat qt.DeepEquals failure, so it uses go-cmp directly.
func TestFieldVectorMultipleParams(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(map[string]string{"a": "1 2", "b": "3  4"}, nil)
	w := wordOf(c, `echo $a-$b`, 1)
	got, err := e.Fields(w)
	c.Assert(err, qt.IsNil)
	want := []string{"1", "2-3", "4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("field vector mismatch (-want +got):\n%s", diff)
	}
}

func TestArithmeticExpansion(t *testing.T) {
	c := qt.New(t)
	e := newTestExpander(nil, nil)
	w := wordOf(c, "echo $((2 + 3 * 4))", 1)
	got, err := e.Literal(w)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "14")
}
