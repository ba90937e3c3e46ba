package env

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSetGetVar(t *testing.T) {
	c := qt.New(t)
	s := New()

	c.Assert(s.Get("FOO").Set, qt.Equals, false)

	c.Assert(s.SetVar("FOO", "bar"), qt.IsNil)
	v := s.Get("FOO")
	c.Assert(v.Set, qt.Equals, true)
	c.Assert(v.Str, qt.Equals, "bar")

	c.Assert(s.UnsetVar("FOO"), qt.IsNil)
	c.Assert(s.Get("FOO").Set, qt.Equals, false)
}

func TestSetVarInvalidName(t *testing.T) {
	c := qt.New(t)
	s := New()
	err := s.SetVar("1BAD", "x")
	c.Assert(err, qt.IsNotNil)
}

func TestReadOnly(t *testing.T) {
	c := qt.New(t)
	s := New()
	c.Assert(s.SetVar("FOO", "bar"), qt.IsNil)
	c.Assert(s.SetReadOnlyAttr("FOO"), qt.IsNil)
	c.Assert(s.HasReadOnlyAttr("FOO"), qt.Equals, true)

	err := s.SetVar("FOO", "baz")
	c.Assert(err, qt.IsNotNil)
	c.Assert(s.Get("FOO").Str, qt.Equals, "bar")

	err = s.UnsetVar("FOO")
	c.Assert(err, qt.IsNotNil)
}

func TestAllExport(t *testing.T) {
	c := qt.New(t)
	s := New()
	s.SetAllExport(true)
	c.Assert(s.SetVar("FOO", "bar"), qt.IsNil)
	c.Assert(s.Get("FOO").Exported, qt.Equals, true)
}

func TestEnviron(t *testing.T) {
	c := qt.New(t)
	s := New()
	c.Assert(s.SetVar("A", "1"), qt.IsNil)
	c.Assert(s.SetVar("B", "2"), qt.IsNil)
	c.Assert(s.SetExported("A", true), qt.IsNil)

	got := s.Environ()
	c.Assert(got, qt.DeepEquals, []string{"A=1"})
}

func TestAlias(t *testing.T) {
	c := qt.New(t)
	s := New()
	s.SetAlias("ll", "ls -l")
	v, ok := s.Alias("ll")
	c.Assert(ok, qt.Equals, true)
	c.Assert(v, qt.Equals, "ls -l")

	s.UnsetAlias("ll")
	_, ok = s.Alias("ll")
	c.Assert(ok, qt.Equals, false)
}

func TestCloneIsolation(t *testing.T) {
	c := qt.New(t)
	s := New()
	c.Assert(s.SetVar("FOO", "bar"), qt.IsNil)

	clone := s.Clone()
	c.Assert(clone.SetVar("FOO", "changed"), qt.IsNil)
	c.Assert(s.Get("FOO").Str, qt.Equals, "bar")
	c.Assert(clone.Get("FOO").Str, qt.Equals, "changed")

	c.Assert(clone.SetVar("NEW", "v"), qt.IsNil)
	c.Assert(s.Get("NEW").Set, qt.Equals, false)
}
