package settings

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestOptToggle(t *testing.T) {
	c := qt.New(t)
	s := New("sh", nil)
	c.Assert(s.Opt(ErrExit), qt.Equals, false)
	s.SetOpt(ErrExit, true)
	c.Assert(s.Opt(ErrExit), qt.Equals, true)
}

func TestArgsAndShift(t *testing.T) {
	c := qt.New(t)
	s := New("sh", []string{"a", "b", "c"})
	c.Assert(s.Name(), qt.Equals, "sh")
	c.Assert(s.Args(), qt.DeepEquals, []string{"a", "b", "c"})

	s.Shift(2)
	c.Assert(s.Args(), qt.DeepEquals, []string{"c"})

	s.Shift(5)
	c.Assert(s.Args(), qt.DeepEquals, []string{})
}

func TestPushPopFrame(t *testing.T) {
	c := qt.New(t)
	s := New("sh", []string{"top"})
	s.PushFrame("myfunc", []string{"x", "y"})
	c.Assert(s.Name(), qt.Equals, "myfunc")
	c.Assert(s.Args(), qt.DeepEquals, []string{"x", "y"})

	s.PopFrame()
	c.Assert(s.Name(), qt.Equals, "sh")
	c.Assert(s.Args(), qt.DeepEquals, []string{"top"})

	// Popping the last frame is a no-op.
	s.PopFrame()
	c.Assert(s.Name(), qt.Equals, "sh")
}

func TestParseOptionsShortFlags(t *testing.T) {
	c := qt.New(t)
	s := New("sh", nil)
	res, err := s.ParseOptions([]string{"-ex", "script.sh"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Index, qt.Equals, 1)
	c.Assert(s.Opt(ErrExit), qt.Equals, true)
	c.Assert(s.Opt(XTrace), qt.Equals, true)
}

func TestParseOptionsLongName(t *testing.T) {
	c := qt.New(t)
	s := New("sh", nil)
	_, err := s.ParseOptions([]string{"-o", "noclobber"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Opt(NoClobber), qt.Equals, true)

	_, err = s.ParseOptions([]string{"+o", "noclobber"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Opt(NoClobber), qt.Equals, false)
}

func TestParseOptionsDoubleDash(t *testing.T) {
	c := qt.New(t)
	s := New("sh", nil)
	res, err := s.ParseOptions([]string{"--", "-e"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(res.SawDoubleDash, qt.Equals, true)
	c.Assert(res.Index, qt.Equals, 1)
	c.Assert(s.Opt(ErrExit), qt.Equals, false)
}

func TestParseOptionsUnknownDelegated(t *testing.T) {
	c := qt.New(t)
	s := New("sh", nil)
	var seen []string
	hook := func(flag string, enable bool) (bool, error) {
		seen = append(seen, flag)
		return true, nil
	}
	_, err := s.ParseOptions([]string{"-B"}, hook)
	c.Assert(err, qt.IsNil)
	c.Assert(seen, qt.DeepEquals, []string{"B"})
}

func TestCloneIsolation(t *testing.T) {
	c := qt.New(t)
	s := New("sh", []string{"a"})
	s.SetOpt(ErrExit, true)

	clone := s.Clone()
	clone.SetOpt(ErrExit, false)
	clone.PushFrame("f", []string{"b"})

	c.Assert(s.Opt(ErrExit), qt.Equals, true)
	c.Assert(s.Name(), qt.Equals, "sh")
	c.Assert(clone.Name(), qt.Equals, "f")
}
