package sig

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestByNameStripsSigPrefix(t *testing.T) {
	c := qt.New(t)
	s1, ok1 := ByName("INT")
	s2, ok2 := ByName("SIGINT")
	c.Assert(ok1, qt.Equals, true)
	c.Assert(ok2, qt.Equals, true)
	c.Assert(s1, qt.Equals, s2)
}

func TestByNameUnknown(t *testing.T) {
	c := qt.New(t)
	_, ok := ByName("EXIT")
	c.Assert(ok, qt.Equals, false)
	_, ok = ByName("NOTASIGNAL")
	c.Assert(ok, qt.Equals, false)
}

func TestPendingMarkAndDrain(t *testing.T) {
	c := qt.New(t)
	f := New()
	defer f.Close()

	f.mark(byName["USR1"])
	c.Assert(f.HasSignal("USR1"), qt.Equals, true)

	names := f.Drain()
	c.Assert(names, qt.DeepEquals, []string{"USR1"})
	c.Assert(f.HasSignal("USR1"), qt.Equals, false)
}

func TestClearSignal(t *testing.T) {
	c := qt.New(t)
	f := New()
	defer f.Close()

	f.mark(byName["USR2"])
	f.ClearSignal("USR2")
	c.Assert(f.HasSignal("USR2"), qt.Equals, false)
}

func TestDrainOrdersByNamesAndClearsAll(t *testing.T) {
	c := qt.New(t)
	f := New()
	defer f.Close()

	f.mark(byName["TERM"])
	f.mark(byName["HUP"])
	names := f.Drain()
	// Names is fixed-order; HUP precedes TERM in it.
	c.Assert(names, qt.DeepEquals, []string{"HUP", "TERM"})
	c.Assert(f.Drain(), qt.HasLen, 0)
}

func TestTrapSetClearTrap(t *testing.T) {
	c := qt.New(t)
	f := New()
	defer f.Close()

	_, ok := f.Trap("TERM")
	c.Assert(ok, qt.Equals, false)

	f.SetTrap("TERM", "echo bye")
	action, ok := f.Trap("TERM")
	c.Assert(ok, qt.Equals, true)
	c.Assert(action, qt.Equals, "echo bye")

	f.ClearTrap("TERM")
	_, ok = f.Trap("TERM")
	c.Assert(ok, qt.Equals, false)
}

func TestTrapsSnapshotIsIndependentCopy(t *testing.T) {
	c := qt.New(t)
	f := New()
	defer f.Close()

	f.SetTrap("INT", "true")
	snap := f.Traps()
	c.Assert(snap, qt.DeepEquals, map[string]string{"INT": "true"})

	snap["INT"] = "mutated"
	again, ok := f.Trap("INT")
	c.Assert(ok, qt.Equals, true)
	c.Assert(again, qt.Equals, "true")
}
