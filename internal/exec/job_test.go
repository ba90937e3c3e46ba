package exec

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestJobIDAllocation(t *testing.T) {
	c := qt.New(t)
	jt := NewJobTable()
	j1 := jt.AddJob(100, []int{100}, "sleep")
	j2 := jt.AddJob(200, []int{200}, "cat")
	c.Assert(j1.ID, qt.Equals, 1)
	c.Assert(j2.ID, qt.Equals, 2)

	jt.RemoveJob(j1.ID)
	j3 := jt.AddJob(300, []int{300}, "grep")
	c.Assert(j3.ID, qt.Equals, 1)
}

func TestCurrentPreviousJob(t *testing.T) {
	c := qt.New(t)
	jt := NewJobTable()
	j1 := jt.AddJob(100, []int{100}, "a")
	j2 := jt.AddJob(200, []int{200}, "b")

	cur, ok := jt.CurrentJob()
	c.Assert(ok, qt.Equals, true)
	c.Assert(cur.ID, qt.Equals, j2.ID)

	prev, ok := jt.PreviousJob()
	c.Assert(ok, qt.Equals, true)
	c.Assert(prev.ID, qt.Equals, j1.ID)
}

func TestParseJobID(t *testing.T) {
	c := qt.New(t)
	jt := NewJobTable()
	jt.AddJob(100, []int{100}, "sleep")
	jt.AddJob(200, []int{200}, "cat")

	j, err := jt.ParseJobID("%2")
	c.Assert(err, qt.IsNil)
	c.Assert(j.Name, qt.Equals, "cat")

	j, err = jt.ParseJobID("%+")
	c.Assert(err, qt.IsNil)
	c.Assert(j.Name, qt.Equals, "cat")

	j, err = jt.ParseJobID("%-")
	c.Assert(err, qt.IsNil)
	c.Assert(j.Name, qt.Equals, "sleep")

	j, err = jt.ParseJobID("%sl")
	c.Assert(err, qt.IsNil)
	c.Assert(j.Name, qt.Equals, "sleep")

	_, err = jt.ParseJobID("%9")
	c.Assert(err, qt.IsNotNil)
}

func TestJobIsDone(t *testing.T) {
	c := qt.New(t)
	jt := NewJobTable()
	j := jt.AddJob(100, []int{100, 101}, "pipeline")
	c.Assert(j.IsDone(), qt.Equals, false)

	jt.SetJobStatus(j.ID, 0, Status{Kind: Exited, Code: 0})
	c.Assert(j.IsDone(), qt.Equals, false)

	jt.SetJobLastStatus(j.ID, Status{Kind: Exited, Code: 1})
	c.Assert(j.IsDone(), qt.Equals, true)
	c.Assert(j.LastStatus().Code, qt.Equals, 1)
}
