package exec

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/posh-shell/posh/internal/shellerr"
)

// StatusKind classifies a process's wait status.
type StatusKind int

const (
	None StatusKind = iota
	Running
	Stopped
	Exited
	Signaled
)

// Status is one process's wait status, per spec.md §3.
type Status struct {
	Kind     StatusKind
	Code     int
	Signal   syscall.Signal
	CoreDump bool
}

func (s Status) String() string {
	switch s.Kind {
	case Running:
		return "Running"
	case Stopped:
		return fmt.Sprintf("Stopped(%s)", s.Signal)
	case Exited:
		return fmt.Sprintf("Exited(%d)", s.Code)
	case Signaled:
		return fmt.Sprintf("Signaled(%s)", s.Signal)
	default:
		return "None"
	}
}

// Done reports whether the status is terminal (Exited or Signaled).
func (s Status) Done() bool { return s.Kind == Exited || s.Kind == Signaled }

// Job is a foreground or background pipeline known to the shell, per
// spec.md §3. Pids for shell-internal logical processes (goroutine-backed
// subshells/background compound commands, see process.go) are negative
// synthetic ids, unioned with real OS pids the same way rsush's Executor
// keeps one job->pid map for both.
type Job struct {
	ID         int
	Pgid       int
	Pids       []int
	Statuses   []Status
	Name       string
	Controlling bool
}

// LastPid returns the last pid in the job, per spec.md §3.
func (j *Job) LastPid() int {
	if len(j.Pids) == 0 {
		return 0
	}
	return j.Pids[len(j.Pids)-1]
}

// LastStatus returns the status of the last pid in the job.
func (j *Job) LastStatus() Status {
	if len(j.Statuses) == 0 {
		return Status{}
	}
	return j.Statuses[len(j.Statuses)-1]
}

// IsDone reports whether every pid in the job has a terminal status.
func (j *Job) IsDone() bool {
	for _, st := range j.Statuses {
		if !st.Done() {
			return false
		}
	}
	return true
}

// JobTable is the executor's job table: smallest-unused-id allocation plus
// current/previous job tracking, per spec.md §3/§4.4.
type JobTable struct {
	jobs    map[int]*Job
	order   []int // insertion order, most recent last
}

func NewJobTable() *JobTable {
	return &JobTable{jobs: make(map[int]*Job)}
}

func (t *JobTable) nextID() int {
	id := 1
	for {
		if _, ok := t.jobs[id]; !ok {
			return id
		}
		id++
	}
}

// AddJob creates a job with the smallest unused id.
func (t *JobTable) AddJob(pgid int, pids []int, name string) *Job {
	j := &Job{
		ID:       t.nextID(),
		Pgid:     pgid,
		Pids:     append([]int(nil), pids...),
		Statuses: make([]Status, len(pids)),
		Name:     name,
	}
	for i := range j.Statuses {
		j.Statuses[i] = Status{Kind: Running}
	}
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
	return j
}

// SetJobStatus updates the status of one pid within a job.
func (t *JobTable) SetJobStatus(id, pidIndex int, status Status) {
	j, ok := t.jobs[id]
	if !ok || pidIndex < 0 || pidIndex >= len(j.Statuses) {
		return
	}
	j.Statuses[pidIndex] = status
}

// SetJobLastStatus updates the status of the job's last pid.
func (t *JobTable) SetJobLastStatus(id int, status Status) {
	j, ok := t.jobs[id]
	if !ok || len(j.Statuses) == 0 {
		return
	}
	j.Statuses[len(j.Statuses)-1] = status
}

// RemoveJob drops a job from the table entirely.
func (t *JobTable) RemoveJob(id int) {
	delete(t.jobs, id)
	for i, jid := range t.order {
		if jid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Job looks a job up by id.
func (t *JobTable) Job(id int) (*Job, bool) {
	j, ok := t.jobs[id]
	return j, ok
}

// All returns every job, in insertion order.
func (t *JobTable) All() []*Job {
	out := make([]*Job, 0, len(t.order))
	for _, id := range t.order {
		if j, ok := t.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// nonTerminalOrder returns job ids, most recent first, for jobs that are
// not yet fully done.
func (t *JobTable) nonTerminalOrder() []int {
	var out []int
	for i := len(t.order) - 1; i >= 0; i-- {
		id := t.order[i]
		if j, ok := t.jobs[id]; ok && !j.IsDone() {
			out = append(out, id)
		}
	}
	return out
}

// CurrentJob returns the most recently added non-terminal job.
func (t *JobTable) CurrentJob() (*Job, bool) {
	ord := t.nonTerminalOrder()
	if len(ord) == 0 {
		return nil, false
	}
	return t.jobs[ord[0]], true
}

// PreviousJob returns the second most recently added non-terminal job.
func (t *JobTable) PreviousJob() (*Job, bool) {
	ord := t.nonTerminalOrder()
	if len(ord) < 2 {
		return nil, false
	}
	return t.jobs[ord[1]], true
}

// ParseJobID resolves a "%N"/"%+"/"%-"/"%NAME" job specifier, per
// spec.md §4.4.
func (t *JobTable) ParseJobID(spec string) (*Job, error) {
	if !strings.HasPrefix(spec, "%") {
		return nil, shellerr.New(shellerr.BadOption, spec, "not a job specifier")
	}
	rest := spec[1:]
	switch rest {
	case "+", "", "%":
		if j, ok := t.CurrentJob(); ok {
			return j, nil
		}
		return nil, shellerr.New(shellerr.NotFound, spec, "no current job")
	case "-":
		if j, ok := t.PreviousJob(); ok {
			return j, nil
		}
		return nil, shellerr.New(shellerr.NotFound, spec, "no previous job")
	}
	if n, err := strconv.Atoi(rest); err == nil {
		if j, ok := t.jobs[n]; ok {
			return j, nil
		}
		return nil, shellerr.New(shellerr.NotFound, spec, "no such job")
	}
	for _, id := range t.order {
		j := t.jobs[id]
		if strings.HasPrefix(j.Name, rest) {
			return j, nil
		}
	}
	return nil, shellerr.New(shellerr.NotFound, spec, "no such job")
}
