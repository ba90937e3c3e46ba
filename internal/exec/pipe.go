package exec

import "os"

// Pipe is a pair of file handles created with close-on-exec set, per
// spec.md §3.
type Pipe struct {
	Reading *os.File
	Writing *os.File
}

// NewPipe creates a close-on-exec pipe. os.Pipe already sets O_CLOEXEC on
// both ends on every platform this repository targets.
func NewPipe() (Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return Pipe{}, err
	}
	return Pipe{Reading: r, Writing: w}, nil
}

// PushPipe scopes a pipe to the current pipeline, so it can be closed in
// every sibling process once fd wiring is done.
func (e *Executor) PushPipe(p Pipe) { e.pipes = append(e.pipes, p) }

// PopPipe removes and closes the most recently pushed pipe's still-open
// ends.
func (e *Executor) PopPipe() {
	if len(e.pipes) == 0 {
		return
	}
	p := e.pipes[len(e.pipes)-1]
	e.pipes = e.pipes[:len(e.pipes)-1]
	p.Reading.Close()
	p.Writing.Close()
}

// Pipes returns the currently scoped pipe stack, so a child about to exec
// can close every fd it does not need, per spec.md §4.7 "Pipeline".
func (e *Executor) Pipes() []Pipe { return e.pipes }

// ClearPipes drops the pipe stack without closing files, used right before
// CloseAndMoveFilesForExecute flattens fds for a real execve (the files
// themselves are about to be renumbered or are already inherited).
func (e *Executor) ClearPipes() { e.pipes = nil }
