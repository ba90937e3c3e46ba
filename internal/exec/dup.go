package exec

import (
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/posh-shell/posh/internal/shellerr"
)

// DupFile duplicates f onto a fresh OS fd, used when wiring a pipeline
// stage's stdio: each stage goroutine needs its own descriptor it can close
// independently of the shell's own vfd stack and of sibling stages, per
// spec.md §4.7 "Pipeline".
func DupFile(f *os.File) (*os.File, error) {
	if f == nil {
		return nil, shellerr.New(shellerr.BadFdNumber, "", "no such file descriptor")
	}
	nfd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, shellerr.Wrap(shellerr.IoError, "", err)
	}
	return os.NewFile(uintptr(nfd), f.Name()), nil
}

// WaitAll waits for every process in procs concurrently, per spec.md §4.7
// "pipeline children start in order but run concurrently", returning each
// one's terminal Status in the same order as procs.
func (e *Executor) WaitAll(procs []*Process) ([]Status, error) {
	statuses := make([]Status, len(procs))
	var g errgroup.Group
	for i, p := range procs {
		i, p := i, p
		g.Go(func() error {
			st, _, err := e.WaitForProcess(p, true)
			statuses[i] = st
			return err
		})
	}
	err := g.Wait()
	return statuses, err
}
