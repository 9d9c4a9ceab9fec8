package session

import "context"

// Sync tracks a queued job. Err is meaningful once Done is closed.
type Sync struct {
	done chan struct{}
	err  error
}

func newSync() *Sync {
	return &Sync{done: make(chan struct{})}
}

func settled(err error) *Sync {
	s := newSync()
	s.settle(err)
	return s
}

func (s *Sync) settle(err error) {
	s.err = err
	close(s.done)
}

// Done is closed when the job has settled.
func (s *Sync) Done() <-chan struct{} { return s.done }

// Err returns the job's outcome. It returns nil before Done is closed.
func (s *Sync) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the job settles or ctx is done. Giving up on the wait
// does not cancel the job.
func (s *Sync) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
