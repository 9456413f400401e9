package gpu

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Stream is an in-order queue of device operations. Operations on one
// stream run one after another in enqueue order; different streams run
// independently.
//
// The first failing operation makes the stream sticky: later launches and
// copies are skipped until Synchronize reports the failure.
type Stream struct {
	ctx *Context
	id  uint64

	ops  chan func(prev error) error
	done chan struct{}

	mu     sync.RWMutex // guards closed against sends on ops
	closed bool

	errMu sync.Mutex
	err   error
}

// NewStream creates a stream on the current context.
func NewStream() (*Stream, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	return c.NewStream()
}

func newStream(c *Context, id uint64) *Stream {
	s := &Stream{
		ctx:  c,
		id:   id,
		ops:  make(chan func(prev error) error, c.cfg.QueueDepth),
		done: make(chan struct{}),
	}
	go s.worker()
	return s
}

// ID identifies the stream within its context; the default stream is 0.
func (s *Stream) ID() uint64 { return s.id }

func (s *Stream) worker() {
	defer close(s.done)
	for op := range s.ops {
		prev := s.sticky()
		if err := runOp(op, prev); err != nil && prev == nil {
			s.setSticky(err)
		}
	}
}

// runOp runs one operation, turning a panic inside a kernel into a launch
// failure instead of taking the process down.
func runOp(op func(prev error) error, prev error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			Logger().Error("kernel fault", "panic", p)
			err = &Error{
				Code: CodeLaunchFailure,
				Op:   "kernel",
				Msg:  fmt.Sprint(p),
				Err:  fmt.Errorf("%s", debug.Stack()),
			}
		}
	}()
	return op(prev)
}

func (s *Stream) sticky() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setSticky(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) takeSticky() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// enqueue appends op to the stream. It blocks while the queue is full.
func (s *Stream) enqueue(op func(prev error) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return newError(CodeInvalidHandle, "enqueue", "stream %d destroyed", s.id)
	}
	s.ops <- op
	return nil
}

// Synchronize blocks until every operation enqueued so far has finished,
// then returns and clears the first failure since the last Synchronize.
func (s *Stream) Synchronize() error {
	barrier := make(chan struct{})
	var flushErr error
	err := s.enqueue(func(error) error {
		flushErr = s.ctx.be.flush()
		close(barrier)
		return nil
	})
	if err != nil {
		return err
	}
	<-barrier
	if err := s.takeSticky(); err != nil {
		return err
	}
	return flushErr
}

// Destroy waits for queued work, stops the stream and returns any pending
// failure. The default stream is destroyed only by Context.Close.
func (s *Stream) Destroy() error {
	if s == s.ctx.null {
		return newError(CodeInvalidHandle, "stream_destroy", "default stream cannot be destroyed")
	}
	return s.destroy()
}

func (s *Stream) destroy() error {
	err := s.Synchronize()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()

	<-s.done
	s.ctx.forgetStream(s)
	Logger().Debug("stream destroyed", "stream", s.id)
	return err
}

// SynchronizeMemory waits for one pending transfer on s, not for the whole
// stream, and returns the filled host slice.
func SynchronizeMemory[T any](s *Stream, p *PendingCopy[T]) ([]T, error) {
	if p.stream != s {
		return nil, newError(CodeInvalidHandle, "synchronize_memory", "transfer was enqueued on stream %d, not %d", p.stream.id, s.id)
	}
	return p.Wait()
}
