package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the quiet period before a scheduled selection is sent.
// It absorbs keyboard auto-repeat and fast clicking.
const DefaultDelay = 100 * time.Millisecond

// Func performs one port selection
type Func func(ctx context.Context, port int) error

// ResultHandler receives the outcome of every executed selection
type ResultHandler func(port int, err error)

// Scheduler debounces port selections. Many Schedule calls in quick
// succession collapse into one call of the underlying Func with the last
// requested port. Executions never overlap.
type Scheduler struct {
	fn       Func
	delay    time.Duration
	limiter  *rate.Limiter
	onResult ResultHandler

	mu         sync.Mutex
	timer      *time.Timer
	pending    int
	hasPending bool
	stopped    bool
	// gen identifies the live timer; a timer from an earlier Schedule
	// must not take the pending port.
	gen uint64

	runMu  sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRateLimit caps executions at perSecond with the given burst
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Scheduler) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithResultHandler registers a callback for execution results
func WithResultHandler(h ResultHandler) Option {
	return func(s *Scheduler) {
		s.onResult = h
	}
}

// New creates a Scheduler that calls fn after delay of inactivity.
// A negative delay means DefaultDelay; zero runs on the next timer tick.
func New(fn Func, delay time.Duration, opts ...Option) *Scheduler {
	if delay < 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		fn:     fn,
		delay:  delay,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule requests a selection of port, replacing any pending request and
// restarting the delay.
func (s *Scheduler) Schedule(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.pending = port
	s.hasPending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Pending returns the port waiting to be sent, if any
func (s *Scheduler) Pending() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasPending
}

// Flush executes the pending selection immediately and returns its result.
// It returns nil when nothing is pending.
func (s *Scheduler) Flush() error {
	port, ok := s.take(0)
	if !ok {
		return nil
	}
	defer s.wg.Done()
	return s.run(port)
}

// Stop discards pending work, cancels a running execution and waits for it
// to return. The Scheduler cannot be reused.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.hasPending = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) fire(gen uint64) {
	port, ok := s.take(gen)
	if !ok {
		return
	}
	defer s.wg.Done()
	_ = s.run(port)
}

// take claims the pending port. A non-zero gen must match the latest
// Schedule call. On success the caller owns one wg slot.
func (s *Scheduler) take(gen uint64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || !s.hasPending {
		return 0, false
	}
	if gen != 0 && gen != s.gen {
		return 0, false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.hasPending = false
	s.wg.Add(1)
	return s.pending, true
}

func (s *Scheduler) run(port int) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var err error
	if s.limiter != nil {
		err = s.limiter.Wait(s.ctx)
	}
	if err == nil {
		err = s.fn(s.ctx, port)
	}
	if s.onResult != nil {
		s.onResult(port, err)
	}
	return err
}
