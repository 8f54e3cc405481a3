// Package scheduler provides the shared recurring timer that drives every
// log size monitor in the process.
//
// One dispatcher goroutine keeps entries in a min-heap keyed by their next
// firing time and hands due entries to a fixed pool of workers. An entry is
// out of the heap while it runs and is requeued only after its callback
// returns, so firings of one entry never overlap.
package scheduler

import (
	"container/heap"
	"runtime"
	"sync"
	"time"

	"github.com/gxo-labs/logguard/internal/logger"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/supervise"
)

// Service is a supervise.Scheduler backed by a heap and a worker pool.
type Service struct {
	log lglog.Logger

	mu     sync.Mutex
	queue  entryHeap
	live   int
	seq    uint64
	closed bool

	wake chan struct{}
	work chan *entry
	done chan struct{}
	wg   sync.WaitGroup
}

type entry struct {
	svc    *Service
	fn     func()
	period time.Duration
	next   time.Time
	seq    uint64
	index  int

	cancelled bool
}

// Option configures a Service.
type Option func(*options)

type options struct {
	workers int
	log     lglog.Logger
}

// WithWorkers sets the number of goroutines running callbacks. Values below
// one mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(log lglog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New starts a Service. Call Close to stop it.
func New(opts ...Option) *Service {
	o := options{workers: runtime.NumCPU(), log: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	if o.log == nil {
		o.log = logger.NewNopLogger()
	}

	s := &Service{
		log:  o.log.With("component", "scheduler"),
		wake: make(chan struct{}, 1),
		work: make(chan *entry),
		done: make(chan struct{}),
	}
	s.wg.Add(1 + o.workers)
	go s.dispatch()
	for i := 0; i < o.workers; i++ {
		go s.worker()
	}
	return s
}

// ScheduleRecurring runs fn after initialDelay and then every period. A
// non-positive period makes the entry fire once. Scheduling on a closed
// Service returns a token for an entry that never fires.
func (s *Service) ScheduleRecurring(initialDelay, period time.Duration, fn func()) supervise.CancelToken {
	if initialDelay < 0 {
		initialDelay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e := &entry{svc: s, fn: fn, period: period, next: time.Now().Add(initialDelay), seq: s.seq, index: -1}
	if s.closed || fn == nil {
		e.cancelled = true
		return e
	}
	heap.Push(&s.queue, e)
	s.live++
	s.signal()
	return e
}

// Len returns the number of entries that have not been cancelled.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Close stops dispatching and waits for the workers to exit. Callbacks that
// are running when Close is called complete first.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.queue {
		e.cancelled = true
		e.index = -1
	}
	s.queue = nil
	s.live = 0
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// Cancel implements supervise.CancelToken. After it returns no further
// firing is dispatched. A firing a worker had already claimed may still
// start, and a running firing is allowed to finish.
func (e *entry) Cancel() {
	s := e.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cancelled {
		return
	}
	e.cancelled = true
	if s.closed {
		return
	}
	s.live--
	if e.index >= 0 {
		heap.Remove(&s.queue, e.index)
	}
	s.signal()
}

// signal wakes the dispatcher. Callers hold s.mu.
func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) dispatch() {
	defer s.wg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		now := time.Now()
		var due []*entry
		for len(s.queue) > 0 && !s.queue[0].next.After(now) {
			due = append(due, heap.Pop(&s.queue).(*entry))
		}
		wait := time.Hour
		if len(s.queue) > 0 {
			wait = s.queue[0].next.Sub(now)
		}
		s.mu.Unlock()

		for _, e := range due {
			select {
			case s.work <- e:
			case <-s.done:
				return
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.wake:
		case <-timer.C:
		case <-s.done:
			return
		}
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.work:
			s.run(e)
		case <-s.done:
			return
		}
	}
}

// run claims e under the lock and fires it. A Cancel landing after the
// claim does not stop this firing, only the next one.
func (s *Service) run(e *entry) {
	s.mu.Lock()
	if e.cancelled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.invoke(e.fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cancelled || s.closed {
		return
	}
	if e.period <= 0 {
		e.cancelled = true
		s.live--
		return
	}
	e.next = e.next.Add(e.period)
	if now := time.Now(); e.next.Before(now) {
		e.next = now
	}
	heap.Push(&s.queue, e)
	s.signal()
}

func (s *Service) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Scheduled callback panicked: %v", r)
		}
	}()
	fn()
}

var _ supervise.Scheduler = (*Service)(nil)
