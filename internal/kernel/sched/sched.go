// Package sched is the scheduler collaborator of the system-call layer.
//
// Each kernel thread is a goroutine. The scheduler hands out thread ids,
// tracks live threads, and provides the two primitives the core consumes:
// thread creation and thread exit. Exit unwinds the calling goroutine with
// runtime.Goexit, so a thread that exits never returns to its caller while
// deferred cleanup still runs.
package sched

import (
	"errors"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Tid identifies a thread. User processes use their thread's tid as pid.
type Tid int32

// TidError is returned where a tid is expected but none could be produced.
const TidError Tid = -1

// ErrTooManyThreads is returned when the thread limit is reached.
var ErrTooManyThreads = errors.New("sched: thread limit reached")

// Thread is one schedulable unit of execution.
type Thread struct {
	tid  Tid
	name string
}

// Tid returns the thread id.
func (t *Thread) Tid() Tid { return t.tid }

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

// Scheduler creates and tracks threads.
type Scheduler struct {
	mu      sync.Mutex
	next    Tid
	limit   int
	threads map[Tid]*Thread
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// New creates a scheduler allowing at most limit concurrent threads
// (zero means unbounded).
func New(limit int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		next:    1,
		limit:   limit,
		threads: make(map[Tid]*Thread),
		logger:  logger,
	}
}

// Create starts a new thread running fn and returns its tid.
// fn may call Exit at any depth.
func (s *Scheduler) Create(name string, fn func(t *Thread)) (Tid, error) {
	s.mu.Lock()
	if s.limit > 0 && len(s.threads) >= s.limit {
		s.mu.Unlock()
		return TidError, ErrTooManyThreads
	}
	t := &Thread{tid: s.next, name: name}
	s.next++
	s.threads[t.tid] = t
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug("thread created", zap.Int32("tid", int32(t.tid)), zap.String("name", name))

	go func() {
		defer s.retire(t)
		fn(t)
	}()
	return t.tid, nil
}

func (s *Scheduler) retire(t *Thread) {
	s.mu.Lock()
	delete(s.threads, t.tid)
	s.mu.Unlock()
	s.wg.Done()
	s.logger.Debug("thread retired", zap.Int32("tid", int32(t.tid)))
}

// Exit terminates the calling thread. It must be called from a goroutine
// started by Create; deferred functions run, then the goroutine ends.
func (s *Scheduler) Exit() {
	runtime.Goexit()
}

// Count returns the number of live threads.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// Threads returns a snapshot of live threads ordered by tid.
func (s *Scheduler) Threads() []*Thread {
	s.mu.Lock()
	out := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].tid < out[j].tid })
	return out
}

// Wait blocks until every thread created so far has retired.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
