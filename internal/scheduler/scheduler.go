package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/f0rge/go-gpxreel/internal/logger"
)

// State is a task's lifecycle position. Transitions are driven only by
// the scheduler loop:
//
//	Created -> Ready -> Running -> {Stopped | Failed}
//	Running <-> Paused
type State int

const (
	Created State = iota
	Ready
	Running
	Paused
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrUpstreamFailed cancels a task whose dependency failed.
var ErrUpstreamFailed = errors.New("upstream task failed")

// Task is one schedulable pipeline stage. Run does the stage's work;
// blocking calls inside it (tile fetches, codec calls) happen off the
// scheduler loop by construction, since each Run executes in its own
// goroutine and reports completion back into the loop.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Handle identifies a registered task. The scheduler owns all tasks for
// its lifetime; handles are just indexes into that ownership.
type Handle int

type entry struct {
	task  Task
	state State
	deps  []Handle
	err   error
}

type eventKind int

const (
	evDone eventKind = iota
	evPause
	evResume
)

type event struct {
	kind   eventKind
	handle Handle
	err    error
}

// Scheduler drives registered tasks through a single event loop. Tasks
// form a pipeline by data dependency: a task starts only after all its
// upstream tasks stopped cleanly. A failure propagates cancellation to
// every dependent; nothing is retried.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	events  chan event
	cancels map[Handle]context.CancelFunc
}

func New() *Scheduler {
	return &Scheduler{
		events:  make(chan event, 16),
		cancels: make(map[Handle]context.CancelFunc),
	}
}

// Register appends a task with its upstream dependencies.
func (s *Scheduler) Register(task Task, deps ...Handle) Handle {
	h := Handle(len(s.entries))
	s.entries = append(s.entries, &entry{task: task, state: Created, deps: deps})
	return h
}

// StateOf reports the task's current state.
func (s *Scheduler) StateOf(h Handle) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[h].state
}

// Err returns the task's terminal error, if any.
func (s *Scheduler) Err(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[h].err
}

// Pause suspends launching of a ready task. Already-running work is not
// interrupted; the task simply keeps its slot until Resume.
func (s *Scheduler) Pause(h Handle) {
	s.events <- event{kind: evPause, handle: h}
}

func (s *Scheduler) Resume(h Handle) {
	s.events <- event{kind: evResume, handle: h}
}

// Exec runs the event loop until every task reaches a terminal state or
// the context is cancelled. It returns the first task failure.
func (s *Scheduler) Exec(ctx context.Context) error {
	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	var firstErr error
	for {
		s.promote()
		s.launch(ctx)

		if s.allTerminal() {
			break
		}

		select {
		case <-ctx.Done():
			// drain: wait for in-flight tasks to observe cancellation
			s.drain()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			return firstErr
		case ev := <-s.events:
			s.handle(ev)
			if ev.kind == evDone && ev.err != nil && firstErr == nil {
				firstErr = fmt.Errorf("task %s: %w", s.entries[ev.handle].task.Name(), ev.err)
				cancelAll()
			}
		}
	}
	return firstErr
}

// promote moves tasks whose dependencies all stopped to Ready, and fails
// tasks whose dependencies failed.
func (s *Scheduler) promote() {
	log := logger.Log.WithField("scope", "scheduler")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.state != Created {
			continue
		}
		ready := true
		for _, dep := range e.deps {
			switch s.entries[dep].state {
			case Stopped:
				// satisfied
			case Failed:
				e.state = Failed
				e.err = fmt.Errorf("%w: %s", ErrUpstreamFailed, s.entries[dep].task.Name())
				log.Debugf("task %s cancelled: %v", e.task.Name(), e.err)
				ready = false
			default:
				ready = false
			}
			if !ready {
				break
			}
		}
		if ready {
			e.state = Ready
			log.Debugf("task %s ready", e.task.Name())
		}
	}
}

// launch starts every Ready task in its own goroutine; completion comes
// back as an event.
func (s *Scheduler) launch(ctx context.Context) {
	log := logger.Log.WithField("scope", "scheduler")
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, e := range s.entries {
		if e.state != Ready {
			continue
		}
		h := Handle(h)
		e.state = Running
		taskCtx, cancel := context.WithCancel(ctx)
		s.cancels[h] = cancel
		log.Debugf("task %s running", e.task.Name())
		go func(t Task) {
			err := t.Run(taskCtx)
			s.events <- event{kind: evDone, handle: h, err: err}
		}(e.task)
	}
}

func (s *Scheduler) handle(ev event) {
	log := logger.Log.WithField("scope", "scheduler")
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[ev.handle]
	switch ev.kind {
	case evDone:
		if cancel, ok := s.cancels[ev.handle]; ok {
			cancel()
			delete(s.cancels, ev.handle)
		}
		if ev.err != nil {
			e.state = Failed
			e.err = ev.err
		} else {
			e.state = Stopped
		}
		log.Debugf("task %s %s", e.task.Name(), e.state)
	case evPause:
		switch e.state {
		case Created, Ready, Running:
			e.state = Paused
			log.Debugf("task %s paused", e.task.Name())
		}
	case evResume:
		if e.state == Paused {
			// back through dependency evaluation, not straight to launch
			e.state = Created
			log.Debugf("task %s resumed", e.task.Name())
		}
	}
}

// drain waits for all running tasks to post their completion events so
// no background work outlives the scheduler.
func (s *Scheduler) drain() {
	for !s.allSettled() {
		ev := <-s.events
		if ev.kind == evDone {
			s.handle(ev)
		}
	}
}

func (s *Scheduler) allSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.state == Running {
			return false
		}
	}
	return true
}

func (s *Scheduler) allTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		switch e.state {
		case Stopped, Failed:
		case Paused:
			// paused tasks park the loop but do not finish it
			return false
		default:
			return false
		}
	}
	return true
}
