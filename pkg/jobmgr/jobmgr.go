// Package jobmgr runs named background jobs with cancellation and
// lifecycle reporting. One name, one running job: starting a duplicate
// fails. Jobs remove themselves when their runner returns.
//
// The package is intentionally small: no retries, no queues, no
// persistence. A job is a goroutine with a name and a cancel.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrNotRunning     = errors.New("job is not running")
)

// State is a job lifecycle stage.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Event reports a job lifecycle change. Err is set for StateFailed.
type Event struct {
	Job   string
	State State
	Err   error
}

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager starts, stops and tracks jobs. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*job
	wg      sync.WaitGroup
	onEvent func(Event)
}

// NewManager creates a Manager. onEvent may be nil.
func NewManager(onEvent func(Event)) *Manager {
	return &Manager{
		jobs:    make(map[string]*job),
		onEvent: onEvent,
	}
}

// StartAsync launches runner under the given name and returns
// immediately. The runner's context is cancelled by Stop or StopAll.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{name: name, cancel: cancel}

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	m.jobs[name] = j
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.report(Event{Job: name, State: StateRunning})

		err := runner(ctx)
		cancel()
		if err != nil {
			m.report(Event{Job: name, State: StateFailed, Err: err})
		} else {
			m.report(Event{Job: name, State: StateDone})
		}

		// Only remove our own entry. The slot may already belong to a
		// successor started after a Stop.
		m.mu.Lock()
		if cur, ok := m.jobs[name]; ok && cur == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name. The runner may still be winding
// down when Stop returns; use Wait to join it.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	j.cancel()
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopped := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		stopped = append(stopped, j)
	}
	m.jobs = make(map[string]*job)
	m.mu.Unlock()

	for _, j := range stopped {
		j.cancel()
	}
}

// Wait blocks until every job started so far has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// List returns the active job names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}

func (m *Manager) report(ev Event) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}
