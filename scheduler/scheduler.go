package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a periodic task. ctx is cancelled when the task is removed or
// the scheduler stops.
type TaskFn func(ctx context.Context) error

// TaskInfo is a snapshot of one registered task.
type TaskInfo struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

type task struct {
	info   TaskInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs named tasks on fixed intervals. A task never overlaps with
// itself: the next tick is skipped while a run is in progress.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	ctx     context.Context
	stop    context.CancelFunc
	logger  *zap.Logger
	stopped bool
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		stop:   cancel,
		logger: logger,
	}
}

// AddTicker registers fn to run every interval. A task with the same name
// is replaced. Registering on a stopped scheduler is a no-op.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	if interval <= 0 {
		s.logger.Warn("scheduler task ignored: non-positive interval", zap.String("name", name))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.tasks[name]; ok {
		old.cancel()
		delete(s.tasks, name)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{
		info:   TaskInfo{Name: name, Interval: interval},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[name] = t

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, t, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(ctx context.Context, t *task, fn TaskFn) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduler task panicked",
					zap.String("task", t.info.Name),
					zap.Any("recover", r))
				err = errPanicked
			}
		}()
		err = fn(ctx)
	}()

	s.mu.Lock()
	t.info.Runs++
	t.info.LastRun = time.Now()
	t.info.LastError = ""
	if err != nil {
		t.info.Failures++
		t.info.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil && err != errPanicked && ctx.Err() == nil {
		s.logger.Warn("scheduler task failed", zap.String("task", t.info.Name), zap.Error(err))
	}
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()
	if ok {
		t.cancel()
		<-t.done
	}
}

// Stop cancels every task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	s.stop()
	for _, t := range tasks {
		<-t.done
	}
}

// ListTickers returns the sorted names of all registered tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tasks returns a snapshot of every task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type panicError struct{}

func (panicError) Error() string { return "task panicked" }

var errPanicked error = panicError{}
