package session

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of fire-and-forget background work.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Dispatcher runs fire-and-forget tasks on a small worker pool. Callers
// never block on completion and never observe failures directly; task
// functions report problems to the diagnostic sink (slog) themselves.
// At-most-once dispatch per pending key is the caller's job (the
// registry pending set), not the dispatcher's.
type Dispatcher struct {
	tasks  chan Task
	log    *slog.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewDispatcher starts workers goroutines draining a queue of the given
// depth.
func NewDispatcher(workers, depth int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 2
	}
	if depth <= 0 {
		depth = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		tasks:  make(chan Task, depth),
		log:    log,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	return d
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.tasks:
			task.Run(ctx)
		}
	}
}

// Submit enqueues a task. A full queue drops the task with a loud
// diagnostic; fire-and-forget work is allowed to be lost, not allowed
// to block gameplay.
func (d *Dispatcher) Submit(task Task) bool {
	select {
	case d.tasks <- task:
		return true
	default:
		d.log.Error("task queue full, dropping task", "task", task.Name)
		return false
	}
}

// Close stops the workers. Queued tasks that have not started are
// discarded.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}
