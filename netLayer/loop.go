package netLayer

import (
	"sync"
)

// Loop runs posted tasks one by one on a single goroutine, in post order.
//
// All state of a connection that is touched from a Loop task needs no locking,
// as long as every mutation goes through Post. Post never blocks and never runs
// the task on the caller's stack, so it is safe to call from inside a task.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	done    chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post returns false if the loop is already stopped; the task is dropped then.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.tasks = append(l.tasks, task)
	l.cond.Signal()
	return true
}

// Stop drops the tasks not yet started. The running task, if any, finishes.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		l.tasks = nil
		l.cond.Signal()
	}
	l.mu.Unlock()
}

// Done is closed once the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		task()
	}
}
