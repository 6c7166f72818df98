package scheduler

import (
	"sync"
	"time"
)

// Group debounces jobs per key: each key has its own timer, so a burst on one
// key does not delay another.
type Group struct {
	delay time.Duration

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool
}

// NewGroup creates an empty group.
func NewGroup(delay time.Duration) *Group {
	return &Group{delay: delay, tasks: make(map[string]*Task)}
}

// Schedule arms the timer for key. The job that finally runs is the one from
// the latest call for that key.
func (g *Group) Schedule(key string, job func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if old, ok := g.tasks[key]; ok {
		old.Cancel()
	}
	var task *Task
	task = NewTask(g.delay, func() {
		g.mu.Lock()
		if g.tasks[key] == task {
			delete(g.tasks, key)
		}
		g.mu.Unlock()
		job()
	})
	g.tasks[key] = task
	task.Schedule()
}

// Cancel drops the pending job for key.
func (g *Group) Cancel(key string) bool {
	g.mu.Lock()
	task, ok := g.tasks[key]
	delete(g.tasks, key)
	g.mu.Unlock()
	if !ok {
		return false
	}
	return task.Cancel()
}

// Pending returns the number of keys with a scheduled job.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Close cancels every pending job and waits for in-flight ones.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	tasks := g.tasks
	g.tasks = make(map[string]*Task)
	g.mu.Unlock()

	for _, task := range tasks {
		task.Close()
	}
}
