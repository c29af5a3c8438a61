package state

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// Framework is a scheduler client. It owns its pending tasks (launched but not
// yet acknowledged by an agent) and active tasks, and keeps a bounded history of
// completed tasks from which the oldest entry is evicted on overflow.
type Framework struct {
	ID   string
	Name string

	pending   map[string]*Task
	active    map[string]*Task
	completed *lru.Cache // task id -> *Task, oldest first
}

func newFramework(id string, name string, completedTaskHistory int) (*Framework, error) {
	completed, err := lru.New(completedTaskHistory)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Framework{
		ID:        id,
		Name:      name,
		pending:   map[string]*Task{},
		active:    map[string]*Task{},
		completed: completed,
	}, nil
}

func (f *Framework) addPendingTask(task *Task) {
	f.pending[task.ID] = task
}

func (f *Framework) task(id string) (*Task, bool) {
	if task, ok := f.active[id]; ok {
		return task, true
	}
	task, ok := f.pending[id]
	return task, ok
}

// isActive reports whether the task is in the active set, i.e. has been
// acknowledged and is counted against its agent's used resources.
func (f *Framework) isActive(id string) bool {
	_, ok := f.active[id]
	return ok
}

// isCompleted reports whether the task has reached the completed history.
func (f *Framework) isCompleted(id string) bool {
	return f.completed.Contains(id)
}

// activateTask moves a task from pending to active once an agent acknowledged it.
func (f *Framework) activateTask(id string) (*Task, bool) {
	task, ok := f.pending[id]
	if !ok {
		return nil, false
	}
	delete(f.pending, id)
	f.active[id] = task
	return task, true
}

// completeTask transfers ownership of a task to the completed history.
func (f *Framework) completeTask(task *Task) {
	delete(f.pending, task.ID)
	delete(f.active, task.ID)
	f.completed.Add(task.ID, task)
}

func (f *Framework) pendingTasks() []*Task {
	out := make([]*Task, 0, len(f.pending))
	for _, task := range f.pending {
		out = append(out, task)
	}
	return out
}

func (f *Framework) activeTasks() []*Task {
	out := make([]*Task, 0, len(f.active))
	for _, task := range f.active {
		out = append(out, task)
	}
	return out
}

// completedTasks returns the history oldest first.
func (f *Framework) completedTasks() []*Task {
	keys := f.completed.Keys()
	out := make([]*Task, 0, len(keys))
	for _, key := range keys {
		if task, ok := f.completed.Peek(key); ok {
			out = append(out, task.(*Task))
		}
	}
	return out
}
