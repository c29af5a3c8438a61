package state

import "time"

type TaskState string

const (
	TaskStaging  TaskState = "TASK_STAGING"
	TaskStarting TaskState = "TASK_STARTING"
	TaskRunning  TaskState = "TASK_RUNNING"
	TaskFinished TaskState = "TASK_FINISHED"
	TaskKilled   TaskState = "TASK_KILLED"
	TaskFailed   TaskState = "TASK_FAILED"
	TaskLost     TaskState = "TASK_LOST"
	TaskError    TaskState = "TASK_ERROR"
)

// AllTaskStates lists every task state, in histogram order.
var AllTaskStates = []TaskState{
	TaskStaging, TaskStarting, TaskRunning, TaskFinished,
	TaskKilled, TaskFailed, TaskLost, TaskError,
}

// IsTerminal reports whether the state is final. Once a task reaches a terminal
// state it is immutable.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskFinished, TaskKilled, TaskFailed, TaskLost, TaskError:
		return true
	}
	return false
}

// TaskStatus is a single timestamped state observation for a task.
type TaskStatus struct {
	State     TaskState
	Message   string
	Timestamp time.Time
}

// Task is owned exclusively by its framework until completion, at which point
// ownership transfers to the framework's bounded completed-task history and the
// task is never mutated again.
//
// Statuses is append-only; Statuses[0] is the earliest recorded status and is
// what task listings order by.
type Task struct {
	ID          string
	Name        string
	FrameworkID string
	AgentID     string
	State       TaskState
	Resources   Resources
	Statuses    []TaskStatus
}

// EarliestStatus returns the first recorded status, if any.
func (t *Task) EarliestStatus() (TaskStatus, bool) {
	if len(t.Statuses) == 0 {
		return TaskStatus{}, false
	}
	return t.Statuses[0], true
}

func (t *Task) Clone() *Task {
	out := *t
	out.Resources = t.Resources.DeepCopy()
	out.Statuses = append([]TaskStatus(nil), t.Statuses...)
	return &out
}
