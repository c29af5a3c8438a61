package view

import (
	"sort"
	"strconv"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// DefaultTaskLimit is the page size used when a listing request does not
// specify one.
const DefaultTaskLimit = 100

// ListOptions controls task-listing pagination and order.
type ListOptions struct {
	Offset    int
	Limit     int
	Ascending bool
}

// ParseListOptions builds ListOptions from raw query values. Formatting errors
// in limit and offset are silently ignored in favour of the defaults rather
// than failing the request.
func ParseListOptions(limit string, offset string, order string) ListOptions {
	opts := ListOptions{Limit: DefaultTaskLimit}
	if parsed, err := strconv.Atoi(limit); err == nil && parsed >= 0 {
		opts.Limit = parsed
	}
	if parsed, err := strconv.Atoi(offset); err == nil && parsed >= 0 {
		opts.Offset = parsed
	}
	opts.Ascending = order == "asc"
	return opts
}

// ListTasks returns one page of the union of active and completed tasks across
// all frameworks (registered and completed), sorted by the earliest status
// timestamp, descending unless ascending order is requested. Tasks with no
// recorded statuses compare equal to each other, sort before any task with
// history in ascending order, and after every task with history in descending
// order. An offset beyond the collection yields an empty page, never an error.
func ListTasks(snapshot *state.Snapshot, opts ListOptions) []*state.Task {
	var tasks []*state.Task
	for _, framework := range snapshot.Frameworks {
		tasks = append(tasks, framework.Active...)
		tasks = append(tasks, framework.Completed...)
	}

	if opts.Ascending {
		sort.SliceStable(tasks, func(i, j int) bool { return lessAscending(tasks[i], tasks[j]) })
	} else {
		sort.SliceStable(tasks, func(i, j int) bool { return lessDescending(tasks[i], tasks[j]) })
	}

	if opts.Offset >= len(tasks) {
		return []*state.Task{}
	}
	end := opts.Offset + opts.Limit
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[opts.Offset:end]
}

func lessAscending(lhs *state.Task, rhs *state.Task) bool {
	left, leftOK := lhs.EarliestStatus()
	right, rightOK := rhs.EarliestStatus()

	if !leftOK && !rightOK {
		return false
	}
	if !leftOK {
		return true
	}
	if !rightOK {
		return false
	}
	return left.Timestamp.Before(right.Timestamp)
}

func lessDescending(lhs *state.Task, rhs *state.Task) bool {
	left, leftOK := lhs.EarliestStatus()
	right, rightOK := rhs.EarliestStatus()

	if !leftOK && !rightOK {
		return false
	}
	if !rightOK {
		return true
	}
	if !leftOK {
		return false
	}
	return left.Timestamp.After(right.Timestamp)
}
