package view

import "github.com/flotillaproject/flotilla/internal/flotilla/state"

// TaskStateSummary counts tasks per state.
type TaskStateSummary struct {
	Staging  int
	Starting int
	Running  int
	Finished int
	Killed   int
	Failed   int
	Lost     int
	Error    int
}

// Count accounts for one task state.
func (s *TaskStateSummary) Count(taskState state.TaskState) {
	switch taskState {
	case state.TaskStaging:
		s.Staging++
	case state.TaskStarting:
		s.Starting++
	case state.TaskRunning:
		s.Running++
	case state.TaskFinished:
		s.Finished++
	case state.TaskKilled:
		s.Killed++
	case state.TaskFailed:
		s.Failed++
	case state.TaskLost:
		s.Lost++
	case state.TaskError:
		s.Error++
	}
}

// TaskStateSummaries answers "how many tasks are in each state for a given
// framework?" and the same question per agent. Pending tasks count as STAGING.
type TaskStateSummaries struct {
	byFramework map[string]*TaskStateSummary
	byAgent     map[string]*TaskStateSummary
}

func NewTaskStateSummaries(snapshot *state.Snapshot) *TaskStateSummaries {
	summaries := &TaskStateSummaries{
		byFramework: map[string]*TaskStateSummary{},
		byAgent:     map[string]*TaskStateSummary{},
	}
	for _, framework := range snapshot.Frameworks {
		for _, task := range framework.Pending {
			summaries.count(framework.ID, task.AgentID, state.TaskStaging)
		}
		for _, task := range framework.Active {
			summaries.count(framework.ID, task.AgentID, task.State)
		}
		for _, task := range framework.Completed {
			summaries.count(framework.ID, task.AgentID, task.State)
		}
	}
	return summaries
}

func (s *TaskStateSummaries) count(frameworkID string, agentID string, taskState state.TaskState) {
	framework, ok := s.byFramework[frameworkID]
	if !ok {
		framework = &TaskStateSummary{}
		s.byFramework[frameworkID] = framework
	}
	framework.Count(taskState)

	if agentID == "" {
		return
	}
	agent, ok := s.byAgent[agentID]
	if !ok {
		agent = &TaskStateSummary{}
		s.byAgent[agentID] = agent
	}
	agent.Count(taskState)
}

// Framework returns the summary for a framework; unknown ids yield an all-zero
// summary, not an error.
func (s *TaskStateSummaries) Framework(frameworkID string) TaskStateSummary {
	if summary, ok := s.byFramework[frameworkID]; ok {
		return *summary
	}
	return TaskStateSummary{}
}

// Agent returns the summary for an agent; unknown ids yield an all-zero
// summary, not an error.
func (s *TaskStateSummaries) Agent(agentID string) TaskStateSummary {
	if summary, ok := s.byAgent[agentID]; ok {
		return *summary
	}
	return TaskStateSummary{}
}
