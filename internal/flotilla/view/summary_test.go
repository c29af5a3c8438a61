package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// clusterSnapshot builds a small cluster: framework-1 with tasks on both
// agents, framework-2 completed with one task on agent-1.
func clusterSnapshot(t *testing.T) *state.Snapshot {
	store, err := state.NewStore(10, 10)
	require.NoError(t, err)
	require.NoError(t, store.RegisterAgent(&state.Agent{
		ID: "agent-1", MachineID: "machine-1",
		Total: state.NewResources(state.ScalarResource("cpus", "4")),
	}))
	require.NoError(t, store.RegisterAgent(&state.Agent{
		ID: "agent-2", MachineID: "machine-2",
		Total: state.NewResources(state.ScalarResource("cpus", "4")),
	}))
	require.NoError(t, store.RegisterFramework("framework-1", "one"))
	require.NoError(t, store.RegisterFramework("framework-2", "two"))
	require.NoError(t, store.AddOffer(state.Offer{ID: "offer-1", AgentID: "agent-1", FrameworkID: "framework-1"}))

	addActive := func(id string, frameworkID string, agentID string) {
		require.NoError(t, store.AddTask(&state.Task{ID: id, FrameworkID: frameworkID, AgentID: agentID, State: state.TaskRunning}))
		require.NoError(t, store.ActivateTask(frameworkID, id))
	}
	addActive("task-1", "framework-1", "agent-1")
	addActive("task-2", "framework-1", "agent-1")
	addActive("task-3", "framework-1", "agent-2")
	addActive("task-4", "framework-2", "agent-1")

	require.NoError(t, store.UpdateTaskStatus("framework-1", "task-2", state.TaskStatus{State: state.TaskFailed, Timestamp: time.Now()}))

	// framework-1 also has an unacknowledged launch, counted as STAGING.
	require.NoError(t, store.AddTask(&state.Task{ID: "task-5", FrameworkID: "framework-1", AgentID: "agent-2"}))

	require.NoError(t, store.CompleteFramework("framework-2"))
	return store.Snapshot()
}

func TestTaskStateSummaries(t *testing.T) {
	summaries := NewTaskStateSummaries(clusterSnapshot(t))

	framework := summaries.Framework("framework-1")
	assert.Equal(t, 2, framework.Running)
	assert.Equal(t, 1, framework.Failed)
	assert.Equal(t, 1, framework.Staging)

	agent := summaries.Agent("agent-1")
	assert.Equal(t, 2, agent.Running) // task-1 and framework-2's task-4
	assert.Equal(t, 1, agent.Failed)
}

func TestTaskStateSummaries_UnknownIDsAreZero(t *testing.T) {
	summaries := NewTaskStateSummaries(clusterSnapshot(t))

	assert.Equal(t, TaskStateSummary{}, summaries.Framework("never-seen"))
	assert.Equal(t, TaskStateSummary{}, summaries.Agent("never-seen"))
}

func TestMembershipIndex(t *testing.T) {
	index := NewMembershipIndex(clusterSnapshot(t))

	assert.Equal(t, []string{"agent-1", "agent-2"}, index.Agents("framework-1"))
	// Completed frameworks keep contributing to membership.
	assert.Equal(t, []string{"agent-1"}, index.Agents("framework-2"))
	assert.Equal(t, []string{"framework-1", "framework-2"}, index.Frameworks("agent-1"))
	assert.Equal(t, []string{"framework-1"}, index.Frameworks("agent-2"))

	assert.Empty(t, index.Agents("never-seen"))
	assert.Empty(t, index.Frameworks("never-seen"))
}

func TestSummarize(t *testing.T) {
	summary := Summarize(clusterSnapshot(t))

	require.Len(t, summary.Agents, 2)
	agent1 := summary.Agents[0]
	assert.Equal(t, "agent-1", agent1.ID)
	assert.Equal(t, []string{"framework-1", "framework-2"}, agent1.FrameworkIDs)
	assert.Equal(t, 2, agent1.TaskStates.Running)

	require.Len(t, summary.Frameworks, 2)
	assert.Equal(t, "framework-1", summary.Frameworks[0].ID)
	assert.True(t, summary.Frameworks[0].Registered)
	assert.Equal(t, "framework-2", summary.Frameworks[1].ID)
	assert.False(t, summary.Frameworks[1].Registered)
	assert.Equal(t, 1, summary.Frameworks[1].TaskStates.Running)
}
