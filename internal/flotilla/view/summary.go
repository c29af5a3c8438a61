package view

import "github.com/flotillaproject/flotilla/internal/flotilla/state"

// AgentSummary is the read model for one agent: its ledger entry, its
// task-state histogram and the frameworks running on it.
type AgentSummary struct {
	ID           string
	Hostname     string
	MachineID    string
	Total        state.Resources
	Used         state.Resources
	Checkpointed state.Resources
	OfferCount   int
	TaskStates   TaskStateSummary
	FrameworkIDs []string
}

// FrameworkSummary is the read model for one framework: its task-state
// histogram and the agents hosting its tasks.
type FrameworkSummary struct {
	ID         string
	Name       string
	Registered bool
	TaskStates TaskStateSummary
	AgentIDs   []string
}

// ClusterSummary combines the agent and framework read models; the transport
// layer renders it directly.
type ClusterSummary struct {
	Agents     []AgentSummary
	Frameworks []FrameworkSummary
}

// Summarize computes the full cluster summary from one snapshot, so the agent
// and framework sections are mutually consistent.
func Summarize(snapshot *state.Snapshot) *ClusterSummary {
	membership := NewMembershipIndex(snapshot)
	summaries := NewTaskStateSummaries(snapshot)

	out := &ClusterSummary{}
	for _, agent := range snapshot.Agents {
		out.Agents = append(out.Agents, AgentSummary{
			ID:           agent.ID,
			Hostname:     agent.Hostname,
			MachineID:    agent.MachineID,
			Total:        agent.Total,
			Used:         agent.Used,
			Checkpointed: agent.Checkpointed,
			OfferCount:   len(agent.Offers),
			TaskStates:   summaries.Agent(agent.ID),
			FrameworkIDs: membership.Frameworks(agent.ID),
		})
	}
	for _, framework := range snapshot.Frameworks {
		out.Frameworks = append(out.Frameworks, FrameworkSummary{
			ID:         framework.ID,
			Name:       framework.Name,
			Registered: framework.Registered,
			TaskStates: summaries.Framework(framework.ID),
			AgentIDs:   membership.Agents(framework.ID),
		})
	}
	return out
}
