// Package view derives read models from a state snapshot: the agent/framework
// membership index, task-state histograms, sorted task listings and cluster
// summaries. Every view is a pure, side-effect-free projection recomputed per
// query; a missing key is valid domain state, so lookups degrade to empty
// results and never fail.
package view

import (
	"sort"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// MembershipIndex answers which agents host a framework's tasks and the
// inverse. Membership is derived from pending, active and completed tasks of
// registered and completed frameworks alike.
type MembershipIndex struct {
	agentsByFramework map[string]map[string]bool
	frameworksByAgent map[string]map[string]bool
}

func NewMembershipIndex(snapshot *state.Snapshot) *MembershipIndex {
	index := &MembershipIndex{
		agentsByFramework: map[string]map[string]bool{},
		frameworksByAgent: map[string]map[string]bool{},
	}
	for _, framework := range snapshot.Frameworks {
		for _, tasks := range [][]*state.Task{framework.Pending, framework.Active, framework.Completed} {
			for _, task := range tasks {
				if task.AgentID == "" {
					continue
				}
				index.add(framework.ID, task.AgentID)
			}
		}
	}
	return index
}

func (i *MembershipIndex) add(frameworkID string, agentID string) {
	if i.agentsByFramework[frameworkID] == nil {
		i.agentsByFramework[frameworkID] = map[string]bool{}
	}
	i.agentsByFramework[frameworkID][agentID] = true

	if i.frameworksByAgent[agentID] == nil {
		i.frameworksByAgent[agentID] = map[string]bool{}
	}
	i.frameworksByAgent[agentID][frameworkID] = true
}

// Agents returns the ids of all agents hosting any of the framework's tasks.
// An unknown framework yields an empty set.
func (i *MembershipIndex) Agents(frameworkID string) []string {
	return sortedKeys(i.agentsByFramework[frameworkID])
}

// Frameworks returns the ids of all frameworks with tasks on the agent.
// An unknown agent yields an empty set.
func (i *MembershipIndex) Frameworks(agentID string) []string {
	return sortedKeys(i.frameworksByAgent[agentID])
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
