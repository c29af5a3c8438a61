package state

import "sort"

// AgentSnapshot is a point-in-time copy of one agent's ledger entry.
type AgentSnapshot struct {
	ID           string
	Hostname     string
	MachineID    string
	Total        Resources
	Used         Resources
	Checkpointed Resources
	Offers       []Offer
}

// FrameworkSnapshot is a point-in-time copy of one framework and its tasks.
// Registered distinguishes live frameworks from ones kept only in the
// completed-framework history.
type FrameworkSnapshot struct {
	ID         string
	Name       string
	Registered bool
	Pending    []*Task
	Active     []*Task
	Completed  []*Task
}

// MachineSnapshot is a point-in-time copy of one machine.
type MachineSnapshot struct {
	ID             string
	Mode           MachineMode
	Unavailability *Unavailability
	AgentIDs       []string
}

// Snapshot is a deep copy of the authoritative state as of a single instant.
// Read-side aggregation views are computed against snapshots only, so they can
// run concurrently with mutations without ever observing a partially-applied one.
type Snapshot struct {
	Agents     []AgentSnapshot
	Frameworks []FrameworkSnapshot
	Machines   []MachineSnapshot
	Schedule   *Schedule
}

// Snapshot returns a consistent deep copy of the store.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &Snapshot{}

	for _, agent := range s.agents {
		offers := make([]Offer, 0, len(agent.offers))
		for _, offer := range agent.offers {
			offers = append(offers, offer.clone())
		}
		sortOffers(offers)
		snapshot.Agents = append(snapshot.Agents, AgentSnapshot{
			ID:           agent.ID,
			Hostname:     agent.Hostname,
			MachineID:    agent.MachineID,
			Total:        agent.Total.DeepCopy(),
			Used:         agent.Used.DeepCopy(),
			Checkpointed: agent.Checkpointed.DeepCopy(),
			Offers:       offers,
		})
	}
	sort.Slice(snapshot.Agents, func(i, j int) bool { return snapshot.Agents[i].ID < snapshot.Agents[j].ID })

	for _, framework := range s.frameworks {
		snapshot.Frameworks = append(snapshot.Frameworks, snapshotFramework(framework, true))
	}
	for _, key := range s.completedFrameworks.Keys() {
		if framework, ok := s.completedFrameworks.Peek(key); ok {
			snapshot.Frameworks = append(snapshot.Frameworks, snapshotFramework(framework.(*Framework), false))
		}
	}
	sort.Slice(snapshot.Frameworks, func(i, j int) bool { return snapshot.Frameworks[i].ID < snapshot.Frameworks[j].ID })

	for _, machine := range s.machines {
		agentIDs := make([]string, 0, len(machine.agents))
		for agentID := range machine.agents {
			agentIDs = append(agentIDs, agentID)
		}
		sortStrings(agentIDs)
		var unavailability *Unavailability
		if machine.Unavailability != nil {
			window := *machine.Unavailability
			unavailability = &window
		}
		snapshot.Machines = append(snapshot.Machines, MachineSnapshot{
			ID:             machine.ID,
			Mode:           machine.Mode,
			Unavailability: unavailability,
			AgentIDs:       agentIDs,
		})
	}
	sort.Slice(snapshot.Machines, func(i, j int) bool { return snapshot.Machines[i].ID < snapshot.Machines[j].ID })

	if len(s.schedules) > 0 {
		snapshot.Schedule = s.schedules[0].clone()
	}
	return snapshot
}

func snapshotFramework(framework *Framework, registered bool) FrameworkSnapshot {
	return FrameworkSnapshot{
		ID:         framework.ID,
		Name:       framework.Name,
		Registered: registered,
		Pending:    cloneTasks(framework.pendingTasks()),
		Active:     cloneTasks(framework.activeTasks()),
		Completed:  cloneTasks(framework.completedTasks()),
	}
}

func cloneTasks(tasks []*Task) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortOffers(offers []Offer) {
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
}

func sortStrings(values []string) {
	sort.Strings(values)
}
