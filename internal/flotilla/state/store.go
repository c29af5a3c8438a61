package state

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
)

// Store owns the authoritative control-plane state: agents, frameworks, offers,
// machines and the maintenance schedule. All mutation goes through its methods
// and is serialized by a single mutex, so no two mutations interleave their
// effects on the ledger. External components only ever receive copies; the
// store never hands out a mutable reference into the ledger.
//
// Callers performing multi-step mutations (offer rescission, maintenance
// transitions) validate against the store first, durably commit second and
// apply the in-memory diff last, so a failed commit never leaves partial state.
type Store struct {
	mu sync.RWMutex

	agents     map[string]*Agent
	frameworks map[string]*Framework
	offers     map[string]*Offer
	machines   map[string]*Machine
	schedules  []*Schedule

	// Completed frameworks are kept in a bounded history so that their task
	// history remains visible to read-side queries after unregistration.
	completedFrameworks  *lru.Cache // framework id -> *Framework
	completedTaskHistory int
}

func NewStore(completedFrameworkHistory int, completedTaskHistory int) (*Store, error) {
	completedFrameworks, err := lru.New(completedFrameworkHistory)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{
		agents:               map[string]*Agent{},
		frameworks:           map[string]*Framework{},
		offers:               map[string]*Offer{},
		machines:             map[string]*Machine{},
		completedFrameworks:  completedFrameworks,
		completedTaskHistory: completedTaskHistory,
	}, nil
}

// RegisterAgent adds an agent to the ledger and attaches it to its machine,
// creating the machine in UP mode if it was not known.
func (s *Store) RegisterAgent(agent *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[agent.ID]; ok {
		return &flotillaerrors.ErrAlreadyExists{Type: "agent", Value: agent.ID}
	}
	registered := &Agent{
		ID:           agent.ID,
		Hostname:     agent.Hostname,
		MachineID:    agent.MachineID,
		Total:        agent.Total.DeepCopy(),
		Used:         agent.Used.DeepCopy(),
		Checkpointed: agent.Total.Filter(Resource.NeedsCheckpointing),
		offers:       map[string]*Offer{},
	}
	s.agents[agent.ID] = registered
	if agent.MachineID != "" {
		machine := s.ensureMachine(agent.MachineID)
		machine.agents[agent.ID] = true
	}
	return nil
}

// RemoveAgent evicts an agent from the live set. Every non-terminal task on the
// agent transitions to TASK_LOST and moves to its framework's completed history;
// outstanding offers on the agent are dropped. The lost tasks are returned so
// the caller can notify the owning frameworks.
func (s *Store) RemoveAgent(agentID string, reason string) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[agentID]
	if !ok {
		return nil, &flotillaerrors.ErrNotFound{Type: "agent", Value: agentID}
	}

	for offerID := range agent.offers {
		delete(s.offers, offerID)
	}

	// Snapshot the affected tasks before mutating the framework collections.
	var affected []*Task
	for _, framework := range s.frameworks {
		for _, task := range framework.activeTasks() {
			if task.AgentID == agentID && !task.State.IsTerminal() {
				affected = append(affected, task)
			}
		}
		for _, task := range framework.pendingTasks() {
			if task.AgentID == agentID && !task.State.IsTerminal() {
				affected = append(affected, task)
			}
		}
	}

	now := time.Now()
	for _, task := range affected {
		task.State = TaskLost
		task.Statuses = append(task.Statuses, TaskStatus{State: TaskLost, Message: reason, Timestamp: now})
		s.frameworks[task.FrameworkID].completeTask(task)
	}

	if machine, ok := s.machines[agent.MachineID]; ok {
		delete(machine.agents, agentID)
	}
	delete(s.agents, agentID)
	return affected, nil
}

// HasAgent reports whether an agent is registered.
func (s *Store) HasAgent(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.agents[agentID]
	return ok
}

// RegisterFramework adds a scheduler client.
func (s *Store) RegisterFramework(id string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.frameworks[id]; ok {
		return &flotillaerrors.ErrAlreadyExists{Type: "framework", Value: id}
	}
	framework, err := newFramework(id, name, s.completedTaskHistory)
	if err != nil {
		return err
	}
	s.frameworks[id] = framework
	return nil
}

// CompleteFramework unregisters a framework, moving it (and its task history)
// into the bounded completed-framework history. Its outstanding offers are dropped.
func (s *Store) CompleteFramework(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	framework, ok := s.frameworks[id]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "framework", Value: id}
	}
	for offerID, offer := range s.offers {
		if offer.FrameworkID == id {
			if agent, ok := s.agents[offer.AgentID]; ok {
				delete(agent.offers, offerID)
			}
			delete(s.offers, offerID)
		}
	}
	delete(s.frameworks, id)
	s.completedFrameworks.Add(id, framework)
	return nil
}

// AddOffer records an offer created by the allocator.
func (s *Store) AddOffer(offer Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[offer.ID]; ok {
		return &flotillaerrors.ErrAlreadyExists{Type: "offer", Value: offer.ID}
	}
	agent, ok := s.agents[offer.AgentID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "agent", Value: offer.AgentID}
	}
	if _, ok := s.frameworks[offer.FrameworkID]; !ok {
		return &flotillaerrors.ErrNotFound{Type: "framework", Value: offer.FrameworkID}
	}
	stored := offer.clone()
	s.offers[offer.ID] = &stored
	agent.offers[offer.ID] = &stored
	return nil
}

// RemoveOffer removes an offer from the ledger. The owning framework learns of
// a rescission through an asynchronous notification; there is no synchronous
// acknowledgment.
func (s *Store) RemoveOffer(offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[offerID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "offer", Value: offerID}
	}
	if agent, ok := s.agents[offer.AgentID]; ok {
		delete(agent.offers, offerID)
	}
	delete(s.offers, offerID)
	return nil
}

// OffersOnAgent returns copies of the agent's outstanding offers, in a stable
// (offer id) order, so callers can iterate while rescinding against the live store.
func (s *Store) OffersOnAgent(agentID string) ([]Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[agentID]
	if !ok {
		return nil, &flotillaerrors.ErrNotFound{Type: "agent", Value: agentID}
	}
	out := make([]Offer, 0, len(agent.offers))
	for _, offer := range agent.offers {
		out = append(out, offer.clone())
	}
	sortOffers(out)
	return out, nil
}

// ApplyOperation applies an already-committed resource operation to the agent's
// totals. The checkpointed resources are recomputed as the subset of the new
// total that must survive an agent restart.
func (s *Store) ApplyOperation(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[op.AgentID()]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "agent", Value: op.AgentID()}
	}
	total, err := op.Apply(agent.Total)
	if err != nil {
		return &flotillaerrors.ErrConflict{Action: string(op.Type()), Message: err.Error()}
	}
	agent.Total = total
	agent.Checkpointed = total.Filter(Resource.NeedsCheckpointing)
	return nil
}

// AddTask records a task launch. The task starts in the framework's pending set
// and counts as STAGING until an agent acknowledges it.
func (s *Store) AddTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	framework, ok := s.frameworks[task.FrameworkID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "framework", Value: task.FrameworkID}
	}
	if _, ok := framework.task(task.ID); ok {
		return &flotillaerrors.ErrAlreadyExists{Type: "task", Value: task.ID}
	}
	if task.AgentID != "" {
		if _, ok := s.agents[task.AgentID]; !ok {
			return &flotillaerrors.ErrNotFound{Type: "agent", Value: task.AgentID}
		}
	}
	stored := task.Clone()
	if stored.State == "" {
		stored.State = TaskStaging
	}
	framework.addPendingTask(stored)
	return nil
}

// ActivateTask acknowledges a pending task: it becomes active and its resources
// count against the agent's used set.
func (s *Store) ActivateTask(frameworkID string, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	framework, ok := s.frameworks[frameworkID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "framework", Value: frameworkID}
	}
	task, ok := framework.activateTask(taskID)
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "task", Value: taskID}
	}
	if agent, ok := s.agents[task.AgentID]; ok {
		agent.Used = agent.Used.Plus(task.Resources)
	}
	return nil
}

// UpdateTaskStatus appends a status observation to an active task. Terminal
// tasks are immutable; a terminal transition releases the task's resources and
// transfers the task to the framework's completed history.
func (s *Store) UpdateTaskStatus(frameworkID string, taskID string, status TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	framework, ok := s.frameworks[frameworkID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "framework", Value: frameworkID}
	}
	task, ok := framework.task(taskID)
	if !ok {
		// Terminal tasks live only in the completed history; report them as
		// immutable rather than unknown.
		if framework.isCompleted(taskID) {
			return &flotillaerrors.ErrInvalidArgument{
				Name:    "taskId",
				Value:   taskID,
				Message: "task is in a terminal state and cannot be updated",
			}
		}
		return &flotillaerrors.ErrNotFound{Type: "task", Value: taskID}
	}
	if task.State.IsTerminal() {
		return &flotillaerrors.ErrInvalidArgument{
			Name:    "taskId",
			Value:   taskID,
			Message: "task is in a terminal state and cannot be updated",
		}
	}

	// Only active tasks contributed to the agent's used resources; a pending
	// task reaching a terminal state must not subtract what it never added.
	wasActive := framework.isActive(taskID)

	task.Statuses = append(task.Statuses, status)
	task.State = status.State

	if status.State.IsTerminal() {
		if wasActive {
			if agent, ok := s.agents[task.AgentID]; ok {
				agent.Used = agent.Used.Minus(task.Resources)
			}
		}
		framework.completeTask(task)
	}
	return nil
}

// MachineMode returns the availability mode of a machine. Unknown machines are
// UP by definition.
func (s *Store) MachineMode(machineID string) MachineMode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if machine, ok := s.machines[machineID]; ok {
		return machine.Mode
	}
	return MachineUp
}

// HasMachine reports whether a machine is tracked, i.e. is or was part of a
// maintenance schedule or hosts agents.
func (s *Store) HasMachine(machineID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.machines[machineID]
	return ok
}

// UpdateSchedule replaces the active maintenance schedule, diffing old against
// new window membership: machines no longer scheduled revert to UP with the
// unavailability cleared, newly scheduled machines enter DRAINING with their
// window's interval, and machines scheduled in both get the interval refreshed.
//
// The caller must have validated the schedule and durably committed it first.
func (s *Store) UpdateSchedule(schedule *Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := schedule.MachineUnavailabilities()

	for id, machine := range s.machines {
		if _, ok := updated[id]; ok {
			continue
		}
		// DOWN machines leave maintenance only via an explicit bring-up.
		if machine.Mode == MachineDown {
			continue
		}
		machine.Mode = MachineUp
		machine.Unavailability = nil
	}

	for id, unavailability := range updated {
		machine := s.ensureMachine(id)
		machine.Mode = MachineDraining
		window := unavailability
		machine.Unavailability = &window
	}

	s.schedules = []*Schedule{schedule.clone()}
}

// SetMachinesDown transitions the given machines to DOWN. The caller must have
// validated that every machine is DRAINING and durably committed the transition.
func (s *Store) SetMachinesDown(machineIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range machineIDs {
		s.ensureMachine(id).Mode = MachineDown
	}
}

// SetMachinesUp transitions the given machines back to UP, clears their
// unavailability and removes them from every window of the active schedule.
// Windows left empty are dropped, and a schedule left without windows is dropped.
// The caller must have validated that every machine is DOWN and durably
// committed the transition.
func (s *Store) SetMachinesUp(machineIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make(map[string]bool, len(machineIDs))
	for _, id := range machineIDs {
		machine := s.ensureMachine(id)
		machine.Mode = MachineUp
		machine.Unavailability = nil
		updated[id] = true
	}

	var schedules []*Schedule
	for _, schedule := range s.schedules {
		var windows []Window
		for _, window := range schedule.Windows {
			var ids []string
			for _, id := range window.MachineIDs {
				if !updated[id] {
					ids = append(ids, id)
				}
			}
			if len(ids) > 0 {
				windows = append(windows, Window{MachineIDs: ids, Unavailability: window.Unavailability})
			}
		}
		if len(windows) > 0 {
			schedules = append(schedules, &Schedule{Windows: windows})
		}
	}
	s.schedules = schedules
}

// AgentsOnMachines returns the ids of all agents running on any of the given
// machines, snapshotted so callers can evict agents while iterating.
func (s *Store) AgentsOnMachines(machineIDs []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range machineIDs {
		machine, ok := s.machines[id]
		if !ok {
			continue
		}
		for agentID := range machine.agents {
			out = append(out, agentID)
		}
	}
	sortStrings(out)
	return out
}

func (s *Store) ensureMachine(machineID string) *Machine {
	machine, ok := s.machines[machineID]
	if !ok {
		machine = &Machine{ID: machineID, Mode: MachineUp, agents: map[string]bool{}}
		s.machines[machineID] = machine
	}
	return machine
}
