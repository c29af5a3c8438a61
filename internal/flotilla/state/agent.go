package state

// Offer advertises a quantity of one agent's resources to one framework. Offers
// are immutable once created; removal (acceptance, rescission, or the owning
// agent/framework disappearing) is the only lifecycle transition.
type Offer struct {
	ID          string
	AgentID     string
	FrameworkID string
	Resources   Resources
}

func (o Offer) clone() Offer {
	out := o
	out.Resources = o.Resources.DeepCopy()
	return out
}

// Agent is a worker node contributing resource capacity to the cluster.
//
// The ledger invariant is used + offered + available == Total whenever the
// ledger is consistent; available is implicit and held by the allocator.
type Agent struct {
	ID        string
	Hostname  string
	MachineID string

	// Total is the advertised capacity, including reservations and volumes.
	Total Resources
	// Used is the sum of resources held by the agent's non-terminal tasks.
	Used Resources
	// Checkpointed is the subset of Total surviving an agent restart:
	// dynamic reservations and persistent volumes.
	Checkpointed Resources

	offers map[string]*Offer
}
