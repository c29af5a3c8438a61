package allocator

import (
	"context"
	"sync"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// LocalAllocator is an in-process Allocator that keeps per-agent available
// accounting and inverse-offer responses. It carries no offer-making policy;
// fairness and placement stay out of scope.
type LocalAllocator struct {
	mu        sync.Mutex
	available map[string]state.Resources
	statuses  map[string]map[string]InverseOfferStatus

	// Resources under an active refusal filter, keyed by agent id. Entries
	// expire on their own once the filter's refusal window has passed.
	refused *cache.Cache
}

func NewLocalAllocator() *LocalAllocator {
	return &LocalAllocator{
		available: map[string]state.Resources{},
		statuses:  map[string]map[string]InverseOfferStatus{},
		refused:   cache.New(DefaultRefuseDuration, DefaultRefuseDuration),
	}
}

// SetAvailable replaces the allocator's view of an agent's available resources.
// Called on agent (re)registration and whenever offers are issued externally.
func (a *LocalAllocator) SetAvailable(agentID string, available state.Resources) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available[agentID] = available.DeepCopy()
}

// Available returns the allocator's current view of an agent's available pool.
func (a *LocalAllocator) Available(agentID string) state.Resources {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available[agentID].DeepCopy()
}

func (a *LocalAllocator) RecoverResources(frameworkID string, agentID string, resources state.Resources, filters Filters) {
	a.mu.Lock()
	a.available[agentID] = a.available[agentID].Plus(resources)
	a.mu.Unlock()

	refuseDuration := filters.RefuseDuration
	if refuseDuration <= 0 {
		refuseDuration = DefaultRefuseDuration
	}
	refused := resources
	if existing, ok := a.refused.Get(agentID); ok {
		refused = existing.(state.Resources).Plus(resources)
	}
	a.refused.Set(agentID, refused, refuseDuration)

	log.WithFields(log.Fields{
		"framework": frameworkID,
		"agent":     agentID,
		"resources": resources.String(),
	}).Info("recovered resources")
}

// Refused returns the resources currently held back by a refusal filter for the
// given agent, if the filter has not yet expired.
func (a *LocalAllocator) Refused(agentID string) state.Resources {
	if refused, ok := a.refused.Get(agentID); ok {
		return refused.(state.Resources)
	}
	return nil
}

func (a *LocalAllocator) UpdateAvailable(ctx context.Context, agentID string, op state.Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	available, ok := a.available[agentID]
	if !ok {
		return &flotillaerrors.ErrNotFound{Type: "agent", Value: agentID}
	}
	updated, err := op.Apply(available)
	if err != nil {
		return &flotillaerrors.ErrConflict{Action: string(op.Type()), Message: err.Error()}
	}
	a.available[agentID] = updated
	return nil
}

// SetInverseOfferStatus records a framework's response to an inverse offer for
// an agent. The record is in-memory only and is lost across failover.
func (a *LocalAllocator) SetInverseOfferStatus(agentID string, status InverseOfferStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byFramework, ok := a.statuses[agentID]
	if !ok {
		byFramework = map[string]InverseOfferStatus{}
		a.statuses[agentID] = byFramework
	}
	byFramework[status.FrameworkID] = status
}

func (a *LocalAllocator) InverseOfferStatuses(ctx context.Context) (map[string]map[string]InverseOfferStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]map[string]InverseOfferStatus, len(a.statuses))
	for agentID, byFramework := range a.statuses {
		copied := make(map[string]InverseOfferStatus, len(byFramework))
		for frameworkID, status := range byFramework {
			copied[frameworkID] = status
		}
		out[agentID] = copied
	}
	return out, nil
}
