// Package offers implements the offer rescission engine: reconciling a resource
// operation against the outstanding offers on its target agent.
package offers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
	"github.com/flotillaproject/flotilla/internal/flotilla/allocator"
	"github.com/flotillaproject/flotilla/internal/flotilla/notify"
	"github.com/flotillaproject/flotilla/internal/flotilla/repository"
	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

type Reconciler struct {
	store     *state.Store
	allocator allocator.Allocator
	registry  repository.Registry
	notifier  notify.Notifier
	filters   allocator.Filters
}

func NewReconciler(
	store *state.Store,
	alloc allocator.Allocator,
	registry repository.Registry,
	notifier notify.Notifier,
	filters allocator.Filters,
) *Reconciler {
	return &Reconciler{
		store:     store,
		allocator: alloc,
		registry:  registry,
		notifier:  notifier,
		filters:   filters,
	}
}

// Reconcile makes the resources an operation needs available on its target
// agent by rescinding just enough outstanding offers, then submits the
// operation for durable application.
//
// We pessimistically assume that what looks like "available" resources in the
// allocator may already be mid-flight toward being claimed, so every recovery
// notification carries a refusal filter: the recovered resources are not
// immediately re-offerable, which virtually always wins the race against the
// allocator's re-offer cycle. The race remains best-effort; see package
// allocator.
func (r *Reconciler) Reconcile(ctx context.Context, agentID string, required state.Resources, op state.Operation) error {
	// Snapshot the agent's offers up front: rescinding must not invalidate the
	// iteration over the remaining ones.
	outstanding, err := r.store.OffersOnAgent(agentID)
	if err != nil {
		return err
	}

	// Greedily rescind one offer at a time until enough has been recovered to
	// cover the operation.
	var recovered state.Resources
	for _, offer := range outstanding {
		// If rescinding the offer would not contribute to satisfying the
		// required resources, skip it.
		if required.Equal(required.Minus(offer.Resources)) {
			continue
		}

		recovered = recovered.Plus(offer.Resources)
		required = required.Minus(offer.Resources)

		r.allocator.RecoverResources(offer.FrameworkID, offer.AgentID, offer.Resources, r.filters)

		if err := r.store.RemoveOffer(offer.ID); err != nil {
			return err
		}
		r.notifier.RescindOffer(offer.FrameworkID, offer.ID)
		log.WithFields(log.Fields{
			"offer":     offer.ID,
			"agent":     agentID,
			"framework": offer.FrameworkID,
		}).Info("rescinded offer to make room for operation")

		// Stop as soon as enough offers have been rescinded to cover the
		// operation; never rescind more than necessary.
		if _, err := op.Apply(recovered); err == nil {
			break
		}
	}

	// Submit the operation for durable application. The allocator's accounting
	// is updated first so its view of available resources does not leak what
	// this request is about to claim.
	if err := r.allocator.UpdateAvailable(ctx, agentID, op); err != nil {
		return err
	}
	if err := r.registry.Apply(repository.NewOperationRecord(op)); err != nil {
		return &flotillaerrors.ErrConflict{Action: string(op.Type()), Message: err.Error()}
	}
	return r.store.ApplyOperation(op)
}
