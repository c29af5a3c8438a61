// Package allocator defines the boundary to the resource-allocation policy
// engine. The control-plane core never decides which agent's resources are
// offered to which framework; it only notifies the allocator of recovered
// resources and routes resource operations through its accounting.
package allocator

import (
	"context"
	"time"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// DefaultRefuseDuration is the grace period attached to recovered resources so
// that the control plane virtually always wins the race against the allocator's
// own re-offer cycle. This is a heuristic, not a correctness guarantee: the race
// is fundamentally best-effort and double allocation remains possible.
const DefaultRefuseDuration = 5 * time.Second

// Filters restricts how soon recovered resources may be re-offered.
type Filters struct {
	RefuseDuration time.Duration
}

func DefaultFilters() Filters {
	return Filters{RefuseDuration: DefaultRefuseDuration}
}

// InverseOfferStatusKind is a framework's response to an inverse offer.
type InverseOfferStatusKind string

const (
	InverseOfferUnknown  InverseOfferStatusKind = "UNKNOWN"
	InverseOfferAccepted InverseOfferStatusKind = "ACCEPT"
	InverseOfferDeclined InverseOfferStatusKind = "DECLINE"
)

// InverseOfferStatus records how a framework responded to a request to vacate
// an agent ahead of a maintenance window.
type InverseOfferStatus struct {
	FrameworkID string
	Status      InverseOfferStatusKind
	Timestamp   time.Time
}

// Allocator is the consumed interface of the external allocation engine.
type Allocator interface {
	// RecoverResources credits resources from a rescinded offer back to the
	// agent's available pool, with a refusal filter so they are not immediately
	// re-offered. Fire-and-forget from the caller's perspective.
	RecoverResources(frameworkID string, agentID string, resources state.Resources, filters Filters)

	// UpdateAvailable runs a resource operation against the allocator's view of
	// the agent's available resources. An error means the operation cannot be
	// satisfied and must surface as a conflict.
	UpdateAvailable(ctx context.Context, agentID string, op state.Operation) error

	// InverseOfferStatuses returns, per agent and framework, the most recent
	// inverse-offer response. The data may be stale and is cleared across a
	// control-plane failover.
	InverseOfferStatuses(ctx context.Context) (map[string]map[string]InverseOfferStatus, error)
}
