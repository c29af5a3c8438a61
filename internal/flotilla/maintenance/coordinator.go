// Package maintenance owns the per-machine availability state machine:
// UP -> DRAINING (via schedule update) -> DOWN -> UP. Illegal transitions fail
// validation before any mutation, and every transition is durably committed to
// the registry before the in-memory state changes.
package maintenance

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
	"github.com/flotillaproject/flotilla/internal/flotilla/allocator"
	"github.com/flotillaproject/flotilla/internal/flotilla/notify"
	"github.com/flotillaproject/flotilla/internal/flotilla/repository"
	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

const inverseOfferStatusCacheKey = "inverseOfferStatuses"

// DrainingMachine is one DRAINING machine and the inverse-offer responses
// schedulers have given for the agents running on it.
type DrainingMachine struct {
	ID             string
	Unavailability *state.Unavailability
	Statuses       []allocator.InverseOfferStatus
}

// ClusterStatus is the maintenance read model: one list of machines per
// non-UP machine mode.
type ClusterStatus struct {
	DrainingMachines []DrainingMachine
	DownMachines     []string
}

type Coordinator struct {
	store     *state.Store
	registry  repository.Registry
	allocator allocator.Allocator
	notifier  notify.Notifier

	// Inverse-offer responses come from the allocator and may be stale or
	// cleared across a control-plane restart; caching them briefly here adds
	// no new staleness class.
	statusCache *cache.Cache
}

func NewCoordinator(
	store *state.Store,
	registry repository.Registry,
	alloc allocator.Allocator,
	notifier notify.Notifier,
	statusCacheTTL time.Duration,
) *Coordinator {
	return &Coordinator{
		store:       store,
		registry:    registry,
		allocator:   alloc,
		notifier:    notifier,
		statusCache: cache.New(statusCacheTTL, statusCacheTTL),
	}
}

// SetSchedule validates and durably commits a new maintenance schedule, then
// applies the membership diff: machines no longer scheduled revert to UP,
// newly scheduled machines enter DRAINING with their window's unavailability,
// and machines scheduled in both get the interval refreshed. The new schedule
// replaces all previous ones; exactly one schedule is active at a time.
func (c *Coordinator) SetSchedule(ctx context.Context, schedule *state.Schedule) error {
	if err := validateSchedule(schedule, c.store); err != nil {
		return err
	}
	if err := c.registry.Apply(repository.NewScheduleRecord(schedule)); err != nil {
		return &flotillaerrors.ErrConflict{Action: "setSchedule", Message: err.Error()}
	}
	c.store.UpdateSchedule(schedule)
	log.WithField("windows", len(schedule.Windows)).Info("maintenance schedule updated")
	return nil
}

// BringDown transitions DRAINING machines to DOWN. Agents on those machines are
// sent a shutdown notice and immediately evicted from the live agent set rather
// than waiting for an acknowledgment, since delivery is not guaranteed; their
// tasks transition to TASK_LOST and the owning frameworks are notified.
func (c *Coordinator) BringDown(ctx context.Context, machineIDs []string) error {
	if err := validateMachineIDs(machineIDs); err != nil {
		return err
	}
	// Fail fast before any mutation: every machine must be part of a schedule
	// and currently DRAINING.
	for _, id := range machineIDs {
		if !c.store.HasMachine(id) {
			return &flotillaerrors.ErrNotFound{
				Type:    "machine",
				Value:   id,
				Message: "machine is not part of a maintenance schedule",
			}
		}
		if mode := c.store.MachineMode(id); mode != state.MachineDraining {
			return &flotillaerrors.ErrInvalidArgument{
				Name:    "machineIds",
				Value:   id,
				Message: "machine is not in DRAINING mode and cannot be brought down",
			}
		}
	}

	if err := c.registry.Apply(repository.NewStartMaintenanceRecord(machineIDs)); err != nil {
		return &flotillaerrors.ErrConflict{Action: "bringDown", Message: err.Error()}
	}

	// Snapshot the affected agents first, then evict against the live store.
	for _, agentID := range c.store.AgentsOnMachines(machineIDs) {
		c.notifier.ShutdownAgent(agentID, "Operator initiated 'Machine DOWN'")

		lost, err := c.store.RemoveAgent(agentID, "Operator initiated 'Machine DOWN'")
		if err != nil {
			log.WithError(err).WithField("agent", agentID).Error("failed to evict agent from downed machine")
			continue
		}
		notified := map[string]bool{}
		for _, task := range lost {
			if !notified[task.FrameworkID] {
				c.notifier.LostAgent(task.FrameworkID, agentID)
				notified[task.FrameworkID] = true
			}
		}
	}

	c.store.SetMachinesDown(machineIDs)
	log.WithField("machines", machineIDs).Info("machines brought down for maintenance")
	return nil
}

// BringUp transitions DOWN machines back to UP, clears their unavailability and
// removes them from the active schedule.
func (c *Coordinator) BringUp(ctx context.Context, machineIDs []string) error {
	if err := validateMachineIDs(machineIDs); err != nil {
		return err
	}
	for _, id := range machineIDs {
		if !c.store.HasMachine(id) {
			return &flotillaerrors.ErrNotFound{
				Type:    "machine",
				Value:   id,
				Message: "machine is not part of a maintenance schedule",
			}
		}
		if mode := c.store.MachineMode(id); mode != state.MachineDown {
			return &flotillaerrors.ErrInvalidArgument{
				Name:    "machineIds",
				Value:   id,
				Message: "machine is not in DOWN mode and cannot be brought up",
			}
		}
	}

	if err := c.registry.Apply(repository.NewStopMaintenanceRecord(machineIDs)); err != nil {
		return &flotillaerrors.ErrConflict{Action: "bringUp", Message: err.Error()}
	}

	c.store.SetMachinesUp(machineIDs)
	log.WithField("machines", machineIDs).Info("machines brought back up")
	return nil
}

// Status is a pure read returning the cluster's maintenance state: every
// DRAINING machine with the inverse-offer responses for its agents, and every
// DOWN machine. Inverse-offer data is sourced from the allocator and may be
// stale; that staleness is an accepted limitation, not a bug.
func (c *Coordinator) Status(ctx context.Context) (*ClusterStatus, error) {
	statuses, err := c.inverseOfferStatuses(ctx)
	if err != nil {
		return nil, err
	}

	status := &ClusterStatus{}
	for _, machine := range c.store.Snapshot().Machines {
		switch machine.Mode {
		case state.MachineDraining:
			draining := DrainingMachine{ID: machine.ID, Unavailability: machine.Unavailability}
			for _, agentID := range machine.AgentIDs {
				for _, response := range statuses[agentID] {
					draining.Statuses = append(draining.Statuses, response)
				}
			}
			// Stable order for the read model; the source map is unordered.
			sort.Slice(draining.Statuses, func(i, j int) bool {
				return draining.Statuses[i].FrameworkID < draining.Statuses[j].FrameworkID
			})
			status.DrainingMachines = append(status.DrainingMachines, draining)
		case state.MachineDown:
			status.DownMachines = append(status.DownMachines, machine.ID)
		case state.MachineUp:
			// UP machines are not reported.
		}
	}
	return status, nil
}

func (c *Coordinator) inverseOfferStatuses(ctx context.Context) (map[string]map[string]allocator.InverseOfferStatus, error) {
	if cached, ok := c.statusCache.Get(inverseOfferStatusCacheKey); ok {
		return cached.(map[string]map[string]allocator.InverseOfferStatus), nil
	}
	statuses, err := c.allocator.InverseOfferStatuses(ctx)
	if err != nil {
		return nil, err
	}
	c.statusCache.SetDefault(inverseOfferStatusCacheKey, statuses)
	return statuses, nil
}
