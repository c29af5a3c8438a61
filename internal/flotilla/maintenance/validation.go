package maintenance

import (
	"github.com/hashicorp/go-multierror"

	"github.com/flotillaproject/flotilla/internal/common/flotillaerrors"
	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

// validateSchedule checks that a schedule only transitions machines between UP
// and DRAINING: a machine currently DOWN may neither be scheduled nor, being
// absent from the new schedule, be implicitly transitioned back to UP. Each
// machine may appear in at most one window. All violations are collected so
// the operator sees every problem at once.
func validateSchedule(schedule *state.Schedule, store *state.Store) error {
	if schedule == nil {
		return &flotillaerrors.ErrInvalidArgument{Name: "schedule", Value: nil, Message: "schedule is required"}
	}

	var result *multierror.Error
	seen := map[string]bool{}
	for _, window := range schedule.Windows {
		if len(window.MachineIDs) == 0 {
			result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
				Name:    "schedule",
				Value:   "window",
				Message: "a maintenance window must name at least one machine",
			})
		}
		for _, id := range window.MachineIDs {
			if id == "" {
				result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
					Name:    "machineIds",
					Value:   id,
					Message: "machine id must not be empty",
				})
				continue
			}
			if seen[id] {
				result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
					Name:    "machineIds",
					Value:   id,
					Message: "machine appears in more than one maintenance window",
				})
				continue
			}
			seen[id] = true

			if store.MachineMode(id) == state.MachineDown {
				result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
					Name:    "machineIds",
					Value:   id,
					Message: "machine is DOWN and cannot be rescheduled until brought up",
				})
			}
		}
	}

	return result.ErrorOrNil()
}

func validateMachineIDs(machineIDs []string) error {
	if len(machineIDs) == 0 {
		return &flotillaerrors.ErrInvalidArgument{
			Name:    "machineIds",
			Value:   machineIDs,
			Message: "at least one machine id is required",
		}
	}
	var result *multierror.Error
	seen := map[string]bool{}
	for _, id := range machineIDs {
		if id == "" {
			result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
				Name:    "machineIds",
				Value:   id,
				Message: "machine id must not be empty",
			})
			continue
		}
		if seen[id] {
			result = multierror.Append(result, &flotillaerrors.ErrInvalidArgument{
				Name:    "machineIds",
				Value:   id,
				Message: "duplicate machine id",
			})
		}
		seen[id] = true
	}
	return result.ErrorOrNil()
}
