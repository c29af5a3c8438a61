package state

import "time"

// MachineMode is the availability mode of a physical machine. The only legal
// transitions are UP -> DRAINING (via a schedule update), DRAINING -> DOWN and
// DOWN -> UP.
type MachineMode string

const (
	MachineUp       MachineMode = "UP"
	MachineDraining MachineMode = "DRAINING"
	MachineDown     MachineMode = "DOWN"
)

// Unavailability is the interval during which a machine is expected to be gone.
// A zero Duration means the interval is open-ended.
type Unavailability struct {
	Start    time.Time
	Duration time.Duration
}

// Machine tracks one physical node: its mode, the unavailability sourced from
// the active maintenance schedule (DRAINING machines only), and the agents
// currently running on it.
type Machine struct {
	ID             string
	Mode           MachineMode
	Unavailability *Unavailability

	agents map[string]bool
}

// Window groups machines sharing one unavailability interval.
type Window struct {
	MachineIDs     []string
	Unavailability Unavailability
}

// Schedule is an ordered list of maintenance windows. A machine appears in at
// most one window; the replace-on-update semantics of the store enforce this.
type Schedule struct {
	Windows []Window
}

// MachineUnavailabilities maps each scheduled machine to its window's interval.
func (s *Schedule) MachineUnavailabilities() map[string]Unavailability {
	out := map[string]Unavailability{}
	for _, window := range s.Windows {
		for _, id := range window.MachineIDs {
			out[id] = window.Unavailability
		}
	}
	return out
}

func (s *Schedule) clone() *Schedule {
	out := &Schedule{Windows: make([]Window, 0, len(s.Windows))}
	for _, window := range s.Windows {
		out.Windows = append(out.Windows, Window{
			MachineIDs:     append([]string(nil), window.MachineIDs...),
			Unavailability: window.Unavailability,
		})
	}
	return out
}
