package state

import (
	"github.com/pkg/errors"
)

type OperationType string

const (
	OperationReserve        OperationType = "RESERVE"
	OperationUnreserve      OperationType = "UNRESERVE"
	OperationCreateVolumes  OperationType = "CREATE"
	OperationDestroyVolumes OperationType = "DESTROY"
)

// Operation is an operator-initiated resource mutation targeted at a single agent.
// The sum is closed: the four variants below are the only implementations.
//
// Apply is a pure function transforming a resource total; it either returns the
// updated total or an error when the total cannot satisfy the operation. The
// input is never modified.
type Operation interface {
	Type() OperationType
	AgentID() string
	Apply(total Resources) (Resources, error)

	isOperation()
}

// Reserve dynamically reserves unreserved resources on an agent.
type Reserve struct {
	Agent     string
	Resources Resources
}

func (op Reserve) Type() OperationType { return OperationReserve }
func (op Reserve) AgentID() string     { return op.Agent }
func (op Reserve) isOperation()        {}

func (op Reserve) Apply(total Resources) (Resources, error) {
	result := total.DeepCopy()
	for _, reserved := range op.Resources {
		if !reserved.IsDynamicallyReserved() {
			return nil, errors.Errorf("invalid RESERVE operation: %v is not dynamically reserved", reserved)
		}
		unreserved := NewResources(reserved).Flatten()
		if !result.Contains(unreserved) {
			return nil, errors.Errorf("invalid RESERVE operation: %v does not contain %v", result, unreserved)
		}
		result = result.Minus(unreserved).Plus(NewResources(reserved))
	}
	return result, nil
}

// Unreserve releases dynamically reserved resources back to the default role.
type Unreserve struct {
	Agent     string
	Resources Resources
}

func (op Unreserve) Type() OperationType { return OperationUnreserve }
func (op Unreserve) AgentID() string     { return op.Agent }
func (op Unreserve) isOperation()        {}

func (op Unreserve) Apply(total Resources) (Resources, error) {
	result := total.DeepCopy()
	for _, reserved := range op.Resources {
		if !reserved.IsDynamicallyReserved() {
			return nil, errors.Errorf("invalid UNRESERVE operation: %v is not dynamically reserved", reserved)
		}
		if !result.Contains(NewResources(reserved)) {
			return nil, errors.Errorf("invalid UNRESERVE operation: %v does not contain %v", result, reserved)
		}
		result = result.Minus(NewResources(reserved)).Plus(NewResources(reserved).Flatten())
	}
	return result, nil
}

// CreateVolumes turns plain disk resources into persistent volumes.
type CreateVolumes struct {
	Agent   string
	Volumes Resources
}

func (op CreateVolumes) Type() OperationType { return OperationCreateVolumes }
func (op CreateVolumes) AgentID() string     { return op.Agent }
func (op CreateVolumes) isOperation()        {}

func (op CreateVolumes) Apply(total Resources) (Resources, error) {
	result := total.DeepCopy()
	for _, volume := range op.Volumes {
		if !volume.IsPersistentVolume() {
			return nil, errors.Errorf("invalid CREATE operation: %v is not a persistent volume", volume)
		}
		stripped := NewResources(volume).StripVolumes()
		if !result.Contains(stripped) {
			return nil, errors.Errorf("invalid CREATE operation: %v does not contain %v", result, stripped)
		}
		result = result.Minus(stripped).Plus(NewResources(volume))
	}
	return result, nil
}

// DestroyVolumes releases persistent volumes back into plain disk resources.
type DestroyVolumes struct {
	Agent   string
	Volumes Resources
}

func (op DestroyVolumes) Type() OperationType { return OperationDestroyVolumes }
func (op DestroyVolumes) AgentID() string     { return op.Agent }
func (op DestroyVolumes) isOperation()        {}

func (op DestroyVolumes) Apply(total Resources) (Resources, error) {
	result := total.DeepCopy()
	for _, volume := range op.Volumes {
		if !volume.IsPersistentVolume() {
			return nil, errors.Errorf("invalid DESTROY operation: %v is not a persistent volume", volume)
		}
		if !result.Contains(NewResources(volume)) {
			return nil, errors.Errorf("invalid DESTROY operation: %v does not contain %v", result, volume)
		}
		result = result.Minus(NewResources(volume)).Plus(NewResources(volume).StripVolumes())
	}
	return result, nil
}
