package repository

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
)

const (
	recordHashKey      = "Registry:Record"
	scheduleKey        = "Registry:MaintenanceSchedule"
	machineModeHashKey = "Registry:MachineMode"
	operationHashKey   = "Registry:AgentOperation"
)

type RecordType string

const (
	RecordUpdateSchedule   RecordType = "UpdateSchedule"
	RecordStartMaintenance RecordType = "StartMaintenance"
	RecordStopMaintenance  RecordType = "StopMaintenance"
	RecordApplyOperation   RecordType = "ApplyOperation"
)

// MutationRecord is the unit of durable commit. Every maintenance transition
// and resource operation is recorded via Registry.Apply before the control
// plane mutates any in-memory state.
type MutationRecord struct {
	ID      string     `json:"id"`
	Type    RecordType `json:"type"`
	Created time.Time  `json:"created"`

	Schedule   *state.Schedule `json:"schedule,omitempty"`
	MachineIDs []string        `json:"machineIds,omitempty"`

	AgentID       string              `json:"agentId,omitempty"`
	OperationType state.OperationType `json:"operationType,omitempty"`
	Resources     state.Resources     `json:"resources,omitempty"`
}

func NewScheduleRecord(schedule *state.Schedule) *MutationRecord {
	return &MutationRecord{
		ID:       uuid.New().String(),
		Type:     RecordUpdateSchedule,
		Created:  time.Now().UTC(),
		Schedule: schedule,
	}
}

func NewStartMaintenanceRecord(machineIDs []string) *MutationRecord {
	return &MutationRecord{
		ID:         uuid.New().String(),
		Type:       RecordStartMaintenance,
		Created:    time.Now().UTC(),
		MachineIDs: machineIDs,
	}
}

func NewStopMaintenanceRecord(machineIDs []string) *MutationRecord {
	return &MutationRecord{
		ID:         uuid.New().String(),
		Type:       RecordStopMaintenance,
		Created:    time.Now().UTC(),
		MachineIDs: machineIDs,
	}
}

func NewOperationRecord(op state.Operation) *MutationRecord {
	record := &MutationRecord{
		ID:            uuid.New().String(),
		Type:          RecordApplyOperation,
		Created:       time.Now().UTC(),
		AgentID:       op.AgentID(),
		OperationType: op.Type(),
	}
	switch concrete := op.(type) {
	case state.Reserve:
		record.Resources = concrete.Resources
	case state.Unreserve:
		record.Resources = concrete.Resources
	case state.CreateVolumes:
		record.Resources = concrete.Volumes
	case state.DestroyVolumes:
		record.Resources = concrete.Volumes
	}
	return record
}

// Registry is the long-term durable store for operator mutations. Apply must be
// called, and must succeed, before the corresponding in-memory mutation is made
// visible.
type Registry interface {
	Apply(record *MutationRecord) error
	GetSchedule() (*state.Schedule, error)
	GetMachineModes() (map[string]state.MachineMode, error)
}

// RedisRegistry persists mutation records and their derived state (the active
// schedule, per-machine modes) in redis hashes.
type RedisRegistry struct {
	db redis.UniversalClient
}

func NewRedisRegistry(db redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{db: db}
}

func (r *RedisRegistry) Apply(record *MutationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WithStack(err)
	}

	pipe := r.db.TxPipeline()
	pipe.HSet(recordHashKey, record.ID, data)

	switch record.Type {
	case RecordUpdateSchedule:
		schedule, err := json.Marshal(record.Schedule)
		if err != nil {
			return errors.WithStack(err)
		}
		pipe.Set(scheduleKey, schedule, 0)
		scheduled := map[string]bool{}
		for _, window := range record.Schedule.Windows {
			for _, id := range window.MachineIDs {
				scheduled[id] = true
				pipe.HSet(machineModeHashKey, id, string(state.MachineDraining))
			}
		}
		// Machines dropped by the replacement revert to UP; their committed
		// DRAINING entries must go too. DOWN entries are untouched: a schedule
		// update never brings a machine up.
		existing, err := r.db.HGetAll(machineModeHashKey).Result()
		if err != nil {
			return errors.Wrap(err, "error reading machine modes from database")
		}
		for id, mode := range existing {
			if state.MachineMode(mode) == state.MachineDraining && !scheduled[id] {
				pipe.HDel(machineModeHashKey, id)
			}
		}
	case RecordStartMaintenance:
		for _, id := range record.MachineIDs {
			pipe.HSet(machineModeHashKey, id, string(state.MachineDown))
		}
	case RecordStopMaintenance:
		for _, id := range record.MachineIDs {
			pipe.HDel(machineModeHashKey, id)
		}
	case RecordApplyOperation:
		pipe.HSet(operationHashKey, record.AgentID+":"+record.ID, data)
	}

	if _, err := pipe.Exec(); err != nil {
		return errors.Wrapf(err, "error writing mutation record %s to database", record.ID)
	}
	return nil
}

// Check reports whether the registry's database is reachable. Used by the
// health endpoint: an instance that cannot commit mutations must not accept them.
func (r *RedisRegistry) Check() error {
	return errors.Wrap(r.db.Ping().Err(), "registry database is unreachable")
}

// GetSchedule returns the durably committed maintenance schedule, or nil if
// none was ever committed.
func (r *RedisRegistry) GetSchedule() (*state.Schedule, error) {
	result, err := r.db.Get(scheduleKey).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "error reading maintenance schedule from database")
	}
	schedule := &state.Schedule{}
	if err := json.Unmarshal([]byte(result), schedule); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling maintenance schedule")
	}
	return schedule, nil
}

// GetMachineModes returns the durably committed non-UP machine modes.
func (r *RedisRegistry) GetMachineModes() (map[string]state.MachineMode, error) {
	result, err := r.db.HGetAll(machineModeHashKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "error reading machine modes from database")
	}
	modes := make(map[string]state.MachineMode, len(result))
	for id, mode := range result {
		modes[id] = state.MachineMode(mode)
	}
	return modes, nil
}
