package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reservedCpus(value string) Resource {
	return ScalarResource("cpus", value).WithRole("ops").WithReservation("principal")
}

func volume(value string) Resource {
	return ScalarResource("disk", value).WithRole("ops").WithVolume("v1", "/data")
}

func TestReserve_Apply(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "6"))
	op := Reserve{Agent: "agent-1", Resources: NewResources(reservedCpus("5"))}

	result, err := op.Apply(total)
	require.NoError(t, err)

	expected := NewResources(ScalarResource("cpus", "1"), reservedCpus("5"))
	assert.True(t, result.Equal(expected))

	// The input total is never modified.
	assert.True(t, total.Equal(NewResources(ScalarResource("cpus", "6"))))
}

func TestReserve_InsufficientResources(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "4"))
	op := Reserve{Agent: "agent-1", Resources: NewResources(reservedCpus("5"))}

	_, err := op.Apply(total)
	assert.Error(t, err)
}

func TestReserve_RejectsUnreservedResources(t *testing.T) {
	op := Reserve{Agent: "agent-1", Resources: NewResources(ScalarResource("cpus", "5"))}

	_, err := op.Apply(NewResources(ScalarResource("cpus", "6")))
	assert.Error(t, err)
}

func TestUnreserve_Apply(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "1"), reservedCpus("5"))
	op := Unreserve{Agent: "agent-1", Resources: NewResources(reservedCpus("5"))}

	result, err := op.Apply(total)
	require.NoError(t, err)
	assert.True(t, result.Equal(NewResources(ScalarResource("cpus", "6"))))
}

func TestUnreserve_NothingReserved(t *testing.T) {
	op := Unreserve{Agent: "agent-1", Resources: NewResources(reservedCpus("5"))}

	_, err := op.Apply(NewResources(ScalarResource("cpus", "6")))
	assert.Error(t, err)
}

func TestReserveUnreserve_RoundTrip(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "6"), ScalarResource("mem", "1024"))

	reserved, err := Reserve{Agent: "a", Resources: NewResources(reservedCpus("4"))}.Apply(total)
	require.NoError(t, err)
	restored, err := Unreserve{Agent: "a", Resources: NewResources(reservedCpus("4"))}.Apply(reserved)
	require.NoError(t, err)

	assert.True(t, restored.Equal(total))
}

func TestCreateVolumes_Apply(t *testing.T) {
	total := NewResources(ScalarResource("disk", "1024").WithRole("ops"))
	op := CreateVolumes{Agent: "agent-1", Volumes: NewResources(volume("512"))}

	result, err := op.Apply(total)
	require.NoError(t, err)

	expected := NewResources(ScalarResource("disk", "512").WithRole("ops"), volume("512"))
	assert.True(t, result.Equal(expected))
}

func TestCreateVolumes_RejectsPlainDisk(t *testing.T) {
	op := CreateVolumes{Agent: "agent-1", Volumes: NewResources(ScalarResource("disk", "512").WithRole("ops"))}

	_, err := op.Apply(NewResources(ScalarResource("disk", "1024").WithRole("ops")))
	assert.Error(t, err)
}

func TestDestroyVolumes_Apply(t *testing.T) {
	total := NewResources(ScalarResource("disk", "512").WithRole("ops"), volume("512"))
	op := DestroyVolumes{Agent: "agent-1", Volumes: NewResources(volume("512"))}

	result, err := op.Apply(total)
	require.NoError(t, err)
	assert.True(t, result.Equal(NewResources(ScalarResource("disk", "1024").WithRole("ops"))))
}

func TestDestroyVolumes_UnknownVolume(t *testing.T) {
	op := DestroyVolumes{Agent: "agent-1", Volumes: NewResources(volume("512"))}

	_, err := op.Apply(NewResources(ScalarResource("disk", "1024").WithRole("ops")))
	assert.Error(t, err)
}
