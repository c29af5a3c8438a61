package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResources_PlusMinusRoundTrip(t *testing.T) {
	a := NewResources(ScalarResource("cpus", "4"), ScalarResource("mem", "1024"))
	b := NewResources(ScalarResource("cpus", "2"), ScalarResource("mem", "512"))

	assert.True(t, a.Plus(b).Minus(b).Equal(a))
	assert.True(t, a.Minus(b).Plus(b).Equal(a))
}

func TestResources_PlusMergesAddableEntries(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "2")).Plus(NewResources(ScalarResource("cpus", "3")))

	assert.Len(t, total, 1)
	assert.True(t, total.Equal(NewResources(ScalarResource("cpus", "5"))))
}

func TestResources_RolesDoNotMerge(t *testing.T) {
	total := NewResources(
		ScalarResource("cpus", "2"),
		ScalarResource("cpus", "2").WithRole("ops"),
	)

	assert.Len(t, total, 2)
	assert.False(t, total.Contains(NewResources(ScalarResource("cpus", "4"))))
	assert.True(t, total.Contains(NewResources(ScalarResource("cpus", "2").WithRole("ops"))))
}

func TestResources_ReservationsDoNotMerge(t *testing.T) {
	reserved := ScalarResource("cpus", "2").WithRole("ops").WithReservation("principal")
	total := NewResources(ScalarResource("cpus", "2").WithRole("ops"), reserved)

	assert.Len(t, total, 2)
	assert.False(t, total.Contains(NewResources(ScalarResource("cpus", "4").WithRole("ops"))))
}

func TestResources_MinusIsClamped(t *testing.T) {
	a := NewResources(ScalarResource("cpus", "2"))
	b := NewResources(ScalarResource("cpus", "5"))

	assert.True(t, a.Minus(b).IsEmpty())
}

func TestResources_MinusIgnoresMissingEntries(t *testing.T) {
	required := NewResources(ScalarResource("cpus", "5"))
	offered := NewResources(ScalarResource("mem", "1024"))

	// An offer with nothing in common leaves required untouched; this property
	// is what the rescission skip-check relies on.
	assert.True(t, required.Equal(required.Minus(offered)))

	contributing := NewResources(ScalarResource("cpus", "1"))
	assert.False(t, required.Equal(required.Minus(contributing)))
}

func TestResources_Ranges(t *testing.T) {
	ports := NewResources(RangeResource("ports", Range{Begin: 31000, End: 32000}))

	remaining := ports.Minus(NewResources(RangeResource("ports", Range{Begin: 31000, End: 31500})))
	assert.True(t, remaining.Equal(NewResources(RangeResource("ports", Range{Begin: 31501, End: 32000}))))

	assert.True(t, ports.Contains(NewResources(RangeResource("ports", Range{Begin: 31100, End: 31200}))))
	assert.False(t, ports.Contains(NewResources(RangeResource("ports", Range{Begin: 32000, End: 32100}))))
}

func TestResources_AdjacentRangesMerge(t *testing.T) {
	merged := NewResources(RangeResource("ports", Range{Begin: 1, End: 10})).
		Plus(NewResources(RangeResource("ports", Range{Begin: 11, End: 20})))

	assert.True(t, merged.Equal(NewResources(RangeResource("ports", Range{Begin: 1, End: 20}))))
}

func TestResources_Sets(t *testing.T) {
	disks := NewResources(SetResource("disks", "sda1", "sdb1"))

	assert.True(t, disks.Contains(NewResources(SetResource("disks", "sda1"))))
	assert.False(t, disks.Contains(NewResources(SetResource("disks", "sdc1"))))

	remaining := disks.Minus(NewResources(SetResource("disks", "sda1")))
	assert.True(t, remaining.Equal(NewResources(SetResource("disks", "sdb1"))))
}

func TestResources_FlattenStripsReservations(t *testing.T) {
	total := NewResources(
		ScalarResource("cpus", "1"),
		ScalarResource("cpus", "2").WithRole("ops"),
		ScalarResource("cpus", "3").WithRole("ops").WithReservation("principal"),
	)

	flat := total.Flatten()
	assert.Len(t, flat, 1)
	assert.True(t, flat.Equal(NewResources(ScalarResource("cpus", "6"))))
}

func TestResources_StripVolumes(t *testing.T) {
	total := NewResources(
		ScalarResource("disk", "512").WithRole("ops").WithVolume("v1", "/data"),
		ScalarResource("disk", "512").WithRole("ops"),
	)

	stripped := total.StripVolumes()
	assert.Len(t, stripped, 1)
	assert.True(t, stripped.Equal(NewResources(ScalarResource("disk", "1024").WithRole("ops"))))
}

func TestResources_FilterCheckpointed(t *testing.T) {
	total := NewResources(
		ScalarResource("cpus", "4"),
		ScalarResource("cpus", "2").WithRole("ops").WithReservation("principal"),
		ScalarResource("disk", "512").WithRole("ops").WithVolume("v1", "/data"),
	)

	checkpointed := total.Filter(Resource.NeedsCheckpointing)
	assert.Len(t, checkpointed, 2)
	assert.False(t, checkpointed.Contains(NewResources(ScalarResource("cpus", "4"))))
}

func TestResources_ArithmeticIsNonDestructive(t *testing.T) {
	a := NewResources(ScalarResource("cpus", "4"))
	b := NewResources(ScalarResource("cpus", "1"))

	_ = a.Plus(b)
	_ = a.Minus(b)
	assert.True(t, a.Equal(NewResources(ScalarResource("cpus", "4"))))
}

func TestResources_EmptyEntriesAreDropped(t *testing.T) {
	total := NewResources(ScalarResource("cpus", "0"), ScalarResource("mem", "1024"))

	assert.Len(t, total, 1)
	remaining := total.Minus(NewResources(ScalarResource("mem", "1024")))
	assert.Len(t, remaining, 0)
	assert.True(t, remaining.IsEmpty())
}
