package state

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// DefaultRole is the role resources belong to when not reserved for anyone.
const DefaultRole = "*"

// Range is an inclusive interval of integers, e.g. a port range.
type Range struct {
	Begin uint64
	End   uint64
}

// ReservationInfo describes a dynamic reservation of a resource.
type ReservationInfo struct {
	Principal string
}

// VolumeInfo describes a persistent volume carved out of a disk resource.
type VolumeInfo struct {
	ID            string
	ContainerPath string
}

// Resource is a single typed resource entry: exactly one of Scalar, Ranges or Set
// is populated. Entries with different role, reservation or volume tags are distinct
// for all arithmetic, even when their values are equal.
type Resource struct {
	Name        string
	Role        string
	Reservation *ReservationInfo
	Volume      *VolumeInfo
	Scalar      *resource.Quantity
	Ranges      []Range
	Set         []string
}

// ScalarResource returns a scalar resource in the default role, e.g. ScalarResource("cpus", "4").
// The value must parse as a quantity.
func ScalarResource(name string, value string) Resource {
	q := resource.MustParse(value)
	return Resource{Name: name, Scalar: &q}
}

// RangeResource returns a range resource in the default role, e.g. ports.
func RangeResource(name string, ranges ...Range) Resource {
	return Resource{Name: name, Ranges: normalizeRanges(ranges)}
}

// SetResource returns a set resource in the default role.
func SetResource(name string, items ...string) Resource {
	set := append([]string(nil), items...)
	sort.Strings(set)
	return Resource{Name: name, Set: set}
}

// WithRole returns a copy of the resource assigned to the given role.
func (r Resource) WithRole(role string) Resource {
	out := r.clone()
	out.Role = role
	return out
}

// WithReservation returns a copy of the resource dynamically reserved by the given principal.
func (r Resource) WithReservation(principal string) Resource {
	out := r.clone()
	out.Reservation = &ReservationInfo{Principal: principal}
	return out
}

// WithVolume returns a copy of the resource tagged as a persistent volume.
func (r Resource) WithVolume(id string, containerPath string) Resource {
	out := r.clone()
	out.Volume = &VolumeInfo{ID: id, ContainerPath: containerPath}
	return out
}

func (r Resource) roleOrDefault() string {
	if r.Role == "" {
		return DefaultRole
	}
	return r.Role
}

// IsReserved reports whether the resource belongs to a non-default role or carries
// a dynamic reservation.
func (r Resource) IsReserved() bool {
	return r.roleOrDefault() != DefaultRole || r.Reservation != nil
}

// IsDynamicallyReserved reports whether the resource was reserved at runtime
// (as opposed to statically via the agent's role).
func (r Resource) IsDynamicallyReserved() bool {
	return r.Reservation != nil
}

// IsPersistentVolume reports whether the resource is a persistent volume.
func (r Resource) IsPersistentVolume() bool {
	return r.Volume != nil
}

// NeedsCheckpointing reports whether the resource must survive an agent restart:
// dynamic reservations and persistent volumes do.
func (r Resource) NeedsCheckpointing() bool {
	return r.IsDynamicallyReserved() || r.IsPersistentVolume()
}

func (r Resource) isEmpty() bool {
	if r.Scalar != nil {
		return r.Scalar.Sign() <= 0
	}
	return len(r.Ranges) == 0 && len(r.Set) == 0
}

// addable reports whether two resources can be merged by arithmetic: same name,
// same kind and identical role/reservation/volume tagging.
func (r Resource) addable(other Resource) bool {
	if r.Name != other.Name || r.roleOrDefault() != other.roleOrDefault() {
		return false
	}
	if !reservationsEqual(r.Reservation, other.Reservation) || !volumesEqual(r.Volume, other.Volume) {
		return false
	}
	return (r.Scalar != nil) == (other.Scalar != nil) &&
		(r.Ranges != nil) == (other.Ranges != nil) &&
		(r.Set != nil) == (other.Set != nil)
}

func (r Resource) clone() Resource {
	out := r
	if r.Scalar != nil {
		q := r.Scalar.DeepCopy()
		out.Scalar = &q
	}
	if r.Reservation != nil {
		reservation := *r.Reservation
		out.Reservation = &reservation
	}
	if r.Volume != nil {
		volume := *r.Volume
		out.Volume = &volume
	}
	out.Ranges = append([]Range(nil), r.Ranges...)
	if r.Set != nil {
		out.Set = append([]string(nil), r.Set...)
	}
	return out
}

// containsValue reports whether this resource's value covers the other's.
// Only meaningful when addable(other) holds.
func (r Resource) containsValue(other Resource) bool {
	switch {
	case r.Scalar != nil:
		return r.Scalar.Cmp(*other.Scalar) >= 0
	case r.Ranges != nil:
		return rangesContain(r.Ranges, other.Ranges)
	default:
		return setContains(r.Set, other.Set)
	}
}

func (r Resource) String() string {
	tag := r.roleOrDefault()
	if r.Reservation != nil {
		tag += ", " + r.Reservation.Principal
	}
	name := r.Name
	if r.Volume != nil {
		name += "[" + r.Volume.ID + ":" + r.Volume.ContainerPath + "]"
	}
	switch {
	case r.Scalar != nil:
		return fmt.Sprintf("%s(%s):%s", name, tag, r.Scalar.String())
	case r.Ranges != nil:
		parts := make([]string, 0, len(r.Ranges))
		for _, rng := range r.Ranges {
			parts = append(parts, fmt.Sprintf("[%d-%d]", rng.Begin, rng.End))
		}
		return fmt.Sprintf("%s(%s):%s", name, tag, strings.Join(parts, ","))
	default:
		return fmt.Sprintf("%s(%s):{%s}", name, tag, strings.Join(r.Set, ","))
	}
}

func reservationsEqual(a *ReservationInfo, b *ReservationInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func volumesEqual(a *VolumeInfo, b *VolumeInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Resources is a multiset of resource entries. All arithmetic is non-destructive
// and keeps the multiset in canonical form: addable entries merged, empty entries
// dropped. Addition and subtraction are associative and commutative, and entries
// with different role/reservation tags never merge.
type Resources []Resource

// NewResources returns the canonical form of the given entries.
func NewResources(entries ...Resource) Resources {
	var out Resources
	for _, r := range entries {
		out = out.plusOne(r)
	}
	return out
}

func (rs Resources) plusOne(r Resource) Resources {
	if r.isEmpty() {
		return rs
	}
	for i := range rs {
		if rs[i].addable(r) {
			rs[i] = addValues(rs[i], r)
			return rs
		}
	}
	return append(rs, r.clone())
}

func (rs Resources) minusOne(r Resource) Resources {
	if r.isEmpty() {
		return rs
	}
	for i := range rs {
		if rs[i].addable(r) {
			rs[i] = subtractValues(rs[i], r)
			if rs[i].isEmpty() {
				return append(rs[:i], rs[i+1:]...)
			}
			return rs
		}
	}
	return rs
}

// Plus returns rs + other.
func (rs Resources) Plus(other Resources) Resources {
	out := rs.DeepCopy()
	for _, r := range other {
		out = out.plusOne(r)
	}
	return out
}

// Minus returns rs - other. Subtraction removes at most what is present: entries
// of other with no matching entry in rs are ignored, and scalar values never go
// negative. This makes `required.Equal(required.Minus(offered))` a test for
// "offered contributes nothing to required".
func (rs Resources) Minus(other Resources) Resources {
	out := rs.DeepCopy()
	for _, r := range other {
		out = out.minusOne(r)
	}
	return out
}

// Contains reports whether rs covers other, respecting role/reservation/volume tags.
func (rs Resources) Contains(other Resources) bool {
	for _, r := range NewResources(other...) {
		found := false
		for _, own := range rs {
			if own.addable(r) {
				found = own.containsValue(r)
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Equal reports equality under role/reservation-aware semantics.
func (rs Resources) Equal(other Resources) bool {
	return rs.Contains(other) && other.Contains(rs)
}

// Flatten strips role and reservation tagging from every entry, merging entries
// that become addable as a result. Volume descriptors are kept.
func (rs Resources) Flatten() Resources {
	var out Resources
	for _, r := range rs {
		flat := r.clone()
		flat.Role = ""
		flat.Reservation = nil
		out = out.plusOne(flat)
	}
	return out
}

// StripVolumes removes the persistent volume descriptor from every entry,
// leaving plain disk resources.
func (rs Resources) StripVolumes() Resources {
	var out Resources
	for _, r := range rs {
		stripped := r.clone()
		stripped.Volume = nil
		out = out.plusOne(stripped)
	}
	return out
}

// Filter returns the entries for which the predicate holds.
func (rs Resources) Filter(predicate func(Resource) bool) Resources {
	var out Resources
	for _, r := range rs {
		if predicate(r) {
			out = out.plusOne(r)
		}
	}
	return out
}

func (rs Resources) DeepCopy() Resources {
	out := make(Resources, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.clone())
	}
	return out
}

func (rs Resources) IsEmpty() bool {
	for _, r := range rs {
		if !r.isEmpty() {
			return false
		}
	}
	return true
}

func (rs Resources) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, r.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func addValues(a Resource, b Resource) Resource {
	out := a.clone()
	switch {
	case a.Scalar != nil:
		q := a.Scalar.DeepCopy()
		q.Add(*b.Scalar)
		out.Scalar = &q
	case a.Ranges != nil:
		out.Ranges = normalizeRanges(append(append([]Range(nil), a.Ranges...), b.Ranges...))
	default:
		out.Set = setUnion(a.Set, b.Set)
	}
	return out
}

func subtractValues(a Resource, b Resource) Resource {
	out := a.clone()
	switch {
	case a.Scalar != nil:
		q := a.Scalar.DeepCopy()
		q.Sub(*b.Scalar)
		if q.Sign() < 0 {
			q = *resource.NewQuantity(0, resource.DecimalSI)
		}
		out.Scalar = &q
	case a.Ranges != nil:
		out.Ranges = subtractRanges(a.Ranges, b.Ranges)
	default:
		out.Set = setDifference(a.Set, b.Set)
	}
	return out
}

// normalizeRanges sorts ranges and merges overlapping or adjacent ones.
func normalizeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Begin <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func subtractRanges(a []Range, b []Range) []Range {
	segments := normalizeRanges(a)
	for _, cut := range normalizeRanges(b) {
		var next []Range
		for _, s := range segments {
			if cut.End < s.Begin || cut.Begin > s.End {
				next = append(next, s)
				continue
			}
			if cut.Begin > s.Begin {
				next = append(next, Range{Begin: s.Begin, End: cut.Begin - 1})
			}
			if cut.End < s.End {
				next = append(next, Range{Begin: cut.End + 1, End: s.End})
			}
		}
		segments = next
	}
	return segments
}

func rangesContain(a []Range, b []Range) bool {
	return len(subtractRanges(b, a)) == 0
}

func setUnion(a []string, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, item := range a {
		seen[item] = true
	}
	for _, item := range b {
		seen[item] = true
	}
	out := make([]string, 0, len(seen))
	for item := range seen {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func setDifference(a []string, b []string) []string {
	remove := make(map[string]bool, len(b))
	for _, item := range b {
		remove[item] = true
	}
	var out []string
	for _, item := range a {
		if !remove[item] {
			out = append(out, item)
		}
	}
	return out
}

func setContains(a []string, b []string) bool {
	have := make(map[string]bool, len(a))
	for _, item := range a {
		have[item] = true
	}
	for _, item := range b {
		if !have[item] {
			return false
		}
	}
	return true
}
