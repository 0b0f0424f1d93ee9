package domain

import (
	"maps"
	"slices"
)

// A ProductSet is an unordered set of Marketplace product identifiers.
type ProductSet map[string]struct{}

func NewProductSet(ids ...string) ProductSet {
	s := make(ProductSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ProductSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ProductSet) Len() int {
	return len(s)
}

// Diff returns the products of s that are not in other.
func (s ProductSet) Diff(other ProductSet) ProductSet {
	d := make(ProductSet)
	for id := range s {
		if !other.Has(id) {
			d[id] = struct{}{}
		}
	}
	return d
}

func (s ProductSet) Union(other ProductSet) ProductSet {
	u := make(ProductSet, len(s)+len(other))
	maps.Copy(u, s)
	maps.Copy(u, other)
	return u
}

func (s ProductSet) Equal(other ProductSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the identifiers in ascending order.
func (s ProductSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// An ApprovalSet holds approved and rejected products of one experience
// or of the organization mirror. The two sets are not cross-validated.
type ApprovalSet struct {
	Approved ProductSet
	Rejected ProductSet
}

func NewApprovalSet(approved, rejected []string) ApprovalSet {
	return ApprovalSet{
		Approved: NewProductSet(approved...),
		Rejected: NewProductSet(rejected...),
	}
}

// A Delta lists the products an experience needs approved or rejected to
// match the mirror.
type Delta struct {
	ToApprove ProductSet
	ToReject  ProductSet
}

func (d Delta) Empty() bool {
	return d.ToApprove.Len() == 0 && d.ToReject.Len() == 0
}

// Reconcile computes the changes that bring local in line with remote.
//
// Products approved remotely but not locally are approved. Products
// approved locally but not remotely, and products rejected remotely but not
// locally, are rejected.
func Reconcile(local, remote ApprovalSet) Delta {
	return Delta{
		ToApprove: remote.Approved.Diff(local.Approved),
		ToReject: local.Approved.Diff(remote.Approved).
			Union(remote.Rejected.Diff(local.Rejected)),
	}
}

// A MirrorDelta lists the rows to add to and remove from a mirror table.
type MirrorDelta struct {
	Add    ProductSet
	Remove ProductSet
}

func (d MirrorDelta) Empty() bool {
	return d.Add.Len() == 0 && d.Remove.Len() == 0
}

// Mirror computes the table changes that make stored equal to live.
func Mirror(live, stored ProductSet) MirrorDelta {
	return MirrorDelta{
		Add:    live.Diff(stored),
		Remove: stored.Diff(live),
	}
}
