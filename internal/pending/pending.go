// Package pending tracks assignment edits made during a session that have
// not yet been reconciled with the store.
package pending

import (
	"maps"
	"slices"

	"github.com/evalgrid/postit/internal/store"
)

// Maps holds one overwrite map per association kind, keyed by annotation id.
// A nil value records that the annotation's assignment was cleared.
// Maps is not safe for concurrent use; the session serializes access.
type Maps struct {
	criterion map[uint]*uint
	practice  map[uint]*uint
}

// New returns empty maps.
func New() *Maps {
	return &Maps{
		criterion: make(map[uint]*uint),
		practice:  make(map[uint]*uint),
	}
}

func (m *Maps) table(kind store.AssociationKind) map[uint]*uint {
	switch kind {
	case store.KindCriterion:
		return m.criterion
	case store.KindPractice:
		return m.practice
	default:
		return nil
	}
}

// Set records the latest value for annotationID, replacing any earlier one.
// Unknown kinds are ignored.
func (m *Maps) Set(kind store.AssociationKind, annotationID uint, value *uint) {
	t := m.table(kind)
	if t == nil {
		return
	}
	if value != nil {
		v := *value
		value = &v
	}
	t[annotationID] = value
}

// Get returns the recorded value and whether the annotation has an entry.
func (m *Maps) Get(kind store.AssociationKind, annotationID uint) (*uint, bool) {
	v, ok := m.table(kind)[annotationID]
	if !ok || v == nil {
		return nil, ok
	}
	c := *v
	return &c, true
}

// Forget drops every entry for annotationID.
func (m *Maps) Forget(annotationID uint) {
	delete(m.criterion, annotationID)
	delete(m.practice, annotationID)
}

// Len returns the number of annotations with an entry of the given kind.
func (m *Maps) Len(kind store.AssociationKind) int {
	return len(m.table(kind))
}

// ValuesDistinctNonNull returns the distinct non-nil, non-zero ids recorded
// for kind, sorted ascending.
func (m *Maps) ValuesDistinctNonNull(kind store.AssociationKind) []uint {
	seen := make(map[uint]struct{})
	for v := range maps.Values(m.table(kind)) {
		if v != nil && *v > 0 {
			seen[*v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
