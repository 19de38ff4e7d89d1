package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
)

// Operation names used by Memory.FailOn.
const (
	OpGet         = "get_annotation"
	OpSave        = "save_annotation"
	OpDelete      = "delete_annotation"
	OpList        = "list_referencing"
	OpUpsertAssoc = "upsert_association"
	OpDeleteAssoc = "delete_association"
)

type assocKey struct {
	activityID uint
	kind       AssociationKind
	id         uint
}

// Memory is an in-process Store used by tests and dry-run replays.
type Memory struct {
	mu           sync.Mutex
	annotations  map[uint]assignment.Annotation
	associations map[assocKey]struct{}
	failures     map[string]error
	calls        []string

	// NoQuery makes ListAnnotationsReferencing return ErrQueryUnsupported.
	NoQuery bool
}

// NewMemory returns a Memory store holding the given annotations.
func NewMemory(annotations ...assignment.Annotation) *Memory {
	m := &Memory{
		annotations:  make(map[uint]assignment.Annotation),
		associations: make(map[assocKey]struct{}),
		failures:     make(map[string]error),
	}
	for _, a := range annotations {
		m.annotations[a.ID] = a.Clone()
	}
	return m
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns the operations invoked so far, in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// HasAssociation reports whether the association row exists.
func (m *Memory) HasAssociation(activityID uint, kind AssociationKind, id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.associations[assocKey{activityID, kind, id}]
	return ok
}

// Associations returns the ids associated with activityID for kind, sorted.
func (m *Memory) Associations(activityID uint, kind AssociationKind) []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint
	for k := range m.associations {
		if k.activityID == activityID && k.kind == kind {
			ids = append(ids, k.id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Annotations returns every stored annotation ordered by id.
func (m *Memory) Annotations() []assignment.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]assignment.Annotation, 0, len(m.annotations))
	for _, id := range slices.Sorted(maps.Keys(m.annotations)) {
		out = append(out, m.annotations[id].Clone())
	}
	return out
}

// Put inserts or replaces an annotation.
func (m *Memory) Put(a assignment.Annotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[a.ID] = a.Clone()
}

// begin records the call and returns an injected failure, if any.
// Caller must hold m.mu.
func (m *Memory) begin(ctx context.Context, op string) error {
	m.calls = append(m.calls, op)
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.failures[op]
}

func (m *Memory) GetAnnotation(ctx context.Context, id uint) (assignment.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpGet); err != nil {
		return assignment.Annotation{}, err
	}
	a, ok := m.annotations[id]
	if !ok {
		return assignment.Annotation{}, errors.New(ErrNotFound).
			Category(errors.CategoryNotFound).
			Context("annotation_id", id).
			Build()
	}
	return a.Clone(), nil
}

func (m *Memory) SaveAnnotation(ctx context.Context, id uint, fields AssignmentFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSave); err != nil {
		return err
	}
	a, ok := m.annotations[id]
	if !ok {
		return errors.New(ErrNotFound).
			Category(errors.CategoryNotFound).
			Context("annotation_id", id).
			Build()
	}
	a.CriterionID = fields.CriterionID
	a.CriterionLabel = fields.CriterionLabel
	a.DomainID = fields.DomainID
	a.PracticeID = fields.PracticeID
	a.PracticeLabel = fields.PracticeLabel
	a.StepOverride = fields.StepOverride
	m.annotations[id] = a.Clone()
	return nil
}

func (m *Memory) DeleteAnnotation(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpDelete); err != nil {
		return err
	}
	delete(m.annotations, id)
	return nil
}

func (m *Memory) ListAnnotationsReferencing(ctx context.Context, activityID uint, ref Reference) ([]assignment.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpList); err != nil {
		return nil, err
	}
	if m.NoQuery {
		return nil, ErrQueryUnsupported
	}
	return FilterReferencing(m.sortedLocked(), activityID, ref, 0), nil
}

func (m *Memory) sortedLocked() []assignment.Annotation {
	out := make([]assignment.Annotation, 0, len(m.annotations))
	for _, id := range slices.Sorted(maps.Keys(m.annotations)) {
		out = append(out, m.annotations[id])
	}
	return out
}

func (m *Memory) UpsertActivityAssociation(ctx context.Context, activityID uint, kind AssociationKind, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpUpsertAssoc); err != nil {
		return err
	}
	m.associations[assocKey{activityID, kind, id}] = struct{}{}
	return nil
}

func (m *Memory) DeleteActivityAssociation(ctx context.Context, activityID uint, kind AssociationKind, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpDeleteAssoc); err != nil {
		return err
	}
	delete(m.associations, assocKey{activityID, kind, id})
	return nil
}

// FilterReferencing returns the annotations of activityID that use ref's
// criterion or practice, skipping excludeID. It backs both Memory and the
// in-memory fallback of callers whose store cannot query.
func FilterReferencing(annotations []assignment.Annotation, activityID uint, ref Reference, excludeID uint) []assignment.Annotation {
	var out []assignment.Annotation
	for _, a := range annotations {
		if a.ActivityID != activityID || (excludeID != 0 && a.ID == excludeID) {
			continue
		}
		if matches(a.CriterionID, ref.CriterionID) || matches(a.PracticeID, ref.PracticeID) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func matches(have, want *uint) bool {
	return have != nil && want != nil && *have == *want
}

var _ Store = (*Memory)(nil)
