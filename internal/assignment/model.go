// Package assignment holds the annotation entity and the pure rules that
// classify and mutate its criterion and practice assignment.
package assignment

import "math"

// Unassigned is the label shown for a criterion or practice that is not set.
const Unassigned = "Unassigned"

// Step identifies one stage of the assignment wizard.
type Step int

const (
	StepContext Step = iota
	StepCriterion
	StepPractice
	StepSummary
)

// StepCount is the number of wizard steps.
const StepCount = 4

// Valid reports whether s is one of the four wizard steps.
func (s Step) Valid() bool {
	return s >= StepContext && s <= StepSummary
}

func (s Step) String() string {
	switch s {
	case StepContext:
		return "context"
	case StepCriterion:
		return "criterion"
	case StepPractice:
		return "practice"
	case StepSummary:
		return "summary"
	default:
		return "invalid"
	}
}

// ParseStep returns the step named s, as printed by String.
func ParseStep(s string) (Step, bool) {
	for k := StepContext; k <= StepSummary; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return StepContext, false
}

// Fields is the persisted assignment state of an annotation.
type Fields struct {
	CriterionID    *uint
	CriterionLabel string
	DomainID       *uint
	PracticeID     *uint
	PracticeLabel  string
	StepOverride   *Step
}

// Annotation is a post-it attached to an activity. Assignment ids are nil
// when unset; labels then hold Unassigned. PracticeID is nil whenever
// CriterionID is nil.
type Annotation struct {
	ID                    uint
	ActivityID            uint
	Text                  string
	CriterionID           *uint
	CriterionLabel        string
	DomainID              *uint
	PracticeID            *uint
	PracticeLabel         string
	SelectedSourcePassage string
	StepOverride          *Step
}

// NewAnnotation returns an annotation with every assignment field unset.
func NewAnnotation(id, activityID uint, text string) Annotation {
	return Annotation{
		ID:             id,
		ActivityID:     activityID,
		Text:           text,
		CriterionLabel: Unassigned,
		PracticeLabel:  Unassigned,
	}
}

// Fields extracts the assignment fields written on save.
func (a Annotation) Fields() Fields {
	return Fields{
		CriterionID:    cloneID(a.CriterionID),
		CriterionLabel: a.CriterionLabel,
		DomainID:       cloneID(a.DomainID),
		PracticeID:     cloneID(a.PracticeID),
		PracticeLabel:  a.PracticeLabel,
		StepOverride:   cloneStep(a.StepOverride),
	}
}

// Clone returns a deep copy; pointer fields are not shared.
func (a Annotation) Clone() Annotation {
	c := a
	c.CriterionID = cloneID(a.CriterionID)
	c.DomainID = cloneID(a.DomainID)
	c.PracticeID = cloneID(a.PracticeID)
	c.StepOverride = cloneStep(a.StepOverride)
	return c
}

// Equal compares two annotations by value.
func (a Annotation) Equal(b Annotation) bool {
	return a.ID == b.ID &&
		a.ActivityID == b.ActivityID &&
		a.Text == b.Text &&
		sameID(a.CriterionID, b.CriterionID) &&
		a.CriterionLabel == b.CriterionLabel &&
		sameID(a.DomainID, b.DomainID) &&
		sameID(a.PracticeID, b.PracticeID) &&
		a.PracticeLabel == b.PracticeLabel &&
		a.SelectedSourcePassage == b.SelectedSourcePassage &&
		sameStep(a.StepOverride, b.StepOverride)
}

// HasCriterion reports whether a criterion is assigned.
func HasCriterion(a Annotation) bool {
	return a.CriterionID != nil && *a.CriterionID > 0
}

// HasPractice reports whether a practice is assigned.
func HasPractice(a Annotation) bool {
	return a.PracticeID != nil && *a.PracticeID > 0
}

// IsComplete reports whether both criterion and practice are assigned.
func IsComplete(a Annotation) bool {
	return HasCriterion(a) && HasPractice(a)
}

// Completion weights in percent.
const (
	textWeight      = 25.0
	criterionWeight = 37.5
	practiceWeight  = 37.5
)

// CompletionPercentage is an informational progress figure: 25 for text,
// 37.5 each for criterion and practice, rounded to the nearest integer.
func CompletionPercentage(a Annotation) int {
	var pct float64
	if a.Text != "" {
		pct += textWeight
	}
	if HasCriterion(a) {
		pct += criterionWeight
	}
	if HasPractice(a) {
		pct += practiceWeight
	}
	return int(math.Round(pct))
}

// ID returns a pointer to v, for building optional identifiers.
func ID(v uint) *uint {
	return &v
}

// StepPtr returns a pointer to s.
func StepPtr(s Step) *Step {
	return &s
}

// Deref returns the id or 0 when unset.
func Deref(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

func cloneID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneStep(s *Step) *Step {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameStep(a, b *Step) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
