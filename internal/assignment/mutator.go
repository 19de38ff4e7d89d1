package assignment

// Candidate is a criterion or practice offered for selection.
type Candidate struct {
	ID       uint
	Label    string
	DomainID *uint // grid the criterion belongs to; unused for practices
}

// OutcomeKind tells the caller what a toggle did.
type OutcomeKind int

const (
	// Cleared means the candidate was selected and is now unset.
	Cleared OutcomeKind = iota
	// Assigned means the candidate is now selected.
	Assigned
	// Rejected means nothing changed; Annotation equals the input.
	Rejected
)

func (k OutcomeKind) String() string {
	switch k {
	case Cleared:
		return "cleared"
	case Assigned:
		return "assigned"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of a toggle. Annotation is always a fresh value.
type Outcome struct {
	Kind       OutcomeKind
	Annotation Annotation

	// ID, Label and DomainID describe the assignment when Kind is Assigned.
	ID       uint
	Label    string
	DomainID *uint

	// PracticeCleared is set when a criterion toggle also unset the practice.
	PracticeCleared bool

	// Reason explains a rejection.
	Reason string
}

// Rejection reasons
const (
	ReasonNoCriterion      = "practice requires a criterion"
	ReasonInvalidCandidate = "candidate has no id"
)

// Mutator applies criterion and practice toggles.
//
// With ClearPracticeOnSwitch set, switching from one criterion to another
// also clears the practice. Left unset, the practice survives a switch.
type Mutator struct {
	ClearPracticeOnSwitch bool
}

// ToggleCriterion selects c, or deselects it when it is already the
// annotation's criterion. Deselecting always clears the practice too.
func (m Mutator) ToggleCriterion(a Annotation, c Candidate) Outcome {
	next := a.Clone()

	if c.ID == 0 {
		return Outcome{Kind: Rejected, Annotation: next, Reason: ReasonInvalidCandidate}
	}

	if HasCriterion(a) && *a.CriterionID == c.ID {
		next.CriterionID = nil
		next.CriterionLabel = Unassigned
		next.DomainID = nil
		cleared := HasPractice(a)
		clearPractice(&next)
		return Outcome{Kind: Cleared, Annotation: next, PracticeCleared: cleared}
	}

	switching := HasCriterion(a)
	next.CriterionID = ID(c.ID)
	next.CriterionLabel = c.Label
	next.DomainID = cloneID(c.DomainID)

	var practiceCleared bool
	if switching && m.ClearPracticeOnSwitch && HasPractice(a) {
		clearPractice(&next)
		practiceCleared = true
	}

	return Outcome{
		Kind:            Assigned,
		Annotation:      next,
		ID:              c.ID,
		Label:           c.Label,
		DomainID:        cloneID(c.DomainID),
		PracticeCleared: practiceCleared,
	}
}

// TogglePractice selects c, or deselects it when already selected. It is
// rejected while no criterion is assigned.
func (m Mutator) TogglePractice(a Annotation, c Candidate) Outcome {
	next := a.Clone()

	if !HasCriterion(a) {
		return Outcome{Kind: Rejected, Annotation: next, Reason: ReasonNoCriterion}
	}
	if c.ID == 0 {
		return Outcome{Kind: Rejected, Annotation: next, Reason: ReasonInvalidCandidate}
	}

	if HasPractice(a) && *a.PracticeID == c.ID {
		clearPractice(&next)
		return Outcome{Kind: Cleared, Annotation: next}
	}

	next.PracticeID = ID(c.ID)
	next.PracticeLabel = c.Label
	return Outcome{
		Kind:       Assigned,
		Annotation: next,
		ID:         c.ID,
		Label:      c.Label,
	}
}

// ToggleCriterion applies a criterion toggle with the default, permissive Mutator.
func ToggleCriterion(a Annotation, c Candidate) Outcome {
	return Mutator{}.ToggleCriterion(a, c)
}

// TogglePractice applies a practice toggle with the default Mutator.
func TogglePractice(a Annotation, c Candidate) Outcome {
	return Mutator{}.TogglePractice(a, c)
}

func clearPractice(a *Annotation) {
	a.PracticeID = nil
	a.PracticeLabel = Unassigned
}
