package datastore

import (
	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/datastore/entities"
)

func toAssignment(e *entities.Annotation) assignment.Annotation {
	a := assignment.Annotation{
		ID:                    e.ID,
		ActivityID:            e.ActivityID,
		Text:                  e.Text,
		CriterionID:           copyID(e.CriterionID),
		CriterionLabel:        labelOrUnassigned(e.CriterionLabel),
		DomainID:              copyID(e.DomainID),
		PracticeID:            copyID(e.PracticeID),
		PracticeLabel:         labelOrUnassigned(e.PracticeLabel),
		SelectedSourcePassage: e.SelectedSourcePassage,
	}
	if e.StepOverride != nil {
		a.StepOverride = assignment.StepPtr(assignment.Step(*e.StepOverride))
	}
	return a
}

// fieldsEntity carries only the assignment columns.
func fieldsEntity(f assignment.Fields) *entities.Annotation {
	e := &entities.Annotation{
		CriterionID:    copyID(f.CriterionID),
		CriterionLabel: labelOrUnassigned(f.CriterionLabel),
		DomainID:       copyID(f.DomainID),
		PracticeID:     copyID(f.PracticeID),
		PracticeLabel:  labelOrUnassigned(f.PracticeLabel),
	}
	if f.StepOverride != nil {
		step := int(*f.StepOverride)
		e.StepOverride = &step
	}
	return e
}

func toEntity(a assignment.Annotation) *entities.Annotation {
	e := fieldsEntity(a.Fields())
	e.ID = a.ID
	e.ActivityID = a.ActivityID
	e.Text = a.Text
	e.SelectedSourcePassage = a.SelectedSourcePassage
	return e
}

func copyID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func labelOrUnassigned(label string) string {
	if label == "" {
		return assignment.Unassigned
	}
	return label
}
