package entities

import "time"

// Annotation is a post-it attached to an activity. Labels are stored
// denormalized next to the ids they describe.
type Annotation struct {
	ID                    uint   `gorm:"primaryKey"`
	ActivityID            uint   `gorm:"not null;index:idx_annotation_activity_criterion,priority:1;index:idx_annotation_activity_practice,priority:1"`
	Text                  string `gorm:"type:text"`
	SelectedSourcePassage string `gorm:"type:text"`
	CriterionID           *uint  `gorm:"index:idx_annotation_activity_criterion,priority:2"`
	CriterionLabel        string `gorm:"size:200;not null"`
	DomainID              *uint
	PracticeID            *uint     `gorm:"index:idx_annotation_activity_practice,priority:2"`
	PracticeLabel         string    `gorm:"size:200;not null"`
	StepOverride          *int      // entry step 0..3, nil when derived from the data
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`

	Activity  *Activity  `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	Criterion *Criterion `gorm:"foreignKey:CriterionID;constraint:OnDelete:SET NULL"`
	Practice  *Practice  `gorm:"foreignKey:PracticeID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM.
func (Annotation) TableName() string {
	return "annotations"
}
