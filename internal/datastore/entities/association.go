package entities

import "time"

// ActivityCriterion records that a criterion is used within an activity.
type ActivityCriterion struct {
	ID          uint      `gorm:"primaryKey"`
	ActivityID  uint      `gorm:"not null;uniqueIndex:idx_activity_criterion"`
	CriterionID uint      `gorm:"not null;uniqueIndex:idx_activity_criterion;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`

	Activity  *Activity  `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	Criterion *Criterion `gorm:"foreignKey:CriterionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (ActivityCriterion) TableName() string {
	return "activity_criteria"
}

// ActivityPractice records that a practice is used within an activity.
type ActivityPractice struct {
	ID         uint      `gorm:"primaryKey"`
	ActivityID uint      `gorm:"not null;uniqueIndex:idx_activity_practice"`
	PracticeID uint      `gorm:"not null;uniqueIndex:idx_activity_practice;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	Activity *Activity `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	Practice *Practice `gorm:"foreignKey:PracticeID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (ActivityPractice) TableName() string {
	return "activity_practices"
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&Domain{},
		&Criterion{},
		&Practice{},
		&Activity{},
		&Annotation{},
		&ActivityCriterion{},
		&ActivityPractice{},
	}
}
