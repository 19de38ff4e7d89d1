package entities

import "time"

// Domain is an evaluation grid.
type Domain struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Domain) TableName() string {
	return "domains"
}

// Criterion is a quality-evaluation item of a grid.
type Criterion struct {
	ID        uint      `gorm:"primaryKey"`
	DomainID  *uint     `gorm:"index"`
	Name      string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Domain *Domain `gorm:"foreignKey:DomainID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM.
func (Criterion) TableName() string {
	return "criteria"
}

// Practice is a recommended improvement action.
type Practice struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Practice) TableName() string {
	return "practices"
}

// Activity is a recorded interaction under evaluation.
type Activity struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Activity) TableName() string {
	return "activities"
}
