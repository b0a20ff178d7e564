package models

import "time"

// EducationEnrolment records a spell of education at an establishment. The
// person is "in education" while an enrolment with a null end date exists.
type EducationEnrolment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PrisonNumber  string     `gorm:"size:10;not null;index" json:"prison_number"`
	Establishment string     `gorm:"size:3;not null" json:"establishment"`
	StartDate     time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate       *time.Time `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Open reports whether the enrolment is still running.
func (e EducationEnrolment) Open() bool {
	return e.EndDate == nil
}
