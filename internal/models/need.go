package models

import "time"

// ScreenerType identifies which external screener produced an assessment.
type ScreenerType string

const (
	ScreenerALN ScreenerType = "ALN"
	ScreenerLDD ScreenerType = "LDD"
)

// ChallengeRecord is a locally recorded challenge contributing to need.
type ChallengeRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PrisonNumber  string    `gorm:"size:10;not null;index" json:"prison_number"`
	ChallengeType string    `gorm:"size:60;not null" json:"challenge_type"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedBy     string    `gorm:"size:100;not null" json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConditionRecord is a locally recorded condition contributing to need.
type ConditionRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PrisonNumber  string    `gorm:"size:10;not null;index" json:"prison_number"`
	ConditionType string    `gorm:"size:60;not null" json:"condition_type"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedBy     string    `gorm:"size:100;not null" json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScreenerAssessment is one ALN or LDD screener result. Only the
// most-recently-updated assessment per (person, screener) counts towards
// need; earlier rows are superseded but kept.
type ScreenerAssessment struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	PrisonNumber   string       `gorm:"size:10;not null;index:idx_assessment_person_type" json:"prison_number"`
	ScreenerType   ScreenerType `gorm:"size:3;not null;index:idx_assessment_person_type" json:"screener_type"`
	HasNeed        bool         `gorm:"not null" json:"has_need"`
	AssessmentDate time.Time    `gorm:"type:date;not null" json:"assessment_date"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NeedSource tags which evidence source contributed to an overall need.
type NeedSource string

const (
	NeedSourceCondition NeedSource = "LOCAL_CONDITION"
	NeedSourceChallenge NeedSource = "LOCAL_CHALLENGE"
	NeedSourceALN       NeedSource = "ALN_SCREENER"
	NeedSourceLDD       NeedSource = "LDD_SCREENER"
)
