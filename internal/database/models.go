package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is a local account. PasswordHash is empty for accounts created
// through federated login only.
type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:64;not null"`
	Email        string   `gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string   `gorm:"size:256"`
	Resumes      []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume holds a single HTML document owned by one user. Enhancement
// overwrites Content in place; no version history is kept.
type Resume struct {
	gorm.Model
	UserID   uint          `gorm:"index;not null"`
	User     User          `gorm:"constraint:OnDelete:CASCADE"`
	Content  string        `gorm:"type:text;not null"`
	Analyses []JobAnalysis `gorm:"constraint:OnDelete:CASCADE"`
}

// JobAnalysis records one skill-match run against a resume. Rows are
// append-only; many analyses may reference the same resume.
type JobAnalysis struct {
	gorm.Model
	ResumeID        uint           `gorm:"index;not null"`
	Resume          Resume         `gorm:"constraint:OnDelete:CASCADE"`
	JobDescription  string         `gorm:"type:text;not null"`
	MatchPercentage float64        `gorm:"not null"`
	MatchedSkills   datatypes.JSON `gorm:"type:jsonb"`
	MissingSkills   datatypes.JSON `gorm:"type:jsonb"`
}
